package cli

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the indexed documents",
	Long: `Answers a single question given as arguments. Without arguments it starts
an interactive session; type quit, exit or q to leave.`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	svc, err := service(cmd.Context())
	if err != nil {
		return err
	}

	if len(args) > 0 {
		answer(cmd, svc, strings.Join(args, " "))
		return nil
	}

	cmd.Println("Ask a question (quit, exit or q to leave).")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		cmd.Print("> ")
		if !scanner.Scan() {
			cmd.Println()
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(question) {
		case "":
			continue
		case "quit", "exit", "q":
			return nil
		}
		answer(cmd, svc, question)
		if cmd.Context().Err() != nil {
			return nil
		}
	}
}

func answer(cmd *cobra.Command, svc Service, question string) {
	text, ok := svc.Query(cmd.Context(), question)
	if !ok {
		cmd.PrintErrln("Error: could not answer the question, see log for details")
		return
	}
	cmd.Println(text)
	cmd.Println()
}
