package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index <paths...>",
	Short: "Index files or directories",
	Long: `Loads every supported file below the given paths, cleans and chunks the
text and stores the chunk embeddings in the vector store.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	svc, err := service(cmd.Context())
	if err != nil {
		return err
	}

	cmd.Printf("Indexing %d path(s)...\n", len(args))
	if !svc.IndexPaths(cmd.Context(), args) {
		return errors.New("indexing failed, see log for details")
	}

	stats, err := svc.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	cmd.Printf("Done. Collection %q now holds %d chunks.\n", stats.CollectionName, stats.TotalDocuments)
	return nil
}
