package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector store statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	svc, err := service(cmd.Context())
	if err != nil {
		return err
	}

	stats, err := svc.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Collection:      %s\n", stats.CollectionName)
	cmd.Printf("Chunks:          %d\n", stats.TotalDocuments)
	if stats.HasEmbeddings {
		cmd.Printf("Embedding dim:   %d\n", stats.EmbeddingDim)
	}
	if stats.SampleDocumentID != "" {
		cmd.Printf("Sample chunk id: %s\n", stats.SampleDocumentID)
	}
	return nil
}
