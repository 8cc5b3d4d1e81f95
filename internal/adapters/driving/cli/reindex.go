package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Re-embed every stored chunk with the current model",
	Long: `Re-embeds all stored chunks with the configured embedding model.

Needed after changing the embedding provider or model, when search reports
that stored vectors cannot be compared with the query. Every chunk is embedded
before anything is written, so a failure leaves the store unchanged.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

func init() {
	needsEngine(reindexCmd)
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, _ []string) error {
	if reindexService == nil {
		return errors.New("reindex service not configured")
	}

	report, err := reindexService.Reindex(cmd.Context())
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	if report.Chunks == 0 {
		cmd.Println("Nothing to reindex.")
		return nil
	}
	cmd.Printf("Re-embedded %d chunks with %s (%d dims)\n", report.Chunks, report.ModelID, report.Dimension)
	return nil
}
