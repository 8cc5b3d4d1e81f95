package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

var (
	searchLimit int
	searchJSON  bool
)

// snippetLength bounds the chunk text shown per result.
const snippetLength = 240

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search saved knowledge",
	Long: `Performs hybrid search across all saved knowledge.
Combines semantic (vector) similarity with keyword and phrase overlap, then
limits how many chunks a single item may contribute.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	needsEngine(searchCmd)
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts := domain.SearchOptions{
		Limit: searchLimit,
	}

	outcome, err := searchService.Search(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, outcome)
	}

	if outcome.NeedsReindex() {
		cmd.Printf("Stored embeddings cannot be compared with the current model: %v\n", outcome.Reindex)
		cmd.Println("Run `kcache reindex` to re-embed them.")
		return nil
	}

	return outputSearchTable(cmd, outcome.Results)
}

func outputSearchJSON(cmd *cobra.Command, outcome domain.SearchOutcome) error {
	if outcome.Results == nil {
		outcome.Results = []domain.RetrievalResult{}
	}
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.RetrievalResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		// Format: [N] Title (Score)
		title := results[i].Title
		if title == "" {
			title = results[i].KnowledgeItemID
		}

		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, results[i].Score)
		cmd.Printf("      Source: %s\n", results[i].SourceDisplay)
		if snippet := snippet(results[i].ChunkText, snippetLength); snippet != "" {
			cmd.Printf("      %s\n", snippet)
		}
		cmd.Println()
	}

	return nil
}

// snippet collapses whitespace and truncates to at most limit runes.
func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
