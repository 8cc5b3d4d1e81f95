package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	listJSON    bool
	showContent bool
	showChunks  bool
	deleteForce bool
)

const (
	timeLayout   = "2006-01-02 15:04:05"
	contentLimit = 400
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved items",
	Long:  `Lists saved knowledge items, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show [item-id]",
	Short: "Show a saved item",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [item-id...]",
	Short: "Delete saved items",
	Long:  `Deletes items and all of their chunks.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output items as JSON")
	showCmd.Flags().BoolVarP(&showContent, "content", "c", false, "print the full indexed text")
	showCmd.Flags().BoolVar(&showChunks, "chunks", false, "print every chunk")
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "ignore items that do not exist")

	for _, c := range []*cobra.Command{listCmd, showCmd, deleteCmd} {
		needsEngine(c)
		rootCmd.AddCommand(c)
	}
}

func runList(cmd *cobra.Command, _ []string) error {
	if knowledgeService == nil {
		return errors.New("knowledge service not configured")
	}

	items, err := knowledgeService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}

	if listJSON {
		type itemJSON struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Source    string `json:"source"`
			SourceURL string `json:"source_url,omitempty"`
			Truncated bool   `json:"truncated"`
			CreatedAt string `json:"created_at"`
		}
		out := make([]itemJSON, len(items))
		for i := range items {
			out[i] = itemJSON{
				ID:        items[i].ID,
				Title:     items[i].Title,
				Source:    items[i].SourceDisplay(),
				SourceURL: items[i].SourceURL,
				Truncated: items[i].WasTruncated,
				CreatedAt: items[i].CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal items: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(items) == 0 {
		cmd.Println("No items saved yet.")
		return nil
	}

	for i := range items {
		cmd.Printf("  %s\n", items[i].ID)
		cmd.Printf("    Title:  %s\n", items[i].Title)
		cmd.Printf("    Source: %s\n", items[i].SourceDisplay())
		cmd.Printf("    Saved:  %s\n", items[i].CreatedAt.Local().Format(timeLayout))
		cmd.Println()
	}

	cmd.Printf("Total: %d items\n", len(items))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	if knowledgeService == nil {
		return errors.New("knowledge service not configured")
	}

	item, err := knowledgeService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get item: %w", err)
	}

	cmd.Printf("Item: %s\n\n", item.ID)
	cmd.Printf("  Title:     %s\n", item.Title)
	cmd.Printf("  Source:    %s\n", item.SourceDisplay())
	if item.SourceURL != "" {
		cmd.Printf("  URL:       %s\n", item.SourceURL)
	}
	cmd.Printf("  Saved:     %s\n", item.CreatedAt.Local().Format(timeLayout))
	cmd.Printf("  Hash:      %s\n", item.ContentHash)
	cmd.Printf("  Truncated: %t\n", item.WasTruncated)

	chunks, err := knowledgeService.Chunks(cmd.Context(), item.ID)
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}
	cmd.Printf("  Chunks:    %d\n", len(chunks))
	if len(chunks) > 0 {
		cmd.Printf("  Model:     %s (%d dims)\n", chunks[0].EmbeddingModelID, chunks[0].EmbeddingDim)
	}

	switch {
	case showChunks:
		for _, c := range chunks {
			cmd.Printf("\n--- chunk %d ---\n%s\n", c.Index, c.Text)
		}
	case showContent:
		cmd.Printf("\n%s\n", item.RawContent)
	default:
		cmd.Printf("\n%s\n", snippet(item.RawContent, contentLimit))
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if knowledgeService == nil {
		return errors.New("knowledge service not configured")
	}

	for _, id := range args {
		if err := knowledgeService.Delete(cmd.Context(), id); err != nil {
			if deleteForce && isNotFound(err) {
				continue
			}
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
		cmd.Printf("Deleted %s\n", id)
	}
	return nil
}
