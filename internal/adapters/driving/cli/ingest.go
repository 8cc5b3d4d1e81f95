package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

var (
	ingestTitle    string
	ingestURL      string
	ingestText     string
	ingestManifest string
)

// stdin and stdinIsTerminal are replaced in tests.
var (
	stdin           io.Reader = os.Stdin
	stdinIsTerminal           = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Save text or files to the knowledge cache",
	Long: `Saves content so it can be searched later.

Content can come from files, from --text, from a YAML manifest, or from
standard input when it is piped. Content that is already saved is skipped.

Examples:
  kcache ingest notes/setup.md docs/*.html
  kcache ingest --title "Deploy steps" --text "Run make release, then..."
  curl -s https://example.com/page | kcache ingest --url https://example.com/page
  kcache ingest --manifest reading-list.yaml`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestTitle, "title", "t", "", "title for text input (derived from the text when empty)")
	ingestCmd.Flags().StringVarP(&ingestURL, "url", "u", "", "source URL for text input")
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "text to save")
	ingestCmd.Flags().StringVarP(&ingestManifest, "manifest", "m", "", "YAML manifest of items to save")
	needsEngine(ingestCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	switch {
	case ingestText != "":
		return ingestRaw(cmd, domain.RawDocument{Title: ingestTitle, Body: ingestText, SourceOrigin: ingestURL})

	case len(args) > 0:
		return ingestFiles(cmd, args)

	case ingestManifest != "":
		return ingestFromManifest(cmd, ingestManifest)

	case !stdinIsTerminal():
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		return ingestRaw(cmd, domain.RawDocument{Title: ingestTitle, Body: string(data), SourceOrigin: ingestURL})

	default:
		return errors.New("nothing to ingest: pass files, --text, --manifest or pipe text on stdin")
	}
}

func ingestRaw(cmd *cobra.Command, raw domain.RawDocument) error {
	res, err := ingestService.Ingest(cmd.Context(), raw)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	printIngestResult(cmd, res)
	return nil
}

// ingestFiles ingests each file and reports failures without stopping.
func ingestFiles(cmd *cobra.Command, paths []string) error {
	var failed int
	var last error
	for _, path := range paths {
		res, err := ingestService.IngestFile(cmd.Context(), path)
		if err != nil {
			cmd.PrintErrf("  %s: %v\n", path, err)
			failed++
			last = err
			continue
		}
		printIngestResult(cmd, res)
	}
	if failed == 0 {
		return nil
	}
	if len(paths) == 1 {
		return fmt.Errorf("ingest failed: %w", last)
	}
	return fmt.Errorf("%d of %d files failed: %w", failed, len(paths), last)
}

func ingestFromManifest(cmd *cobra.Command, path string) error {
	m, err := LoadManifest(path)
	if err != nil {
		return err
	}
	if len(m.Items) == 0 {
		cmd.Println("Manifest has no items.")
		return nil
	}

	var failed int
	var last error
	for _, item := range m.Items {
		var res domain.IngestResult
		var err error
		label := item.Path
		if item.Path != "" {
			res, err = ingestService.IngestFile(cmd.Context(), item.Path)
		} else {
			label = item.Title
			res, err = ingestService.Ingest(cmd.Context(), domain.RawDocument{
				Title:        item.Title,
				Body:         item.Text,
				SourceOrigin: item.URL,
			})
		}
		if err != nil {
			cmd.PrintErrf("  %s: %v\n", label, err)
			failed++
			last = err
			continue
		}
		printIngestResult(cmd, res)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d manifest items failed: %w", failed, len(m.Items), last)
	}
	return nil
}

func printIngestResult(cmd *cobra.Command, res domain.IngestResult) {
	if !res.Created {
		cmd.Printf("Already saved: %s (%s)\n", res.Item.Title, res.Item.ID)
		return
	}
	cmd.Printf("Saved: %s (%s)\n", res.Item.Title, res.Item.ID)
	cmd.Printf("  Source: %s\n", res.Item.SourceDisplay())
	cmd.Printf("  Chunks: %d\n", res.ChunkCount)
	if res.Item.WasTruncated {
		cmd.Println("  Note: content was truncated to the configured limits")
	}
}
