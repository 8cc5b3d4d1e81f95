package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kcache/internal/adapters/driving/watch"
)

var (
	watchNoScan   bool
	watchDebounce string
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Keep a directory in the knowledge cache",
	Long: `Ingests every text file under a directory, then watches it and ingests
files as they are created or changed. Deleted files are removed from the cache.

Paths matching patterns in the directory's ignore file (.kcacheignore by
default, gitignore syntax) are skipped, as are hidden files.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoScan, "no-scan", false, "skip the initial scan of existing files")
	watchCmd.Flags().StringVar(&watchDebounce, "debounce", "", "quiet period before a change is ingested (e.g. 1s)")
	needsEngine(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	debounce := settings.Watch.Debounce
	if watchDebounce != "" {
		d, err := parseDuration(watchDebounce)
		if err != nil {
			return err
		}
		debounce = d
	}

	ignore, err := watch.NewIgnoreFilter(root, settings.Watch.IgnoreFile)
	if err != nil {
		return err
	}

	opts := []watch.Option{
		watch.WithIgnoreFilter(ignore),
		watch.WithDebounce(debounce),
		watch.WithResultHandler(func(r watch.Result) { printWatchResult(cmd, r) }),
	}
	if knowledgeService != nil {
		opts = append(opts, watch.WithKnowledge(knowledgeService))
	}
	if fileSupported != nil {
		opts = append(opts, watch.WithSupported(fileSupported))
	}

	w, err := watch.New(root, ingestService, opts...)
	if err != nil {
		return err
	}

	if !watchNoScan {
		cmd.Printf("Scanning %s\n", w.Root())
		if err := w.Scan(cmd.Context()); err != nil {
			return err
		}
	}

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", w.Root())
	return w.Run(cmd.Context())
}

func printWatchResult(cmd *cobra.Command, r watch.Result) {
	switch r.Action {
	case watch.ActionIngested:
		cmd.Printf("  + %s (%d chunks)\n", r.Path, r.Chunks)
	case watch.ActionRemoved:
		cmd.Printf("  - %s\n", r.Path)
	case watch.ActionFailed:
		cmd.PrintErrf("  ! %s: %v\n", r.Path, r.Err)
	}
}
