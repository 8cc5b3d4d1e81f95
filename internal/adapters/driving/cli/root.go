// Package cli implements the kcache command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kcache/internal/adapters/driven/config"
	"github.com/custodia-labs/kcache/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/core/ports/driving"
	"github.com/custodia-labs/kcache/internal/logger"
)

// version is set at build time.
var version = "dev"

// annotationEngine marks commands that need the storage and embedding engine.
const annotationEngine = "engine"

// Wired dependencies. Tests replace these before executing rootCmd.
var (
	configStore      driven.ConfigStore
	settings         = domain.DefaultSettings()
	searchService    driving.SearchService
	ingestService    driving.IngestService
	knowledgeService driving.KnowledgeService
	reindexService   driving.ReindexService
	fileSupported    func(path string) bool

	app *App

	// injected is set when tests provide the services directly.
	injected bool
)

// Root flags.
var (
	verbose   bool
	logJSON   bool
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "kcache",
	Short: "Local knowledge cache with hybrid search",
	Long: `kcache saves notes, pages and files on this machine and finds them again.

Text is split into overlapping chunks, embedded with a local model and ranked
with a blend of semantic similarity and keyword overlap. Nothing leaves the
machine unless a remote embedding provider is configured.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default ~/.kcache)")
}

// needsEngine marks cmd as requiring the wired engine.
func needsEngine(cmd *cobra.Command) {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationEngine] = "true"
}

// setup loads configuration and, for commands that need it, the engine.
func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if logJSON {
		logger.SetFormat(logger.FormatJSON)
	}

	if configStore == nil {
		store, err := file.NewConfigStore(configDir)
		if err != nil {
			return fmt.Errorf("opening config: %w", err)
		}
		configStore = store
	}

	if cmd.Annotations[annotationEngine] != "true" || injected || app != nil {
		return nil
	}

	if err := config.LoadEnvFiles(config.DefaultEnvFiles(configStore)...); err != nil {
		return err
	}
	loaded, err := config.LoadSettings(configStore)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	settings = loaded

	a, err := NewApp(cmd.Context(), configStore, settings)
	if err != nil {
		return err
	}
	app = a
	searchService = a.Search
	ingestService = a.Ingest
	knowledgeService = a.Knowledge
	reindexService = a.Reindex
	fileSupported = a.Extractor.Supported
	return nil
}

// SetVersion sets the version reported by `kcache version`.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command and prints errors with a hint.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)

	if app != nil {
		if cerr := app.Close(); cerr != nil {
			logger.Warn("Closing engine: %v", cerr)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := hintFor(err); hint != "" {
			fmt.Fprintf(os.Stderr, "\n%s\n", hint)
		}
	}
	return err
}
