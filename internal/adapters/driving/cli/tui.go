package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kcache/internal/adapters/driving/tui"
	"github.com/custodia-labs/kcache/internal/core/domain"
)

var tuiLimit int

// runTUI starts the program; replaced in tests.
var runTUI = func(cmd *cobra.Command, app *tui.App) error {
	return app.Run(cmd.Context())
}

var tuiCmd = &cobra.Command{
	Use:   "tui [query]",
	Short: "Browse saved knowledge interactively",
	Long: `Opens a terminal search browser. Type a query and press enter, move
through the results with the arrow keys and press enter to read the item a
passage came from.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTUICmd,
}

func init() {
	tuiCmd.Flags().IntVarP(&tuiLimit, "limit", "n", 10, "maximum number of results")
	needsEngine(tuiCmd)
	rootCmd.AddCommand(tuiCmd)
}

func runTUICmd(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}
	if !stdinIsTerminal() {
		return errors.New("tui needs an interactive terminal; use `kcache search` instead")
	}

	app, err := tui.NewApp(&tui.Ports{
		Search:    searchService,
		Knowledge: knowledgeService,
		Options:   domain.SearchOptions{Limit: tuiLimit},
	})
	if err != nil {
		return err
	}
	if len(args) == 1 {
		app.WithQuery(strings.TrimSpace(args[0]))
	}

	return runTUI(cmd, app)
}
