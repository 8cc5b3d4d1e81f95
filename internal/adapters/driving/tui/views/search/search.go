// Package search provides the main search view for the TUI.
package search

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/kcache/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/kcache/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/kcache/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/kcache/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/kcache/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kcache/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driving"
)

// View is the search screen: a query input, the ranked results and a
// status bar. It is either in input mode (typing) or results mode
// (navigating).
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QueryInput
	list      *list.ResultList
	statusbar *status.Bar

	searchService driving.SearchService
	opts          domain.SearchOptions
	ctx           context.Context

	width      int
	height     int
	ready      bool
	err        error
	reindex    *domain.ReindexRequired
	lastQuery  string
	focusInput bool
}

// NewView creates a new search view.
func NewView(s *styles.Styles, km *keymap.KeyMap, searchService driving.SearchService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:        s,
		keymap:        km,
		input:         input.NewQueryInput(s),
		list:          list.NewResultList(s),
		statusbar:     status.NewBar(s, km),
		searchService: searchService,
		ctx:           context.Background(),
		width:         80,
		height:        24,
		focusInput:    true,
	}
}

// WithContext sets the context searches run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// WithOptions sets the search options used for every query.
func (v *View) WithOptions(opts domain.SearchOptions) *View {
	v.opts = opts
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the search view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.SearchCompleted:
		v.handleSearchCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return v, nil
	}

	var cmd tea.Cmd
	if v.focusInput {
		v.input, cmd = v.input.Update(msg)
	}
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if v.focusInput {
		return v.handleInputKey(msg)
	}
	return v.handleResultsKey(msg)
}

// handleInputKey: enter submits, esc returns to the results when there are
// any and quits otherwise, everything else edits the query.
func (v *View) handleInputKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keymap.Search):
		query := v.input.Query()
		if query == "" {
			return v, nil
		}
		v.input.Remember(query)
		v.lastQuery = query
		v.statusbar.SetState(status.StateSearching)
		v.statusbar.SetMessage("")
		return v, v.performSearch(query)

	case key.Matches(msg, v.keymap.Back):
		if v.list.IsEmpty() {
			return v, func() tea.Msg { return messages.Quit{} }
		}
		v.focusResults()
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleResultsKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keymap.Open):
		result := v.list.SelectedResult()
		if result == nil {
			return v, nil
		}
		selected := *result
		return v, func() tea.Msg { return messages.ResultSelected{Result: selected} }

	case key.Matches(msg, v.keymap.NewSearch):
		v.focusInput = true
		v.input.Reset()
		return v, v.input.Focus()

	case key.Matches(msg, v.keymap.Back):
		v.focusInput = true
		return v, v.input.Focus()

	case key.Matches(msg, v.keymap.Help):
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewHelp} }

	case key.Matches(msg, v.keymap.Quit):
		return v, func() tea.Msg { return messages.Quit{} }
	}

	v.list, _ = v.list.Update(msg)
	return v, nil
}

// performSearch returns a command that runs the query off the update loop.
func (v *View) performSearch(query string) tea.Cmd {
	svc, ctx, opts := v.searchService, v.ctx, v.opts
	return func() tea.Msg {
		if svc == nil {
			return messages.ErrorOccurred{Err: ErrNoSearchService}
		}
		outcome, err := svc.Search(ctx, query, opts)
		return messages.SearchCompleted{Query: query, Outcome: outcome, Err: err}
	}
}

func (v *View) handleSearchCompleted(msg messages.SearchCompleted) {
	v.list.SetResults(nil)
	v.reindex = nil

	if msg.Err != nil {
		v.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return
	}
	v.err = nil

	if msg.Outcome.NeedsReindex() {
		v.reindex = msg.Outcome.Reindex
		v.statusbar.SetState(status.StateReindex)
		return
	}

	v.list.SetResults(msg.Outcome.Results)
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetResultCount(len(msg.Outcome.Results))
	if len(msg.Outcome.Results) == 0 {
		v.statusbar.SetMessage(fmt.Sprintf("Nothing matched %q", msg.Query))
		return
	}
	v.statusbar.SetMessage("")
	v.focusResults()
}

func (v *View) focusResults() {
	v.focusInput = false
	v.input.Blur()
}

// View renders the search view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 8)
	sections = append(sections, v.styles.Title.Render("kcache"), "", v.input.View(), "")

	switch {
	case v.err != nil:
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()))
	case v.reindex != nil:
		sections = append(sections,
			v.styles.Warning.Render(v.reindex.Error()),
			v.styles.Muted.Render("Run `kcache reindex` to re-embed saved knowledge with the current model."))
	default:
		sections = append(sections, v.list.View())
	}

	sections = append(sections, "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	// header, input box, blank lines and status bar
	v.list.SetDimensions(width, height-9)
	v.statusbar.SetWidth(width)
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Query returns the current input value.
func (v *View) Query() string {
	return v.input.Value()
}

// LastQuery returns the most recently submitted query.
func (v *View) LastQuery() string {
	return v.lastQuery
}

// Results returns the current search results.
func (v *View) Results() []domain.RetrievalResult {
	return v.list.Results()
}

// SelectedIndex returns the index of the selected result.
func (v *View) SelectedIndex() int {
	return v.list.Selected()
}

// Reindex returns the pending reindex signal from the last search, if any.
func (v *View) Reindex() *domain.ReindexRequired {
	return v.reindex
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// Reset returns the view to an empty input.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.Reset()
	v.list.SetResults(nil)
	v.err = nil
	v.reindex = nil
	v.statusbar.Clear()
}

// SetQuery sets the input value.
func (v *View) SetQuery(query string) {
	v.input.SetValue(query)
}
