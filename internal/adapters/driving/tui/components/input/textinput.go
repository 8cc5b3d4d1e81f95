// Package input provides text input components for the TUI.
package input

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/kcache/internal/adapters/driving/tui/styles"
)

// queryCharLimit bounds a typed query.
const queryCharLimit = 512

// historySize bounds how many submitted queries are remembered.
const historySize = 50

// QueryInput wraps a bubbles textinput and keeps a short history of
// submitted queries that can be recalled with the arrow keys.
type QueryInput struct {
	textinput textinput.Model
	styles    *styles.Styles
	width     int

	history []string
	cursor  int
}

// NewQueryInput creates a new focused query input.
func NewQueryInput(s *styles.Styles) *QueryInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = "Ask your saved knowledge..."
	ti.Focus()
	ti.CharLimit = queryCharLimit
	ti.Width = 50

	return &QueryInput{
		textinput: ti,
		styles:    s,
		width:     50,
	}
}

// Init initialises the input.
func (q *QueryInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input messages. Up and down walk the query history.
func (q *QueryInput) Update(msg tea.Msg) (*QueryInput, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		//nolint:exhaustive // only history keys are intercepted
		switch k.Type {
		case tea.KeyUp:
			q.recall(-1)
			return q, nil
		case tea.KeyDown:
			q.recall(1)
			return q, nil
		}
	}
	var cmd tea.Cmd
	q.textinput, cmd = q.textinput.Update(msg)
	return q, cmd
}

// View renders the input with its label.
func (q *QueryInput) View() string {
	label := q.styles.Title.Render("Search: ")
	field := q.styles.InputField.Render(q.textinput.View())
	//nolint:misspell // lipgloss.Center is the correct constant from the library
	return lipgloss.JoinHorizontal(lipgloss.Center, label, field)
}

// Query returns the current value with surrounding whitespace removed.
func (q *QueryInput) Query() string {
	return strings.TrimSpace(q.textinput.Value())
}

// Value returns the raw input value.
func (q *QueryInput) Value() string {
	return q.textinput.Value()
}

// SetValue sets the input value.
func (q *QueryInput) SetValue(value string) {
	q.textinput.SetValue(value)
	q.textinput.CursorEnd()
}

// Remember appends a submitted query to the history, skipping repeats of
// the most recent entry.
func (q *QueryInput) Remember(query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}
	if n := len(q.history); n == 0 || q.history[n-1] != query {
		q.history = append(q.history, query)
		if len(q.history) > historySize {
			q.history = q.history[len(q.history)-historySize:]
		}
	}
	q.cursor = len(q.history)
}

// History returns the remembered queries, oldest first.
func (q *QueryInput) History() []string {
	return q.history
}

// recall moves the history cursor by delta. Moving past the newest entry
// clears the input.
func (q *QueryInput) recall(delta int) {
	if len(q.history) == 0 {
		return
	}
	q.cursor += delta
	if q.cursor < 0 {
		q.cursor = 0
	}
	if q.cursor >= len(q.history) {
		q.cursor = len(q.history)
		q.SetValue("")
		return
	}
	q.SetValue(q.history[q.cursor])
}

// Focus sets focus on the input.
func (q *QueryInput) Focus() tea.Cmd {
	return q.textinput.Focus()
}

// Blur removes focus from the input.
func (q *QueryInput) Blur() {
	q.textinput.Blur()
}

// Focused returns whether the input is focused.
func (q *QueryInput) Focused() bool {
	return q.textinput.Focused()
}

// SetWidth sets the width of the input.
func (q *QueryInput) SetWidth(width int) {
	q.width = width
	// label and border padding
	inputWidth := width - 14
	if inputWidth < 20 {
		inputWidth = 20
	}
	q.textinput.Width = inputWidth
}

// Width returns the current width.
func (q *QueryInput) Width() int {
	return q.width
}

// Reset clears the input and rewinds the history cursor.
func (q *QueryInput) Reset() {
	q.textinput.Reset()
	q.cursor = len(q.history)
}
