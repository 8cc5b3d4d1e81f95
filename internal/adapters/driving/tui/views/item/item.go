// Package item provides the knowledge item reader for the TUI.
package item

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/custodia-labs/kcache/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/kcache/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/kcache/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kcache/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driving"
)

const timeLayout = "2006-01-02 15:04"

// reservedLines covers the title, metadata, separator and status bar.
const reservedLines = 7

// View shows the full content of the item behind a search result, scrolled
// to the matched chunk. Without a knowledge service only the chunk is shown.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	statusbar *status.Bar
	knowledge driving.KnowledgeService
	ctx       context.Context

	result  domain.RetrievalResult
	item    *domain.KnowledgeItem
	content string
	lines   []string
	offset  int
	width   int
	height  int
	loading bool
	err     error
}

// NewView creates a new item view.
func NewView(s *styles.Styles, km *keymap.KeyMap, knowledge driving.KnowledgeService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	bar := status.NewBar(s, km)
	bar.SetHints(km.ItemHelp())

	return &View{
		styles:    s,
		keymap:    km,
		statusbar: bar,
		knowledge: knowledge,
		ctx:       context.Background(),
		width:     80,
		height:    24,
	}
}

// WithContext sets the context item loads run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// SetResult shows result and returns a command loading its parent item.
func (v *View) SetResult(result domain.RetrievalResult) tea.Cmd {
	v.result = result
	v.item = nil
	v.err = nil
	v.offset = 0
	v.statusbar.SetState(status.StateReady)
	v.setContent(result.ChunkText)

	if v.knowledge == nil {
		v.loading = false
		return nil
	}
	v.loading = true
	svc, ctx, id := v.knowledge, v.ctx, result.KnowledgeItemID
	return func() tea.Msg {
		item, err := svc.Get(ctx, id)
		return messages.ItemLoaded{ItemID: id, Item: item, Err: err}
	}
}

// Update handles messages for the item view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.ItemLoaded:
		if msg.ItemID != v.result.KnowledgeItemID {
			return v, nil
		}
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			v.statusbar.SetState(status.StateError)
			v.statusbar.SetMessage(msg.Err.Error())
			return v, nil
		}
		v.item = msg.Item
		v.setContent(msg.Item.RawContent)
		v.offset = v.matchOffset()
		return v, nil
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	page := v.visibleLines()
	switch {
	case key.Matches(msg, v.keymap.Up):
		v.scroll(-1)
	case key.Matches(msg, v.keymap.Down):
		v.scroll(1)
	case key.Matches(msg, v.keymap.PageUp):
		v.scroll(-page)
	case key.Matches(msg, v.keymap.PageDown):
		v.scroll(page)
	case key.Matches(msg, v.keymap.Top):
		v.offset = 0
	case key.Matches(msg, v.keymap.Bottom):
		v.offset = v.maxOffset()
	case key.Matches(msg, v.keymap.Back):
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewSearch} }
	case key.Matches(msg, v.keymap.Quit):
		return v, func() tea.Msg { return messages.Quit{} }
	}
	return v, nil
}

func (v *View) scroll(delta int) {
	v.offset += delta
	if v.offset > v.maxOffset() {
		v.offset = v.maxOffset()
	}
	if v.offset < 0 {
		v.offset = 0
	}
}

func (v *View) setContent(content string) {
	v.content = content
	v.wrap()
}

// wrap splits the content into display lines no wider than the view.
func (v *View) wrap() {
	v.lines = wrapLines(v.content, v.contentWidth())
	if v.offset > v.maxOffset() {
		v.offset = v.maxOffset()
	}
}

func wrapLines(content string, width int) []string {
	if content == "" {
		return nil
	}
	raw := strings.Split(content, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		lines = append(lines, strings.Split(runewidth.Wrap(line, width), "\n")...)
	}
	return lines
}

// matchOffset returns the display line where the matched chunk starts, so
// the reader opens on the passage that was found.
func (v *View) matchOffset() int {
	first := strings.TrimSpace(firstLine(v.result.ChunkText))
	if first == "" {
		return 0
	}
	idx := strings.Index(v.content, first)
	if idx <= 0 {
		return 0
	}
	off := len(wrapLines(v.content[:idx], v.contentWidth())) - 1
	if off > v.maxOffset() {
		off = v.maxOffset()
	}
	if off < 0 {
		off = 0
	}
	return off
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, " \t\n")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func (v *View) contentWidth() int {
	if w := v.width - 4; w >= 20 {
		return w
	}
	return 20
}

func (v *View) visibleLines() int {
	if n := v.height - reservedLines; n >= 1 {
		return n
	}
	return 1
}

func (v *View) maxOffset() int {
	if n := len(v.lines) - v.visibleLines(); n > 0 {
		return n
	}
	return 0
}

// View renders the item view.
func (v *View) View() string {
	var b strings.Builder

	title := v.result.Title
	if v.item != nil && v.item.Title != "" {
		title = v.item.Title
	}
	if title == "" {
		title = "(Untitled)"
	}
	b.WriteString(v.styles.Title.Render(title))
	b.WriteString("\n")
	b.WriteString(v.renderMeta())
	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render(strings.Repeat("─", min(v.width-4, 60))))
	b.WriteString("\n")

	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n")
	case len(v.lines) == 0:
		b.WriteString(v.styles.Muted.Render("(No content)"))
		b.WriteString("\n")
	default:
		end := min(v.offset+v.visibleLines(), len(v.lines))
		for i := v.offset; i < end; i++ {
			b.WriteString(v.styles.Normal.Render(v.lines[i]))
			b.WriteString("\n")
		}
	}

	v.statusbar.SetMessage(v.position())
	b.WriteString(v.statusbar.View())
	return b.String()
}

func (v *View) renderMeta() string {
	source := v.result.SourceDisplay
	parts := []string{}
	if v.item != nil {
		source = v.item.SourceDisplay()
	}
	if source != "" {
		parts = append(parts, v.styles.Source.Render(source))
	}
	parts = append(parts, v.styles.Score.Render(fmt.Sprintf("score %.2f", v.result.Score)))
	if v.item != nil {
		parts = append(parts, v.styles.Muted.Render(v.item.CreatedAt.Local().Format(timeLayout)))
		if v.item.WasTruncated {
			parts = append(parts, v.styles.Warning.Render("truncated"))
		}
	}
	if v.loading {
		parts = append(parts, v.styles.Muted.Render("loading..."))
	}
	return strings.Join(parts, "  ")
}

func (v *View) position() string {
	if len(v.lines) <= v.visibleLines() {
		return ""
	}
	pct := 0
	if m := v.maxOffset(); m > 0 {
		pct = v.offset * 100 / m
	}
	return fmt.Sprintf("[%d%%] lines %d-%d of %d",
		pct, v.offset+1, min(v.offset+v.visibleLines(), len(v.lines)), len(v.lines))
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.statusbar.SetWidth(width)
	v.wrap()
}

// Item returns the loaded item, nil until loading completes.
func (v *View) Item() *domain.KnowledgeItem {
	return v.item
}

// Result returns the result being shown.
func (v *View) Result() domain.RetrievalResult {
	return v.result
}

// Content returns the text being shown.
func (v *View) Content() string {
	return v.content
}

// Offset returns the first visible line.
func (v *View) Offset() int {
	return v.offset
}

// Err returns the last load error.
func (v *View) Err() error {
	return v.err
}
