package screen

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	sessiondto "arena/internal/modules/session/dto"
	"arena/internal/ui/theme"
)

// Model renders the body of the current arena screen. It owns the choice
// cursor; everything else comes from the session state.
type Model struct {
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	state    sessiondto.State
	cursor   int
	width    int
	height   int
}

func New() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	r, _ := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(0),
	)
	return Model{
		viewport: viewport.New(0, 0),
		spinner:  sp,
		renderer: r,
	}
}

func (m Model) Init() tea.Cmd { return m.spinner.Tick }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.viewport.SetContent(m.renderContent())
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.state.Loading {
			m.viewport.SetContent(m.renderContent())
		}
	}
	var vCmd tea.Cmd
	m.viewport, vCmd = m.viewport.Update(msg)
	cmds = append(cmds, vCmd)
	return m, tea.Batch(cmds...)
}

// SetState re-renders the body. The cursor resets when the screen changes.
func (m *Model) SetState(state sessiondto.State) {
	screenChanged := state.Screen != m.state.Screen || state.Round != m.state.Round
	m.state = state
	if screenChanged {
		m.cursor = 0
		m.viewport.GotoTop()
	}
	if idx := m.selectionIndex(); idx >= 0 && screenChanged {
		m.cursor = idx
	}
	if m.cursor >= len(state.Choices) {
		m.cursor = max(len(state.Choices)-1, 0)
	}
	m.viewport.SetContent(m.renderContent())
}

func (m *Model) MoveCursor(delta int) {
	n := len(m.state.Choices)
	if n == 0 {
		return
	}
	m.cursor = (m.cursor + delta + n) % n
	m.viewport.SetContent(m.renderContent())
}

// CursorChoice returns the id of the choice under the cursor.
func (m Model) CursorChoice() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Choices) {
		return "", false
	}
	return m.state.Choices[m.cursor].ID, true
}

func (m Model) View() string {
	return m.viewport.View()
}

func (m *Model) resize() {
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height, 1)
	if r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(max(m.width-4, 20)),
	); err == nil {
		m.renderer = r
	}
}

func (m Model) selectionIndex() int {
	for i, c := range m.state.Choices {
		if c.ID == m.state.Selection {
			return i
		}
	}
	return -1
}

func (m Model) markdown(src string) string {
	if m.renderer == nil {
		return src
	}
	out, err := m.renderer.Render(src)
	if err != nil {
		return src
	}
	return strings.TrimRight(out, "\n")
}

func (m Model) loading(what string) string {
	return m.spinner.View() + " " + theme.Muted.Render(what)
}

func (m Model) renderContent() string {
	s := m.state
	switch s.Screen {
	case "situation":
		if s.Loading || s.Situation == "" {
			return m.loading("Preparing the situation")
		}
		return m.markdown(s.Situation) + "\n\n" + theme.Muted.Render("enter: continue")
	case "forced_choice":
		return m.renderChoice()
	case "consequence":
		if len(s.Consequences) == 0 {
			return m.loading("Working out what happens next")
		}
		var b strings.Builder
		b.WriteString("### What happened\n\n")
		for _, c := range s.Consequences {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		return m.markdown(b.String()) + "\n\n" + theme.Muted.Render("enter: continue")
	case "insight":
		if s.Insight == "" {
			return m.loading("Looking for the lesson")
		}
		return m.markdown("> "+s.Insight) + "\n\n" + theme.Muted.Render("enter: continue")
	case "reflection":
		return m.markdown("### Reflect\n\n"+s.Prompt) + "\n"
	case "complete":
		return m.renderSummary()
	default:
		return m.loading("Starting")
	}
}

func (m Model) renderChoice() string {
	s := m.state
	if s.Loading || len(s.Choices) == 0 {
		return m.loading("Preparing your options")
	}
	var b strings.Builder
	b.WriteString(m.markdown(s.Situation))
	b.WriteString("\n\n")
	for i, c := range s.Choices {
		marker := "  "
		if i == m.cursor && !s.Locked {
			marker = theme.Hot.Render("> ")
		}
		label := fmt.Sprintf("%d. %s", i+1, c.Label)
		switch {
		case s.Locked && c.ID == s.Selection:
			label = theme.Locked.Render(label + "  [locked]")
		case c.ID == s.Selection:
			label = theme.Selected.Render(label + "  [selected]")
		}
		b.WriteString(marker + label + "\n")
	}
	b.WriteString("\n")
	switch {
	case s.Locked:
		b.WriteString(theme.Muted.Render("Locked in. Waiting for the outcome."))
	case s.CanChangeMind:
		b.WriteString(theme.Muted.Render("space: select  enter: lock  c: change of mind (once)"))
	default:
		b.WriteString(theme.Muted.Render("space: select  enter: lock"))
	}
	return b.String()
}

func (m Model) renderSummary() string {
	s := m.state
	var b strings.Builder
	b.WriteString("## Session complete\n\n")
	if len(s.Decisions) == 0 {
		b.WriteString("No decisions were recorded.\n")
		return m.markdown(b.String())
	}
	b.WriteString("| Round | Choice | Signal | Time to lock | Forced |\n|---|---|---|---|---|\n")
	for _, d := range s.Decisions {
		forced := ""
		if d.Forced {
			forced = "yes"
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n", d.Round, d.ChoiceID, d.Signal, d.TimeToLock.Round(time.Second), forced)
	}
	return m.markdown(b.String()) + "\n\n" + theme.Muted.Render("q: quit")
}
