package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	sessiondto "arena/internal/modules/session/dto"
	apperrors "arena/internal/platform/errors"
	"arena/internal/ui/components"
	"arena/internal/ui/theme"
	screenview "arena/internal/ui/views/screen"
)

// SessionPort is the live session the model drives.
type SessionPort interface {
	State() sessiondto.State
	Events() <-chan sessiondto.Event
	Continue() error
	Input(draft string) error
	Select(choiceID string) error
	ChangeMind() error
	Lock() error
	Submit(text string) error
	DismissWarning() error
	Comprehension(understood bool) error
	Exit() error
	Abandon() error
}

// EventMsg carries one session event into the update loop.
type EventMsg struct{ Event sessiondto.Event }

type eventsClosedMsg struct{}

type keyMap struct {
	Continue   key.Binding
	Up         key.Binding
	Down       key.Binding
	Select     key.Binding
	ChangeMind key.Binding
	Submit     key.Binding
	Dismiss    key.Binding
	Yes        key.Binding
	No         key.Binding
	Palette    key.Binding
	Help       key.Binding
	Abandon    key.Binding
	Quit       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Continue:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "continue / lock")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "previous option")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next option")),
		Select:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select option")),
		ChangeMind: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "change of mind")),
		Submit:     key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "submit reflection")),
		Dismiss:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss warning")),
		Yes:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "I understand")),
		No:         key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "I don't understand")),
		Palette:    key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Abandon:    key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "abandon session")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "save and quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Continue, k.Help, k.Palette, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Continue, k.Up, k.Down, k.Select, k.ChangeMind},
		{k.Submit, k.Dismiss, k.Yes, k.No},
		{k.Help, k.Palette, k.Abandon, k.Quit},
	}
}

// Model is the root Bubble Tea model for one arena session. All session
// rules live behind SessionPort; the model only maps keys to operations and
// re-reads state when the session emits an event.
type Model struct {
	session SessionPort

	screen   screenview.Model
	draft    textarea.Model
	bar      progress.Model
	palette  components.Palette
	keys     keyMap
	help     help.Model
	showHelp bool

	state  sessiondto.State
	status string
	width  int
	height int
}

func NewModel(session SessionPort) Model {
	ta := textarea.New()
	ta.Placeholder = "Write what you noticed about your choice..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 2000
	ta.SetHeight(5)

	m := Model{
		session: session,
		screen:  screenview.New(),
		draft:   ta,
		bar:     progress.New(progress.WithSolidFill(string(theme.Lavender)), progress.WithoutPercentage()),
		palette: components.NewPalette(),
		keys:    defaultKeys(),
		help:    help.New(),
		status:  "ready",
	}
	m.refresh()
	m.focusDraft()
	if m.state.Restored {
		m.status = "resumed where you left off"
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.screen.Init(), m.waitEvent(), textarea.Blink)
}

func (m Model) waitEvent() tea.Cmd {
	events := m.session.Events()
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.palette.SetWidth(min(m.width-4, 80))
		m.bar.Width = max(m.width/3, 10)
		m.draft.SetWidth(max(m.width-6, 20))
		var cmd tea.Cmd
		m.screen, cmd = m.screen.Update(tea.WindowSizeMsg{Width: msg.Width - 4, Height: m.bodyHeight()})
		return m, cmd

	case EventMsg:
		m.refresh()
		m.noteEvent(msg.Event)
		focus := m.focusDraft()
		return m, tea.Batch(m.waitEvent(), focus)

	case eventsClosedMsg:
		return m, nil

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}
	}

	var cmd tea.Cmd
	m.screen, cmd = m.screen.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case msg.String() == "ctrl+c":
		return m.quit(m.session.Exit)
	case key.Matches(msg, m.keys.Abandon):
		return m.quit(m.session.Abandon)
	}

	if m.state.Complete {
		if key.Matches(msg, m.keys.Quit) || key.Matches(msg, m.keys.Continue) {
			return m, tea.Quit, true
		}
		return m, nil, false
	}

	switch m.state.Intervention.Tier {
	case "comprehension":
		switch {
		case key.Matches(msg, m.keys.Yes):
			m.act(func() error { return m.session.Comprehension(true) })
			return m, nil, true
		case key.Matches(msg, m.keys.No):
			m.act(func() error { return m.session.Comprehension(false) })
			return m, nil, true
		}
	case "warning":
		if key.Matches(msg, m.keys.Dismiss) {
			m.act(m.session.DismissWarning)
			return m, nil, true
		}
	}

	if m.state.Screen == "reflection" {
		if key.Matches(msg, m.keys.Submit) {
			m.act(func() error { return m.session.Submit(m.draft.Value()) })
			if m.state.Screen != "reflection" {
				m.draft.Reset()
			}
			return m, nil, true
		}
		before := m.draft.Value()
		var cmd tea.Cmd
		m.draft, cmd = m.draft.Update(msg)
		if after := m.draft.Value(); after != before {
			m.act(func() error { return m.session.Input(after) })
		}
		return m, cmd, true
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit(m.session.Exit)
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil, true
	case key.Matches(msg, m.keys.Palette):
		cmd := m.palette.Open()
		return m, cmd, true
	}

	if m.state.Screen == "forced_choice" {
		return m.handleChoiceKey(msg)
	}
	if key.Matches(msg, m.keys.Continue) {
		m.act(m.session.Continue)
		return m, nil, true
	}
	return m, nil, false
}

func (m Model) handleChoiceKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.screen.MoveCursor(-1)
		return m, nil, true
	case key.Matches(msg, m.keys.Down):
		m.screen.MoveCursor(1)
		return m, nil, true
	case key.Matches(msg, m.keys.Select):
		if id, ok := m.screen.CursorChoice(); ok {
			m.act(func() error { return m.session.Select(id) })
		}
		return m, nil, true
	case key.Matches(msg, m.keys.ChangeMind):
		m.act(m.session.ChangeMind)
		return m, nil, true
	case key.Matches(msg, m.keys.Continue):
		if m.state.Locked {
			m.act(m.session.Continue)
			return m, nil, true
		}
		if m.state.Selection == "" {
			if id, ok := m.screen.CursorChoice(); ok {
				if !m.act(func() error { return m.session.Select(id) }) {
					return m, nil, true
				}
			}
		}
		m.act(m.session.Lock)
		return m, nil, true
	}
	if n, err := strconv.Atoi(msg.String()); err == nil && n >= 1 && n <= len(m.state.Choices) {
		id := m.state.Choices[n-1].ID
		m.act(func() error { return m.session.Select(id) })
		return m, nil, true
	}
	return m, nil, false
}

// act runs one session operation and refreshes state. It reports whether the
// operation succeeded.
func (m *Model) act(op func() error) bool {
	err := op()
	m.refresh()
	if err != nil {
		m.status = describeErr(err)
		return false
	}
	return true
}

func (m Model) quit(op func() error) (tea.Model, tea.Cmd, bool) {
	if err := op(); err != nil {
		m.status = describeErr(err)
	}
	return m, tea.Quit, true
}

func (m *Model) refresh() {
	m.state = m.session.State()
	m.screen.SetState(m.state)
	if m.state.Screen != "reflection" {
		m.draft.Blur()
	} else if m.draft.Value() == "" && m.state.Draft != "" {
		m.draft.SetValue(m.state.Draft)
	}
}

func (m *Model) focusDraft() tea.Cmd {
	if m.state.Screen == "reflection" && !m.draft.Focused() {
		return m.draft.Focus()
	}
	return nil
}

func (m *Model) noteEvent(ev sessiondto.Event) {
	switch ev.Name {
	case "intervention_fired":
		m.status = ev.Message
	case "intervention_cleared":
		m.status = "ready"
	case "decision_committed":
		m.status = "locked: " + ev.Message
	case "content_updated":
		if strings.Contains(ev.Message, "evolved") {
			m.status = "the question was simplified"
		}
	case "session_complete":
		m.status = "session complete"
	}
}

func describeErr(err error) string {
	if errors.Is(err, apperrors.ErrSessionClosed) {
		return "session is closed"
	}
	return err.Error()
}

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	switch parts[0] {
	case "continue":
		m.act(m.session.Continue)
	case "select":
		if len(parts) < 2 {
			m.status = "usage: select <n>"
			return m, nil
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 1 || n > len(m.state.Choices) {
			m.status = "no such option"
			return m, nil
		}
		id := m.state.Choices[n-1].ID
		m.act(func() error { return m.session.Select(id) })
	case "lock":
		m.act(m.session.Lock)
	case "change-mind":
		m.act(m.session.ChangeMind)
	case "dismiss":
		m.act(m.session.DismissWarning)
	case "understood":
		m.act(func() error { return m.session.Comprehension(true) })
	case "not-understood":
		m.act(func() error { return m.session.Comprehension(false) })
	case "submit":
		m.act(func() error { return m.session.Submit(m.draft.Value()) })
	case "exit":
		next, cmd, _ := m.quit(m.session.Exit)
		return next, cmd
	case "abandon":
		next, cmd, _ := m.quit(m.session.Abandon)
		return next, cmd
	default:
		m.status = "unknown command: " + parts[0]
	}
	focus := m.focusDraft()
	return m, focus
}

func (m Model) bodyHeight() int {
	return max(m.height-12, 3)
}

func (m Model) View() string {
	header := m.renderHeader()
	status := m.renderStatusBar()

	var content string
	switch {
	case m.showHelp:
		content = m.help.View(m.keys)
	case m.palette.Visible():
		content = lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, m.palette.View())
	default:
		body := m.screen.View()
		if m.state.Screen == "reflection" {
			body += "\n" + m.draft.View() + "\n" + theme.Muted.Render("ctrl+s: submit")
		}
		content = theme.PressurePane(m.state.Pressure).Width(max(m.width-2, 20)).Render(body)
		if overlay := m.renderIntervention(); overlay != "" {
			content = lipgloss.JoinVertical(lipgloss.Left, content, overlay)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, content, status)
}

func (m Model) renderHeader() string {
	s := m.state
	title := theme.Title.Render(s.Title)
	if s.Title == "" {
		title = theme.Title.Render("arena")
	}
	round := theme.Muted.Render(fmt.Sprintf("round %d/%d  %s", s.Round, s.TargetRounds, strings.ReplaceAll(s.Screen, "_", " ")))
	timer := ""
	if !s.Complete {
		timer = lipgloss.NewStyle().Foreground(theme.PressureColor(s.Pressure)).Bold(true).
			Render(formatRemaining(s.Remaining) + "  " + s.Pressure)
	}
	line := strings.Join([]string{title, round, timer}, "  ")
	return line + "\n" + m.bar.ViewAs(s.Progress) + "\n"
}

func (m Model) renderIntervention() string {
	in := m.state.Intervention
	switch in.Tier {
	case "warning":
		return theme.TierPane(in.Tier).Render(in.Message + "\n" + theme.Muted.Render("esc: dismiss, or just keep going"))
	case "comprehension":
		return theme.TierPane(in.Tier).Render(in.Message + "\n" + theme.Muted.Render("y: yes   n: no"))
	case "countdown":
		return theme.TierPane(in.Tier).Render(fmt.Sprintf("%s\n%s", in.Message, theme.Hot.Render(formatRemaining(in.Countdown))))
	}
	return ""
}

func (m Model) renderStatusBar() string {
	left := m.status
	right := theme.Muted.Render("?:help  :::palette  q:save+quit  ctrl+x:abandon")
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
