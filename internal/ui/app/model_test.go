package app_test

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sessiondto "arena/internal/modules/session/dto"
	"arena/internal/ui/app"
)

type fakeSession struct {
	state   sessiondto.State
	events  chan sessiondto.Event
	calls   []string
	inputs  []string
	lockErr error
}

func newFakeSession(screen string) *fakeSession {
	return &fakeSession{
		state: sessiondto.State{
			Title:        "Launch",
			Screen:       screen,
			Round:        1,
			TargetRounds: 2,
			Pressure:     "calm",
			Situation:    "The launch slipped.",
			Choices: []sessiondto.Choice{
				{ID: "a", Label: "Ship"},
				{ID: "b", Label: "Wait"},
			},
			Intervention: sessiondto.Intervention{Tier: "none"},
		},
		events: make(chan sessiondto.Event, 4),
	}
}

func (f *fakeSession) State() sessiondto.State { return f.state }
func (f *fakeSession) Events() <-chan sessiondto.Event { return f.events }
func (f *fakeSession) Continue() error { f.calls = append(f.calls, "continue"); return nil }
func (f *fakeSession) ChangeMind() error { f.calls = append(f.calls, "change"); return nil }
func (f *fakeSession) DismissWarning() error { f.calls = append(f.calls, "dismiss"); return nil }
func (f *fakeSession) Exit() error { f.calls = append(f.calls, "exit"); return nil }
func (f *fakeSession) Abandon() error { f.calls = append(f.calls, "abandon"); return nil }

func (f *fakeSession) Input(draft string) error {
	f.inputs = append(f.inputs, draft)
	return nil
}

func (f *fakeSession) Select(id string) error {
	f.calls = append(f.calls, "select:"+id)
	f.state.Selection = id
	return nil
}

func (f *fakeSession) Lock() error {
	f.calls = append(f.calls, "lock")
	if f.lockErr != nil {
		return f.lockErr
	}
	f.state.Locked = true
	return nil
}

func (f *fakeSession) Submit(text string) error {
	f.calls = append(f.calls, "submit:"+text)
	return nil
}

func (f *fakeSession) Comprehension(ok bool) error {
	if ok {
		f.calls = append(f.calls, "understood")
	} else {
		f.calls = append(f.calls, "not-understood")
	}
	return nil
}

func press(t *testing.T, m tea.Model, keys ...tea.KeyMsg) tea.Model {
	t.Helper()
	for _, k := range keys {
		m, _ = m.Update(k)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestEnterOnChoiceSelectsCursorAndLocks(t *testing.T) {
	t.Parallel()
	fake := newFakeSession("forced_choice")
	m := tea.Model(app.NewModel(fake))

	press(t, m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"select:b", "lock"}, fake.calls)
}

func TestDigitSelectsAndChangeOfMind(t *testing.T) {
	t.Parallel()
	fake := newFakeSession("forced_choice")
	m := tea.Model(app.NewModel(fake))

	press(t, m, runes("1"), runes("c"), runes("9"))
	assert.Equal(t, []string{"select:a", "change"}, fake.calls)
}

func TestLockFailureShowsStatus(t *testing.T) {
	t.Parallel()
	fake := newFakeSession("forced_choice")
	fake.state.Selection = "a"
	fake.lockErr = errors.New("already locked")
	m := press(t, tea.Model(app.NewModel(fake)), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.View(), "already locked")
}

func TestContinueOnReadOnlyScreens(t *testing.T) {
	t.Parallel()
	fake := newFakeSession("consequence")
	fake.state.Consequences = []string{"Users noticed."}
	press(t, tea.Model(app.NewModel(fake)), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"continue"}, fake.calls)
}

func TestReflectionTypingReportsInputAndSubmits(t *testing.T) {
	t.Parallel()
	fake := newFakeSession("reflection")
	fake.state.Prompt = "Why?"
	m := press(t, tea.Model(app.NewModel(fake)), runes("q"), runes("k"), tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, []string{"q", "qk"}, fake.inputs)
	assert.Equal(t, []string{"submit:qk"}, fake.calls)
	_ = m
}

func TestComprehensionKeys(t *testing.T) {
	t.Parallel()
	fake := newFakeSession("forced_choice")
	fake.state.Intervention = sessiondto.Intervention{Tier: "comprehension", Message: "Do you understand what is being asked?"}
	m := tea.Model(app.NewModel(fake))
	assert.Contains(t, m.View(), "Do you understand")
	press(t, m, runes("n"))
	assert.Equal(t, []string{"not-understood"}, fake.calls)
}

func TestWarningDismissAndQuit(t *testing.T) {
	t.Parallel()
	fake := newFakeSession("situation")
	fake.state.Intervention = sessiondto.Intervention{Tier: "warning", Message: "Still there?"}
	m := tea.Model(app.NewModel(fake))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, []string{"dismiss", "exit"}, fake.calls)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestEventRefreshesState(t *testing.T) {
	t.Parallel()
	fake := newFakeSession("situation")
	m := tea.Model(app.NewModel(fake))
	fake.state.Screen = "forced_choice"
	fake.events <- sessiondto.Event{Name: "screen_changed", Message: "forced_choice"}

	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	ev := <-fake.events
	m, _ = m.Update(app.EventMsg{Event: ev})
	assert.Contains(t, m.View(), "forced choice")
}
