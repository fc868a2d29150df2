package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"arena/internal/modules/session/domain"
	sessionout "arena/internal/modules/session/port/out"
	"arena/internal/modules/session/service"
	"arena/internal/platform/clock"
	apperrors "arena/internal/platform/errors"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

var testProblem = domain.Problem{ID: "p-1", Title: "Launch day", Context: "The release is due tomorrow."}

var testProfile = domain.Profile{UserID: "u-1", Archetype: domain.ArchetypeDiplomat}

type fixedID string

func (f fixedID) New() string { return string(f) }

func syncRun(fn func()) { fn() }

type memSnapshots struct {
	mu     sync.Mutex
	items  map[string]domain.Snapshot
	saves  int
	clears int
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{items: map[string]domain.Snapshot{}}
}

func (m *memSnapshots) Save(_ context.Context, snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[snap.Key] = snap
	m.saves++
	return nil
}

func (m *memSnapshots) Load(_ context.Context, key string) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.items[key]
	if !ok {
		return domain.Snapshot{}, apperrors.ErrNoSnapshot
	}
	return snap, nil
}

func (m *memSnapshots) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	m.clears++
	return nil
}

func (m *memSnapshots) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}

type fakeGenerator struct {
	err         error
	evolved     string
	evolveCalls int
}

func (f *fakeGenerator) Situation(context.Context, sessionout.SituationRequest) (domain.Scenario, error) {
	if f.err != nil {
		return domain.Scenario{}, f.err
	}
	return domain.Scenario{
		Situation: "The build is red an hour before launch.",
		Choices: []domain.Choice{
			{ID: "a", Label: "Ship anyway", Signal: "bold"},
			{ID: "b", Label: "Delay a day", Signal: "careful"},
		},
		Question: "What would you tell the team?",
	}, nil
}

func (f *fakeGenerator) Consequence(_ context.Context, req sessionout.ConsequenceRequest) (domain.Outcome, error) {
	if f.err != nil {
		return domain.Outcome{}, f.err
	}
	return domain.Outcome{Consequences: []string{"You chose " + req.Choice.Label}, Insight: "Speed has a price."}, nil
}

func (f *fakeGenerator) Evolve(context.Context, sessionout.EvolveRequest) (string, error) {
	f.evolveCalls++
	if f.err != nil {
		return "", f.err
	}
	return f.evolved, nil
}

type fakeRecorder struct {
	hints   domain.TimingHints
	err     error
	records []sessionout.DecisionRecord
}

func (f *fakeRecorder) Record(_ context.Context, rec sessionout.DecisionRecord) (domain.TimingHints, error) {
	f.records = append(f.records, rec)
	return f.hints, f.err
}

type fakeAdvisor struct {
	rec   domain.Recommendation
	calls int
}

func (f *fakeAdvisor) Recommend(context.Context, string, string) (domain.Recommendation, error) {
	f.calls++
	return f.rec, nil
}

type fakeReports struct {
	reports []sessionout.Report
}

func (f *fakeReports) Save(_ context.Context, r sessionout.Report) (string, error) {
	f.reports = append(f.reports, r)
	return "reports/" + r.Session.ID + ".md", nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *recordingSink) Publish(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.EventName() == name {
			n++
		}
	}
	return n
}

func testSettings() service.Settings {
	s := service.DefaultSettings()
	s.MinRounds = 1
	s.MaxRounds = 1
	return s
}

type harness struct {
	ctrl      *service.Controller
	clk       *clock.Manual
	snapshots *memSnapshots
	generator *fakeGenerator
	sink      *recordingSink
}

func newHarness(t *testing.T, settings service.Settings, opts ...service.Option) *harness {
	t.Helper()
	h := &harness{
		clk:       clock.NewManual(t0),
		snapshots: newMemSnapshots(),
		generator: &fakeGenerator{evolved: "Which single person would you call first?"},
		sink:      &recordingSink{},
	}
	base := []service.Option{service.WithRunner(syncRun), service.WithIDs(fixedID("sess-1")), service.WithSink(h.sink)}
	h.ctrl = service.NewController(h.clk, h.snapshots, h.generator, settings, append(base, opts...)...)
	return h
}

func (h *harness) begin(t *testing.T) {
	t.Helper()
	if err := h.ctrl.Begin(testProblem, testProfile); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func (h *harness) view(t *testing.T) service.View {
	t.Helper()
	v, err := h.ctrl.View()
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	return v
}

// toReflection walks round one to its reflection screen without moving the clock.
func (h *harness) toReflection(t *testing.T) {
	t.Helper()
	steps := []func() error{
		h.ctrl.Continue,
		func() error { return h.ctrl.Select("a") },
		h.ctrl.Lock,
		h.ctrl.Continue,
		h.ctrl.Continue,
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if got := h.view(t).Screen.ID; got != domain.ScreenReflection {
		t.Fatalf("expected reflection, got %s", got)
	}
}
