package domain_test

import (
	"errors"
	"testing"
	"time"

	"arena/internal/modules/session/domain"
)

func newTestSession(round int) *domain.Session {
	s := domain.NewSession("sess-1", domain.Problem{ID: "p-1", Title: "Launch"}, domain.Profile{UserID: "u-1"}, 2, t0)
	s.NewRound(round)
	s.Scenario = domain.Scenario{Choices: []domain.Choice{
		{ID: "a", Label: "Ship", Signal: "bold"},
		{ID: "b", Label: "Wait", Signal: "careful"},
	}}
	s.OpenChoice(t0)
	return s
}

func TestSessionLockRecordsTimings(t *testing.T) {
	t.Parallel()
	s := newTestSession(1)
	if err := s.Select("a", t0.Add(4*time.Second)); err != nil {
		t.Fatalf("select: %v", err)
	}
	d, err := s.Lock(t0.Add(10*time.Second), false, "")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if d.TimeToFirstInteraction != 4*time.Second || d.TimeToLock != 10*time.Second || d.Forced {
		t.Fatalf("unexpected decision %+v", d)
	}
	if _, err := s.Lock(t0.Add(11*time.Second), false, ""); !errors.Is(err, domain.ErrAlreadyLocked) {
		t.Fatalf("second lock should fail, got %v", err)
	}
	if err := s.Select("b", t0.Add(12*time.Second)); !errors.Is(err, domain.ErrAlreadyLocked) {
		t.Fatalf("select after lock should fail, got %v", err)
	}
	if len(s.Decisions) != 1 {
		t.Fatalf("expected one decision, got %d", len(s.Decisions))
	}
}

func TestSessionChangeOfMindOnlyOnceInFirstRound(t *testing.T) {
	t.Parallel()
	s := newTestSession(1)
	_ = s.Select("a", t0)
	if err := s.Select("b", t0.Add(time.Second)); err != nil {
		t.Fatalf("first change of mind should be allowed: %v", err)
	}
	if err := s.Select("a", t0.Add(2*time.Second)); !errors.Is(err, domain.ErrChangeOfMindUnusable) {
		t.Fatalf("second change of mind should fail, got %v", err)
	}

	later := newTestSession(2)
	_ = later.Select("a", t0)
	if err := later.ChangeMind(); !errors.Is(err, domain.ErrChangeOfMindUnusable) {
		t.Fatalf("change of mind outside round 1 should fail, got %v", err)
	}
}

func TestSessionForcedLockUsesRecommendedSignal(t *testing.T) {
	t.Parallel()
	s := newTestSession(1)
	d, err := s.Lock(t0.Add(30*time.Second), true, "careful")
	if err != nil {
		t.Fatalf("forced lock: %v", err)
	}
	if !d.Forced || d.ChoiceID != "b" || d.Signal != "careful" {
		t.Fatalf("unexpected forced decision %+v", d)
	}
	if d.TimeToFirstInteraction != 0 {
		t.Fatalf("no interaction happened, got %s", d.TimeToFirstInteraction)
	}
}

func TestSessionForcedLockKeepsSelectedSignal(t *testing.T) {
	t.Parallel()
	s := newTestSession(1)
	_ = s.Select("a", t0.Add(3*time.Second))
	d, err := s.Lock(t0.Add(30*time.Second), true, "careful")
	if err != nil {
		t.Fatalf("forced lock: %v", err)
	}
	if !d.Forced || d.ChoiceID != "a" || d.Signal != "bold" {
		t.Fatalf("selected choice should keep its own signal, got %+v", d)
	}
}

func TestSessionNewRoundKeepsLog(t *testing.T) {
	t.Parallel()
	s := newTestSession(1)
	_ = s.Select("a", t0)
	_, _ = s.Lock(t0.Add(time.Second), false, "")
	s.NewRound(2)
	if s.Locked || s.Selection != "" || len(s.Decisions) != 1 {
		t.Fatalf("new round should unlock and keep decisions, got %+v", s)
	}
}

func TestSnapshotValidate(t *testing.T) {
	t.Parallel()
	plan := domain.BuildPlan(1, testBudgets())
	snap := domain.Snapshot{Schema: domain.SchemaVersion, Key: "p-1", Screens: plan, Index: 1, SavedAt: t0}
	if err := snap.Validate("p-1", t0.Add(10*time.Minute), 30*time.Minute); err != nil {
		t.Fatalf("fresh snapshot rejected: %v", err)
	}
	if err := snap.Validate("p-2", t0, 30*time.Minute); !errors.Is(err, domain.ErrSnapshotMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := snap.Validate("p-1", t0.Add(31*time.Minute), 30*time.Minute); !errors.Is(err, domain.ErrSnapshotStale) {
		t.Fatalf("expected stale, got %v", err)
	}
	snap.Index = len(plan) - 1
	if err := snap.Validate("p-1", t0, 30*time.Minute); !errors.Is(err, domain.ErrSnapshotTerminal) {
		t.Fatalf("expected terminal, got %v", err)
	}
}

func TestTargetRoundsWithinBounds(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"a", "b", "c", "problem-42", "sess-xyz"} {
		got := domain.TargetRounds(domain.SeedFromString(key), 2, 4)
		if got < 2 || got > 4 {
			t.Fatalf("rounds out of bounds for %s: %d", key, got)
		}
		if again := domain.TargetRounds(domain.SeedFromString(key), 2, 4); again != got {
			t.Fatalf("same seed must give same rounds")
		}
	}
	if got := domain.TargetRounds(1, 3, 3); got != 3 {
		t.Fatalf("fixed bound should return 3, got %d", got)
	}
}

func TestHintsFromHistory(t *testing.T) {
	t.Parallel()
	history := []domain.Decision{
		{TimeToLock: 50 * time.Second},
		{TimeToLock: 70 * time.Second},
	}
	hints := domain.HintsFromHistory(history, domain.ArchetypeMaverick)
	if hints.ChoiceBudget != 90*time.Second || hints.IdleThreshold != 0 {
		t.Fatalf("unexpected hints %+v", hints)
	}

	slow := []domain.Decision{{TimeToLock: 4 * time.Minute}}
	if got := domain.HintsFromHistory(slow, "").ChoiceBudget; got != 5*time.Minute {
		t.Fatalf("budget should clamp at 5m, got %s", got)
	}

	quick := []domain.Decision{{TimeToLock: 10 * time.Second}}
	if got := domain.HintsFromHistory(quick, domain.ArchetypeAnalyst).ChoiceBudget; got != 2*time.Minute {
		t.Fatalf("budget should leave room for the analyst threshold, got %s", got)
	}

	forced := []domain.Decision{{Forced: true}, {Forced: true}, {TimeToLock: 4 * time.Second}}
	hints = domain.HintsFromHistory(forced, domain.ArchetypeMaverick)
	if hints.ChoiceBudget != 52500*time.Millisecond {
		t.Fatalf("budget should follow the shortened threshold, got %s", hints.ChoiceBudget)
	}
	if hints.IdleThreshold != 22500*time.Millisecond {
		t.Fatalf("mostly forced users should get a shorter threshold, got %s", hints.IdleThreshold)
	}
	if !domain.HintsFromHistory(nil, "").Empty() {
		t.Fatalf("no history should give empty hints")
	}
}
