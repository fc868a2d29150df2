package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"arena/internal/modules/session/domain"
	"arena/internal/modules/session/service"
	apperrors "arena/internal/platform/errors"
)

func TestLockRecordsDecisionAndAdvances(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.MinRounds, settings.MaxRounds = 2, 2
	recorder := &fakeRecorder{hints: domain.TimingHints{ChoiceBudget: 45 * time.Second}}
	h := newHarness(t, settings, service.WithRecorder(recorder))
	h.begin(t)

	v := h.view(t)
	if v.Screen.ID != domain.ScreenSituation || len(v.Session.Scenario.Choices) != 2 || v.Session.Loading {
		t.Fatalf("expected loaded situation, got %+v", v.Session.Scenario)
	}
	if err := h.ctrl.Continue(); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if err := h.ctrl.Continue(); !errors.Is(err, apperrors.ErrNotLocked) {
		t.Fatalf("continue on unlocked choice should fail, got %v", err)
	}
	h.clk.Advance(4 * time.Second)
	if err := h.ctrl.Select("a"); err != nil {
		t.Fatalf("select: %v", err)
	}
	h.clk.Advance(2 * time.Second)
	if err := h.ctrl.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}

	v = h.view(t)
	if v.Screen.ID != domain.ScreenConsequence {
		t.Fatalf("lock should advance to consequence, got %s", v.Screen.ID)
	}
	if len(v.Session.Decisions) != 1 || v.Session.Decisions[0].TimeToLock != 6*time.Second {
		t.Fatalf("unexpected decisions %+v", v.Session.Decisions)
	}
	if len(v.Session.Outcome.Consequences) == 0 {
		t.Fatalf("consequence should be loaded")
	}
	if len(recorder.records) != 1 || recorder.records[0].UserID != "u-1" {
		t.Fatalf("decision not recorded: %+v", recorder.records)
	}
	snap, err := h.ctrl.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Screens[6].Budget != 45*time.Second {
		t.Fatalf("round two choice budget should follow the hint, got %s", snap.Screens[6].Budget)
	}
	if h.sink.count("decision_committed") != 1 {
		t.Fatalf("expected one decision_committed event")
	}
}

func TestIdleOnChoiceRaisesPressureAndWarning(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.Escalation.WarningDismiss = 10 * time.Second
	h := newHarness(t, settings)
	h.begin(t)
	_ = h.ctrl.Continue()
	if err := h.ctrl.Input("h"); err != nil {
		t.Fatalf("input: %v", err)
	}
	if got := h.view(t).Pressure; got != domain.PressureFocused {
		t.Fatalf("first input should focus, got %s", got)
	}

	h.clk.Advance(65 * time.Second)
	v := h.view(t)
	if v.Pressure != domain.PressureUrgent {
		t.Fatalf("expected urgent after 65s idle, got %s", v.Pressure)
	}
	if v.Intervention.Tier != domain.TierWarning || v.Intervention.Message != domain.WarningMessage(domain.ArchetypeDiplomat) {
		t.Fatalf("expected archetype warning, got %+v", v.Intervention)
	}
	if h.sink.count("intervention_fired") != 1 || h.sink.count("pressure_changed") < 2 {
		t.Fatalf("missing events: fired=%d pressure=%d", h.sink.count("intervention_fired"), h.sink.count("pressure_changed"))
	}

	if err := h.ctrl.Input("he"); err != nil {
		t.Fatalf("input: %v", err)
	}
	v = h.view(t)
	if v.Intervention.Active() || v.Escalations != 0 {
		t.Fatalf("typing should clear the warning, got %+v", v.Intervention)
	}
}

func TestDefaultChoiceBudgetOutlastsFirstWarning(t *testing.T) {
	t.Parallel()
	h := newHarness(t, service.DefaultSettings())
	h.begin(t)
	_ = h.ctrl.Continue()
	if err := h.ctrl.Input("h"); err != nil {
		t.Fatalf("input: %v", err)
	}

	for i := 0; i < 61; i++ {
		h.clk.Advance(time.Second)
	}
	v := h.view(t)
	if v.Screen.ID != domain.ScreenForcedChoice {
		t.Fatalf("choice screen should still be open at 61s, got %s", v.Screen.ID)
	}
	if v.Intervention.Tier != domain.TierWarning || v.Pressure != domain.PressureUrgent {
		t.Fatalf("expected warning and urgent pressure, got %s %s", v.Intervention.Tier, v.Pressure)
	}

	for i := 0; i < 4; i++ {
		h.clk.Advance(time.Second)
	}
	v = h.view(t)
	if v.Screen.ID != domain.ScreenForcedChoice || len(v.Session.Decisions) != 0 {
		t.Fatalf("nothing should be committed at 65s, got %s %+v", v.Screen.ID, v.Session.Decisions)
	}
	if h.sink.count("intervention_fired") != 1 {
		t.Fatalf("expected one warning, got %d", h.sink.count("intervention_fired"))
	}

	for _, archetype := range []domain.Archetype{domain.ArchetypeAnalyst, domain.ArchetypeStrategist, domain.ArchetypeDiplomat, domain.ArchetypeExplorer, domain.ArchetypeMaverick} {
		if threshold := domain.IdleThreshold(domain.Profile{Archetype: archetype}); threshold >= service.DefaultSettings().Budgets.Choice {
			t.Fatalf("%s threshold %s does not fit in the choice budget", archetype, threshold)
		}
	}
}

func TestInputDuringCountdownCancelsIt(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.Budgets.Reflection = 10 * time.Minute
	settings.Escalation.Threshold = 10 * time.Second
	h := newHarness(t, settings)
	h.begin(t)
	h.toReflection(t)
	prompt := h.view(t).Session.Prompt

	h.clk.Advance(10 * time.Second)
	_ = h.ctrl.DismissWarning()
	h.clk.Advance(10 * time.Second)
	if err := h.ctrl.Comprehension(true); err != nil {
		t.Fatalf("understand: %v", err)
	}
	h.clk.Advance(10 * time.Second)
	if err := h.ctrl.Input("I"); err != nil {
		t.Fatalf("input: %v", err)
	}

	v := h.view(t)
	if v.Intervention.Tier != domain.TierNone || v.Escalations != 0 || v.Evolving || v.Countdown != 0 {
		t.Fatalf("input should cancel the countdown, got %+v count=%d evolving=%v", v.Intervention, v.Escalations, v.Evolving)
	}
	h.clk.Advance(25 * time.Second)
	if h.generator.evolveCalls != 0 || h.view(t).Session.Prompt != prompt {
		t.Fatalf("cancelled countdown must not evolve the prompt")
	}
}

func TestIgnoredWarningEscalatesToEvolution(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.Budgets.Reflection = 10 * time.Minute
	h := newHarness(t, settings)
	h.begin(t)
	h.toReflection(t)
	original := h.view(t).Session.Prompt

	h.clk.Advance(60 * time.Second)
	if v := h.view(t); v.Intervention.Tier != domain.TierWarning {
		t.Fatalf("expected warning at threshold, got %s", v.Intervention.Tier)
	}
	h.clk.Advance(5 * time.Second)
	if v := h.view(t); v.Intervention.Active() {
		t.Fatalf("warning should auto dismiss, got %s", v.Intervention.Tier)
	}
	h.clk.Advance(60 * time.Second)
	if v := h.view(t); v.Intervention.Tier != domain.TierComprehension {
		t.Fatalf("second crossing should ask for comprehension, got %s", v.Intervention.Tier)
	}

	if err := h.ctrl.Comprehension(true); err != nil {
		t.Fatalf("understand: %v", err)
	}
	v := h.view(t)
	if v.Intervention.Tier != domain.TierCountdown || v.Countdown != 30*time.Second {
		t.Fatalf("expected 30s countdown, got %+v countdown=%s", v.Intervention, v.Countdown)
	}

	h.clk.Advance(30 * time.Second)
	v = h.view(t)
	if v.Session.Prompt == original || v.Session.Prompt != h.generator.evolved {
		t.Fatalf("prompt should be evolved, got %q", v.Session.Prompt)
	}
	if v.Intervention.Active() || v.Escalations != 0 || v.Evolving {
		t.Fatalf("ladder should reset after evolution, got %+v count=%d", v.Intervention, v.Escalations)
	}
}

func TestNotUnderstoodEvolvesWithFallback(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.Budgets.Reflection = 10 * time.Minute
	settings.Escalation.Threshold = 10 * time.Second
	h := newHarness(t, settings)
	h.begin(t)
	h.toReflection(t)
	h.generator.err = errors.New("upstream 503")
	prompt := h.view(t).Session.Prompt

	h.clk.Advance(10 * time.Second)
	_ = h.ctrl.DismissWarning()
	h.clk.Advance(10 * time.Second)
	if err := h.ctrl.Comprehension(false); err != nil {
		t.Fatalf("not understood: %v", err)
	}
	v := h.view(t)
	if v.Session.Prompt != domain.FallbackEvolution(prompt) {
		t.Fatalf("expected fallback evolution, got %q", v.Session.Prompt)
	}
	if h.generator.evolveCalls != 1 {
		t.Fatalf("expected one evolve call, got %d", h.generator.evolveCalls)
	}
}

func TestChoiceTimeoutAutoPicks(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testSettings())
	h.begin(t)
	_ = h.ctrl.Continue()
	h.clk.Advance(testSettings().Budgets.Choice)

	v := h.view(t)
	if v.Screen.ID != domain.ScreenConsequence {
		t.Fatalf("timeout should advance past the choice, got %s", v.Screen.ID)
	}
	d := v.Session.Decisions[0]
	if !d.Forced || d.ChoiceID != "a" {
		t.Fatalf("expected forced default pick, got %+v", d)
	}
}

func TestForcePickRecommendationCommitsAndAdvances(t *testing.T) {
	t.Parallel()
	advisor := &fakeAdvisor{rec: domain.Recommendation{Action: domain.ActionForcePick, Signal: "careful"}}
	h := newHarness(t, testSettings(), service.WithAdvisor(advisor))
	h.begin(t)
	_ = h.ctrl.Continue()
	if h.clk.Pending() != 3 {
		t.Fatalf("expected display, idle and poll tasks, got %d", h.clk.Pending())
	}

	h.clk.Advance(2500 * time.Millisecond)
	v := h.view(t)
	if v.Screen.ID != domain.ScreenConsequence {
		t.Fatalf("force pick should advance like a lock, got %s", v.Screen.ID)
	}
	d := v.Session.Decisions[0]
	if !d.Forced || d.Signal != "careful" || d.ChoiceID != "b" {
		t.Fatalf("unexpected forced decision %+v", d)
	}
	if h.clk.Pending() != 2 {
		t.Fatalf("poll should stop once the choice screen is left, got %d tasks", h.clk.Pending())
	}
	calls := advisor.calls
	h.clk.Advance(10 * time.Second)
	if advisor.calls != calls {
		t.Fatalf("advisor polled after the choice screen closed")
	}
}

func TestForcePickKeepsUserSelection(t *testing.T) {
	t.Parallel()
	advisor := &fakeAdvisor{rec: domain.Recommendation{Action: domain.ActionForcePick, Signal: "careful"}}
	recorder := &fakeRecorder{}
	h := newHarness(t, testSettings(), service.WithAdvisor(advisor), service.WithRecorder(recorder))
	h.begin(t)
	_ = h.ctrl.Continue()
	if err := h.ctrl.Select("a"); err != nil {
		t.Fatalf("select: %v", err)
	}

	h.clk.Advance(2500 * time.Millisecond)
	v := h.view(t)
	if v.Screen.ID != domain.ScreenConsequence {
		t.Fatalf("force pick should advance like a lock, got %s", v.Screen.ID)
	}
	d := v.Session.Decisions[0]
	if !d.Forced || d.ChoiceID != "a" || d.Signal != "bold" {
		t.Fatalf("forced decision should keep the selected choice and its signal, got %+v", d)
	}
	if len(recorder.records) != 1 || recorder.records[0].Decision.Signal != "bold" {
		t.Fatalf("recorded signal should match the choice: %+v", recorder.records)
	}
}

func TestOfferSimplifyAsksForComprehension(t *testing.T) {
	t.Parallel()
	advisor := &fakeAdvisor{rec: domain.Recommendation{Action: domain.ActionOfferSimplify, Message: "Want a simpler version?"}}
	h := newHarness(t, testSettings(), service.WithAdvisor(advisor))
	h.begin(t)
	_ = h.ctrl.Continue()
	h.clk.Advance(2500 * time.Millisecond)

	v := h.view(t)
	if v.Intervention.Tier != domain.TierComprehension || v.Intervention.Message != "Want a simpler version?" {
		t.Fatalf("expected comprehension check, got %+v", v.Intervention)
	}
	if v.Escalations != 2 || len(v.Session.Decisions) != 0 {
		t.Fatalf("expected count 2 and no decision, got count=%d decisions=%d", v.Escalations, len(v.Session.Decisions))
	}
}

func TestNudgeRecommendationShowsWarning(t *testing.T) {
	t.Parallel()
	advisor := &fakeAdvisor{rec: domain.Recommendation{Action: domain.ActionShowNudge, Message: "Pick one"}}
	h := newHarness(t, testSettings(), service.WithAdvisor(advisor))
	h.begin(t)
	_ = h.ctrl.Continue()
	h.clk.Advance(2500 * time.Millisecond)
	v := h.view(t)
	if v.Intervention.Tier != domain.TierWarning || v.Intervention.Message != "Pick one" {
		t.Fatalf("expected nudge, got %+v", v.Intervention)
	}
	if len(v.Session.Decisions) != 0 {
		t.Fatalf("nudge must not commit")
	}
}

func TestGeneratorFailureFallsBack(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testSettings())
	h.generator.err = errors.New("connection refused")
	h.begin(t)
	v := h.view(t)
	want := domain.FallbackScenario(testProblem, 1)
	if v.Session.Scenario.Situation != want.Situation || len(v.Session.Scenario.Choices) != len(want.Choices) {
		t.Fatalf("expected fallback scenario, got %+v", v.Session.Scenario)
	}
	_ = h.ctrl.Continue()
	_ = h.ctrl.Select("ask")
	if err := h.ctrl.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if got := h.view(t).Session.Outcome.Insight; got == "" {
		t.Fatalf("fallback outcome should carry an insight")
	}
}

func TestRecorderFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	recorder := &fakeRecorder{err: errors.New("db down")}
	h := newHarness(t, testSettings(), service.WithRecorder(recorder))
	h.begin(t)
	_ = h.ctrl.Continue()
	_ = h.ctrl.Select("b")
	if err := h.ctrl.Lock(); err != nil {
		t.Fatalf("lock should succeed without recorder: %v", err)
	}
	if got := h.view(t).Threshold; got != domain.IdleThreshold(testProfile) {
		t.Fatalf("threshold should stay unchanged, got %s", got)
	}
}

func TestChangeOfMindRules(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testSettings())
	h.begin(t)
	if err := h.ctrl.Select("a"); !errors.Is(err, apperrors.ErrWrongScreen) {
		t.Fatalf("select outside choice screen should fail, got %v", err)
	}
	_ = h.ctrl.Continue()
	_ = h.ctrl.Select("a")
	if err := h.ctrl.ChangeMind(); err != nil {
		t.Fatalf("first change of mind: %v", err)
	}
	_ = h.ctrl.Select("b")
	if err := h.ctrl.Select("a"); !errors.Is(err, apperrors.ErrChangeOfMindUnavailable) {
		t.Fatalf("second change should fail, got %v", err)
	}
	if got := h.view(t).Index; got != 1 {
		t.Fatalf("change of mind must not move the sequencer, index %d", got)
	}
}

func TestSubmitCompletesAndClearsSnapshot(t *testing.T) {
	t.Parallel()
	reports := &fakeReports{}
	h := newHarness(t, testSettings(), service.WithReports(reports))
	h.begin(t)
	h.toReflection(t)
	if !h.snapshots.has(testProblem.ID) {
		t.Fatalf("snapshot should exist mid session")
	}
	if err := h.ctrl.Submit("   "); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("empty reflection should fail, got %v", err)
	}
	if err := h.ctrl.Submit("I would explain the risk first."); err != nil {
		t.Fatalf("submit: %v", err)
	}

	v := h.view(t)
	if !v.Complete || v.Screen.ID != domain.ScreenComplete || v.Progress != 1 {
		t.Fatalf("expected completion, got %+v", v.Screen)
	}
	if h.snapshots.has(testProblem.ID) {
		t.Fatalf("snapshot must be cleared on completion")
	}
	if h.clk.Pending() != 0 {
		t.Fatalf("all tasks must stop on completion, %d left", h.clk.Pending())
	}
	if h.sink.count("session_complete") != 1 || len(reports.reports) != 1 {
		t.Fatalf("expected completion event and report")
	}
	if err := h.ctrl.Continue(); !errors.Is(err, apperrors.ErrSessionClosed) {
		t.Fatalf("completed session should reject input, got %v", err)
	}
}

func TestExitSavesAndStopsTimers(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testSettings())
	h.begin(t)
	_ = h.ctrl.Continue()
	if h.clk.Pending() == 0 {
		t.Fatalf("expected running tasks")
	}
	if err := h.ctrl.Exit(); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if h.clk.Pending() != 0 {
		t.Fatalf("exit must stop every task, %d left", h.clk.Pending())
	}
	snap, err := h.snapshots.Load(context.Background(), testProblem.ID)
	if err != nil || snap.Screens[snap.Index].ID != domain.ScreenForcedChoice {
		t.Fatalf("exit should save the choice screen, got %+v err=%v", snap.Index, err)
	}
	if err := h.ctrl.Lock(); !errors.Is(err, apperrors.ErrSessionClosed) {
		t.Fatalf("disposed controller should reject calls, got %v", err)
	}
}

func TestAbandonClearsSnapshot(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testSettings())
	h.begin(t)
	if err := h.ctrl.Abandon(); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if h.snapshots.has(testProblem.ID) || h.clk.Pending() != 0 {
		t.Fatalf("abandon should clear snapshot and timers")
	}
}

func TestRestoreKeepsScreenDeadline(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.Budgets.Choice = 30 * time.Second
	first := newHarness(t, settings)
	first.begin(t)
	_ = first.ctrl.Continue()
	first.clk.Advance(18 * time.Second)
	if got := first.view(t).Remaining; got != 12*time.Second {
		t.Fatalf("expected 12s before reload, got %s", got)
	}
	_ = first.ctrl.Exit()
	snap, err := first.snapshots.Load(context.Background(), testProblem.ID)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}

	second := newHarness(t, settings)
	second.clk.Set(t0.Add(26 * time.Second))
	if err := snap.Validate(testProblem.ID, second.clk.Now(), domain.DefaultStaleness); err != nil {
		t.Fatalf("snapshot should be valid: %v", err)
	}
	if err := second.ctrl.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := second.ctrl.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	v := second.view(t)
	if v.Screen.ID != domain.ScreenForcedChoice || v.Remaining != 4*time.Second || !v.Restored {
		t.Fatalf("expected choice with 4s left, got %s %s", v.Screen.ID, v.Remaining)
	}
	if len(v.Session.Decisions) != len(snap.Session.Decisions) {
		t.Fatalf("decision log changed across restore")
	}
	second.clk.Advance(4 * time.Second)
	if got := second.view(t).Screen.ID; got != domain.ScreenConsequence {
		t.Fatalf("restored deadline should auto pick at 4s, got %s", got)
	}
}
