package domain_test

import (
	"testing"
	"time"

	"arena/internal/modules/session/domain"
)

var thresholds = domain.PressureThresholds{UrgentAfter: 60 * time.Second, CriticalAfter: 30 * time.Second}

func TestPressureForIdleMapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		idle     time.Duration
		hasInput bool
		want     domain.Pressure
	}{
		{idle: time.Hour, hasInput: false, want: domain.PressureCalm},
		{idle: 0, hasInput: true, want: domain.PressureFocused},
		{idle: 59 * time.Second, hasInput: true, want: domain.PressureFocused},
		{idle: 65 * time.Second, hasInput: true, want: domain.PressureUrgent},
		{idle: 89 * time.Second, hasInput: true, want: domain.PressureUrgent},
		{idle: 90 * time.Second, hasInput: true, want: domain.PressureCritical},
		{idle: 24 * time.Hour, hasInput: true, want: domain.PressureCritical},
	}
	for _, tc := range cases {
		if got := domain.PressureFor(tc.idle, tc.hasInput, thresholds); got != tc.want {
			t.Fatalf("idle=%s input=%v: want %s, got %s", tc.idle, tc.hasInput, tc.want, got)
		}
	}
}

func TestPressureNeverReturnsToCalmByWaiting(t *testing.T) {
	t.Parallel()
	tracker := domain.NewPressureTracker(t0)
	tracker.Input(t0.Add(time.Second))
	prev := tracker.State(t0.Add(time.Second), thresholds)
	for step := 5 * time.Second; step <= 10*time.Minute; step += 5 * time.Second {
		got := tracker.State(t0.Add(time.Second+step), thresholds)
		if got == domain.PressureCalm {
			t.Fatalf("calm reached by waiting after %s", step)
		}
		if !prev.CanMoveTo(got) {
			t.Fatalf("illegal transition %s -> %s", prev, got)
		}
		prev = got
	}
	tracker.Submit(t0.Add(11 * time.Minute))
	if got := tracker.State(t0.Add(12*time.Minute), thresholds); got != domain.PressureCalm {
		t.Fatalf("submit should return to calm, got %s", got)
	}
}
