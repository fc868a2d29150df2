package clock_test

import (
	"testing"
	"time"

	"arena/internal/platform/clock"
)

func TestManualFiresTasksInDeadlineOrder(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)

	var fired []string
	var at []time.Duration
	clk.AfterFunc(3*time.Second, func() {
		fired = append(fired, "late")
		at = append(at, clk.Now().Sub(start))
	})
	clk.AfterFunc(time.Second, func() {
		fired = append(fired, "early")
		at = append(at, clk.Now().Sub(start))
	})

	clk.Advance(5 * time.Second)
	if len(fired) != 2 || fired[0] != "early" || fired[1] != "late" {
		t.Fatalf("unexpected order: %v", fired)
	}
	if at[0] != time.Second || at[1] != 3*time.Second {
		t.Fatalf("tasks should observe their own deadline, got %v", at)
	}
	if got := clk.Now().Sub(start); got != 5*time.Second {
		t.Fatalf("expected clock at +5s, got %s", got)
	}
	if clk.Pending() != 0 {
		t.Fatalf("one-shot tasks should be gone, pending=%d", clk.Pending())
	}
}

func TestManualEveryRepeatsUntilStopped(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC))
	ticks := 0
	task := clk.Every(time.Second, func() { ticks++ })

	clk.Advance(3500 * time.Millisecond)
	if ticks != 3 {
		t.Fatalf("expected 3 ticks, got %d", ticks)
	}
	task.Stop()
	task.Stop()
	clk.Advance(10 * time.Second)
	if ticks != 3 {
		t.Fatalf("stopped task kept ticking: %d", ticks)
	}
}

func TestManualSetSkipsWithoutFiring(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)
	fired := false
	clk.AfterFunc(time.Second, func() { fired = true })

	clk.Set(start.Add(time.Minute))
	if fired {
		t.Fatalf("Set must not fire tasks")
	}
	clk.Advance(0)
	if !fired {
		t.Fatalf("overdue task should fire on the next Advance")
	}
}
