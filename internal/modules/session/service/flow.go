package service

import (
	"context"
	"time"

	"arena/internal/modules/session/domain"
	sessionout "arena/internal/modules/session/port/out"
)

// View is a copy of the controller state at one instant.
type View struct {
	Session      domain.Session
	Screen       domain.Screen
	Index        int
	Len          int
	Remaining    time.Duration
	Progress     float64
	Pressure     domain.Pressure
	Intervention domain.Intervention
	Escalations  int
	Evolving     bool
	Countdown    time.Duration
	Threshold    time.Duration
	Complete     bool
	Restored     bool
	Disposed     bool
}

func (c *Controller) advance(now time.Time) {
	if !c.seq.Advance(now) {
		return
	}
	c.enterScreen(now)
}

func (c *Controller) enterScreen(now time.Time) {
	c.timedOut = false
	if c.ladder.Active.Active() {
		c.emit(domain.InterventionCleared{SessionID: c.session.ID, Tier: c.ladder.Active.Tier, Reason: "screen_changed", Time: now})
	}
	c.ladder.Reset(now)

	cur := c.seq.Current()
	if cur.Terminal {
		c.emit(domain.ScreenChanged{SessionID: c.session.ID, Screen: cur.ID, Round: cur.Round, Index: c.seq.Index(), Time: now})
		c.complete(now)
		return
	}
	if cur.Round != c.session.Round {
		c.session.NewRound(cur.Round)
	}
	switch cur.ID {
	case domain.ScreenSituation:
		if c.session.Scenario.Situation == "" && !c.session.Loading {
			c.requestSituation()
		}
	case domain.ScreenForcedChoice:
		c.session.OpenChoice(now)
	case domain.ScreenReflection:
		c.session.Draft = ""
		c.session.Prompt = c.session.Scenario.Question
		if c.session.Prompt == "" {
			c.session.Prompt = domain.FallbackScenario(c.session.Problem, c.session.Round).Question
		}
	}
	c.armPoll()
	c.emit(domain.ScreenChanged{
		SessionID: c.session.ID,
		Screen:    cur.ID,
		Round:     cur.Round,
		Index:     c.seq.Index(),
		Remaining: c.seq.TimeRemaining(now),
		Time:      now,
	})
	c.logger.Debug("screen changed", "session", c.session.ID, "screen", cur.ID, "round", cur.Round)
	c.queueSave(now)
}

func (c *Controller) complete(now time.Time) {
	c.queueClear()
	c.finished = true
	c.stopTasks()
	c.emit(domain.SessionComplete{
		SessionID: c.session.ID,
		Decisions: append([]domain.Decision(nil), c.session.Decisions...),
		Time:      now,
	})
	c.logger.Info("session complete", "session", c.session.ID, "decisions", len(c.session.Decisions))
	if c.reports == nil {
		return
	}
	report := sessionout.Report{Session: c.session.Clone(), CompletedAt: now, Duration: now.Sub(c.session.StartedAt)}
	c.pending.jobs = append(c.pending.jobs, func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.settings.callTimeout())
		defer cancel()
		path, err := c.reports.Save(ctx, report)
		if err != nil {
			c.logger.Warn("session report not written", "session", report.Session.ID, "error", err)
			return
		}
		c.logger.Info("session report written", "path", path)
	})
}

// commit locks the current choice, records it and asks for the consequence.
func (c *Controller) commit(now time.Time, forced bool, signal domain.Signal) error {
	if forced && len(c.session.Scenario.Choices) == 0 {
		c.session.Scenario = domain.FallbackScenario(c.session.Problem, c.session.Round)
		c.session.Loading = false
	}
	decision, err := c.session.Lock(now, forced, signal)
	if err != nil {
		return mapDomainErr(err)
	}
	c.clearIntervention(now, "locked")
	c.activity.Submit(now)
	c.refreshPressure(now)
	c.emit(domain.DecisionCommitted{SessionID: c.session.ID, Decision: decision, Time: now})
	c.logger.Info("decision committed", "session", c.session.ID, "round", decision.Round, "choice", decision.ChoiceID, "forced", forced)
	c.recordDecision(decision)
	c.requestConsequence(decision)
	return nil
}

func (c *Controller) noteInput(now time.Time, chars int) {
	c.activity.Input(now)
	if cleared, ok := c.ladder.Input(now, chars); ok {
		c.emit(domain.InterventionCleared{SessionID: c.session.ID, Tier: cleared.Tier, Reason: "input", Time: now})
	}
	c.refreshPressure(now)
}

func (c *Controller) clearIntervention(now time.Time, reason string) {
	if !c.ladder.Active.Active() {
		return
	}
	tier := c.ladder.Active.Tier
	c.ladder.Active = domain.Intervention{Tier: domain.TierNone}
	c.emit(domain.InterventionCleared{SessionID: c.session.ID, Tier: tier, Reason: reason, Time: now})
}

func (c *Controller) refreshPressure(now time.Time) {
	next := c.activity.State(now, c.settings.Pressure)
	if next == c.pressure {
		return
	}
	c.emit(domain.PressureChanged{SessionID: c.session.ID, From: c.pressure, To: next, Time: now})
	c.pressure = next
}

func (c *Controller) fire(now time.Time, in domain.Intervention) {
	c.emit(domain.InterventionFired{SessionID: c.session.ID, Intervention: in, Count: c.ladder.Count, Time: now})
	c.logger.Debug("intervention fired", "session", c.session.ID, "tier", in.Tier, "count", c.ladder.Count)
	c.queueSave(now)
}

func (c *Controller) warningMessage() string {
	return domain.WarningMessage(c.session.Profile.Archetype)
}
