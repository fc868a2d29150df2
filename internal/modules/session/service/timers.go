package service

import (
	"context"
	"time"

	"arena/internal/modules/session/domain"
)

const (
	taskDisplay = "display"
	taskIdle    = "idle"
	taskPoll    = "poll"
)

// onDisplayTick drives everything measured in seconds: screen expiry, the
// warning auto-dismiss and the countdown. All of it is derived from now.
func (c *Controller) onDisplayTick() {
	c.apply(func(now time.Time) {
		if c.ladder.Active.Tier == domain.TierWarning && !now.Before(c.ladder.Active.FiredAt.Add(c.policy.WarningDismiss)) {
			c.ladder.DismissWarning(now)
			c.emit(domain.InterventionCleared{SessionID: c.session.ID, Tier: domain.TierWarning, Reason: "timeout", Time: now})
			c.queueSave(now)
		}
		if c.ladder.CountdownExpired(now) {
			c.emit(domain.InterventionCleared{SessionID: c.session.ID, Tier: domain.TierCountdown, Reason: "countdown_expired", Time: now})
			c.startEvolution()
			c.queueSave(now)
		}
		if c.seq.Expired(now) && !c.timedOut {
			c.handleTimeout(now)
		}
		if c.finished {
			return
		}
		c.emit(domain.Tick{
			SessionID: c.session.ID,
			Remaining: c.seq.TimeRemaining(now),
			Countdown: c.ladder.Active.Remaining(now),
			Time:      now,
		})
	})
}

// onIdleCheck recomputes pressure and walks the escalation ladder.
func (c *Controller) onIdleCheck() {
	c.apply(func(now time.Time) {
		c.refreshPressure(now)
		if !c.seq.Current().Escalates {
			return
		}
		if in, fired := c.ladder.Check(now, c.policy, c.warningMessage()); fired {
			c.fire(now, in)
		}
	})
}

func (c *Controller) handleTimeout(now time.Time) {
	cur := c.seq.Current()
	c.timedOut = true
	c.logger.Debug("screen budget spent", "session", c.session.ID, "screen", cur.ID, "policy", cur.OnTimeout)
	switch cur.OnTimeout {
	case domain.TimeoutAutoPick:
		if !c.session.Locked {
			if err := c.commit(now, true, ""); err != nil {
				c.logger.Warn("auto pick failed", "session", c.session.ID, "error", err)
			}
		}
		c.advance(now)
	case domain.TimeoutEscalate:
		forced := c.policy
		forced.Threshold = 0
		if in, fired := c.ladder.Check(now, forced, c.warningMessage()); fired {
			c.fire(now, in)
		}
	default:
		c.advance(now)
	}
}

// armPoll keeps the advisor poll running only while an unlocked choice
// screen is open.
func (c *Controller) armPoll() {
	wanted := c.started && !c.finished && c.advisor != nil &&
		c.seq.Current().ID == domain.ScreenForcedChoice && !c.session.Locked
	task, running := c.tasks[taskPoll]
	switch {
	case wanted && !running:
		c.tasks[taskPoll] = c.clock.Every(c.settings.PollInterval, c.onPoll)
	case !wanted && running:
		task.Stop()
		delete(c.tasks, taskPoll)
	}
}

func (c *Controller) onPoll() {
	c.apply(func(now time.Time) {
		if c.seq.Current().ID != domain.ScreenForcedChoice || c.session.Locked {
			c.armPoll()
			return
		}
		index := c.seq.Index()
		sessionID := c.session.ID
		language := c.settings.Language
		c.spawn(func(ctx context.Context) {
			rec, err := c.advisor.Recommend(ctx, sessionID, language)
			if err != nil {
				c.logger.Debug("intervention advisor unavailable", "session", sessionID, "error", err)
				return
			}
			c.apply(func(now time.Time) {
				if c.seq.Index() != index || c.session.Locked {
					return
				}
				c.applyRecommendation(now, rec)
			})
		})
	})
}

func (c *Controller) applyRecommendation(now time.Time, rec domain.Recommendation) {
	switch rec.Action {
	case domain.ActionShowNudge:
		msg := rec.Message
		if msg == "" {
			msg = c.warningMessage()
		}
		if in, fired := c.ladder.Nudge(now, msg); fired {
			c.fire(now, in)
		}
	case domain.ActionOfferSimplify:
		if in, fired := c.ladder.Offer(now, rec.Message); fired {
			c.fire(now, in)
		}
	case domain.ActionForcePick:
		if c.session.Selection == "" && c.session.HasChoice(rec.ChoiceID) {
			c.session.Selection = rec.ChoiceID
		}
		if err := c.commit(now, true, rec.Signal); err != nil {
			c.logger.Warn("forced pick failed", "session", c.session.ID, "error", err)
			return
		}
		c.advance(now)
	}
}
