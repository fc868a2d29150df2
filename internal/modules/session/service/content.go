package service

import (
	"context"
	"strings"
	"time"

	"arena/internal/modules/session/domain"
	sessionout "arena/internal/modules/session/port/out"
)

func (c *Controller) requestSituation() {
	s := c.session
	s.Loading = true
	round := s.Round
	req := sessionout.SituationRequest{
		Problem:   s.Problem,
		Profile:   s.Profile,
		Round:     round,
		Decisions: append([]domain.Decision(nil), s.Decisions...),
		Language:  c.settings.Language,
	}
	c.spawn(func(ctx context.Context) {
		scenario, err := c.generator.Situation(ctx, req)
		if err == nil && (strings.TrimSpace(scenario.Situation) == "" || len(scenario.Choices) == 0) {
			err = errEmptyContent
		}
		if err != nil {
			c.logger.Warn("situation generation failed, using fallback", "round", round, "error", err)
			scenario = domain.FallbackScenario(req.Problem, round)
		}
		c.apply(func(now time.Time) {
			if c.session.Round != round || !c.session.Loading || len(c.session.Scenario.Choices) > 0 {
				return
			}
			c.session.Scenario = scenario
			c.session.Loading = false
			c.emit(domain.ContentUpdated{SessionID: c.session.ID, Screen: domain.ScreenSituation, Time: now})
			c.queueSave(now)
		})
	})
}

func (c *Controller) requestConsequence(decision domain.Decision) {
	s := c.session
	s.Loading = true
	round := s.Round
	choice := domain.Choice{ID: decision.ChoiceID, Signal: decision.Signal}
	for _, ch := range s.Scenario.Choices {
		if ch.ID == decision.ChoiceID {
			choice.Label = ch.Label
		}
	}
	req := sessionout.ConsequenceRequest{
		Problem:   s.Problem,
		Round:     round,
		Situation: s.Scenario.Situation,
		Choice:    choice,
		Decisions: append([]domain.Decision(nil), s.Decisions...),
		Language:  c.settings.Language,
	}
	c.spawn(func(ctx context.Context) {
		outcome, err := c.generator.Consequence(ctx, req)
		if err == nil && len(outcome.Consequences) == 0 {
			err = errEmptyContent
		}
		if err != nil {
			c.logger.Warn("consequence generation failed, using fallback", "round", round, "error", err)
			outcome = domain.FallbackOutcome(req.Choice)
		}
		if strings.TrimSpace(outcome.Insight) == "" {
			outcome.Insight = domain.FallbackOutcome(req.Choice).Insight
		}
		c.apply(func(now time.Time) {
			if c.session.Round != round || len(c.session.Outcome.Consequences) > 0 {
				return
			}
			c.session.Outcome = outcome
			c.session.Loading = false
			c.emit(domain.ContentUpdated{SessionID: c.session.ID, Screen: domain.ScreenConsequence, Time: now})
			c.queueSave(now)
		})
	})
}

// resumeContent re-issues whatever request was in flight when the snapshot
// was written.
func (c *Controller) resumeContent() {
	switch {
	case len(c.session.Scenario.Choices) == 0:
		c.requestSituation()
	case c.session.Locked && len(c.session.Outcome.Consequences) == 0:
		if d, ok := c.session.LastDecision(); ok && d.Round == c.session.Round {
			c.requestConsequence(d)
			return
		}
		c.session.Loading = false
	default:
		c.session.Loading = false
	}
}

// startEvolution asks for a narrower prompt. The ladder must already be in
// its evolving state.
func (c *Controller) startEvolution() {
	index := c.seq.Index()
	screen := c.seq.Current().ID
	req := sessionout.EvolveRequest{
		Problem:  c.session.Problem,
		Prompt:   c.promptFor(screen),
		Partial:  c.session.Draft,
		Language: c.settings.Language,
	}
	c.spawn(func(ctx context.Context) {
		text, err := c.generator.Evolve(ctx, req)
		if err == nil && strings.TrimSpace(text) == "" {
			err = errEmptyContent
		}
		if err != nil {
			c.logger.Warn("prompt evolution failed, using fallback", "screen", screen, "error", err)
			text = domain.FallbackEvolution(req.Prompt)
		}
		c.apply(func(now time.Time) {
			if c.seq.Index() != index || !c.ladder.Evolving {
				return
			}
			c.setPrompt(screen, strings.TrimSpace(text))
			c.ladder.Evolved(now)
			c.emit(domain.ContentUpdated{SessionID: c.session.ID, Screen: screen, Evolved: true, Time: now})
			c.queueSave(now)
		})
	})
}

func (c *Controller) promptFor(screen domain.ScreenID) string {
	if screen == domain.ScreenForcedChoice {
		return c.session.Scenario.Situation
	}
	return c.session.Prompt
}

func (c *Controller) setPrompt(screen domain.ScreenID, text string) {
	if screen == domain.ScreenForcedChoice {
		c.session.Scenario.Situation = text
		return
	}
	c.session.Prompt = text
}

func (c *Controller) recordDecision(decision domain.Decision) {
	if c.recorder == nil {
		return
	}
	record := sessionout.DecisionRecord{
		SessionID: c.session.ID,
		UserID:    c.session.Profile.UserID,
		Archetype: c.session.Profile.Archetype,
		Decision:  decision,
	}
	c.spawn(func(ctx context.Context) {
		hints, err := c.recorder.Record(ctx, record)
		if err != nil {
			c.logger.Warn("decision recorder unavailable, keeping current timings", "session", record.SessionID, "error", err)
			return
		}
		if hints.Empty() {
			return
		}
		c.apply(func(now time.Time) {
			c.applyHints(now, hints)
		})
	})
}

func (c *Controller) applyHints(now time.Time, hints domain.TimingHints) {
	if hints.ChoiceBudget > 0 {
		c.seq.SetBudget(domain.ScreenForcedChoice, hints.ChoiceBudget)
	}
	if hints.IdleThreshold > 0 {
		c.policy.Threshold = hints.IdleThreshold
	}
	c.logger.Debug("timing hints applied", "choice_budget", hints.ChoiceBudget, "idle_threshold", hints.IdleThreshold)
	c.queueSave(now)
}
