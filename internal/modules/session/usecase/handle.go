package usecase

import (
	"fmt"

	"arena/internal/modules/session/domain"
	sessiondto "arena/internal/modules/session/dto"
	"arena/internal/modules/session/service"
)

type handle struct {
	ctrl   *service.Controller
	events chan sessiondto.Event
}

func (h *handle) State() sessiondto.State {
	view, err := h.ctrl.View()
	if err != nil {
		return sessiondto.State{}
	}
	return mapView(view)
}

func (h *handle) Events() <-chan sessiondto.Event { return h.events }

func (h *handle) Continue() error { return h.ctrl.Continue() }
func (h *handle) Input(draft string) error { return h.ctrl.Input(draft) }
func (h *handle) Select(choiceID string) error { return h.ctrl.Select(choiceID) }
func (h *handle) ChangeMind() error { return h.ctrl.ChangeMind() }
func (h *handle) Lock() error { return h.ctrl.Lock() }
func (h *handle) Submit(text string) error { return h.ctrl.Submit(text) }
func (h *handle) DismissWarning() error { return h.ctrl.DismissWarning() }
func (h *handle) Comprehension(ok bool) error { return h.ctrl.Comprehension(ok) }
func (h *handle) Exit() error { return h.ctrl.Exit() }
func (h *handle) Abandon() error { return h.ctrl.Abandon() }

// channelSink forwards events to the UI without ever blocking the controller.
type channelSink struct {
	ch chan sessiondto.Event
}

func (s channelSink) Publish(event domain.Event) {
	select {
	case s.ch <- mapEvent(event):
	default:
	}
}

func mapEvent(event domain.Event) sessiondto.Event {
	out := sessiondto.Event{Name: event.EventName(), At: event.At()}
	switch e := event.(type) {
	case domain.ScreenChanged:
		out.Message = string(e.Screen)
	case domain.InterventionFired:
		out.Message = e.Intervention.Message
	case domain.InterventionCleared:
		out.Message = e.Reason
	case domain.DecisionCommitted:
		out.Message = fmt.Sprintf("%s (forced=%t)", e.Decision.ChoiceID, e.Decision.Forced)
	case domain.PressureChanged:
		out.Message = string(e.To)
	case domain.SessionComplete:
		out.Message = fmt.Sprintf("%d decisions", len(e.Decisions))
	case domain.ContentUpdated:
		out.Message = string(e.Screen)
		if e.Evolved {
			out.Message += " evolved"
		}
	}
	return out
}

func mapView(v service.View) sessiondto.State {
	s := v.Session
	state := sessiondto.State{
		SessionID:    s.ID,
		ProblemID:    s.Problem.ID,
		Title:        s.Problem.Title,
		Screen:       string(v.Screen.ID),
		Round:        s.Round,
		TargetRounds: s.TargetRounds,
		Remaining:    v.Remaining,
		Progress:     v.Progress,
		Pressure:     string(v.Pressure),
		Intervention: sessiondto.Intervention{
			Tier:      string(v.Intervention.Tier),
			Message:   v.Intervention.Message,
			Countdown: v.Countdown,
		},
		Situation:     s.Scenario.Situation,
		Choices:       mapChoices(s.Scenario.Choices),
		Selection:     s.Selection,
		Locked:        s.Locked,
		CanChangeMind: s.Selection != "" && s.CanChangeMind(),
		Consequences:  append([]string(nil), s.Outcome.Consequences...),
		Insight:       s.Outcome.Insight,
		Prompt:        s.Prompt,
		Draft:         s.Draft,
		Loading:       s.Loading,
		Complete:      v.Complete,
		Restored:      v.Restored,
	}
	if state.Intervention.Tier == "" {
		state.Intervention.Tier = string(domain.TierNone)
	}
	for _, d := range s.Decisions {
		state.Decisions = append(state.Decisions, sessiondto.Decision{
			ProblemID:     d.ProblemID,
			ChoiceID:      d.ChoiceID,
			Signal:        string(d.Signal),
			TimeToLock:    d.TimeToLock,
			ChangesOfMind: d.ChangesOfMind,
			Forced:        d.Forced,
			Round:         d.Round,
			CommittedAt:   d.CommittedAt,
		})
	}
	return state
}

func mapChoices(choices []domain.Choice) []sessiondto.Choice {
	out := make([]sessiondto.Choice, 0, len(choices))
	for _, c := range choices {
		out = append(out, sessiondto.Choice{ID: c.ID, Label: c.Label, Signal: string(c.Signal)})
	}
	return out
}
