package out

import (
	"context"
	"fmt"
	"strings"

	"arena/internal/modules/session/domain"
	sessionout "arena/internal/modules/session/port/out"
)

type staticRound struct {
	situation string
	choices   []domain.Choice
	question  string
}

var staticRounds = []staticRound{
	{
		situation: "A deadline on %s moved up by a week. The team is looking at you.",
		choices: []domain.Choice{
			{ID: "cut", Label: "Cut scope and ship what is ready", Signal: "decisive"},
			{ID: "rally", Label: "Ask the team what they can realistically do", Signal: "collaborative"},
			{ID: "measure", Label: "Check which parts users actually depend on", Signal: "analytical"},
		},
		question: "What did you protect with that choice, and what did you give up?",
	},
	{
		situation: "Someone you trust disagrees openly with your plan for %s.",
		choices: []domain.Choice{
			{ID: "hold", Label: "Hold the line and explain once more", Signal: "decisive"},
			{ID: "listen", Label: "Pause and let them make their full case", Signal: "collaborative"},
			{ID: "test", Label: "Run a small experiment to settle it", Signal: "analytical"},
		},
		question: "How did the disagreement change what you wanted to do?",
	},
	{
		situation: "An unexpected opportunity appears that would pull focus from %s.",
		choices: []domain.Choice{
			{ID: "take", Label: "Take it before it disappears", Signal: "decisive"},
			{ID: "share", Label: "Offer it to someone else on the team", Signal: "collaborative"},
			{ID: "defer", Label: "Park it until the current work is done", Signal: "analytical"},
		},
		question: "What would have to be true for the other options to win?",
	},
}

// StaticGenerator serves built-in content. It never fails and needs no
// network.
type StaticGenerator struct{}

func NewStaticGenerator() StaticGenerator {
	return StaticGenerator{}
}

func (StaticGenerator) Situation(_ context.Context, req sessionout.SituationRequest) (domain.Scenario, error) {
	round := max(req.Round, 1)
	tpl := staticRounds[(round-1)%len(staticRounds)]
	title := strings.TrimSpace(req.Problem.Title)
	if title == "" {
		title = "your project"
	}
	return domain.Scenario{
		Situation: fmt.Sprintf(tpl.situation, title),
		Choices:   append([]domain.Choice(nil), tpl.choices...),
		Question:  tpl.question,
	}, nil
}

func (StaticGenerator) Consequence(_ context.Context, req sessionout.ConsequenceRequest) (domain.Outcome, error) {
	return domain.FallbackOutcome(req.Choice), nil
}

func (StaticGenerator) Evolve(_ context.Context, req sessionout.EvolveRequest) (string, error) {
	return domain.FallbackEvolution(req.Prompt), nil
}
