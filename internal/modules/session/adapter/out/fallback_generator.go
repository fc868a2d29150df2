package out

import (
	"context"
	"errors"
	"strings"

	hclog "github.com/hashicorp/go-hclog"

	"arena/internal/modules/session/domain"
	sessionout "arena/internal/modules/session/port/out"
	"arena/internal/platform/logging"
)

var errNoContent = errors.New("generator returned no content")

// FallbackGenerator prefers primary and answers from backup when primary
// fails or returns nothing usable.
type FallbackGenerator struct {
	primary sessionout.ContentGenerator
	backup  sessionout.ContentGenerator
	logger  hclog.Logger
}

func NewFallbackGenerator(primary, backup sessionout.ContentGenerator, logger hclog.Logger) *FallbackGenerator {
	return &FallbackGenerator{
		primary: primary,
		backup:  backup,
		logger:  logging.OrDiscard(logger).Named("generator"),
	}
}

func (g *FallbackGenerator) Situation(ctx context.Context, req sessionout.SituationRequest) (domain.Scenario, error) {
	if g.primary != nil {
		scenario, err := g.primary.Situation(ctx, req)
		if err == nil && (strings.TrimSpace(scenario.Situation) == "" || len(scenario.Choices) == 0) {
			err = errNoContent
		}
		if err == nil {
			return scenario, nil
		}
		g.logger.Warn("situation from primary failed, using backup", "round", req.Round, "error", err)
	}
	return g.backup.Situation(ctx, req)
}

func (g *FallbackGenerator) Consequence(ctx context.Context, req sessionout.ConsequenceRequest) (domain.Outcome, error) {
	if g.primary != nil {
		outcome, err := g.primary.Consequence(ctx, req)
		if err == nil && len(outcome.Consequences) == 0 {
			err = errNoContent
		}
		if err == nil {
			return outcome, nil
		}
		g.logger.Warn("consequence from primary failed, using backup", "round", req.Round, "error", err)
	}
	return g.backup.Consequence(ctx, req)
}

func (g *FallbackGenerator) Evolve(ctx context.Context, req sessionout.EvolveRequest) (string, error) {
	if g.primary != nil {
		prompt, err := g.primary.Evolve(ctx, req)
		if err == nil && strings.TrimSpace(prompt) == "" {
			err = errNoContent
		}
		if err == nil {
			return prompt, nil
		}
		g.logger.Warn("evolve from primary failed, using backup", "error", err)
	}
	return g.backup.Evolve(ctx, req)
}
