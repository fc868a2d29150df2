package out_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sessionoutadapter "arena/internal/modules/session/adapter/out"
	"arena/internal/modules/session/domain"
	sessionout "arena/internal/modules/session/port/out"
)

type brokenGenerator struct {
	err   error
	calls int
}

func (b *brokenGenerator) Situation(context.Context, sessionout.SituationRequest) (domain.Scenario, error) {
	b.calls++
	if b.err != nil {
		return domain.Scenario{}, b.err
	}
	return domain.Scenario{Situation: "only text, no choices"}, nil
}

func (b *brokenGenerator) Consequence(context.Context, sessionout.ConsequenceRequest) (domain.Outcome, error) {
	b.calls++
	return domain.Outcome{Consequences: []string{"primary"}}, b.err
}

func (b *brokenGenerator) Evolve(context.Context, sessionout.EvolveRequest) (string, error) {
	b.calls++
	return "  ", b.err
}

func TestFallbackGeneratorUsesBackupOnError(t *testing.T) {
	t.Parallel()
	primary := &brokenGenerator{err: errors.New("timeout")}
	gen := sessionoutadapter.NewFallbackGenerator(primary, sessionoutadapter.NewStaticGenerator(), nil)
	ctx := context.Background()

	scenario, err := gen.Situation(ctx, sessionout.SituationRequest{Problem: domain.Problem{Title: "Hiring"}, Round: 1})
	require.NoError(t, err)
	assert.Contains(t, scenario.Situation, "Hiring")

	outcome, err := gen.Consequence(ctx, sessionout.ConsequenceRequest{Choice: domain.Choice{ID: "a", Label: "Go"}})
	require.NoError(t, err)
	assert.NotEqual(t, []string{"primary"}, outcome.Consequences)
	assert.Equal(t, 2, primary.calls)
}

func TestFallbackGeneratorRejectsEmptyContent(t *testing.T) {
	t.Parallel()
	primary := &brokenGenerator{}
	gen := sessionoutadapter.NewFallbackGenerator(primary, sessionoutadapter.NewStaticGenerator(), nil)
	ctx := context.Background()

	scenario, err := gen.Situation(ctx, sessionout.SituationRequest{Problem: domain.Problem{Title: "Hiring"}, Round: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, scenario.Choices)

	outcome, err := gen.Consequence(ctx, sessionout.ConsequenceRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"primary"}, outcome.Consequences)

	prompt, err := gen.Evolve(ctx, sessionout.EvolveRequest{Prompt: "What would you do first?"})
	require.NoError(t, err)
	assert.NotEmpty(t, prompt)
}
