package out

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	"arena/internal/modules/session/adapter/out/generatorrpc"
	"arena/internal/modules/session/domain"
	sessionout "arena/internal/modules/session/port/out"
	"arena/internal/platform/logging"
)

const defaultStartTimeout = 3 * time.Second

// RPCGenerator maps the content generator port onto the generator RPC
// contract. It is used both for plugin binaries and in-process servers.
type RPCGenerator struct {
	client generatorrpc.GeneratorClient
}

func NewRPCGenerator(client generatorrpc.GeneratorClient) *RPCGenerator {
	return &RPCGenerator{client: client}
}

func (g *RPCGenerator) Situation(ctx context.Context, req sessionout.SituationRequest) (domain.Scenario, error) {
	resp, err := g.client.Situation(ctx, &generatorrpc.SituationRequest{
		Problem:   wireProblem(req.Problem),
		UserID:    req.Profile.UserID,
		Archetype: string(req.Profile.Archetype),
		Round:     int32(req.Round),
		Decisions: wireDecisions(req.Decisions),
		Language:  req.Language,
	})
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("plugin situation: %w", err)
	}
	choices := make([]domain.Choice, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		choices = append(choices, domain.Choice{ID: c.ID, Label: c.Label, Signal: domain.Signal(c.Signal)})
	}
	return domain.Scenario{Situation: resp.Situation, Choices: choices, Question: resp.Question}, nil
}

func (g *RPCGenerator) Consequence(ctx context.Context, req sessionout.ConsequenceRequest) (domain.Outcome, error) {
	resp, err := g.client.Consequence(ctx, &generatorrpc.ConsequenceRequest{
		Problem:   wireProblem(req.Problem),
		Round:     int32(req.Round),
		Situation: req.Situation,
		Choice:    generatorrpc.Choice{ID: req.Choice.ID, Label: req.Choice.Label, Signal: string(req.Choice.Signal)},
		Decisions: wireDecisions(req.Decisions),
		Language:  req.Language,
	})
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("plugin consequence: %w", err)
	}
	return domain.Outcome{Consequences: resp.Consequences, Insight: resp.Insight}, nil
}

func (g *RPCGenerator) Evolve(ctx context.Context, req sessionout.EvolveRequest) (string, error) {
	resp, err := g.client.Evolve(ctx, &generatorrpc.EvolveRequest{
		Problem:  wireProblem(req.Problem),
		Prompt:   req.Prompt,
		Partial:  req.Partial,
		Language: req.Language,
	})
	if err != nil {
		return "", fmt.Errorf("plugin evolve: %w", err)
	}
	return strings.TrimSpace(resp.Prompt), nil
}

// Describe reports the plugin's name and version.
func (g *RPCGenerator) Describe(ctx context.Context) (string, error) {
	meta, err := g.client.GetMetadata(ctx)
	if err != nil {
		return "", fmt.Errorf("get metadata: %w", err)
	}
	return meta.Name + " " + meta.Version, nil
}

func wireProblem(p domain.Problem) generatorrpc.Problem {
	return generatorrpc.Problem{ID: p.ID, Title: p.Title, Context: p.Context}
}

func wireDecisions(decisions []domain.Decision) []generatorrpc.PastDecision {
	out := make([]generatorrpc.PastDecision, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, generatorrpc.PastDecision{Round: d.Round, ChoiceID: d.ChoiceID, Signal: string(d.Signal), Forced: d.Forced})
	}
	return out
}

// PluginGenerator runs a generator binary over go-plugin for the lifetime of
// the process.
type PluginGenerator struct {
	*RPCGenerator
	client *plugin.Client
}

func NewPluginGenerator(binary string, logger hclog.Logger) (*PluginGenerator, error) {
	if strings.TrimSpace(binary) == "" {
		return nil, fmt.Errorf("generator plugin binary is not configured")
	}
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  generatorrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          generatorrpc.PluginMap(nil),
		Cmd:              exec.Command(binary),
		Managed:          true,
		StartTimeout:     defaultStartTimeout,
		Logger:           logging.OrDiscard(logger).Named("generator-plugin"),
	})
	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("start plugin client: %w", err)
	}
	raw, err := rpcClient.Dispense(generatorrpc.PluginMapKey)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("dispense plugin: %w", err)
	}
	typed, ok := raw.(generatorrpc.GeneratorClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin rpc client type mismatch")
	}
	return &PluginGenerator{RPCGenerator: NewRPCGenerator(typed), client: client}, nil
}

func (g *PluginGenerator) Close() error {
	g.client.Kill()
	return nil
}
