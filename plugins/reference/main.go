package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-plugin"

	"arena/internal/modules/session/adapter/out/generatorrpc"
)

type server struct{}

func (s *server) GetMetadata(_ context.Context, _ *generatorrpc.Empty) (*generatorrpc.Metadata, error) {
	return &generatorrpc.Metadata{Name: "reference", Version: "1.0.0"}, nil
}

// Situation leans the next round against the user's habits: a run of bold
// picks gets a situation that rewards patience, and the reverse.
func (s *server) Situation(_ context.Context, in *generatorrpc.SituationRequest) (*generatorrpc.SituationResponse, error) {
	title := strings.TrimSpace(in.Problem.Title)
	if title == "" {
		title = "the problem"
	}
	bold := 0
	for _, d := range in.Decisions {
		if d.Signal == "decisive" || d.Signal == "bold" {
			bold++
		}
	}
	if bold*2 > len(in.Decisions) && len(in.Decisions) > 0 {
		return &generatorrpc.SituationResponse{
			Situation: fmt.Sprintf("Round %d of %s. Your last calls landed fast, and two people on the team quietly disagree.", in.Round, title),
			Choices: []generatorrpc.Choice{
				{ID: "pause", Label: "Pause and hear the dissent", Signal: "reflective"},
				{ID: "press", Label: "Press on with the plan", Signal: "decisive"},
				{ID: "delegate", Label: "Let one of them own the next step", Signal: "collaborative"},
			},
			Question: "What would you need to hear to change course?",
		}, nil
	}
	return &generatorrpc.SituationResponse{
		Situation: fmt.Sprintf("Round %d of %s. A partner needs an answer by end of day and the data is incomplete.", in.Round, title),
		Choices: []generatorrpc.Choice{
			{ID: "commit", Label: "Commit with what you know", Signal: "decisive"},
			{ID: "ask", Label: "Ask for one more day", Signal: "cautious"},
			{ID: "split", Label: "Agree to part of it now", Signal: "pragmatic"},
		},
		Question: "Which unknown worries you most?",
	}, nil
}

func (s *server) Consequence(_ context.Context, in *generatorrpc.ConsequenceRequest) (*generatorrpc.ConsequenceResponse, error) {
	label := strings.TrimSpace(in.Choice.Label)
	if label == "" {
		return nil, fmt.Errorf("choice %q has no label", in.Choice.ID)
	}
	return &generatorrpc.ConsequenceResponse{
		Consequences: []string{
			fmt.Sprintf("You chose to %s.", strings.ToLower(label)),
			"The people closest to the work adjust their plans around it.",
		},
		Insight: fmt.Sprintf("A %s move buys certainty in one place and spends it in another.", in.Choice.Signal),
	}, nil
}

func (s *server) Evolve(_ context.Context, in *generatorrpc.EvolveRequest) (*generatorrpc.EvolveResponse, error) {
	if strings.TrimSpace(in.Partial) == "" {
		return &generatorrpc.EvolveResponse{Prompt: "In one sentence: what did you almost choose instead?"}, nil
	}
	return &generatorrpc.EvolveResponse{Prompt: "You started on it. What is the one word that finishes the thought?"}, nil
}

func main() {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: generatorrpc.HandshakeConfig,
		Plugins:         generatorrpc.PluginMap(&server{}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
