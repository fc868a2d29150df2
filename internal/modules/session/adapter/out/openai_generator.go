package out

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"arena/internal/modules/session/domain"
	sessionout "arena/internal/modules/session/port/out"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOpenAITimeout = 30 * time.Second
)

type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// OpenAIGenerator asks a chat-completions endpoint for round content and
// expects JSON back.
type OpenAIGenerator struct {
	client openaigo.Client
	model  string
}

func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai generator: api key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOpenAITimeout
	}
	client := openaigo.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
		option.WithRequestTimeout(timeout),
	)
	return &OpenAIGenerator{client: client, model: model}, nil
}

const situationSystem = `You run a short decision training exercise.
Write one concrete, high-stakes situation about the user's problem and 2 to 4 distinct ways to respond.
Each choice carries a one-word behavioural signal such as decisive, collaborative, analytical or cautious.
Also write one reflection question about the choice the user is about to make.
Reply in the requested language. Return ONLY a JSON object like:
{"situation": "...", "choices": [{"id": "a", "label": "...", "signal": "..."}], "question": "..."}`

const consequenceSystem = `You run a short decision training exercise.
Given a situation and the option the user locked in, describe 2 or 3 realistic consequences and one short insight about the trade-off.
Reply in the requested language. Return ONLY a JSON object like:
{"consequences": ["...", "..."], "insight": "..."}`

const evolveSystem = `The user is stuck on a question. Rewrite it as a narrower, easier question that can be answered in one sentence.
Keep the user's partial answer in mind. Reply in the requested language with the new question only, as plain text.`

func (g *OpenAIGenerator) Situation(ctx context.Context, req sessionout.SituationRequest) (domain.Scenario, error) {
	var b strings.Builder
	writeProblem(&b, req.Problem, req.Language)
	fmt.Fprintf(&b, "Round: %d\n", req.Round)
	if req.Profile.Archetype != "" {
		fmt.Fprintf(&b, "Decision style: %s\n", req.Profile.Archetype)
	}
	writeHistory(&b, req.Decisions)

	raw, err := g.complete(ctx, situationSystem, b.String())
	if err != nil {
		return domain.Scenario{}, err
	}
	var parsed domain.Scenario
	if err := json.Unmarshal([]byte(extractJSONFromText(raw)), &parsed); err != nil {
		return domain.Scenario{}, fmt.Errorf("situation invalid json: %w", err)
	}
	choices := make([]domain.Choice, 0, len(parsed.Choices))
	for i, c := range parsed.Choices {
		label := strings.TrimSpace(c.Label)
		if label == "" {
			continue
		}
		id := strings.TrimSpace(c.ID)
		if id == "" {
			id = fmt.Sprintf("c%d", i+1)
		}
		choices = append(choices, domain.Choice{ID: id, Label: label, Signal: domain.Signal(strings.ToLower(strings.TrimSpace(string(c.Signal))))})
	}
	return domain.Scenario{
		Situation: strings.TrimSpace(parsed.Situation),
		Choices:   choices,
		Question:  strings.TrimSpace(parsed.Question),
	}, nil
}

func (g *OpenAIGenerator) Consequence(ctx context.Context, req sessionout.ConsequenceRequest) (domain.Outcome, error) {
	var b strings.Builder
	writeProblem(&b, req.Problem, req.Language)
	fmt.Fprintf(&b, "Round: %d\nSituation: %s\nLocked choice: %s (signal: %s)\n", req.Round, req.Situation, req.Choice.Label, req.Choice.Signal)
	writeHistory(&b, req.Decisions)

	raw, err := g.complete(ctx, consequenceSystem, b.String())
	if err != nil {
		return domain.Outcome{}, err
	}
	var parsed domain.Outcome
	if err := json.Unmarshal([]byte(extractJSONFromText(raw)), &parsed); err != nil {
		return domain.Outcome{}, fmt.Errorf("consequence invalid json: %w", err)
	}
	clean := make([]string, 0, len(parsed.Consequences))
	for _, c := range parsed.Consequences {
		if t := strings.TrimSpace(c); t != "" {
			clean = append(clean, t)
		}
	}
	return domain.Outcome{Consequences: clean, Insight: strings.TrimSpace(parsed.Insight)}, nil
}

func (g *OpenAIGenerator) Evolve(ctx context.Context, req sessionout.EvolveRequest) (string, error) {
	var b strings.Builder
	writeProblem(&b, req.Problem, req.Language)
	fmt.Fprintf(&b, "Question: %s\n", req.Prompt)
	if strings.TrimSpace(req.Partial) != "" {
		fmt.Fprintf(&b, "Partial answer: %s\n", req.Partial)
	}
	raw, err := g.complete(ctx, evolveSystem, b.String())
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(raw), `"`), nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(g.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.SystemMessage(system),
			openaigo.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func writeProblem(b *strings.Builder, p domain.Problem, language string) {
	if language == "" {
		language = "en"
	}
	fmt.Fprintf(b, "Language: %s\nProblem: %s\n", language, p.Title)
	if strings.TrimSpace(p.Context) != "" {
		fmt.Fprintf(b, "Context: %s\n", p.Context)
	}
}

func writeHistory(b *strings.Builder, decisions []domain.Decision) {
	if len(decisions) == 0 {
		return
	}
	b.WriteString("Earlier decisions:\n")
	for _, d := range decisions {
		forced := ""
		if d.Forced {
			forced = ", forced by timeout"
		}
		fmt.Fprintf(b, "- round %d: %s (%s%s)\n", d.Round, d.ChoiceID, d.Signal, forced)
	}
}

// extractJSONFromText strips code fences and surrounding prose from a model
// reply.
func extractJSONFromText(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "```") {
		rest := strings.TrimSpace(strings.TrimPrefix(raw, "```"))
		if i := strings.Index(rest, "\n"); i >= 0 {
			rest = rest[i+1:]
		}
		if j := strings.LastIndex(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		raw = strings.TrimSpace(rest)
	}
	if !strings.HasPrefix(raw, "{") {
		if i := strings.Index(raw, "{"); i >= 0 {
			if j := strings.LastIndex(raw, "}"); j > i {
				return strings.TrimSpace(raw[i : j+1])
			}
		}
	}
	return raw
}
