package out

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"arena/internal/modules/session/domain"
	sessionout "arena/internal/modules/session/port/out"
)

const defaultAdvisorTimeout = 2 * time.Second

type advisorResponse struct {
	Action  string `json:"action"`
	Payload struct {
		Message  string `json:"message"`
		Signal   string `json:"signal"`
		ChoiceID string `json:"choice_id"`
	} `json:"payload"`
}

// HTTPAdvisor polls a remote service for intervention recommendations.
type HTTPAdvisor struct {
	baseURL string
	client  *http.Client
}

func NewHTTPAdvisor(baseURL string, timeout time.Duration) sessionout.InterventionAdvisor {
	if timeout <= 0 {
		timeout = defaultAdvisorTimeout
	}
	return &HTTPAdvisor{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *HTTPAdvisor) Recommend(ctx context.Context, sessionID, language string) (domain.Recommendation, error) {
	endpoint := fmt.Sprintf("%s/sessions/%s/intervention", a.baseURL, url.PathEscape(sessionID))
	if language != "" {
		endpoint += "?" + url.Values{"lang": []string{language}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("build advisor request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("advisor request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return domain.Recommendation{Action: domain.ActionNone}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Recommendation{}, fmt.Errorf("advisor status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var parsed advisorResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.Recommendation{}, fmt.Errorf("decode advisor response: %w", err)
	}
	action, err := domain.ParseAction(parsed.Action)
	if err != nil {
		return domain.Recommendation{}, err
	}
	return domain.Recommendation{
		Action:   action,
		Message:  strings.TrimSpace(parsed.Payload.Message),
		Signal:   domain.Signal(parsed.Payload.Signal),
		ChoiceID: parsed.Payload.ChoiceID,
	}, nil
}
