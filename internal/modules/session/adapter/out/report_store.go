package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"arena/internal/modules/session/domain"
	sessionout "arena/internal/modules/session/port/out"
	"arena/internal/platform/markdown"
	"arena/internal/platform/slug"
)

const (
	indexStart = "<!-- arena:reports:start -->"
	indexEnd   = "<!-- arena:reports:end -->"
	indexLimit = 50
)

// VaultReportStore writes one markdown note per completed session and keeps
// a managed list of recent reports in index.md.
type VaultReportStore struct {
	mu  sync.Mutex
	dir string
}

type reportMeta struct {
	Schema      int    `yaml:"schema_version"`
	ID          string `yaml:"id"`
	ProblemID   string `yaml:"problem_id"`
	UserID      string `yaml:"user_id,omitempty"`
	Archetype   string `yaml:"archetype,omitempty"`
	StartedAt   string `yaml:"started_at"`
	CompletedAt string `yaml:"completed_at"`
	Duration    int    `yaml:"duration_seconds"`
	Rounds      int    `yaml:"rounds"`
	Decisions   int    `yaml:"decisions"`
	Forced      int    `yaml:"forced_decisions"`
}

func NewVaultReportStore(dir string) sessionout.ReportStore {
	return &VaultReportStore{dir: dir}
}

func (s *VaultReportStore) Save(_ context.Context, report sessionout.Report) (string, error) {
	session := report.Session
	date := report.CompletedAt
	dir := filepath.Join(s.dir, date.Format("2006"), date.Format("01"), date.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.md", date.Format("150405"), slug.Make(session.Problem.Title, 48))
	path := filepath.Join(dir, name)

	forced := 0
	for _, d := range session.Decisions {
		if d.Forced {
			forced++
		}
	}
	meta := reportMeta{
		Schema:      domain.SchemaVersion,
		ID:          session.ID,
		ProblemID:   session.Problem.ID,
		UserID:      session.Profile.UserID,
		Archetype:   string(session.Profile.Archetype),
		StartedAt:   session.StartedAt.Format(time.RFC3339),
		CompletedAt: report.CompletedAt.Format(time.RFC3339),
		Duration:    int(report.Duration.Seconds()),
		Rounds:      session.TargetRounds,
		Decisions:   len(session.Decisions),
		Forced:      forced,
	}
	rendered, err := markdown.Render(meta, renderReportBody(session))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := s.updateIndex(path, session, report.CompletedAt); err != nil {
		return path, err
	}
	return path, nil
}

func renderReportBody(session domain.Session) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "# %s\n\n", reportTitle(session))
	if session.Problem.Context != "" {
		fmt.Fprintf(&b, "%s\n\n", session.Problem.Context)
	}
	b.WriteString("## Decisions\n\n")
	for _, d := range session.Decisions {
		mark := ""
		if d.Forced {
			mark = " (forced)"
		}
		fmt.Fprintf(&b, "- Round %d: `%s` signal=%s lock=%s%s\n", d.Round, d.ChoiceID, d.Signal, d.TimeToLock.Round(time.Second), mark)
	}
	if len(session.Reflections) > 0 {
		b.WriteString("\n## Reflections\n")
		for _, r := range session.Reflections {
			fmt.Fprintf(&b, "\n### Round %d\n\n> %s\n\n%s\n", r.Round, r.Question, r.Text)
		}
	}
	return b.String()
}

func reportTitle(session domain.Session) string {
	if strings.TrimSpace(session.Problem.Title) != "" {
		return session.Problem.Title
	}
	return "Session " + session.ID
}

func (s *VaultReportStore) updateIndex(reportPath string, session domain.Session, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	indexPath := filepath.Join(s.dir, "index.md")
	raw, err := os.ReadFile(indexPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read report index: %w", err)
	}
	body := string(raw)

	rel, err := filepath.Rel(s.dir, reportPath)
	if err != nil {
		rel = reportPath
	}
	entry := fmt.Sprintf("- %s [%s](%s)", at.Format("2006-01-02 15:04"), reportTitle(session), filepath.ToSlash(rel))
	lines := []string{entry}
	for _, line := range markdown.ManagedLines(body, indexStart, indexEnd) {
		if line != entry && len(lines) < indexLimit {
			lines = append(lines, line)
		}
	}
	if strings.TrimSpace(body) == "" {
		body = "# Arena reports\n"
	}
	updated := markdown.ReplaceManagedLines(body, indexStart, indexEnd, lines)
	if err := os.WriteFile(indexPath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("write report index: %w", err)
	}
	return nil
}
