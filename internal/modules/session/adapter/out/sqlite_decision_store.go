package out

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"arena/internal/modules/session/domain"
	sessionout "arena/internal/modules/session/port/out"
	"arena/internal/platform/logging"

	_ "modernc.org/sqlite"
)

// committedAtLayout is fixed width so text order matches time order.
const committedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteDecisionStore struct {
	db     *sql.DB
	logger hclog.Logger
}

func NewSQLiteDecisionStore(dbPath string, logger hclog.Logger) (*SQLiteDecisionStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", p, err)
		}
	}
	store := &SQLiteDecisionStore{db: db, logger: logging.OrDiscard(logger).Named("decisions")}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteDecisionStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS decisions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  archetype TEXT,
  problem_id TEXT NOT NULL,
  choice_id TEXT NOT NULL,
  signal TEXT,
  first_interaction_ms INTEGER NOT NULL,
  time_to_lock_ms INTEGER NOT NULL,
  changes_of_mind INTEGER NOT NULL,
  forced INTEGER NOT NULL,
  round INTEGER NOT NULL,
  committed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS decisions_user_idx ON decisions(user_id, committed_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create decisions table: %w", err)
	}
	return nil
}

// Record stores the decision and answers with hints from the user's recent history.
func (s *SQLiteDecisionStore) Record(ctx context.Context, record sessionout.DecisionRecord) (domain.TimingHints, error) {
	d := record.Decision
	const stmt = `
INSERT INTO decisions (session_id, user_id, archetype, problem_id, choice_id, signal, first_interaction_ms, time_to_lock_ms, changes_of_mind, forced, round, committed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	_, err := s.db.ExecContext(ctx, stmt,
		record.SessionID,
		record.UserID,
		string(record.Archetype),
		d.ProblemID,
		d.ChoiceID,
		string(d.Signal),
		d.TimeToFirstInteraction.Milliseconds(),
		d.TimeToLock.Milliseconds(),
		d.ChangesOfMind,
		boolToInt(d.Forced),
		d.Round,
		d.CommittedAt.UTC().Format(committedAtLayout),
	)
	if err != nil {
		return domain.TimingHints{}, fmt.Errorf("insert decision: %w", err)
	}
	history, err := s.ListDecisions(ctx, record.UserID, 10)
	if err != nil {
		return domain.TimingHints{}, err
	}
	return domain.HintsFromHistory(decisionsOf(history), record.Archetype), nil
}

func (s *SQLiteDecisionStore) ListDecisions(ctx context.Context, userID string, limit int) ([]sessionout.DecisionRecord, error) {
	const query = `
SELECT session_id, user_id, archetype, problem_id, choice_id, signal, first_interaction_ms, time_to_lock_ms, changes_of_mind, forced, round, committed_at
FROM decisions
WHERE user_id = ?
ORDER BY committed_at DESC, id DESC
LIMIT ?;
`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	out := []sessionout.DecisionRecord{}
	for rows.Next() {
		var (
			rec         sessionout.DecisionRecord
			archetype   string
			signal      string
			firstMS     int64
			lockMS      int64
			forced      int
			committedAt string
		)
		if err := rows.Scan(&rec.SessionID, &rec.UserID, &archetype, &rec.Decision.ProblemID, &rec.Decision.ChoiceID, &signal, &firstMS, &lockMS, &rec.Decision.ChangesOfMind, &forced, &rec.Decision.Round, &committedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.Archetype = domain.Archetype(archetype)
		rec.Decision.Signal = domain.Signal(signal)
		rec.Decision.TimeToFirstInteraction = time.Duration(firstMS) * time.Millisecond
		rec.Decision.TimeToLock = time.Duration(lockMS) * time.Millisecond
		rec.Decision.Forced = forced != 0
		if rec.Decision.CommittedAt, err = time.Parse(committedAtLayout, committedAt); err != nil {
			s.logger.Warn("decision has an unreadable commit time", "session", rec.SessionID, "committed_at", committedAt, "error", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return out, nil
}

func (s *SQLiteDecisionStore) Close() error {
	return s.db.Close()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func decisionsOf(records []sessionout.DecisionRecord) []domain.Decision {
	out := make([]domain.Decision, 0, len(records))
	for _, r := range records {
		out = append(out, r.Decision)
	}
	return out
}
