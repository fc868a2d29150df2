package out

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"arena/internal/modules/session/domain"
	sessionout "arena/internal/modules/session/port/out"
)

type decisionRow struct {
	ID                 uint   `gorm:"primaryKey"`
	SessionID          string `gorm:"index;not null"`
	UserID             string `gorm:"index:decisions_user_idx;not null"`
	Archetype          string
	ProblemID          string `gorm:"not null"`
	ChoiceID           string `gorm:"not null"`
	Signal             string
	FirstInteractionMS int64
	TimeToLockMS       int64
	ChangesOfMind      int
	Forced             bool
	Round              int
	CommittedAt        time.Time `gorm:"index:decisions_user_idx"`
}

func (decisionRow) TableName() string { return "decisions" }

// PostgresDecisionStore is the shared-database variant of the decision log.
type PostgresDecisionStore struct {
	db *gorm.DB
}

func NewPostgresDecisionStore(ctx context.Context, dsn string) (*PostgresDecisionStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("missing postgres dsn")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newGormDecisionStore(db)
}

func newGormDecisionStore(db *gorm.DB) (*PostgresDecisionStore, error) {
	if err := db.AutoMigrate(&decisionRow{}); err != nil {
		return nil, fmt.Errorf("migrate decisions: %w", err)
	}
	return &PostgresDecisionStore{db: db}, nil
}

func (s *PostgresDecisionStore) Record(ctx context.Context, record sessionout.DecisionRecord) (domain.TimingHints, error) {
	row := toDecisionRow(record)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.TimingHints{}, fmt.Errorf("insert decision: %w", err)
	}
	history, err := s.ListDecisions(ctx, record.UserID, 10)
	if err != nil {
		return domain.TimingHints{}, err
	}
	return domain.HintsFromHistory(decisionsOf(history), record.Archetype), nil
}

func (s *PostgresDecisionStore) ListDecisions(ctx context.Context, userID string, limit int) ([]sessionout.DecisionRecord, error) {
	rows := []decisionRow{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("committed_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	out := make([]sessionout.DecisionRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

func (s *PostgresDecisionStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toDecisionRow(record sessionout.DecisionRecord) decisionRow {
	d := record.Decision
	return decisionRow{
		SessionID:          record.SessionID,
		UserID:             record.UserID,
		Archetype:          string(record.Archetype),
		ProblemID:          d.ProblemID,
		ChoiceID:           d.ChoiceID,
		Signal:             string(d.Signal),
		FirstInteractionMS: d.TimeToFirstInteraction.Milliseconds(),
		TimeToLockMS:       d.TimeToLock.Milliseconds(),
		ChangesOfMind:      d.ChangesOfMind,
		Forced:             d.Forced,
		Round:              d.Round,
		CommittedAt:        d.CommittedAt.UTC(),
	}
}

func (r decisionRow) toRecord() sessionout.DecisionRecord {
	return sessionout.DecisionRecord{
		SessionID: r.SessionID,
		UserID:    r.UserID,
		Archetype: domain.Archetype(r.Archetype),
		Decision: domain.Decision{
			ProblemID:              r.ProblemID,
			ChoiceID:               r.ChoiceID,
			Signal:                 domain.Signal(r.Signal),
			TimeToFirstInteraction: time.Duration(r.FirstInteractionMS) * time.Millisecond,
			TimeToLock:             time.Duration(r.TimeToLockMS) * time.Millisecond,
			ChangesOfMind:          r.ChangesOfMind,
			Forced:                 r.Forced,
			Round:                  r.Round,
			CommittedAt:            r.CommittedAt,
		},
	}
}
