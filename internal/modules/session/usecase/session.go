package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"arena/internal/modules/session/domain"
	sessiondto "arena/internal/modules/session/dto"
	sessionin "arena/internal/modules/session/port/in"
	sessionout "arena/internal/modules/session/port/out"
	"arena/internal/modules/session/service"
	"arena/internal/platform/clock"
	apperrors "arena/internal/platform/errors"
	"arena/internal/platform/logging"
)

// ControllerFactory builds a controller that publishes to sink.
type ControllerFactory func(sink sessionout.EventSink) *service.Controller

type Interactor struct {
	clock         clock.Clock
	snapshots     sessionout.SnapshotStore
	decisions     sessionout.DecisionLog
	generator     sessionout.ContentGenerator
	newController ControllerFactory
	staleness     time.Duration
	language      string
	logger        hclog.Logger
}

func NewInteractor(
	clk clock.Clock,
	snapshots sessionout.SnapshotStore,
	decisions sessionout.DecisionLog,
	generator sessionout.ContentGenerator,
	factory ControllerFactory,
	staleness time.Duration,
	logger hclog.Logger,
) sessionin.Usecase {
	return &Interactor{
		clock:         clk,
		snapshots:     snapshots,
		decisions:     decisions,
		generator:     generator,
		newController: factory,
		staleness:     staleness,
		language:      "en",
		logger:        logging.OrDiscard(logger).Named("session"),
	}
}

// Open resumes the stored session for the problem when its snapshot is still
// usable, and starts a fresh one otherwise.
func (i *Interactor) Open(ctx context.Context, input sessiondto.OpenInput) (sessionin.Session, error) {
	problemID := strings.TrimSpace(input.ProblemID)
	if problemID == "" {
		return nil, fmt.Errorf("%w: problem id is required", apperrors.ErrInvalidInput)
	}

	events := make(chan sessiondto.Event, 128)
	ctrl := i.newController(channelSink{ch: events})

	snap, ok := i.usableSnapshot(ctx, problemID)
	if ok {
		if err := ctrl.Restore(snap); err != nil {
			i.logger.Warn("snapshot restore failed, starting fresh", "problem", problemID, "error", err)
			i.discard(ctx, problemID)
			_ = ctrl.Abandon()
			ctrl = i.newController(channelSink{ch: events})
			ok = false
		}
	}
	if !ok {
		problem := domain.Problem{ID: problemID, Title: strings.TrimSpace(input.Title), Context: strings.TrimSpace(input.Context)}
		profile := domain.Profile{UserID: strings.TrimSpace(input.UserID), Archetype: domain.ParseArchetype(input.Archetype)}
		if err := ctrl.Begin(problem, profile); err != nil {
			return nil, err
		}
	}
	if err := ctrl.Start(); err != nil {
		return nil, err
	}
	return &handle{ctrl: ctrl, events: events}, nil
}

func (i *Interactor) usableSnapshot(ctx context.Context, problemID string) (domain.Snapshot, bool) {
	if i.snapshots == nil {
		return domain.Snapshot{}, false
	}
	snap, err := i.snapshots.Load(ctx, problemID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNoSnapshot) {
			i.logger.Warn("snapshot unreadable, starting fresh", "problem", problemID, "error", err)
			i.discard(ctx, problemID)
		}
		return domain.Snapshot{}, false
	}
	if err := snap.Validate(problemID, i.clock.Now(), i.staleness); err != nil {
		i.logger.Debug("snapshot discarded", "problem", problemID, "reason", err)
		i.discard(ctx, problemID)
		return domain.Snapshot{}, false
	}
	return snap, true
}

func (i *Interactor) discard(ctx context.Context, problemID string) {
	if err := i.snapshots.Clear(ctx, problemID); err != nil && !errors.Is(err, apperrors.ErrNoSnapshot) {
		i.logger.Warn("snapshot clear failed", "problem", problemID, "error", err)
	}
}

func (i *Interactor) ShowSnapshot(ctx context.Context, problemID string) (sessiondto.SnapshotOutput, error) {
	if i.snapshots == nil {
		return sessiondto.SnapshotOutput{}, apperrors.ErrNoSnapshot
	}
	snap, err := i.snapshots.Load(ctx, problemID)
	if err != nil {
		return sessiondto.SnapshotOutput{}, err
	}
	out := sessiondto.SnapshotOutput{
		Key:       snap.Key,
		SessionID: snap.Session.ID,
		Round:     snap.Session.Round,
		Decisions: len(snap.Session.Decisions),
		SavedAt:   snap.SavedAt,
	}
	if snap.Index >= 0 && snap.Index < len(snap.Screens) {
		seq, err := domain.RestoreSequencer(snap.Screens, snap.Index, snap.ScreenStartedAt)
		if err == nil {
			out.Screen = string(seq.Current().ID)
			out.Remaining = seq.TimeRemaining(i.clock.Now())
		}
	}
	if err := snap.Validate(problemID, i.clock.Now(), i.staleness); err != nil {
		out.Discarded = err.Error()
	}
	return out, nil
}

func (i *Interactor) ClearSnapshot(ctx context.Context, problemID string) error {
	if i.snapshots == nil {
		return nil
	}
	return i.snapshots.Clear(ctx, problemID)
}

func (i *Interactor) ListDecisions(ctx context.Context, userID string, limit int) ([]sessiondto.DecisionRecordOutput, error) {
	if i.decisions == nil {
		return nil, fmt.Errorf("%w: decision log is not configured", apperrors.ErrNotFound)
	}
	if limit <= 0 {
		limit = 20
	}
	records, err := i.decisions.ListDecisions(ctx, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, err
	}
	out := make([]sessiondto.DecisionRecordOutput, 0, len(records))
	for _, r := range records {
		out = append(out, sessiondto.DecisionRecordOutput{
			SessionID:   r.SessionID,
			ProblemID:   r.Decision.ProblemID,
			ChoiceID:    r.Decision.ChoiceID,
			Signal:      string(r.Decision.Signal),
			TimeToLock:  r.Decision.TimeToLock,
			Forced:      r.Decision.Forced,
			Round:       r.Decision.Round,
			CommittedAt: r.Decision.CommittedAt,
		})
	}
	return out, nil
}

// PreviewSituation asks the configured generator for one situation without
// starting a session. Unlike the controller it does not fall back.
func (i *Interactor) PreviewSituation(ctx context.Context, input sessiondto.OpenInput) (sessiondto.ScenarioOutput, error) {
	if i.generator == nil {
		return sessiondto.ScenarioOutput{}, fmt.Errorf("%w: generator is not configured", apperrors.ErrNotFound)
	}
	scenario, err := i.generator.Situation(ctx, sessionout.SituationRequest{
		Problem:  domain.Problem{ID: input.ProblemID, Title: input.Title, Context: input.Context},
		Profile:  domain.Profile{UserID: input.UserID, Archetype: domain.ParseArchetype(input.Archetype)},
		Round:    1,
		Language: i.language,
	})
	if err != nil {
		return sessiondto.ScenarioOutput{}, err
	}
	return sessiondto.ScenarioOutput{Situation: scenario.Situation, Choices: mapChoices(scenario.Choices), Question: scenario.Question}, nil
}
