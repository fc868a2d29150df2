package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"arena/internal/modules/session/domain"
	sessionout "arena/internal/modules/session/port/out"
	"arena/internal/platform/clock"
	apperrors "arena/internal/platform/errors"
	"arena/internal/platform/id"
	"arena/internal/platform/logging"
)

type Option func(*Controller)

func WithRecorder(r sessionout.DecisionRecorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithAdvisor(a sessionout.InterventionAdvisor) Option {
	return func(c *Controller) { c.advisor = a }
}

func WithReports(r sessionout.ReportStore) Option {
	return func(c *Controller) { c.reports = r }
}

func WithSink(s sessionout.EventSink) Option {
	return func(c *Controller) {
		if s != nil {
			c.sink = s
		}
	}
}

func WithLogger(l hclog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func WithIDs(g id.Generator) Option {
	return func(c *Controller) {
		if g != nil {
			c.ids = g
		}
	}
}

// WithRunner replaces the goroutine used for collaborator calls. Tests pass a
// synchronous runner.
func WithRunner(run func(func())) Option {
	return func(c *Controller) {
		if run != nil {
			c.run = run
		}
	}
}

// Controller owns one live session. Every mutation happens under mu; events,
// snapshot writes and collaborator calls are queued and flushed after unlock.
type Controller struct {
	mu sync.Mutex

	clock     clock.Clock
	ids       id.Generator
	settings  Settings
	snapshots sessionout.SnapshotStore
	generator sessionout.ContentGenerator
	recorder  sessionout.DecisionRecorder
	advisor   sessionout.InterventionAdvisor
	reports   sessionout.ReportStore
	sink      sessionout.EventSink
	logger    hclog.Logger
	run       func(func())

	session  *domain.Session
	seq      *domain.Sequencer
	ladder   domain.Ladder
	activity domain.PressureTracker
	pressure domain.Pressure
	policy   domain.EscalationPolicy
	timedOut bool
	restored bool

	tasks    map[string]clock.Task
	pending  pending
	version  uint64
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	finished bool
	disposed bool

	saveMu  sync.Mutex
	written uint64
}

type pending struct {
	events   []domain.Event
	jobs     []func()
	snapshot *domain.Snapshot
	clearKey string
	version  uint64
}

type discardSink struct{}

func (discardSink) Publish(domain.Event) {}

var errEmptyContent = errors.New("generator returned empty content")

func NewController(clk clock.Clock, snapshots sessionout.SnapshotStore, generator sessionout.ContentGenerator, settings Settings, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		clock:     clk,
		ids:       id.UUID{},
		settings:  settings,
		snapshots: snapshots,
		generator: generator,
		sink:      discardSink{},
		run:       func(fn func()) { go fn() },
		tasks:     map[string]clock.Task{},
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger).Named("controller")
	return c
}

// Begin creates a fresh session for problem. Timers start with Start.
func (c *Controller) Begin(problem domain.Problem, profile domain.Profile) error {
	if strings.TrimSpace(problem.ID) == "" {
		return fmt.Errorf("%w: problem id is required", apperrors.ErrInvalidInput)
	}
	return c.do(func(now time.Time) error {
		if c.session != nil {
			return fmt.Errorf("%w: session already running", apperrors.ErrInvalidInput)
		}
		sessionID := c.ids.New()
		rounds := domain.TargetRounds(domain.SeedFromString(sessionID), c.settings.MinRounds, c.settings.MaxRounds)
		seq, err := domain.NewSequencer(domain.BuildPlan(rounds, c.settings.Budgets), now)
		if err != nil {
			return err
		}
		c.session = domain.NewSession(sessionID, problem, profile, rounds, now)
		c.seq = seq
		c.activity = domain.NewPressureTracker(now)
		c.pressure = domain.PressureCalm
		c.policy = c.settings.Escalation
		if c.policy.Threshold <= 0 {
			c.policy.Threshold = domain.IdleThreshold(profile)
		}
		c.logger.Info("session started", "session", sessionID, "problem", problem.ID, "rounds", rounds, "threshold", c.policy.Threshold)
		c.enterScreen(now)
		return nil
	})
}

// Restore seeds every component from snap. Nothing is scheduled until Start,
// and the restored screen start is kept so no time is granted back.
func (c *Controller) Restore(snap domain.Snapshot) error {
	return c.do(func(now time.Time) error {
		if c.session != nil {
			return fmt.Errorf("%w: session already running", apperrors.ErrInvalidInput)
		}
		seq, err := domain.RestoreSequencer(snap.Screens, snap.Index, snap.ScreenStartedAt)
		if err != nil {
			return err
		}
		session := snap.Session.Clone()
		c.session = &session
		c.seq = seq
		c.ladder = snap.Ladder
		c.activity = snap.Activity
		c.policy = c.settings.Escalation
		c.policy.Threshold = snap.Threshold
		if c.policy.Threshold <= 0 {
			c.policy.Threshold = domain.IdleThreshold(session.Profile)
		}
		c.pressure = c.activity.State(now, c.settings.Pressure)
		c.restored = true
		c.logger.Info("session restored", "session", session.ID, "screen", seq.Current().ID, "remaining", seq.TimeRemaining(now))

		if c.session.Loading {
			c.resumeContent()
		}
		if c.ladder.Evolving {
			c.startEvolution()
		}
		return nil
	})
}

// Start arms the periodic tasks. It is a no-op once started.
func (c *Controller) Start() error {
	return c.do(func(now time.Time) error {
		if c.session == nil {
			return fmt.Errorf("%w: no session", apperrors.ErrNotFound)
		}
		if c.started || c.finished {
			return nil
		}
		c.started = true
		c.tasks[taskDisplay] = c.clock.Every(c.settings.DisplayTick, c.onDisplayTick)
		c.tasks[taskIdle] = c.clock.Every(c.settings.IdleCheck, c.onIdleCheck)
		c.armPoll()
		return nil
	})
}

func (c *Controller) View() (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return View{}, fmt.Errorf("%w: no session", apperrors.ErrNotFound)
	}
	now := c.clock.Now()
	return View{
		Session:      c.session.Clone(),
		Screen:       c.seq.Current(),
		Index:        c.seq.Index(),
		Len:          c.seq.Len(),
		Remaining:    c.seq.TimeRemaining(now),
		Progress:     c.seq.ProgressFraction(),
		Pressure:     c.pressure,
		Intervention: c.ladder.Active,
		Escalations:  c.ladder.Count,
		Evolving:     c.ladder.Evolving,
		Countdown:    c.ladder.Active.Remaining(now),
		Threshold:    c.policy.Threshold,
		Complete:     c.finished,
		Restored:     c.restored,
		Disposed:     c.disposed,
	}, nil
}

func (c *Controller) Snapshot() (domain.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return domain.Snapshot{}, fmt.Errorf("%w: no session", apperrors.ErrNotFound)
	}
	return c.snapshotLocked(c.clock.Now()), nil
}

// Continue advances past an informational screen.
func (c *Controller) Continue() error {
	return c.doActive(func(now time.Time) error {
		cur := c.seq.Current()
		switch {
		case cur.Terminal:
			return nil
		case cur.ID == domain.ScreenForcedChoice && !c.session.Locked:
			return apperrors.ErrNotLocked
		case cur.ID == domain.ScreenReflection:
			return fmt.Errorf("%w: reflection needs a submission", apperrors.ErrWrongScreen)
		}
		c.advance(now)
		return nil
	})
}

// GoTo jumps forward within the current round.
func (c *Controller) GoTo(screen domain.ScreenID) error {
	return c.doActive(func(now time.Time) error {
		if c.seq.Current().ID == domain.ScreenForcedChoice && !c.session.Locked {
			return apperrors.ErrNotLocked
		}
		if err := c.seq.GoTo(screen, now); err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
		}
		c.enterScreen(now)
		return nil
	})
}

// Input records a keystroke-level change of the draft text.
func (c *Controller) Input(draft string) error {
	return c.doActive(func(now time.Time) error {
		c.session.Draft = draft
		if c.seq.Current().ID == domain.ScreenForcedChoice && c.session.FirstInteractionAt.IsZero() {
			c.session.FirstInteractionAt = now
		}
		c.noteInput(now, len([]rune(strings.TrimSpace(draft))))
		c.queueSave(now)
		return nil
	})
}

func (c *Controller) Select(choiceID string) error {
	return c.doActive(func(now time.Time) error {
		if c.seq.Current().ID != domain.ScreenForcedChoice {
			return apperrors.ErrWrongScreen
		}
		if err := c.session.Select(choiceID, now); err != nil {
			return mapDomainErr(err)
		}
		c.noteInput(now, c.policy.MinInputChars)
		c.queueSave(now)
		return nil
	})
}

func (c *Controller) ChangeMind() error {
	return c.doActive(func(now time.Time) error {
		if c.seq.Current().ID != domain.ScreenForcedChoice {
			return apperrors.ErrWrongScreen
		}
		if err := c.session.ChangeMind(); err != nil {
			return mapDomainErr(err)
		}
		c.noteInput(now, 0)
		c.queueSave(now)
		return nil
	})
}

// Lock commits the selection and moves on, the same way a forced pick does.
func (c *Controller) Lock() error {
	return c.doActive(func(now time.Time) error {
		if c.seq.Current().ID != domain.ScreenForcedChoice {
			return apperrors.ErrWrongScreen
		}
		if err := c.commit(now, false, ""); err != nil {
			return err
		}
		c.advance(now)
		return nil
	})
}

// Submit stores the reflection for the current round.
func (c *Controller) Submit(text string) error {
	return c.doActive(func(now time.Time) error {
		if c.seq.Current().ID != domain.ScreenReflection {
			return apperrors.ErrWrongScreen
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: reflection is empty", apperrors.ErrInvalidInput)
		}
		c.session.AddReflection(text)
		c.clearIntervention(now, "submitted")
		c.activity.Submit(now)
		c.refreshPressure(now)
		c.advance(now)
		return nil
	})
}

func (c *Controller) DismissWarning() error {
	return c.doActive(func(now time.Time) error {
		tier := c.ladder.Active.Tier
		if !c.ladder.DismissWarning(now) {
			return apperrors.ErrNoIntervention
		}
		c.emit(domain.InterventionCleared{SessionID: c.session.ID, Tier: tier, Reason: "dismissed", Time: now})
		c.queueSave(now)
		return nil
	})
}

// Comprehension answers the comprehension check.
func (c *Controller) Comprehension(understood bool) error {
	return c.doActive(func(now time.Time) error {
		if c.ladder.Active.Tier != domain.TierComprehension {
			return apperrors.ErrNoIntervention
		}
		if understood {
			next, err := c.ladder.Understand(now, c.policy)
			if err != nil {
				return err
			}
			c.emit(domain.InterventionFired{SessionID: c.session.ID, Intervention: next, Count: c.ladder.Count, Time: now})
			c.queueSave(now)
			return nil
		}
		if err := c.ladder.NotUnderstand(); err != nil {
			return err
		}
		c.emit(domain.InterventionCleared{SessionID: c.session.ID, Tier: domain.TierComprehension, Reason: "not_understood", Time: now})
		c.startEvolution()
		c.queueSave(now)
		return nil
	})
}

// Exit saves the snapshot for a later resume and disposes the controller.
func (c *Controller) Exit() error {
	return c.do(func(now time.Time) error {
		if c.session != nil {
			c.queueSave(now)
			c.logger.Info("session exited", "session", c.session.ID, "screen", c.seq.Current().ID)
		}
		c.dispose()
		return nil
	})
}

// Abandon drops the snapshot and disposes the controller.
func (c *Controller) Abandon() error {
	return c.do(func(now time.Time) error {
		if c.session != nil {
			c.queueClear()
			c.logger.Info("session abandoned", "session", c.session.ID)
		}
		c.dispose()
		return nil
	})
}

func (c *Controller) do(fn func(now time.Time) error) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return apperrors.ErrSessionClosed
	}
	err := fn(c.clock.Now())
	p := c.pending
	c.pending = pending{}
	c.mu.Unlock()
	c.flush(p)
	return err
}

func (c *Controller) doActive(fn func(now time.Time) error) error {
	return c.do(func(now time.Time) error {
		if c.session == nil {
			return fmt.Errorf("%w: no session", apperrors.ErrNotFound)
		}
		if c.finished {
			return apperrors.ErrSessionClosed
		}
		return fn(now)
	})
}

// apply runs a collaborator result back on the session. Results for a
// disposed controller are dropped.
func (c *Controller) apply(fn func(now time.Time)) {
	_ = c.do(func(now time.Time) error {
		if c.session == nil || c.finished {
			return nil
		}
		fn(now)
		return nil
	})
}

func (c *Controller) flush(p pending) {
	if p.version > 0 {
		c.persist(p)
	}
	for _, event := range p.events {
		c.sink.Publish(event)
	}
	for _, job := range p.jobs {
		c.run(job)
	}
}

func (c *Controller) persist(p pending) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if p.version <= c.written {
		return
	}
	c.written = p.version
	ctx := context.Background()
	if p.clearKey != "" {
		if err := c.snapshots.Clear(ctx, p.clearKey); err != nil && !errors.Is(err, apperrors.ErrNoSnapshot) {
			c.logger.Warn("snapshot clear failed", "key", p.clearKey, "error", err)
		}
		return
	}
	if p.snapshot != nil {
		if err := c.snapshots.Save(ctx, *p.snapshot); err != nil {
			c.logger.Warn("snapshot save failed, will retry on next change", "key", p.snapshot.Key, "error", err)
		}
	}
}

func (c *Controller) emit(event domain.Event) {
	c.pending.events = append(c.pending.events, event)
}

func (c *Controller) spawn(job func(ctx context.Context)) {
	parent := c.ctx
	timeout := c.settings.callTimeout()
	c.pending.jobs = append(c.pending.jobs, func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		job(ctx)
	})
}

func (c *Controller) queueSave(now time.Time) {
	if c.finished || c.session == nil {
		return
	}
	snap := c.snapshotLocked(now)
	c.version++
	c.pending.snapshot = &snap
	c.pending.clearKey = ""
	c.pending.version = c.version
}

func (c *Controller) queueClear() {
	c.version++
	c.pending.snapshot = nil
	c.pending.clearKey = c.session.Problem.ID
	c.pending.version = c.version
}

func (c *Controller) snapshotLocked(now time.Time) domain.Snapshot {
	return domain.Snapshot{
		Schema:          domain.SchemaVersion,
		Key:             c.session.Problem.ID,
		Screens:         c.seq.Screens(),
		Index:           c.seq.Index(),
		ScreenStartedAt: c.seq.StartedAt(),
		Session:         c.session.Clone(),
		Ladder:          c.ladder,
		Activity:        c.activity,
		Threshold:       c.policy.Threshold,
		SavedAt:         now,
	}
}

func (c *Controller) dispose() {
	c.stopTasks()
	c.cancel()
	c.disposed = true
}

func (c *Controller) stopTasks() {
	for name, task := range c.tasks {
		task.Stop()
		delete(c.tasks, name)
	}
}

func mapDomainErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrAlreadyLocked):
		return fmt.Errorf("%w: %w", apperrors.ErrLocked, err)
	case errors.Is(err, domain.ErrNoSelection):
		return fmt.Errorf("%w: %w", apperrors.ErrNoSelection, err)
	case errors.Is(err, domain.ErrUnknownChoice):
		return fmt.Errorf("%w: %w", apperrors.ErrUnknownChoice, err)
	case errors.Is(err, domain.ErrChangeOfMindUnusable):
		return fmt.Errorf("%w: %w", apperrors.ErrChangeOfMindUnavailable, err)
	default:
		return err
	}
}
