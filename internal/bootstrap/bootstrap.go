package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	hclog "github.com/hashicorp/go-hclog"

	sessioninadapter "arena/internal/modules/session/adapter/in"
	sessionoutadapter "arena/internal/modules/session/adapter/out"
	"arena/internal/modules/session/domain"
	sessiondto "arena/internal/modules/session/dto"
	sessionout "arena/internal/modules/session/port/out"
	sessionservice "arena/internal/modules/session/service"
	sessionusecase "arena/internal/modules/session/usecase"
	"arena/internal/platform/clock"
	"arena/internal/platform/config"
	"arena/internal/platform/id"
	"arena/internal/platform/logging"
	uiapp "arena/internal/ui/app"
)

type App struct {
	SessionCLI sessioninadapter.CLIHandler
	SessionTUI sessioninadapter.TUIHandler

	cfg       config.Config
	logger    hclog.Logger
	generator sessionout.ContentGenerator
	hub       *sessionoutadapter.WebSocketHub
	closers   []func() error
}

// New wires the arena from cfg. Logs go to logOut; pass nil to write them to
// arena.log under the data directory, which keeps the alt screen clean.
func New(ctx context.Context, cfg config.Config, logOut io.Writer) (*App, error) {
	app := &App{cfg: cfg}
	if logOut == nil {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(cfg.DataDir, "arena.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		app.closers = append(app.closers, f.Close)
		logOut = f
	}
	app.logger = logging.New("arena", cfg.LogLevel, logOut)

	clk := clock.SystemClock{}
	ids := id.UUID{}
	snapshots := sessionoutadapter.NewFileSnapshotStore(cfg.SnapshotDir)
	reports := sessionoutadapter.NewVaultReportStore(cfg.ReportDir)

	primary, err := app.newGenerator()
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.generator = primary
	generator := primary
	if cfg.Generator.Kind != "static" {
		generator = sessionoutadapter.NewFallbackGenerator(primary, sessionoutadapter.NewStaticGenerator(), app.logger)
	}

	store := app.newDecisionStore(ctx)

	var advisor sessionout.InterventionAdvisor
	if cfg.Advisor.BaseURL != "" {
		advisor = sessionoutadapter.NewHTTPAdvisor(cfg.Advisor.BaseURL, cfg.Advisor.Timeout)
	}
	if cfg.EventsAddr != "" {
		app.hub = sessionoutadapter.NewWebSocketHub(app.logger)
	}

	settings := Settings(cfg)
	factory := func(sink sessionout.EventSink) *sessionservice.Controller {
		sinks := sessionoutadapter.MultiSink{sink}
		if app.hub != nil {
			sinks = append(sinks, app.hub)
		}
		return sessionservice.NewController(clk, snapshots, generator, settings,
			sessionservice.WithIDs(ids),
			sessionservice.WithRecorder(store),
			sessionservice.WithAdvisor(advisor),
			sessionservice.WithReports(reports),
			sessionservice.WithSink(sinks),
			sessionservice.WithLogger(app.logger),
		)
	}
	// Previews talk to the primary generator so a check surfaces its failures.
	sessionUC := sessionusecase.NewInteractor(clk, snapshots, store, primary, factory, cfg.Timing.SnapshotStaleness, app.logger)

	app.SessionCLI = sessioninadapter.NewCLIHandler(sessionUC)
	app.SessionTUI = sessioninadapter.NewTUIHandler(sessionUC)
	return app, nil
}

// Settings converts the loaded configuration into controller settings.
func Settings(cfg config.Config) sessionservice.Settings {
	return sessionservice.Settings{
		Budgets: domain.Budgets{
			Situation:   cfg.Screens.Situation,
			Choice:      cfg.Screens.Choice,
			Consequence: cfg.Screens.Consequence,
			Insight:     cfg.Screens.Insight,
			Reflection:  cfg.Screens.Reflection,
		},
		Pressure: domain.PressureThresholds{
			UrgentAfter:   cfg.Pressure.UrgentAfter,
			CriticalAfter: cfg.Pressure.CriticalAfter,
		},
		Escalation: domain.EscalationPolicy{
			WarningDismiss: cfg.Escalation.WarningDismiss,
			Countdown:      cfg.Escalation.Countdown,
			MinInputChars:  cfg.Escalation.MinInputChars,
		},
		DisplayTick:  cfg.Timing.DisplayTick,
		IdleCheck:    cfg.Timing.IdleCheck,
		PollInterval: cfg.Timing.PollInterval,
		CallTimeout:  cfg.Timing.CallTimeout,
		MinRounds:    cfg.Rounds.Min,
		MaxRounds:    cfg.Rounds.Max,
		Language:     cfg.Language,
	}
}

func (a *App) newGenerator() (sessionout.ContentGenerator, error) {
	gc := a.cfg.Generator
	switch gc.Kind {
	case "openai":
		gen, err := sessionoutadapter.NewOpenAIGenerator(sessionoutadapter.OpenAIConfig{
			BaseURL:    gc.BaseURL,
			APIKey:     gc.APIKey,
			Model:      gc.Model,
			MaxRetries: gc.MaxRetries,
			Timeout:    gc.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("new openai generator: %w", err)
		}
		return gen, nil
	case "plugin":
		gen, err := sessionoutadapter.NewPluginGenerator(gc.PluginBinary, a.logger)
		if err != nil {
			return nil, fmt.Errorf("new plugin generator: %w", err)
		}
		a.closers = append(a.closers, gen.Close)
		return gen, nil
	default:
		return sessionoutadapter.NewStaticGenerator(), nil
	}
}

// newDecisionStore opens the configured store. A store that cannot be opened
// only costs adaptive timing, so the arena runs without one.
func (a *App) newDecisionStore(ctx context.Context) sessionout.DecisionStore {
	dc := a.cfg.Decisions
	var (
		store sessionout.DecisionStore
		err   error
	)
	switch dc.Driver {
	case "postgres":
		var pg *sessionoutadapter.PostgresDecisionStore
		pg, err = sessionoutadapter.NewPostgresDecisionStore(ctx, dc.DSN)
		if err == nil {
			store = pg
		}
	default:
		var lite *sessionoutadapter.SQLiteDecisionStore
		lite, err = sessionoutadapter.NewSQLiteDecisionStore(dc.DSN, a.logger)
		if err == nil {
			store = lite
		}
	}
	if err != nil {
		a.logger.Warn("decision store unavailable, timings will not adapt", "driver", dc.Driver, "error", err)
		return nil
	}
	a.closers = append(a.closers, store.Close)
	return store
}

// DescribeGenerator names the active content generator. Plugins report their
// own name and version.
func (a *App) DescribeGenerator(ctx context.Context) (string, error) {
	if d, ok := a.generator.(interface {
		Describe(context.Context) (string, error)
	}); ok {
		return d.Describe(ctx)
	}
	return a.cfg.Generator.Kind, nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// RunPlay opens the session for input and drives it from the terminal until
// the user quits. The event stream is served alongside when configured.
func RunPlay(ctx context.Context, app *App, input sessiondto.OpenInput) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session, err := app.SessionTUI.Open(ctx, input)
	if err != nil {
		return err
	}
	if app.hub != nil {
		go func() {
			if err := app.hub.ListenAndServe(ctx, app.cfg.EventsAddr); err != nil {
				app.logger.Error("event stream stopped", "addr", app.cfg.EventsAddr, "error", err)
			}
		}()
	}

	program := tea.NewProgram(uiapp.NewModel(session), tea.WithAltScreen())
	_, runErr := program.Run()
	// The model normally ends the session itself; this covers a killed program.
	_ = session.Exit()
	return runErr
}
