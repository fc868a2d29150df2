package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"arena/internal/bootstrap"
	sessiondto "arena/internal/modules/session/dto"
	"arena/internal/platform/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	dataDir  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "arena",
		Short:         "Timed decision arena",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data", ".arena", "data directory for snapshots, reports and the decision log")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override: trace|debug|info|warn|error")

	root.AddCommand(newPlayCmd(flags))
	root.AddCommand(newSnapshotCmd(flags))
	root.AddCommand(newDecisionsCmd(flags))
	root.AddCommand(newGeneratorCmd(flags))
	return root
}

func loadConfig(flags *rootFlags) (config.Config, error) {
	cfg, err := config.New(flags.dataDir)
	if err != nil {
		return config.Config{}, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, nil
}

// loadApp builds the arena. Commands that print to the terminal log to
// stderr; play logs to a file.
func loadApp(ctx context.Context, cfg config.Config, toStderr bool) (*bootstrap.App, error) {
	if toStderr {
		return bootstrap.New(ctx, cfg, os.Stderr)
	}
	return bootstrap.New(ctx, cfg, nil)
}

func newPlayCmd(flags *rootFlags) *cobra.Command {
	var input sessiondto.OpenInput
	var eventsAddr string

	cmd := &cobra.Command{
		Use:   "play --problem <id>",
		Short: "Resume or start the arena for a problem",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(input.ProblemID) == "" {
				return fmt.Errorf("--problem is required")
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if eventsAddr != "" {
				cfg.EventsAddr = eventsAddr
			}
			app, err := loadApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			return bootstrap.RunPlay(cmd.Context(), app, input)
		},
	}
	cmd.Flags().StringVar(&input.ProblemID, "problem", "", "problem id")
	cmd.Flags().StringVar(&input.Title, "title", "", "problem title")
	cmd.Flags().StringVar(&input.Context, "context", "", "background for the problem")
	cmd.Flags().StringVar(&input.UserID, "user", "", "user id for the decision log")
	cmd.Flags().StringVar(&input.Archetype, "profile", "", "profile archetype: analyst|strategist|diplomat|explorer|maverick")
	cmd.Flags().StringVar(&eventsAddr, "events-addr", "", "serve session events over websocket at this address")
	return cmd
}

func newSnapshotCmd(flags *rootFlags) *cobra.Command {
	snapshot := &cobra.Command{Use: "snapshot", Short: "Inspect saved sessions"}

	var problemID string
	show := &cobra.Command{
		Use:   "show --problem <id>",
		Short: "Show the saved session for a problem",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			app, err := loadApp(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			out, err := app.SessionCLI.ShowSnapshot(cmd.Context(), problemID)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "problem: %s\nsession: %s\nscreen: %s (round %d)\nremaining: %s\ndecisions: %d\nsaved: %s\n",
				out.Key, out.SessionID, out.Screen, out.Round, out.Remaining.Round(time.Second), out.Decisions, out.SavedAt.Format(time.RFC3339))
			if out.Discarded != "" {
				_, _ = fmt.Fprintf(w, "will not resume: %s\n", out.Discarded)
			}
			return nil
		},
	}
	show.Flags().StringVar(&problemID, "problem", "", "problem id")

	clearCmd := &cobra.Command{
		Use:   "clear --problem <id>",
		Short: "Discard the saved session for a problem",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			app, err := loadApp(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			if err := app.SessionCLI.ClearSnapshot(cmd.Context(), problemID); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", problemID)
			return nil
		},
	}
	clearCmd.Flags().StringVar(&problemID, "problem", "", "problem id")

	snapshot.AddCommand(show, clearCmd)
	return snapshot
}

func newDecisionsCmd(flags *rootFlags) *cobra.Command {
	var userID string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "List recorded decisions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			app, err := loadApp(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			records, err := app.SessionCLI.ListDecisions(cmd.Context(), userID, limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			if len(records) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no decisions")
				return nil
			}
			for _, r := range records {
				forced := ""
				if r.Forced {
					forced = "\tforced"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tround %d\t%s\t%s\t%s%s\n",
					r.CommittedAt.Format(time.RFC3339), r.ProblemID, r.Round, r.ChoiceID, r.Signal, r.TimeToLock.Round(100*time.Millisecond), forced)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "only decisions by this user")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of decisions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newGeneratorCmd(flags *rootFlags) *cobra.Command {
	generator := &cobra.Command{Use: "generator", Short: "Content generator operations"}

	var title, background string
	check := &cobra.Command{
		Use:   "check",
		Short: "Generate one situation with the configured generator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			app, err := loadApp(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timing.CallTimeout)
			defer cancel()
			name, err := app.DescribeGenerator(ctx)
			if err != nil {
				return err
			}
			out, err := app.SessionCLI.PreviewSituation(ctx, "check", title, background)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "generator: %s\n\n%s\n\n", name, out.Situation)
			for i, c := range out.Choices {
				_, _ = fmt.Fprintf(w, "%d. %s (%s)\n", i+1, c.Label, c.Signal)
			}
			_, _ = fmt.Fprintf(w, "\n%s\n", out.Question)
			return nil
		},
	}
	check.Flags().StringVar(&title, "title", "A product launch", "problem title to generate for")
	check.Flags().StringVar(&background, "context", "", "background for the problem")

	generator.AddCommand(check)
	return generator
}
