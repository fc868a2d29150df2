package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const FileName = "arena.yaml"

type Config struct {
	DataDir     string `yaml:"-"`
	SnapshotDir string `yaml:"-"`
	ReportDir   string `yaml:"-"`

	LogLevel   string           `yaml:"log_level"`
	Language   string           `yaml:"language"`
	EventsAddr string           `yaml:"events_addr"`
	Timing     TimingConfig     `yaml:"timing"`
	Screens    ScreenConfig     `yaml:"screens"`
	Pressure   PressureConfig   `yaml:"pressure"`
	Escalation EscalationConfig `yaml:"escalation"`
	Rounds     RoundsConfig     `yaml:"rounds"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Advisor    AdvisorConfig    `yaml:"advisor"`
	Decisions  DecisionsConfig  `yaml:"decisions"`
}

type TimingConfig struct {
	DisplayTick       time.Duration `yaml:"display_tick"`
	IdleCheck         time.Duration `yaml:"idle_check"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	SnapshotStaleness time.Duration `yaml:"snapshot_staleness"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
}

type ScreenConfig struct {
	Situation   time.Duration `yaml:"situation"`
	Choice      time.Duration `yaml:"choice"`
	Consequence time.Duration `yaml:"consequence"`
	Insight     time.Duration `yaml:"insight"`
	Reflection  time.Duration `yaml:"reflection"`
}

type PressureConfig struct {
	UrgentAfter   time.Duration `yaml:"urgent_after"`
	CriticalAfter time.Duration `yaml:"critical_after"`
}

type EscalationConfig struct {
	WarningDismiss time.Duration `yaml:"warning_dismiss"`
	Countdown      time.Duration `yaml:"countdown"`
	MinInputChars  int           `yaml:"min_input_chars"`
}

type RoundsConfig struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type GeneratorConfig struct {
	// Kind is one of openai, plugin or static.
	Kind         string        `yaml:"kind"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"-"`
	PluginBinary string        `yaml:"plugin_binary"`
	MaxRetries   int           `yaml:"max_retries"`
	Timeout      time.Duration `yaml:"timeout"`
}

type AdvisorConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type DecisionsConfig struct {
	// Driver is sqlite or postgres.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

func Default(dataDir string) Config {
	return Config{
		DataDir:     dataDir,
		SnapshotDir: filepath.Join(dataDir, "snapshots"),
		ReportDir:   filepath.Join(dataDir, "reports"),
		LogLevel:    "info",
		Language:    "en",
		Timing: TimingConfig{
			DisplayTick:       time.Second,
			IdleCheck:         5 * time.Second,
			PollInterval:      2500 * time.Millisecond,
			SnapshotStaleness: 30 * time.Minute,
			CallTimeout:       20 * time.Second,
		},
		Screens: ScreenConfig{
			Situation:   20 * time.Second,
			Choice:      3 * time.Minute,
			Consequence: 20 * time.Second,
			Insight:     20 * time.Second,
			Reflection:  90 * time.Second,
		},
		Pressure: PressureConfig{
			UrgentAfter:   60 * time.Second,
			CriticalAfter: 30 * time.Second,
		},
		Escalation: EscalationConfig{
			WarningDismiss: 5 * time.Second,
			Countdown:      30 * time.Second,
			MinInputChars:  20,
		},
		Rounds:    RoundsConfig{Min: 2, Max: 4},
		Generator: GeneratorConfig{Kind: "static", Model: "gpt-4o-mini", MaxRetries: 2, Timeout: 30 * time.Second},
		Advisor:   AdvisorConfig{Timeout: 2 * time.Second},
		Decisions: DecisionsConfig{Driver: "sqlite"},
	}
}

func New(dataDir string) (Config, error) {
	if strings.TrimSpace(dataDir) == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	return Load(dataDir)
}

// Load layers defaults, the optional YAML file, .env and environment overrides.
func Load(dataDir string) (Config, error) {
	cfg := Default(dataDir)

	raw, err := os.ReadFile(filepath.Join(dataDir, FileName))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", FileName, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read %s: %w", FileName, err)
	}

	_ = godotenv.Load(filepath.Join(dataDir, ".env"))
	applyEnv(&cfg)

	if cfg.Decisions.DSN == "" && cfg.Decisions.Driver == "sqlite" {
		cfg.Decisions.DSN = filepath.Join(dataDir, "arena.db")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ARENA_OPENAI_API_KEY"); v != "" {
		cfg.Generator.APIKey = v
	}
	if v := os.Getenv("ARENA_OPENAI_BASE_URL"); v != "" {
		cfg.Generator.BaseURL = v
	}
	if v := os.Getenv("ARENA_GENERATOR"); v != "" {
		cfg.Generator.Kind = v
	}
	if v := os.Getenv("ARENA_DECISIONS_DSN"); v != "" {
		cfg.Decisions.DSN = v
		if strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://") {
			cfg.Decisions.Driver = "postgres"
		}
	}
	if v := os.Getenv("ARENA_ADVISOR_URL"); v != "" {
		cfg.Advisor.BaseURL = v
	}
	if v := os.Getenv("ARENA_EVENTS_ADDR"); v != "" {
		cfg.EventsAddr = v
	}
	if v := os.Getenv("ARENA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func (c Config) Validate() error {
	durations := map[string]time.Duration{
		"timing.display_tick":        c.Timing.DisplayTick,
		"timing.idle_check":          c.Timing.IdleCheck,
		"timing.poll_interval":       c.Timing.PollInterval,
		"timing.snapshot_staleness":  c.Timing.SnapshotStaleness,
		"screens.situation":          c.Screens.Situation,
		"screens.choice":             c.Screens.Choice,
		"screens.consequence":        c.Screens.Consequence,
		"screens.insight":            c.Screens.Insight,
		"screens.reflection":         c.Screens.Reflection,
		"pressure.urgent_after":      c.Pressure.UrgentAfter,
		"pressure.critical_after":    c.Pressure.CriticalAfter,
		"escalation.warning_dismiss": c.Escalation.WarningDismiss,
		"escalation.countdown":       c.Escalation.Countdown,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Rounds.Min < 1 || c.Rounds.Min > c.Rounds.Max {
		return fmt.Errorf("rounds: need 1 <= min <= max, got %d..%d", c.Rounds.Min, c.Rounds.Max)
	}
	switch c.Generator.Kind {
	case "openai", "plugin", "static":
	default:
		return fmt.Errorf("generator.kind %q is not supported", c.Generator.Kind)
	}
	switch c.Decisions.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("decisions.driver %q is not supported", c.Decisions.Driver)
	}
	return nil
}
