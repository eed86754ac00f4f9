// Package config loads the rollcall configuration file.
//
// Values are read from a YAML file, then overridden by environment variables
// (optionally seeded from a .env file), then defaulted and validated.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/logging"
	"github.com/roach88/rollcall/internal/roster"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "rollcall.yaml"

// Environment overrides.
const (
	EnvDiscordToken = "ROLLCALL_DISCORD_TOKEN"
	EnvDatabase     = "ROLLCALL_DATABASE"
	EnvMetricsAddr  = "ROLLCALL_METRICS_ADDR"
	EnvScheduleCron = "ROLLCALL_SCHEDULE_CRON"
)

const (
	defaultDatabase   = "rollcall.db"
	defaultWriteBurst = 1
)

// Config is the full rollcall configuration.
type Config struct {
	Database  string          `yaml:"database"`
	Discord   DiscordConfig   `yaml:"discord"`
	Display   DisplayConfig   `yaml:"display"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// DiscordConfig holds bot credentials.
type DiscordConfig struct {
	Token string `yaml:"token"`

	// GuildID scopes slash command registration to one guild. Empty
	// registers global commands.
	GuildID string `yaml:"guild_id"`
}

// DisplayConfig controls how the roster is rendered.
type DisplayConfig struct {
	Title string `yaml:"title"`
	// BannerImage is uploaded under its base name with characters outside
	// [A-Za-z0-9._-] replaced by '_'.
	BannerImage string            `yaml:"banner_image"`
	GroupOrder  roster.GroupOrder `yaml:"group_order"`
}

// ReconcileConfig bounds a reconciliation pass.
type ReconcileConfig struct {
	HistoryLimit     int      `yaml:"history_limit"`
	MaxStepsPerBlock int      `yaml:"max_steps_per_block"`
	Timeout          Duration `yaml:"timeout"`
	WritesPerSecond  float64  `yaml:"writes_per_second"`
	WriteBurst       int      `yaml:"write_burst"`
}

// ScheduleConfig drives periodic resyncs. An empty Cron disables them.
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// LogConfig mirrors the logging flags.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a time.Duration that decodes from strings like "90s" or from
// plain numbers, read as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = 0
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the config file at path, applies env overrides and defaults,
// and validates the result.
//
// A missing file is not an error when required is false; the defaults and
// environment are used instead.
func Load(path string, required bool) (*Config, error) {
	cfg := &Config{}

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("config file not found: %s", path)
	default:
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a config document without touching the environment.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := decode(bytes.NewReader(data), cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadDotEnv loads variables from a .env file into the environment.
// Variables already set are kept. A missing file is ignored.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDiscordToken); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database = v
	}
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok {
		c.Metrics.Listen = v
	}
	if v, ok := os.LookupEnv(EnvScheduleCron); ok {
		c.Schedule.Cron = v
	}
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.Display.Title == "" {
		c.Display.Title = engine.DefaultTitle
	}
	if c.Display.GroupOrder == "" {
		c.Display.GroupOrder = roster.OrderDefinition
	}
	if c.Reconcile.HistoryLimit == 0 {
		c.Reconcile.HistoryLimit = engine.DefaultHistoryLimit
	}
	if c.Reconcile.MaxStepsPerBlock == 0 {
		c.Reconcile.MaxStepsPerBlock = engine.DefaultMaxSteps
	}
	if c.Reconcile.Timeout == 0 {
		c.Reconcile.Timeout = Duration(engine.DefaultTimeout)
	}
	if c.Reconcile.WriteBurst == 0 {
		c.Reconcile.WriteBurst = defaultWriteBurst
	}
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	var errs []error

	if !c.Display.GroupOrder.Valid() {
		errs = append(errs, fmt.Errorf("display.group_order: must be %q or %q, got %q",
			roster.OrderDefinition, roster.OrderPriority, c.Display.GroupOrder))
	}
	if c.Reconcile.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("reconcile.history_limit: must be positive, got %d", c.Reconcile.HistoryLimit))
	}
	if c.Reconcile.MaxStepsPerBlock < 0 {
		errs = append(errs, fmt.Errorf("reconcile.max_steps_per_block: must be positive, got %d", c.Reconcile.MaxStepsPerBlock))
	}
	if c.Reconcile.Timeout < 0 {
		errs = append(errs, fmt.Errorf("reconcile.timeout: must not be negative"))
	}
	if c.Reconcile.WritesPerSecond < 0 {
		errs = append(errs, fmt.Errorf("reconcile.writes_per_second: must not be negative"))
	}
	if c.Reconcile.WriteBurst < 0 {
		errs = append(errs, fmt.Errorf("reconcile.write_burst: must not be negative"))
	}
	if c.Schedule.Cron != "" && !gronx.New().IsValid(c.Schedule.Cron) {
		errs = append(errs, fmt.Errorf("schedule.cron: not a valid cron expression: %q", c.Schedule.Cron))
	}
	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format: must be %q or %q, got %q",
			logging.FormatText, logging.FormatJSON, c.Log.Format))
	}

	return errors.Join(errs...)
}

// EngineOptions translates the config into engine options.
func (c *Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithLayout(engine.Layout{
			Title:       c.Display.Title,
			BannerImage: c.Display.BannerImage,
		}),
		engine.WithTimeout(c.Reconcile.Timeout.Duration()),
		engine.WithHistoryLimit(c.Reconcile.HistoryLimit),
		engine.WithMaxSteps(c.Reconcile.MaxStepsPerBlock),
		engine.WithWriteRate(c.Reconcile.WritesPerSecond, c.Reconcile.WriteBurst),
	}
}

// RequireToken returns an error when no Discord token is configured.
func (c *Config) RequireToken() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token is empty: set %s or discord.token in config", EnvDiscordToken)
	}
	return nil
}
