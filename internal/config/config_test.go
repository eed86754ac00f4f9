package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/roster"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvDiscordToken, EnvDatabase, EnvMetricsAddr, EnvScheduleCron} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rollcall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "rollcall.db", cfg.Database)
	assert.Equal(t, engine.DefaultTitle, cfg.Display.Title)
	assert.Equal(t, roster.OrderDefinition, cfg.Display.GroupOrder)
	assert.Equal(t, engine.DefaultHistoryLimit, cfg.Reconcile.HistoryLimit)
	assert.Equal(t, engine.DefaultMaxSteps, cfg.Reconcile.MaxStepsPerBlock)
	assert.Equal(t, engine.DefaultTimeout, cfg.Reconcile.Timeout.Duration())
	assert.Equal(t, 1, cfg.Reconcile.WriteBurst)
	assert.Empty(t, cfg.Schedule.Cron)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database: /var/lib/rollcall/roster.db
discord:
  token: file-token
  guild_id: "123"
display:
  title: GUILD ROSTER
  banner_image: banner.png
  group_order: priority
reconcile:
  history_limit: 200
  max_steps_per_block: 50
  timeout: 90s
  writes_per_second: 2.5
  write_burst: 3
schedule:
  cron: "*/15 * * * *"
metrics:
  listen: ":9090"
log:
  level: debug
  format: json
`)

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/rollcall/roster.db", cfg.Database)
	assert.Equal(t, "file-token", cfg.Discord.Token)
	assert.Equal(t, "123", cfg.Discord.GuildID)
	assert.Equal(t, "GUILD ROSTER", cfg.Display.Title)
	assert.Equal(t, "banner.png", cfg.Display.BannerImage)
	assert.Equal(t, roster.OrderPriority, cfg.Display.GroupOrder)
	assert.Equal(t, 200, cfg.Reconcile.HistoryLimit)
	assert.Equal(t, 50, cfg.Reconcile.MaxStepsPerBlock)
	assert.Equal(t, 90*time.Second, cfg.Reconcile.Timeout.Duration())
	assert.InDelta(t, 2.5, cfg.Reconcile.WritesPerSecond, 0.001)
	assert.Equal(t, 3, cfg.Reconcile.WriteBurst)
	assert.Equal(t, "*/15 * * * *", cfg.Schedule.Cron)
	assert.Equal(t, ":9090", cfg.Metrics.Listen)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_NumericDurationIsSeconds(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "reconcile:\n  timeout: 30\n")

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Reconcile.Timeout.Duration())
}

func TestLoad_MissingOptionalFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, "rollcall.db", cfg.Database)
}

func TestLoad_MissingRequiredFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_EmptyFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, ""), true)
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultTitle, cfg.Display.Title)
}

func TestLoad_UnknownField(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, "display:\n  colour: red\n"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDiscordToken, "env-token")
	t.Setenv(EnvDatabase, "env.db")
	t.Setenv(EnvMetricsAddr, "")
	t.Setenv(EnvScheduleCron, "@hourly")

	path := writeConfig(t, `
database: file.db
discord:
  token: file-token
metrics:
  listen: ":9090"
`)

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Discord.Token)
	assert.Equal(t, "env.db", cfg.Database)
	assert.Empty(t, cfg.Metrics.Listen, "set-but-empty env disables metrics")
	assert.Equal(t, "@hourly", cfg.Schedule.Cron)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(EnvDiscordToken+"=dotenv-token\n"), 0644))

	require.NoError(t, LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv(EnvDiscordToken) })

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-token", cfg.Discord.Token)
}

func TestLoadDotEnv_MissingFileIgnored(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad group order", func(c *Config) { c.Display.GroupOrder = "alphabetical" }, "display.group_order"},
		{"negative history", func(c *Config) { c.Reconcile.HistoryLimit = -1 }, "reconcile.history_limit"},
		{"negative steps", func(c *Config) { c.Reconcile.MaxStepsPerBlock = -5 }, "reconcile.max_steps_per_block"},
		{"negative timeout", func(c *Config) { c.Reconcile.Timeout = Duration(-time.Second) }, "reconcile.timeout"},
		{"negative rate", func(c *Config) { c.Reconcile.WritesPerSecond = -1 }, "reconcile.writes_per_second"},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every tuesday" }, "schedule.cron"},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Display.GroupOrder = "x"
	cfg.Schedule.Cron = "nope"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "display.group_order")
	assert.Contains(t, err.Error(), "schedule.cron")
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte("display:\n  title: T\n"))
	require.NoError(t, err)
	assert.Equal(t, "T", cfg.Display.Title)

	_, err = Parse([]byte("schedule:\n  cron: bogus\n"))
	assert.Error(t, err)
}

func TestRequireToken(t *testing.T) {
	cfg := Default()
	err := cfg.RequireToken()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvDiscordToken)

	cfg.Discord.Token = "t"
	assert.NoError(t, cfg.RequireToken())
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.EngineOptions(), 5)
}
