package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	require.Equal(t, 8080, cfg.HTTP.Port)
	require.Equal(t, DriverSQLite, cfg.Database.Driver)
	require.Equal(t, 0.7, cfg.NLU.Threshold)
	require.Equal(t, 0.5, cfg.NLU.FallbackConfidence)
	require.Equal(t, 10, cfg.NLU.HistorySize)
	require.Equal(t, 2*time.Second, cfg.Dispatch.SaveTimeout)
	require.Equal(t, "commands.completed", cfg.Queue.Subject)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := writeConfig(t, `
http:
  port: 3000
nlu:
  threshold: 0.8
  history_size: 6
  wake_words: ["терра-бот"]
dispatch:
  async_persistence: true
  save_timeout: 500ms
`)
	t.Setenv("HTTP_PORT", "4000")
	t.Setenv("APP_NLU_FALLBACK_CONFIDENCE", "0.4")

	cfg, err := Load(dir)

	require.NoError(t, err)
	require.Equal(t, 4000, cfg.HTTP.Port)
	require.Equal(t, 0.8, cfg.NLU.Threshold)
	require.Equal(t, 0.4, cfg.NLU.FallbackConfidence)
	require.Equal(t, 6, cfg.NLU.HistorySize)
	require.Equal(t, []string{"терра-бот"}, cfg.NLU.WakeWords)
	require.True(t, cfg.Dispatch.AsyncPersistence)
	require.Equal(t, 500*time.Millisecond, cfg.Dispatch.SaveTimeout)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := writeConfig(t, "http: [unterminated")

	_, err := Load(dir)

	require.Error(t, err)
}

func validConfig() Config {
	return Config{
		Database: DatabaseConfig{Driver: DriverSQLite, Path: "terra.db"},
		NLU:      NLUConfig{Threshold: 0.7, FallbackConfidence: 0.5, HistorySize: 10},
		Dispatch: DispatchConfig{SaveTimeout: time.Second},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"threshold zero", func(c *Config) { c.NLU.Threshold = 0 }, true},
		{"threshold above one", func(c *Config) { c.NLU.Threshold = 1.2 }, true},
		{"fallback equals threshold", func(c *Config) { c.NLU.FallbackConfidence = 0.7 }, true},
		{"history too small", func(c *Config) { c.NLU.HistorySize = 4 }, true},
		{"history too large", func(c *Config) { c.NLU.HistorySize = 11 }, true},
		{"bad timezone", func(c *Config) { c.NLU.Timezone = "Mars/Olympus" }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"postgres without url", func(c *Config) { c.Database.Driver = DriverPostgres }, true},
		{"postgres url from vault", func(c *Config) {
			c.Database.Driver = DriverPostgres
			c.Vault = VaultConfig{Enabled: true, Address: "http://vault:8200"}
		}, false},
		{"driver none", func(c *Config) { c.Database.Driver = DriverNone }, false},
		{"unknown queue", func(c *Config) { c.Queue.Provider = "kafka" }, true},
		{"nats without url", func(c *Config) { c.Queue.Provider = "nats" }, true},
		{"redis without url", func(c *Config) { c.Redis.Enabled = true }, true},
		{"zero save timeout", func(c *Config) { c.Dispatch.SaveTimeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
