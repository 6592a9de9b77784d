package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

// Load reads .env files, then config.yaml from the search paths (./configs,
// . and /app/configs when none are given), then the environment.
func Load(paths ...string) (*Config, error) {
	for _, f := range []string{".env", ".env.local"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./configs", ".", "/app/configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow common env vars without APP_ prefix for Docker/VM deploys
	_ = v.BindEnv("http.port", "HTTP_PORT", "APP_HTTP_PORT")
	_ = v.BindEnv("grpc.port", "GRPC_PORT", "APP_GRPC_PORT")
	_ = v.BindEnv("database.driver", "DATABASE_DRIVER", "APP_DATABASE_DRIVER")
	_ = v.BindEnv("database.url", "DATABASE_URL", "APP_DATABASE_URL")
	_ = v.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	_ = v.BindEnv("queue.url", "NATS_URL", "AMQP_URL", "APP_QUEUE_URL")
	_ = v.BindEnv("transcription.api_key", "GEMINI_API_KEY", "APP_TRANSCRIPTION_API_KEY")
	_ = v.BindEnv("vault.address", "VAULT_ADDR", "APP_VAULT_ADDRESS")
	_ = v.BindEnv("vault.token", "VAULT_TOKEN", "APP_VAULT_TOKEN")
	_ = v.BindEnv("app.environment", "APP_ENVIRONMENT")
	_ = v.BindEnv("logging.level", "LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "terra-assistant")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.body_limit", 8*1024*1024)

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.port", 9090)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "terra.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.key_prefix", "terra:")
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("redis.timeout", 500*time.Millisecond)

	v.SetDefault("queue.provider", "none")
	v.SetDefault("queue.subject", "commands.completed")

	v.SetDefault("nlu.threshold", 0.7)
	v.SetDefault("nlu.fallback_confidence", 0.5)
	v.SetDefault("nlu.history_size", 10)
	v.SetDefault("nlu.timezone", "Europe/Moscow")

	v.SetDefault("dispatch.async_persistence", false)
	v.SetDefault("dispatch.save_timeout", 2*time.Second)
	v.SetDefault("dispatch.shutdown_timeout", 10*time.Second)

	v.SetDefault("transcription.timeout", 15*time.Second)

	v.SetDefault("vault.mount", "secret")
	v.SetDefault("vault.database_path", "terra/database")
	v.SetDefault("vault.gemini_path", "terra/gemini")

	v.SetDefault("opentelemetry.service_name", "terra-assistant")
	v.SetDefault("opentelemetry.sample_ratio", 1.0)

	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", time.Minute)
	v.SetDefault("circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.failure_threshold", 0.6)
	v.SetDefault("circuit_breaker.consecutive_failures", 5)

	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.NLU.Threshold <= 0 || c.NLU.Threshold > 1 {
		return fmt.Errorf("nlu.threshold %.2f must be in (0,1]", c.NLU.Threshold)
	}
	if c.NLU.FallbackConfidence < 0 || c.NLU.FallbackConfidence >= c.NLU.Threshold {
		return fmt.Errorf("nlu.fallback_confidence %.2f must be in [0, threshold)", c.NLU.FallbackConfidence)
	}
	if c.NLU.HistorySize < 5 || c.NLU.HistorySize > 10 {
		return fmt.Errorf("nlu.history_size %d must be between 5 and 10", c.NLU.HistorySize)
	}
	if c.NLU.Timezone != "" {
		if _, err := time.LoadLocation(c.NLU.Timezone); err != nil {
			return fmt.Errorf("nlu.timezone: %w", err)
		}
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" && !c.Vault.Enabled {
			return errors.New("database.url is required for the postgres driver")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	case DriverNone:
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	switch c.Queue.Provider {
	case "", "none":
	case "nats", "rabbitmq":
		if c.Queue.URL == "" {
			return fmt.Errorf("queue.url is required for provider %s", c.Queue.Provider)
		}
	default:
		return fmt.Errorf("unknown queue.provider %q", c.Queue.Provider)
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return errors.New("redis.url is required when redis is enabled")
	}
	if c.Vault.Enabled && c.Vault.Address == "" {
		return errors.New("vault.address is required when vault is enabled")
	}
	if c.OpenTelemetry.SampleRatio < 0 || c.OpenTelemetry.SampleRatio > 1 {
		return fmt.Errorf("opentelemetry.sample_ratio %.2f must be in [0,1]", c.OpenTelemetry.SampleRatio)
	}
	if c.Dispatch.SaveTimeout <= 0 {
		return errors.New("dispatch.save_timeout must be positive")
	}
	return nil
}
