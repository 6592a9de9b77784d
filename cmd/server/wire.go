package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seu-repo/terra-assistant/internal/adapter/ai/gemini"
	"github.com/seu-repo/terra-assistant/internal/adapter/cache"
	"github.com/seu-repo/terra-assistant/internal/adapter/storage/postgres"
	"github.com/seu-repo/terra-assistant/internal/adapter/storage/sqlite"
	"github.com/seu-repo/terra-assistant/internal/adapter/vault"
	"github.com/seu-repo/terra-assistant/internal/ports"
	"github.com/seu-repo/terra-assistant/internal/service/dialog"
	"github.com/seu-repo/terra-assistant/internal/service/dispatch"
	"github.com/seu-repo/terra-assistant/internal/service/nlu"
	"github.com/seu-repo/terra-assistant/internal/service/voice"
	"github.com/seu-repo/terra-assistant/pkg/config"
)

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// resolveSecrets fills the database URL and the transcription key from
// Vault when it is enabled. Values already set in config win.
func resolveSecrets(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if !cfg.Vault.Enabled {
		return nil
	}
	secrets, err := vault.NewSecretManager(vault.Config{
		Address:      cfg.Vault.Address,
		Token:        cfg.Vault.Token,
		Mount:        cfg.Vault.Mount,
		DatabasePath: cfg.Vault.DatabasePath,
		GeminiPath:   cfg.Vault.GeminiPath,
	}, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if cfg.Database.Driver == config.DriverPostgres && cfg.Database.URL == "" {
		url, err := secrets.GetDatabaseURL(ctx)
		if err != nil {
			return fmt.Errorf("database url: %w", err)
		}
		cfg.Database.URL = url
	}
	if cfg.Transcription.Enabled && cfg.Transcription.APIKey == "" {
		key, err := secrets.GetTranscriptionAPIKey(ctx)
		if err != nil {
			return fmt.Errorf("transcription key: %w", err)
		}
		cfg.Transcription.APIKey = key
	}
	return nil
}

// storage is the selected command store. All fields are nil for the
// "none" driver.
type storage struct {
	Commands ports.CommandRepository
	Tasks    ports.TaskRepository
	DB       *sql.DB
}

func (s *storage) Close() {
	if s.DB != nil {
		_ = s.DB.Close()
	}
}

func openStorage(cfg config.DatabaseConfig, log *zap.Logger) (*storage, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.NewConnection(cfg.URL, postgres.PoolConfig{
			MaxIdleConns:    cfg.MaxIdleConns,
			MaxOpenConns:    cfg.MaxOpenConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		}, log)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := postgres.RunMigrations(db); err != nil {
				return nil, err
			}
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		return &storage{
			Commands: postgres.NewCommandRepository(db, log),
			Tasks:    postgres.NewTaskRepository(db, log),
			DB:       sqlDB,
		}, nil
	case config.DriverSQLite:
		db, err := sqlite.NewConnection(cfg.Path, log)
		if err != nil {
			return nil, err
		}
		return &storage{
			Commands: sqlite.NewCommandRepository(db, log),
			Tasks:    sqlite.NewTaskRepository(db, log),
			DB:       db,
		}, nil
	default:
		log.Warn("No command store configured, records are not persisted")
		return &storage{}, nil
	}
}

// openCache returns Redis when enabled and an in-process cache otherwise.
func openCache(cfg config.RedisConfig, log *zap.Logger) (ports.Cache, error) {
	if !cfg.Enabled {
		return cache.NewLocalCache(time.Minute, log), nil
	}
	return cache.NewRedisCache(cfg.URL, cfg.KeyPrefix, log)
}

func newTranscriber(cfg config.TranscriptionConfig, log *zap.Logger) ports.Transcriber {
	if !cfg.Enabled || cfg.APIKey == "" {
		log.Info("Audio transcription disabled")
		return nil
	}
	return gemini.NewLiveClient(gemini.Config{
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		Endpoint: cfg.Endpoint,
		Timeout:  cfg.Timeout,
	}, log)
}

type assistantApp struct {
	assistant  ports.VoiceAssistant
	dispatcher *dispatch.Dispatcher
	sessions   *dialog.Store
}

func buildAssistant(
	cfg *config.Config,
	store *storage,
	dialogCache ports.Cache,
	events ports.EventPublisher,
	transcriber ports.Transcriber,
	log *zap.Logger,
) (*assistantApp, error) {
	loc, err := time.LoadLocation(cfg.NLU.Timezone)
	if err != nil {
		return nil, err
	}

	normalizer := nlu.NewNormalizer(cfg.NLU.WakeWords...)
	lib, err := nlu.DefaultLibrary(normalizer)
	if err != nil {
		return nil, err
	}
	classifier, err := nlu.NewClassifier(lib, log,
		nlu.WithThreshold(cfg.NLU.Threshold),
		nlu.WithFallbackConfidence(cfg.NLU.FallbackConfidence),
	)
	if err != nil {
		return nil, err
	}
	extractor := nlu.NewExtractor(lib, loc, log)

	catalog, err := dispatch.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	handlers := dispatch.NewHandlers(catalog, lib, store.Tasks, log)
	dispatcher := dispatch.NewDispatcher(handlers.Table(), handlers.Default(), catalog, store.Commands, events, dispatch.Config{
		AsyncPersistence: cfg.Dispatch.AsyncPersistence,
		SaveTimeout:      cfg.Dispatch.SaveTimeout,
		EventSubject:     cfg.Queue.Subject,
		BreakerFailures:  uint32(cfg.CircuitBreaker.ConsecutiveFails),
		BreakerTimeout:   cfg.CircuitBreaker.Timeout,
	}, log)

	sessions := dialog.NewStore(lib, dialogCache, dialog.StoreConfig{
		HistorySize:  cfg.NLU.HistorySize,
		CacheTTL:     cfg.Redis.TTL,
		CacheTimeout: cfg.Redis.Timeout,
	}, log)

	assistant := voice.NewVoiceAssistant(voice.Pipeline{
		Normalizer: normalizer,
		Classifier: classifier,
		Extractor:  extractor,
		Sessions:   sessions,
		Dispatcher: dispatcher,
		Catalog:    catalog,
	}, store.Commands, transcriber, log)

	return &assistantApp{
		assistant:  assistant,
		dispatcher: dispatcher,
		sessions:   sessions,
	}, nil
}
