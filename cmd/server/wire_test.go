package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/domain"
	"github.com/seu-repo/terra-assistant/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver: config.DriverSQLite,
			Path:   filepath.Join(t.TempDir(), "terra.db"),
		},
		Queue: config.QueueConfig{Subject: "commands.completed"},
		NLU: config.NLUConfig{
			Threshold:          0.7,
			FallbackConfidence: 0.5,
			HistorySize:        10,
			Timezone:           "UTC",
		},
		Dispatch:       config.DispatchConfig{SaveTimeout: 2 * time.Second},
		CircuitBreaker: config.CircuitBreakerConfig{ConsecutiveFails: 5, Timeout: 30 * time.Second},
	}
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger(config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, log)

	_, err = newLogger(config.LoggingConfig{Level: "loud"})
	require.Error(t, err)
}

func TestOpenStorage_None(t *testing.T) {
	store, err := openStorage(config.DatabaseConfig{Driver: config.DriverNone}, zap.NewNop())
	require.NoError(t, err)

	// Nil interfaces, so consumers can test for a missing store.
	require.Nil(t, store.Commands)
	require.Nil(t, store.Tasks)
	require.Nil(t, store.DB)
}

func TestBuildAssistant_SQLite(t *testing.T) {
	// Arrange
	cfg := testConfig(t)
	log := zap.NewNop()
	store, err := openStorage(cfg.Database, log)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	dialogCache, err := openCache(cfg.Redis, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dialogCache.Close() })

	app, err := buildAssistant(cfg, store, dialogCache, nil, newTranscriber(cfg.Transcription, log), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.dispatcher.Close(context.Background()) })

	ctx := context.Background()

	// Act
	resp := app.assistant.ProcessUtterance(ctx, "s1", "Терра, создай задачу позвонить поставщику")

	// Assert
	require.Equal(t, domain.IntentTaskCreation, resp.Intent)
	require.Equal(t, domain.DialogStateComplete, resp.DialogState)

	tasks, err := store.Tasks.FindBySession(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	history, err := app.assistant.History(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, 1, app.sessions.Len())
}
