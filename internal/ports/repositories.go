package ports

import (
	"context"
	"errors"
	"time"

	"github.com/seu-repo/terra-assistant/internal/domain"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

type CommandRepository interface {
	Save(ctx context.Context, record *domain.CommandRecord) error
	FindRecent(ctx context.Context, sessionID string, limit int) ([]domain.CommandRecord, error)
}

type TaskRepository interface {
	Save(ctx context.Context, task *domain.Task) error
	FindByID(ctx context.Context, id string) (*domain.Task, error)
	FindBySession(ctx context.Context, sessionID string, limit int) ([]domain.Task, error)
}

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}
