package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/domain"
	"github.com/seu-repo/terra-assistant/internal/observability/telemetry"
	"github.com/seu-repo/terra-assistant/internal/ports"
)

var ErrEmptySession = errors.New("dialog: empty session id")

const cacheKeyPrefix = "dialog:session:"

type StoreConfig struct {
	HistorySize  int
	CacheTTL     time.Duration
	CacheTimeout time.Duration
}

type sessionEntry struct {
	mu  sync.Mutex
	ctx *Context
}

// Store maps session ids to their dialog contexts. A turn runs under the
// session's own lock, so one session's turns serialize while different
// sessions proceed in parallel. When a cache is configured every turn is
// mirrored to it and sessions missing from memory are rehydrated from it.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	policy   FieldPolicy
	cache    ports.Cache
	cfg      StoreConfig
	log      *zap.Logger
}

// NewStore creates a store. cache may be nil.
func NewStore(policy FieldPolicy, cache ports.Cache, cfg StoreConfig, log *zap.Logger) *Store {
	if cfg.HistorySize == 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.CacheTimeout == 0 {
		cfg.CacheTimeout = 500 * time.Millisecond
	}
	return &Store{
		sessions: make(map[string]*sessionEntry),
		policy:   policy,
		cache:    cache,
		cfg:      cfg,
		log:      log,
	}
}

// WithSession runs fn with exclusive access to the session's context,
// creating it on first use.
func (s *Store) WithSession(ctx context.Context, sessionID string, fn func(*Context) error) error {
	if sessionID == "" {
		return ErrEmptySession
	}

	entry := s.entry(sessionID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.ctx == nil {
		entry.ctx = s.load(ctx, sessionID)
	}

	err := fn(entry.ctx)
	s.mirror(ctx, sessionID, entry.ctx)
	return err
}

// Snapshot returns the session's context without creating it.
func (s *Store) Snapshot(ctx context.Context, sessionID string) (domain.ContextSnapshot, bool) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	s.mu.Unlock()

	if ok {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		if entry.ctx != nil {
			return entry.ctx.Snapshot(), true
		}
	}

	if snap, found := s.fetch(ctx, sessionID); found {
		return snap, true
	}
	return domain.ContextSnapshot{}, false
}

// Len returns the number of sessions held in memory.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) entry(sessionID string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		entry = &sessionEntry{}
		s.sessions[sessionID] = entry
		telemetry.ActiveSessions.Inc()
	}
	return entry
}

func (s *Store) load(ctx context.Context, sessionID string) *Context {
	if snap, ok := s.fetch(ctx, sessionID); ok {
		s.log.Debug("Dialog context rehydrated from cache", zap.String("session_id", sessionID))
		return restoreContext(snap, s.cfg.HistorySize, s.policy)
	}
	return NewContext(sessionID, s.cfg.HistorySize, s.policy)
}

func (s *Store) fetch(ctx context.Context, sessionID string) (domain.ContextSnapshot, bool) {
	if s.cache == nil {
		return domain.ContextSnapshot{}, false
	}
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CacheTimeout)
	defer cancel()

	raw, err := s.cache.Get(cctx, cacheKeyPrefix+sessionID)
	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			s.log.Warn("Failed to read dialog context from cache", zap.String("session_id", sessionID), zap.Error(err))
		}
		return domain.ContextSnapshot{}, false
	}

	var snap domain.ContextSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.log.Warn("Discarding corrupt dialog context", zap.String("session_id", sessionID), zap.Error(err))
		return domain.ContextSnapshot{}, false
	}
	snap.SessionID = sessionID
	return snap, true
}

func (s *Store) mirror(ctx context.Context, sessionID string, c *Context) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		s.log.Error("Failed to encode dialog context", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CacheTimeout)
	defer cancel()
	if err := s.cache.Set(cctx, cacheKeyPrefix+sessionID, string(data), s.cfg.CacheTTL); err != nil {
		s.log.Warn("Failed to mirror dialog context to cache", zap.String("session_id", sessionID), zap.Error(err))
	}
}
