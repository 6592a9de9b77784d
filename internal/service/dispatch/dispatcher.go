package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/domain"
	"github.com/seu-repo/terra-assistant/internal/observability/telemetry"
	"github.com/seu-repo/terra-assistant/internal/ports"
)

const DefaultEventSubject = "commands.completed"

type Config struct {
	// AsyncPersistence saves records on a background goroutine drained by
	// Close instead of on the response path.
	AsyncPersistence bool
	SaveTimeout      time.Duration
	EventSubject     string
	BreakerFailures  uint32
	BreakerTimeout   time.Duration
}

// Request is a classified turn ready to be answered.
type Request struct {
	SessionID string
	Text      string
	Intent    domain.Intent
	Entities  *domain.EntitySet
}

type Result struct {
	Text   string
	Status domain.CommandStatus
	Record domain.CommandRecord
}

// Dispatcher routes intents to handlers through a single table and records
// every answered command.
type Dispatcher struct {
	handlers map[domain.IntentTag]Handler
	fallback Handler
	catalog  *Catalog
	commands ports.CommandRepository
	events   ports.EventPublisher
	breaker  *gobreaker.CircuitBreaker
	cfg      Config
	now      func() time.Time
	log      *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. commands and events may be nil.
func NewDispatcher(
	handlers map[domain.IntentTag]Handler,
	fallback Handler,
	cat *Catalog,
	commands ports.CommandRepository,
	events ports.EventPublisher,
	cfg Config,
	log *zap.Logger,
) *Dispatcher {
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 2 * time.Second
	}
	if cfg.EventSubject == "" {
		cfg.EventSubject = DefaultEventSubject
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	table := make(map[domain.IntentTag]Handler, len(handlers))
	for tag, h := range handlers {
		table[tag] = h
	}

	d := &Dispatcher{
		handlers: table,
		fallback: fallback,
		catalog:  cat,
		commands: commands,
		events:   events,
		cfg:      cfg,
		now:      time.Now,
		log:      log,
	}
	d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "command-store",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return d
}

// Dispatch answers the request. It never fails: handler errors and panics
// become the error template, and persistence problems are only logged.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	text, status := d.invoke(ctx, req)

	rec := domain.CommandRecord{
		ID:         uuid.NewString(),
		SessionID:  req.SessionID,
		Text:       req.Text,
		IntentTag:  req.Intent.Tag,
		Confidence: req.Intent.Confidence,
		Status:     status,
		Result:     text,
		CreatedAt:  d.now(),
	}
	telemetry.VoiceCommandsTotal.WithLabelValues(req.Intent.Tag.String(), string(status)).Inc()

	d.persist(ctx, rec)
	return Result{Text: text, Status: status, Record: rec}
}

func (d *Dispatcher) invoke(ctx context.Context, req Request) (reply string, status domain.CommandStatus) {
	h, ok := d.handlers[req.Intent.Tag]
	if !ok {
		h = d.fallback
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Handler panicked",
				zap.String("session_id", req.SessionID),
				zap.String("intent", req.Intent.Tag.String()),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			reply, status = d.catalog.Error(fmt.Sprint(r)), domain.CommandStatusFailed
		}
	}()

	entities := req.Entities
	if entities == nil {
		entities = domain.NewEntitySet()
	}
	out, err := h.Handle(WithSessionID(ctx, req.SessionID), entities.Clone())
	if err != nil {
		d.log.Error("Handler failed",
			zap.String("session_id", req.SessionID),
			zap.String("intent", req.Intent.Tag.String()),
			zap.Error(err),
		)
		return d.catalog.Error(err.Error()), domain.CommandStatusFailed
	}
	return out, domain.CommandStatusCompleted
}

func (d *Dispatcher) persist(ctx context.Context, rec domain.CommandRecord) {
	if d.commands == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.cfg.AsyncPersistence || d.closed {
		d.save(ctx, rec)
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.save(ctx, rec)
	}()
}

func (d *Dispatcher) save(ctx context.Context, rec domain.CommandRecord) {
	sctx, cancel := context.WithTimeout(ctx, d.cfg.SaveTimeout)
	defer cancel()

	start := time.Now()
	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.commands.Save(sctx, &rec)
	})
	telemetry.DatabaseLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := failureReason(err)
		telemetry.PersistenceFailuresTotal.WithLabelValues(reason).Inc()
		d.log.Warn("Failed to save command",
			zap.String("command_id", rec.ID),
			zap.String("session_id", rec.SessionID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return
	}
	d.publish(rec)
}

func (d *Dispatcher) publish(rec domain.CommandRecord) {
	if d.events == nil {
		return
	}
	data, err := json.Marshal(domain.CommandCompletedEvent{
		CommandID: rec.ID,
		SessionID: rec.SessionID,
		Intent:    rec.IntentTag,
		Status:    rec.Status,
		Result:    rec.Result,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		d.log.Error("Failed to encode command event", zap.String("command_id", rec.ID), zap.Error(err))
		return
	}
	if err := d.events.Publish(d.cfg.EventSubject, data); err != nil {
		d.log.Warn("Failed to publish command event",
			zap.String("command_id", rec.ID),
			zap.String("subject", d.cfg.EventSubject),
			zap.Error(err),
		)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// Close stops accepting background saves and waits for the pending ones.
// Records dispatched after Close are saved synchronously.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch: drain pending saves: %w", ctx.Err())
	}
}
