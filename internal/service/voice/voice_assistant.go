package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/domain"
	"github.com/seu-repo/terra-assistant/internal/observability/telemetry"
	"github.com/seu-repo/terra-assistant/internal/ports"
	"github.com/seu-repo/terra-assistant/internal/service/dialog"
	"github.com/seu-repo/terra-assistant/internal/service/dispatch"
	"github.com/seu-repo/terra-assistant/internal/service/nlu"
)

var (
	ErrTranscriptionUnavailable = errors.New("voice: transcription unavailable")
	ErrEmptyAudio               = errors.New("voice: empty audio")
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// AudioNotRecognized is what transports answer when ProcessAudio fails.
const AudioNotRecognized = "Не удалось распознать аудио. Пожалуйста, повторите команду."

// Pipeline groups the stages an utterance runs through.
type Pipeline struct {
	Normalizer *nlu.Normalizer
	Classifier *nlu.Classifier
	Extractor  *nlu.Extractor
	Sessions   *dialog.Store
	Dispatcher *dispatch.Dispatcher
	Catalog    *dispatch.Catalog
}

type VoiceAssistant struct {
	pipeline    Pipeline
	commands    ports.CommandRepository
	transcriber ports.Transcriber
	tracer      trace.Tracer
	now         func() time.Time
	logger      *zap.Logger
}

// NewVoiceAssistant wires the pipeline. commands and transcriber may be nil.
func NewVoiceAssistant(
	p Pipeline,
	commands ports.CommandRepository,
	transcriber ports.Transcriber,
	logger *zap.Logger,
) ports.VoiceAssistant {
	return &VoiceAssistant{
		pipeline:    p,
		commands:    commands,
		transcriber: transcriber,
		tracer:      otel.Tracer("terra-assistant/voice"),
		now:         time.Now,
		logger:      logger,
	}
}

// ProcessUtterance runs one turn: normalize, classify, extract, update the
// dialog context and dispatch. The whole turn holds the session's lock.
// It always returns a response; failures become the error template.
func (va *VoiceAssistant) ProcessUtterance(ctx context.Context, sessionID, text string) (resp *domain.AssistantResponse) {
	start := time.Now()
	ctx, span := va.tracer.Start(ctx, "voice.ProcessUtterance",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()
	defer func() {
		telemetry.VoiceLatency.Observe(time.Since(start).Seconds())
	}()
	defer func() {
		if r := recover(); r != nil {
			va.logger.Error("Utterance processing panicked",
				zap.String("session_id", sessionID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			span.SetStatus(codes.Error, "panic")
			resp = va.failure(sessionID, text, fmt.Sprint(r))
		}
	}()

	utt := domain.Utterance{SessionID: sessionID, Text: text, ReceivedAt: va.now()}
	normalized := va.pipeline.Normalizer.Normalize(utt.Text)

	err := va.pipeline.Sessions.WithSession(ctx, sessionID, func(dc *dialog.Context) error {
		snap := dc.Snapshot()

		_, cspan := va.tracer.Start(ctx, "nlu.Classify")
		intent := va.pipeline.Classifier.Classify(normalized, snap)
		cspan.SetAttributes(
			attribute.String("intent", intent.Tag.String()),
			attribute.Float64("confidence", intent.Confidence),
		)
		cspan.End()
		telemetry.IntentConfidence.Observe(intent.Confidence)

		_, espan := va.tracer.Start(ctx, "nlu.Extract")
		entities := va.pipeline.Extractor.Extract(normalized, intent.Tag, snap.LastEntities)
		espan.SetAttributes(attribute.StringSlice("entities", entities.Keys()))
		espan.End()

		dc.Update(normalized, intent.Tag, entities, utt.ReceivedAt)
		if dc.State() == domain.DialogStateClarificationNeeded {
			telemetry.ClarificationsTotal.WithLabelValues(intent.Tag.String()).Inc()
		}

		dctx, dspan := va.tracer.Start(ctx, "dispatch.Dispatch")
		res := va.pipeline.Dispatcher.Dispatch(dctx, dispatch.Request{
			SessionID: sessionID,
			Text:      utt.Text,
			Intent:    intent,
			Entities:  entities,
		})
		dspan.SetAttributes(attribute.String("status", string(res.Status)))
		dspan.End()

		resp = &domain.AssistantResponse{
			SessionID:        sessionID,
			Text:             utt.Text,
			Intent:           intent.Tag,
			Confidence:       intent.Confidence,
			Entities:         entities,
			Result:           res.Text,
			DialogState:      dc.State(),
			PendingQuestions: dc.PendingQuestions(),
		}
		return nil
	})
	if err != nil {
		va.logger.Warn("Utterance rejected", zap.String("session_id", sessionID), zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		details := err.Error()
		if errors.Is(err, dialog.ErrEmptySession) {
			details = va.pipeline.Catalog.Text("session.missing")
		}
		return va.failure(sessionID, text, details)
	}

	va.logger.Debug("Utterance processed",
		zap.String("session_id", sessionID),
		zap.String("intent", resp.Intent.String()),
		zap.Float64("confidence", resp.Confidence),
		zap.String("dialog_state", string(resp.DialogState)),
	)
	return resp
}

func (va *VoiceAssistant) failure(sessionID, text, details string) *domain.AssistantResponse {
	return &domain.AssistantResponse{
		SessionID:   sessionID,
		Text:        text,
		Intent:      domain.IntentUnknown,
		Entities:    domain.NewEntitySet(),
		Result:      va.pipeline.Catalog.Error(details),
		DialogState: domain.DialogStateInitial,
	}
}

// ProcessAudio transcribes audio and processes the transcript as an
// utterance. Transcription problems are returned so the transport can pick
// its own reply.
func (va *VoiceAssistant) ProcessAudio(ctx context.Context, sessionID string, audio []byte) (*domain.AssistantResponse, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if va.transcriber == nil {
		return nil, ErrTranscriptionUnavailable
	}

	ctx, span := va.tracer.Start(ctx, "voice.Transcribe")
	text, err := va.transcriber.Transcribe(ctx, audio)
	span.End()
	if err != nil {
		telemetry.TranscriptionsTotal.WithLabelValues("error").Inc()
		va.logger.Warn("Transcription failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionUnavailable, err)
	}
	if strings.TrimSpace(text) == "" {
		telemetry.TranscriptionsTotal.WithLabelValues("empty").Inc()
		return nil, ErrTranscriptionUnavailable
	}
	telemetry.TranscriptionsTotal.WithLabelValues("ok").Inc()

	return va.ProcessUtterance(ctx, sessionID, text), nil
}

// History returns the session's most recent commands, newest first.
func (va *VoiceAssistant) History(ctx context.Context, sessionID string, limit int) ([]domain.CommandRecord, error) {
	if va.commands == nil {
		return []domain.CommandRecord{}, nil
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	records, err := va.commands.FindRecent(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load command history: %w", err)
	}
	if records == nil {
		records = []domain.CommandRecord{}
	}
	return records, nil
}

func (va *VoiceAssistant) Snapshot(ctx context.Context, sessionID string) (domain.ContextSnapshot, bool) {
	return va.pipeline.Sessions.Snapshot(ctx, sessionID)
}
