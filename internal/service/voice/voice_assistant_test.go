package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/domain"
	"github.com/seu-repo/terra-assistant/internal/mocks"
	"github.com/seu-repo/terra-assistant/internal/ports"
	"github.com/seu-repo/terra-assistant/internal/service/dialog"
	"github.com/seu-repo/terra-assistant/internal/service/dispatch"
	"github.com/seu-repo/terra-assistant/internal/service/nlu"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func newTestPipeline(t *testing.T, commands ports.CommandRepository) Pipeline {
	t.Helper()
	log := newTestLogger()
	n := nlu.NewNormalizer()
	lib, err := nlu.DefaultLibrary(n)
	if err != nil {
		t.Fatalf("failed to load library: %v", err)
	}
	classifier, err := nlu.NewClassifier(lib, log)
	if err != nil {
		t.Fatalf("failed to build classifier: %v", err)
	}
	clock := func() time.Time { return time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC) }
	extractor := nlu.NewExtractor(lib, time.UTC, log, nlu.WithClock(clock))

	cat, err := dispatch.DefaultCatalog(dispatch.WithPicker(func(int) int { return 0 }))
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	handlers := dispatch.NewHandlers(cat, lib, nil, log)
	dispatcher := dispatch.NewDispatcher(handlers.Table(), handlers.Default(), cat, commands, nil, dispatch.Config{}, log)

	return Pipeline{
		Normalizer: n,
		Classifier: classifier,
		Extractor:  extractor,
		Sessions:   dialog.NewStore(lib, nil, dialog.StoreConfig{}, log),
		Dispatcher: dispatcher,
		Catalog:    cat,
	}
}

func newTestAssistant(t *testing.T, commands ports.CommandRepository, transcriber ports.Transcriber) ports.VoiceAssistant {
	t.Helper()
	return NewVoiceAssistant(newTestPipeline(t, commands), commands, transcriber, newTestLogger())
}

func TestProcessUtterance_BackfillsDescriptionOnUrgency(t *testing.T) {
	// Arrange
	va := newTestAssistant(t, &mocks.MockCommandRepository{}, nil)
	ctx := context.Background()

	// Act
	first := va.ProcessUtterance(ctx, "s1", "Терра, создать задачу позвонить поставщику")
	second := va.ProcessUtterance(ctx, "s1", "срочно")

	// Assert
	if first.Intent != domain.IntentTaskCreation {
		t.Fatalf("expected task_creation, got %s", first.Intent)
	}
	if got := first.Entities.Text(domain.EntityDescription); got != "позвонить поставщику" {
		t.Fatalf("expected description on first turn, got %q", got)
	}
	if second.Intent != domain.IntentTaskCreation {
		t.Errorf("expected topic fallback to task_creation, got %s", second.Intent)
	}
	if second.Confidence != nlu.DefaultFallbackConfidence {
		t.Errorf("expected fallback confidence, got %v", second.Confidence)
	}
	if got := second.Entities.Text(domain.EntityDescription); got != "позвонить поставщику" {
		t.Errorf("expected backfilled description, got %q", got)
	}
	p, ok := second.Entities.Get(domain.EntityPriority)
	if !ok || p.Priority != domain.PriorityHigh {
		t.Errorf("expected priority high, got %+v", p)
	}
	if second.DialogState != domain.DialogStateComplete {
		t.Errorf("expected complete, got %s", second.DialogState)
	}
}

func TestProcessUtterance_AsksForMissingDescription(t *testing.T) {
	va := newTestAssistant(t, nil, nil)

	resp := va.ProcessUtterance(context.Background(), "s1", "Терра, создать задачу")

	if resp.Intent != domain.IntentTaskCreation {
		t.Fatalf("expected task_creation, got %s", resp.Intent)
	}
	if resp.DialogState != domain.DialogStateClarificationNeeded {
		t.Errorf("expected clarification_needed, got %s", resp.DialogState)
	}
	if len(resp.PendingQuestions) == 0 {
		t.Fatal("expected pending questions")
	}
	if resp.Result != resp.PendingQuestions[0] {
		t.Errorf("expected handler to ask %q, got %q", resp.PendingQuestions[0], resp.Result)
	}
}

func TestProcessUtterance_GreetingKeepsTopic(t *testing.T) {
	va := newTestAssistant(t, nil, nil)
	ctx := context.Background()

	va.ProcessUtterance(ctx, "s1", "создать задачу позвонить поставщику")
	greeting := va.ProcessUtterance(ctx, "s1", "Привет!")

	if greeting.Intent != domain.IntentGreeting || greeting.Confidence != 1 {
		t.Fatalf("expected greeting at 1.0, got %s %v", greeting.Intent, greeting.Confidence)
	}
	snap, ok := va.Snapshot(ctx, "s1")
	if !ok {
		t.Fatal("expected session snapshot")
	}
	if snap.CurrentTopic != domain.IntentTaskCreation {
		t.Errorf("expected topic task_creation, got %s", snap.CurrentTopic)
	}
}

func TestProcessUtterance_PersistenceFailureKeepsResult(t *testing.T) {
	ok := newTestAssistant(t, &mocks.MockCommandRepository{}, nil)
	failing := newTestAssistant(t, &mocks.MockCommandRepository{
		SaveFunc: func(ctx context.Context, record *domain.CommandRecord) error {
			return errors.New("database is down")
		},
	}, nil)

	for _, text := range []string{"создать задачу подготовить договор", "срочно", "найди договор поставки", "привет"} {
		want := ok.ProcessUtterance(context.Background(), "s1", text)
		got := failing.ProcessUtterance(context.Background(), "s1", text)
		if want.Result != got.Result {
			t.Errorf("%q: expected %q, got %q", text, want.Result, got.Result)
		}
	}
}

func TestProcessUtterance_HistoryIsBounded(t *testing.T) {
	va := newTestAssistant(t, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3*dialog.DefaultHistorySize; i++ {
		va.ProcessUtterance(ctx, "s1", fmt.Sprintf("найди отчет номер %d", i))
	}

	snap, _ := va.Snapshot(ctx, "s1")
	if len(snap.History) != dialog.DefaultHistorySize {
		t.Errorf("expected %d history entries, got %d", dialog.DefaultHistorySize, len(snap.History))
	}
}

func TestProcessUtterance_ConfidenceInRange(t *testing.T) {
	va := newTestAssistant(t, nil, nil)

	for _, text := range []string{"", "   ", "Терра", "ммм ну", "создать", "задачи создать отчет", "финансы бюджет", "абракадабра", "!!!"} {
		resp := va.ProcessUtterance(context.Background(), "s1", text)
		if resp.Confidence < 0 || resp.Confidence > 1 {
			t.Errorf("%q: confidence %v out of range", text, resp.Confidence)
		}
	}
}

func TestProcessUtterance_RecordsCommand(t *testing.T) {
	commands := &mocks.MockCommandRepository{}
	va := newTestAssistant(t, commands, nil)

	resp := va.ProcessUtterance(context.Background(), "s1", "Терра, найди договор поставки")

	records := commands.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Text != "Терра, найди договор поставки" || rec.IntentTag != domain.IntentSearch || rec.Result != resp.Result {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Status != domain.CommandStatusCompleted {
		t.Errorf("expected completed, got %s", rec.Status)
	}
}

func TestProcessUtterance_EmptySession(t *testing.T) {
	va := newTestAssistant(t, nil, nil)

	resp := va.ProcessUtterance(context.Background(), "", "привет")

	want := "Извините, произошла ошибка: не указан идентификатор сессии"
	if resp.Result != want {
		t.Errorf("expected %q, got %q", want, resp.Result)
	}
}

func TestProcessUtterance_RecoversFromPanic(t *testing.T) {
	p := newTestPipeline(t, nil)
	p.Classifier = nil
	va := NewVoiceAssistant(p, nil, nil, newTestLogger())

	resp := va.ProcessUtterance(context.Background(), "s1", "привет")

	if resp == nil {
		t.Fatal("expected a response")
	}
	if resp.Intent != domain.IntentUnknown {
		t.Errorf("expected unknown, got %s", resp.Intent)
	}
	if !strings.HasPrefix(resp.Result, "Извините, произошла ошибка:") {
		t.Errorf("expected error template, got %q", resp.Result)
	}

	// The session lock must have been released.
	done := make(chan struct{})
	go func() {
		p.Sessions.WithSession(context.Background(), "s1", func(*dialog.Context) error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session stayed locked after panic")
	}
}

func TestProcessAudio(t *testing.T) {
	transcriptionErr := errors.New("gemini: connection refused")

	tests := []struct {
		name        string
		transcriber ports.Transcriber
		audio       []byte
		wantErr     error
		wantIntent  domain.IntentTag
	}{
		{name: "empty audio", transcriber: &mocks.MockTranscriber{}, audio: nil, wantErr: ErrEmptyAudio},
		{name: "no transcriber", transcriber: nil, audio: []byte{1}, wantErr: ErrTranscriptionUnavailable},
		{
			name: "transcriber fails",
			transcriber: &mocks.MockTranscriber{TranscribeFunc: func(ctx context.Context, audio []byte) (string, error) {
				return "", transcriptionErr
			}},
			audio:   []byte{1},
			wantErr: ErrTranscriptionUnavailable,
		},
		{
			name: "blank transcript",
			transcriber: &mocks.MockTranscriber{TranscribeFunc: func(ctx context.Context, audio []byte) (string, error) {
				return "  ", nil
			}},
			audio:   []byte{1},
			wantErr: ErrTranscriptionUnavailable,
		},
		{
			name: "transcribed",
			transcriber: &mocks.MockTranscriber{TranscribeFunc: func(ctx context.Context, audio []byte) (string, error) {
				return "Терра, привет", nil
			}},
			audio:      []byte{1, 2, 3},
			wantIntent: domain.IntentGreeting,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			va := newTestAssistant(t, nil, tt.transcriber)

			resp, err := va.ProcessAudio(context.Background(), "s1", tt.audio)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Intent != tt.wantIntent {
				t.Errorf("expected %s, got %s", tt.wantIntent, resp.Intent)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	var gotLimit int
	commands := &mocks.MockCommandRepository{
		FindRecentFunc: func(ctx context.Context, sessionID string, limit int) ([]domain.CommandRecord, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	va := newTestAssistant(t, commands, nil)

	records, err := va.History(context.Background(), "s1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", records)
	}
	if gotLimit != DefaultHistoryLimit {
		t.Errorf("expected default limit, got %d", gotLimit)
	}

	_, _ = va.History(context.Background(), "s1", 1000)
	if gotLimit != MaxHistoryLimit {
		t.Errorf("expected capped limit, got %d", gotLimit)
	}

	commands.FindRecentFunc = func(ctx context.Context, sessionID string, limit int) ([]domain.CommandRecord, error) {
		return nil, errors.New("timeout")
	}
	if _, err := va.History(context.Background(), "s1", 5); err == nil {
		t.Error("expected error")
	}
}
