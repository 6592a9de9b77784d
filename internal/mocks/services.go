package mocks

import (
	"context"

	"github.com/seu-repo/terra-assistant/internal/domain"
)

// MockTranscriber is a mock implementation of Transcriber interface
type MockTranscriber struct {
	TranscribeFunc func(ctx context.Context, audio []byte) (string, error)
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio)
	}
	return "", nil
}

// MockVoiceAssistant is a mock implementation of VoiceAssistant interface
type MockVoiceAssistant struct {
	ProcessUtteranceFunc func(ctx context.Context, sessionID, text string) *domain.AssistantResponse
	ProcessAudioFunc     func(ctx context.Context, sessionID string, audio []byte) (*domain.AssistantResponse, error)
	HistoryFunc          func(ctx context.Context, sessionID string, limit int) ([]domain.CommandRecord, error)
	SnapshotFunc         func(ctx context.Context, sessionID string) (domain.ContextSnapshot, bool)
}

func (m *MockVoiceAssistant) ProcessUtterance(ctx context.Context, sessionID, text string) *domain.AssistantResponse {
	if m.ProcessUtteranceFunc != nil {
		return m.ProcessUtteranceFunc(ctx, sessionID, text)
	}
	return &domain.AssistantResponse{
		SessionID:   sessionID,
		Text:        text,
		Intent:      domain.IntentUnknown,
		Entities:    domain.NewEntitySet(),
		DialogState: domain.DialogStateComplete,
	}
}

func (m *MockVoiceAssistant) ProcessAudio(ctx context.Context, sessionID string, audio []byte) (*domain.AssistantResponse, error) {
	if m.ProcessAudioFunc != nil {
		return m.ProcessAudioFunc(ctx, sessionID, audio)
	}
	return m.ProcessUtterance(ctx, sessionID, string(audio)), nil
}

func (m *MockVoiceAssistant) History(ctx context.Context, sessionID string, limit int) ([]domain.CommandRecord, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, sessionID, limit)
	}
	return []domain.CommandRecord{}, nil
}

func (m *MockVoiceAssistant) Snapshot(ctx context.Context, sessionID string) (domain.ContextSnapshot, bool) {
	if m.SnapshotFunc != nil {
		return m.SnapshotFunc(ctx, sessionID)
	}
	return domain.ContextSnapshot{}, false
}
