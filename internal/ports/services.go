package ports

import (
	"context"

	"github.com/seu-repo/terra-assistant/internal/domain"
)

// VoiceAssistant is the inbound surface used by every transport.
type VoiceAssistant interface {
	ProcessUtterance(ctx context.Context, sessionID, text string) *domain.AssistantResponse
	ProcessAudio(ctx context.Context, sessionID string, audio []byte) (*domain.AssistantResponse, error)
	History(ctx context.Context, sessionID string, limit int) ([]domain.CommandRecord, error)
	Snapshot(ctx context.Context, sessionID string) (domain.ContextSnapshot, bool)
}

// Transcriber converts an audio payload to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// EventPublisher is the publishing half of a message queue.
type EventPublisher interface {
	Publish(subject string, data []byte) error
}

// SecretProvider resolves named secrets at startup.
type SecretProvider interface {
	GetDatabaseURL(ctx context.Context) (string, error)
	GetTranscriptionAPIKey(ctx context.Context) (string, error)
}
