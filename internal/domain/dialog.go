package domain

import "time"

type DialogState string

const (
	DialogStateInitial             DialogState = "initial"
	DialogStateClarificationNeeded DialogState = "clarification_needed"
	DialogStateComplete            DialogState = "complete"
)

// HistoryEntry is one recorded turn of a session.
type HistoryEntry struct {
	Text      string     `json:"text"`
	Intent    IntentTag  `json:"intent"`
	Entities  *EntitySet `json:"entities"`
	Timestamp time.Time  `json:"timestamp"`
}

// ContextSnapshot is a read-only copy of a session's dialog context.
// CurrentTopic is empty when no topic has been established yet.
type ContextSnapshot struct {
	SessionID        string         `json:"session_id"`
	CurrentTopic     IntentTag      `json:"current_topic,omitempty"`
	LastEntities     *EntitySet     `json:"last_entities"`
	History          []HistoryEntry `json:"history"`
	DialogState      DialogState    `json:"dialog_state"`
	PendingQuestions []string       `json:"pending_questions,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// HasTopic reports whether a fallback topic is available for the next turn.
func (s ContextSnapshot) HasTopic() bool {
	return s.CurrentTopic != "" && len(s.History) > 0
}
