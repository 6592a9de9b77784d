package domain

import (
	"time"
)

type CommandStatus string

const (
	CommandStatusCompleted CommandStatus = "completed"
	CommandStatusFailed    CommandStatus = "failed"
)

// CommandRecord is the persisted trace of one dispatched utterance.
type CommandRecord struct {
	ID         string        `json:"id" gorm:"primaryKey"`
	SessionID  string        `json:"session_id" gorm:"index"`
	Text       string        `json:"text"`
	IntentTag  IntentTag     `json:"intent_tag" gorm:"index"`
	Confidence float64       `json:"confidence"`
	Status     CommandStatus `json:"status"`
	Result     string        `json:"result"`
	CreatedAt  time.Time     `json:"created_at" gorm:"index"`
}

func (CommandRecord) TableName() string {
	return "commands"
}

// CommandCompletedEvent is published after a record was stored.
type CommandCompletedEvent struct {
	CommandID string        `json:"command_id"`
	SessionID string        `json:"session_id"`
	Intent    IntentTag     `json:"intent"`
	Status    CommandStatus `json:"status"`
	Result    string        `json:"result"`
	CreatedAt time.Time     `json:"created_at"`
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// MaxTaskTitleRunes bounds Task.Title.
const MaxTaskTitleRunes = 200

type Task struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	SessionID   string     `json:"session_id" gorm:"index"`
	Title       string     `json:"title" gorm:"size:200"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Category    string     `json:"category"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}

// TaskTitle truncates s to MaxTaskTitleRunes runes.
func TaskTitle(s string) string {
	r := []rune(s)
	if len(r) <= MaxTaskTitleRunes {
		return s
	}
	return string(r[:MaxTaskTitleRunes])
}
