package domain

import "time"

// IntentTag identifies the business purpose of an utterance.
type IntentTag string

const (
	IntentGreeting         IntentTag = "greeting"
	IntentTaskCreation     IntentTag = "task_creation"
	IntentMarketing        IntentTag = "marketing"
	IntentClient           IntentTag = "client"
	IntentSupplier         IntentTag = "supplier"
	IntentContract         IntentTag = "contract"
	IntentQuality          IntentTag = "quality"
	IntentRisk             IntentTag = "risk"
	IntentStrategy         IntentTag = "strategy"
	IntentCompliance       IntentTag = "compliance"
	IntentInnovation       IntentTag = "innovation"
	IntentDocumentAnalysis IntentTag = "document_analysis"
	IntentSearch           IntentTag = "search"
	IntentCalendar         IntentTag = "calendar"
	IntentContact          IntentTag = "contact"
	IntentReminder         IntentTag = "reminder"
	IntentFinance          IntentTag = "finance"
	IntentProject          IntentTag = "project"
	IntentSales            IntentTag = "sales"
	IntentInventory        IntentTag = "inventory"
	IntentAnalytics        IntentTag = "analytics"
	IntentReport           IntentTag = "report"
	IntentEmployee         IntentTag = "employee"
	IntentMeeting          IntentTag = "meeting"
	IntentUnknown          IntentTag = "unknown"
)

func (t IntentTag) String() string {
	return string(t)
}

// Utterance is one unit of user input for a session.
type Utterance struct {
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Intent is the classified purpose of an utterance.
type Intent struct {
	Tag        IntentTag `json:"tag"`
	Confidence float64   `json:"confidence"`
}

// AssistantResponse is what the transport layer serializes back to the caller.
type AssistantResponse struct {
	SessionID        string      `json:"session_id"`
	Text             string      `json:"text"`
	Intent           IntentTag   `json:"intent"`
	Confidence       float64     `json:"confidence"`
	Entities         *EntitySet  `json:"entities"`
	Result           string      `json:"result"`
	DialogState      DialogState `json:"dialog_state"`
	PendingQuestions []string    `json:"pending_questions,omitempty"`
}
