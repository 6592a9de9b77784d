package dialog

import (
	"time"

	"github.com/seu-repo/terra-assistant/internal/domain"
)

const (
	DefaultHistorySize = 10
	MinHistorySize     = 5
	MaxHistorySize     = 10
)

// FieldPolicy supplies the required-field table and the follow-up prompt
// for each field.
type FieldPolicy interface {
	RequiredFields(tag domain.IntentTag) []string
	Question(field string) string
}

// historyRing keeps the last size turns. When full, the oldest entry is
// overwritten.
type historyRing struct {
	buf  []domain.HistoryEntry
	size int
	head int
	full bool
}

func newHistoryRing(size int) *historyRing {
	return &historyRing{buf: make([]domain.HistoryEntry, size), size: size}
}

func (r *historyRing) push(e domain.HistoryEntry) {
	r.buf[r.head] = e
	r.head = (r.head + 1) % r.size
	if r.head == 0 {
		r.full = true
	}
}

func (r *historyRing) len() int {
	if r.full {
		return r.size
	}
	return r.head
}

// entries returns the turns oldest first.
func (r *historyRing) entries() []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, 0, r.len())
	if r.full {
		out = append(out, r.buf[r.head:]...)
	}
	return append(out, r.buf[:r.head]...)
}

// Context is the dialog state of one session. It is not safe for
// concurrent use; Store serializes access per session.
type Context struct {
	sessionID    string
	topic        domain.IntentTag
	lastEntities *domain.EntitySet
	history      *historyRing
	state        domain.DialogState
	pending      []string
	updatedAt    time.Time
	policy       FieldPolicy
}

func NewContext(sessionID string, historySize int, policy FieldPolicy) *Context {
	if historySize < MinHistorySize || historySize > MaxHistorySize {
		historySize = DefaultHistorySize
	}
	return &Context{
		sessionID:    sessionID,
		lastEntities: domain.NewEntitySet(),
		history:      newHistoryRing(historySize),
		state:        domain.DialogStateInitial,
		policy:       policy,
	}
}

// Update records a turn. The dialog state and pending questions are
// recomputed from scratch from the intent's required fields and the
// merged entities.
func (c *Context) Update(text string, intent domain.IntentTag, entities *domain.EntitySet, at time.Time) {
	c.history.push(domain.HistoryEntry{
		Text:      text,
		Intent:    intent,
		Entities:  entities.Clone(),
		Timestamp: at,
	})
	c.lastEntities.Merge(entities)

	c.pending = nil
	for _, field := range c.policy.RequiredFields(intent) {
		if entities.Has(field) || c.lastEntities.Has(field) {
			continue
		}
		c.pending = append(c.pending, c.policy.Question(field))
	}
	if len(c.pending) > 0 {
		c.state = domain.DialogStateClarificationNeeded
	} else {
		c.state = domain.DialogStateComplete
	}

	if intent != domain.IntentGreeting && intent != domain.IntentUnknown {
		c.topic = intent
	}
	c.updatedAt = at
}

func (c *Context) State() domain.DialogState {
	return c.state
}

// PendingQuestions returns a copy of the follow-up prompts of the last turn.
func (c *Context) PendingQuestions() []string {
	if len(c.pending) == 0 {
		return nil
	}
	out := make([]string, len(c.pending))
	copy(out, c.pending)
	return out
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (c *Context) Snapshot() domain.ContextSnapshot {
	history := c.history.entries()
	for i := range history {
		history[i].Entities = history[i].Entities.Clone()
	}
	return domain.ContextSnapshot{
		SessionID:        c.sessionID,
		CurrentTopic:     c.topic,
		LastEntities:     c.lastEntities.Clone(),
		History:          history,
		DialogState:      c.state,
		PendingQuestions: c.PendingQuestions(),
		UpdatedAt:        c.updatedAt,
	}
}

// restoreContext rebuilds a context from a snapshot, keeping at most
// historySize of the newest turns.
func restoreContext(snap domain.ContextSnapshot, historySize int, policy FieldPolicy) *Context {
	c := NewContext(snap.SessionID, historySize, policy)
	c.topic = snap.CurrentTopic
	if snap.LastEntities != nil {
		c.lastEntities = snap.LastEntities.Clone()
	}
	history := snap.History
	if len(history) > c.history.size {
		history = history[len(history)-c.history.size:]
	}
	for _, h := range history {
		c.history.push(h)
	}
	if snap.DialogState != "" {
		c.state = snap.DialogState
	}
	c.pending = snap.PendingQuestions
	c.updatedAt = snap.UpdatedAt
	return c
}
