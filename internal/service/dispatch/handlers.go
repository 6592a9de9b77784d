package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/domain"
	"github.com/seu-repo/terra-assistant/internal/ports"
)

// Handler produces the reply for one intent. Handlers only read entities;
// a missing required entity is answered with a follow-up question.
type Handler interface {
	Handle(ctx context.Context, entities *domain.EntitySet) (string, error)
}

type HandlerFunc func(ctx context.Context, entities *domain.EntitySet) (string, error)

func (f HandlerFunc) Handle(ctx context.Context, entities *domain.EntitySet) (string, error) {
	return f(ctx, entities)
}

// Prompter supplies the follow-up question for a missing field.
type Prompter interface {
	Question(field string) string
}

// Fault is a handler failure whose Message is safe to show to the user.
type Fault struct {
	Message string
	Err     error
}

func (f *Fault) Error() string { return f.Message }

func (f *Fault) Unwrap() error { return f.Err }

type sessionKey struct{}

// WithSessionID attaches the session id handlers may need for side effects.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func SessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// Handlers builds the intent handler table.
type Handlers struct {
	catalog *Catalog
	prompts Prompter
	tasks   ports.TaskRepository
	now     func() time.Time
	log     *zap.Logger
}

// NewHandlers creates the handler set. tasks may be nil, in which case task
// creation only answers.
func NewHandlers(cat *Catalog, prompts Prompter, tasks ports.TaskRepository, log *zap.Logger) *Handlers {
	return &Handlers{
		catalog: cat,
		prompts: prompts,
		tasks:   tasks,
		now:     time.Now,
		log:     log,
	}
}

// Table maps every known intent to its handler.
func (h *Handlers) Table() map[domain.IntentTag]Handler {
	t := map[domain.IntentTag]Handler{
		domain.IntentGreeting:         HandlerFunc(h.greet),
		domain.IntentTaskCreation:     HandlerFunc(h.createTask),
		domain.IntentReminder:         HandlerFunc(h.remind),
		domain.IntentCalendar:         HandlerFunc(h.calendar),
		domain.IntentMeeting:          HandlerFunc(h.meeting),
		domain.IntentDocumentAnalysis: HandlerFunc(h.analyzeDocument),
		domain.IntentContact:          HandlerFunc(h.contact),
		domain.IntentSearch:           HandlerFunc(h.search),
		domain.IntentProject:          HandlerFunc(h.project),
		domain.IntentReport:           HandlerFunc(h.report),
	}
	for _, tag := range []domain.IntentTag{
		domain.IntentMarketing, domain.IntentClient, domain.IntentSupplier,
		domain.IntentQuality, domain.IntentRisk, domain.IntentStrategy,
		domain.IntentCompliance, domain.IntentInnovation, domain.IntentAnalytics,
	} {
		t[tag] = h.section(tag, domain.EntitySubject, "")
	}
	t[domain.IntentEmployee] = h.section(domain.IntentEmployee, domain.EntitySubject, domain.EntityTopic)
	t[domain.IntentContract] = h.section(domain.IntentContract, domain.EntitySubject, domain.EntityOperation)
	t[domain.IntentFinance] = h.section(domain.IntentFinance, domain.EntitySubject, domain.EntityOperation)
	t[domain.IntentSales] = h.section(domain.IntentSales, domain.EntitySubject, domain.EntityOperation)
	t[domain.IntentInventory] = h.section(domain.IntentInventory, domain.EntityProduct, domain.EntityOperation)
	return t
}

// Default answers intents missing from the table.
func (h *Handlers) Default() Handler {
	return HandlerFunc(func(ctx context.Context, _ *domain.EntitySet) (string, error) {
		return h.catalog.Variant(groupUnk), nil
	})
}

func (h *Handlers) greet(ctx context.Context, _ *domain.EntitySet) (string, error) {
	return h.catalog.Variant(groupHello), nil
}

func (h *Handlers) createTask(ctx context.Context, e *domain.EntitySet) (string, error) {
	desc := e.Text(domain.EntityDescription)
	if desc == "" {
		return h.prompts.Question(domain.EntityDescription), nil
	}

	now := h.now()
	task := &domain.Task{
		ID:          uuid.NewString(),
		SessionID:   SessionIDFrom(ctx),
		Title:       domain.TaskTitle(desc),
		Description: desc,
		Status:      domain.TaskStatusPending,
		Category:    domain.IntentTaskCreation.String(),
		Priority:    priorityOf(e),
		DueDate:     dueDate(e),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if h.tasks != nil {
		if err := h.tasks.Save(ctx, task); err != nil {
			h.log.Error("Failed to save task", zap.String("session_id", task.SessionID), zap.Error(err))
			return "", &Fault{Message: h.catalog.Text("task.failed"), Err: err}
		}
	}

	var reply string
	if when := whenOf(e); when != "" {
		reply = h.catalog.Text("task.created_due", desc, when)
	} else {
		reply = h.catalog.Text("task.created", desc)
	}
	return h.withPriority(reply, e), nil
}

func (h *Handlers) remind(ctx context.Context, e *domain.EntitySet) (string, error) {
	desc := e.Text(domain.EntityDescription)
	if desc == "" {
		return h.prompts.Question(domain.EntityDescription), nil
	}
	if when := whenOf(e); when != "" {
		return h.withPriority(h.catalog.Text("reminder.set_at", when, desc), e), nil
	}
	return h.withPriority(h.catalog.Text("reminder.set", desc), e), nil
}

func (h *Handlers) calendar(ctx context.Context, e *domain.EntitySet) (string, error) {
	subject := e.Text(domain.EntitySubject)
	when := whenOf(e)
	switch {
	case subject != "" && when != "":
		return h.catalog.Text("calendar.add_at", when, subject), nil
	case subject != "":
		return h.catalog.Text("calendar.add", subject), nil
	case when != "":
		return h.catalog.Text("calendar.day", when), nil
	default:
		return h.catalog.Text("calendar.open"), nil
	}
}

func (h *Handlers) meeting(ctx context.Context, e *domain.EntitySet) (string, error) {
	if !e.Has(domain.EntityDate) {
		return h.prompts.Question(domain.EntityDate), nil
	}
	when := whenOf(e)
	if subject := e.Text(domain.EntitySubject); subject != "" {
		return h.withPriority(h.catalog.Text("meeting.scheduled_subject", subject, when), e), nil
	}
	return h.withPriority(h.catalog.Text("meeting.scheduled", when), e), nil
}

func (h *Handlers) analyzeDocument(ctx context.Context, e *domain.EntitySet) (string, error) {
	if t := e.Text(domain.EntityDocumentType); t != "" {
		return h.catalog.Text("document.started_type", h.catalog.Label(domain.EntityDocumentType, t)), nil
	}
	return h.catalog.Text("document.started"), nil
}

func (h *Handlers) contact(ctx context.Context, e *domain.EntitySet) (string, error) {
	if name := e.Text(domain.EntityContactName); name != "" {
		return h.catalog.Text("contact.find", name), nil
	}
	return h.catalog.Text("contact.list"), nil
}

func (h *Handlers) search(ctx context.Context, e *domain.EntitySet) (string, error) {
	query := e.Text(domain.EntitySearchQuery)
	if query == "" {
		return h.prompts.Question(domain.EntitySearchQuery), nil
	}
	return h.catalog.Text("search.started", query), nil
}

func (h *Handlers) project(ctx context.Context, e *domain.EntitySet) (string, error) {
	name := e.Text(domain.EntityProjectName)
	var parts []string
	switch {
	case name != "" && e.Has(domain.EntityProjectStage):
		stage := h.catalog.Label(domain.EntityProjectStage, e.Text(domain.EntityProjectStage))
		parts = append(parts, h.catalog.Text("project.status", name, stage))
	case name != "":
		parts = append(parts, h.catalog.Text("project.named", name))
	default:
		parts = append(parts, h.catalog.Text("project.overview"))
	}
	if team := e.Text(domain.EntityTeam); team != "" {
		parts = append(parts, h.catalog.Text("project.team", h.catalog.Label(domain.EntityTeam, team)))
	}
	return strings.Join(parts, " "), nil
}

func (h *Handlers) report(ctx context.Context, e *domain.EntitySet) (string, error) {
	for _, field := range []string{domain.EntityReportType, domain.EntityTimePeriod} {
		if !e.Has(field) {
			return h.prompts.Question(field), nil
		}
	}
	kind := h.catalog.Label(domain.EntityReportType, e.Text(domain.EntityReportType))
	period := h.catalog.Label(domain.EntityTimePeriod, e.Text(domain.EntityTimePeriod))
	return h.catalog.Text("report.prepare", kind, period), nil
}

// section answers the topic intents that only open a business area,
// optionally narrowed by an enumerated field and a free-text request.
func (h *Handlers) section(tag domain.IntentTag, payloadField, enumField string) Handler {
	return HandlerFunc(func(ctx context.Context, e *domain.EntitySet) (string, error) {
		name := h.catalog.Label("section", tag.String())
		request := e.Text(payloadField)
		op := ""
		if enumField != "" && e.Has(enumField) {
			op = h.catalog.Label(enumField, e.Text(enumField))
		}
		switch {
		case op != "" && request != "":
			return h.catalog.Text("section.operation_request", name, op, request), nil
		case op != "":
			return h.catalog.Text("section.operation", name, op), nil
		case request != "":
			return h.catalog.Text("section.request", name, request), nil
		default:
			return h.catalog.Text("section.open", name), nil
		}
	})
}

func (h *Handlers) withPriority(reply string, e *domain.EntitySet) string {
	v, ok := e.Get(domain.EntityPriority)
	if !ok {
		return reply
	}
	switch v.Priority {
	case domain.PriorityHigh:
		return reply + " " + h.catalog.Text("priority.high")
	case domain.PriorityLow:
		return reply + " " + h.catalog.Text("priority.low")
	default:
		return reply
	}
}

func priorityOf(e *domain.EntitySet) domain.Priority {
	if v, ok := e.Get(domain.EntityPriority); ok && v.Priority != "" {
		return v.Priority
	}
	return domain.PriorityNormal
}

// dueDate combines the date and time entities. A time without a date has
// no due date.
func dueDate(e *domain.EntitySet) *time.Time {
	d, ok := e.Get(domain.EntityDate)
	if !ok {
		return nil
	}
	due := d.Date
	if t, ok := e.Get(domain.EntityTime); ok && t.Clock != nil {
		due = time.Date(due.Year(), due.Month(), due.Day(), t.Clock.Hour, t.Clock.Minute, 0, 0, due.Location())
	}
	return &due
}

// whenOf renders the date and time entities as "02.01.2006 15:04", either
// part alone, or "".
func whenOf(e *domain.EntitySet) string {
	var parts []string
	if d := e.Text(domain.EntityDate); d != "" {
		parts = append(parts, d)
	}
	if t := e.Text(domain.EntityTime); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}
