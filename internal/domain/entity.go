package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Entity field names shared across packages. Cross-cutting keys may be
// produced for any intent; the rest are intent scoped.
const (
	EntityDate     = "date"
	EntityTime     = "time"
	EntityPriority = "priority"
	EntityQuantity = "quantity"
	EntityDuration = "duration"
	EntityAmount   = "amount"

	EntityDescription  = "description"
	EntitySearchQuery  = "search_query"
	EntityReportType   = "report_type"
	EntityTimePeriod   = "time_period"
	EntityProjectName  = "project_name"
	EntityProjectStage = "stage"
	EntityTeam         = "team"
	EntityDocumentType = "document_type"
	EntityOperation    = "operation"
	EntityContactName  = "contact_name"
	EntitySubject      = "subject"
	EntityProduct      = "product"
	EntityTopic        = "topic"
	EntityGreeting     = "greeting"
)

// EntityKind tags the concrete type held by an EntityValue.
type EntityKind string

const (
	KindText     EntityKind = "text"
	KindDate     EntityKind = "date"
	KindTime     EntityKind = "time"
	KindQuantity EntityKind = "quantity"
	KindPriority EntityKind = "priority"
	KindStatus   EntityKind = "status"
	KindFlag     EntityKind = "flag"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusOnHold     Status = "on_hold"
)

// ClockTime is a wall-clock time of day without a date.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Quantity is a number with a canonical unit ("pcs", "min", "h", "d", "wk", "RUB", "USD", "EUR").
type Quantity struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

func (q Quantity) String() string {
	return strconv.FormatFloat(q.Amount, 'f', -1, 64) + " " + q.Unit
}

// EntityValue is a typed entity value. Only the field matching Kind is set.
type EntityValue struct {
	Kind     EntityKind `json:"kind"`
	Text     string     `json:"text,omitempty"`
	Date     time.Time  `json:"date,omitzero"`
	Clock    *ClockTime `json:"clock,omitempty"`
	Quantity *Quantity  `json:"quantity,omitempty"`
	Priority Priority   `json:"priority,omitempty"`
	Status   Status     `json:"status,omitempty"`
	Flag     bool       `json:"flag,omitempty"`
}

func TextValue(s string) EntityValue {
	return EntityValue{Kind: KindText, Text: s}
}

func DateValue(t time.Time) EntityValue {
	return EntityValue{Kind: KindDate, Date: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())}
}

func TimeValue(hour, minute int) EntityValue {
	return EntityValue{Kind: KindTime, Clock: &ClockTime{Hour: hour, Minute: minute}}
}

func QuantityValue(amount float64, unit string) EntityValue {
	return EntityValue{Kind: KindQuantity, Quantity: &Quantity{Amount: amount, Unit: unit}}
}

func PriorityValue(p Priority) EntityValue {
	return EntityValue{Kind: KindPriority, Priority: p}
}

func StatusValue(s Status) EntityValue {
	return EntityValue{Kind: KindStatus, Status: s}
}

func FlagValue(b bool) EntityValue {
	return EntityValue{Kind: KindFlag, Flag: b}
}

// String renders the value for responses and logs.
func (v EntityValue) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindDate:
		return v.Date.Format("02.01.2006")
	case KindTime:
		if v.Clock == nil {
			return ""
		}
		return v.Clock.String()
	case KindQuantity:
		if v.Quantity == nil {
			return ""
		}
		return v.Quantity.String()
	case KindPriority:
		return string(v.Priority)
	case KindStatus:
		return string(v.Status)
	case KindFlag:
		return strconv.FormatBool(v.Flag)
	default:
		return ""
	}
}

// Equal reports whether two values hold the same kind and payload.
func (v EntityValue) Equal(o EntityValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindDate:
		return v.Date.Equal(o.Date)
	case KindTime:
		return v.Clock != nil && o.Clock != nil && *v.Clock == *o.Clock
	case KindQuantity:
		return v.Quantity != nil && o.Quantity != nil && *v.Quantity == *o.Quantity
	default:
		return v.Text == o.Text && v.Priority == o.Priority && v.Status == o.Status && v.Flag == o.Flag
	}
}

// EntitySet is an insertion-ordered mapping from field name to value.
// Overwriting an existing key keeps its original position.
type EntitySet struct {
	keys   []string
	values map[string]EntityValue
}

func NewEntitySet() *EntitySet {
	return &EntitySet{values: make(map[string]EntityValue)}
}

func (s *EntitySet) Set(key string, v EntityValue) {
	if s.values == nil {
		s.values = make(map[string]EntityValue)
	}
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = v
}

func (s *EntitySet) Get(key string) (EntityValue, bool) {
	if s == nil {
		return EntityValue{}, false
	}
	v, ok := s.values[key]
	return v, ok
}

func (s *EntitySet) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Text returns the rendered value for key, or "" when absent.
func (s *EntitySet) Text(key string) string {
	v, ok := s.Get(key)
	if !ok {
		return ""
	}
	return v.String()
}

func (s *EntitySet) Delete(key string) {
	if s == nil {
		return
	}
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

func (s *EntitySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Keys returns the field names in insertion order.
func (s *EntitySet) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s *EntitySet) Clone() *EntitySet {
	out := NewEntitySet()
	if s == nil {
		return out
	}
	for _, k := range s.keys {
		out.Set(k, s.values[k])
	}
	return out
}

// Merge copies every entry of other into s, overwriting values of shared keys.
func (s *EntitySet) Merge(other *EntitySet) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		s.Set(k, other.values[k])
	}
}

// Equal compares keys, order and values.
func (s *EntitySet) Equal(o *EntitySet) bool {
	if s.Len() != o.Len() {
		return false
	}
	for i, k := range s.Keys() {
		if o.keys[i] != k {
			return false
		}
		if !s.values[k].Equal(o.values[k]) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a JSON object preserving key order.
func (s *EntitySet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal entity %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object produced by MarshalJSON, keeping key order.
func (s *EntitySet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("entity set: expected object, got %v", tok)
	}
	s.keys = nil
	s.values = make(map[string]EntityValue)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("entity set: expected key, got %v", tok)
		}
		var v EntityValue
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("entity set: decode %q: %w", key, err)
		}
		s.Set(key, v)
	}
	_, err = dec.Token()
	return err
}
