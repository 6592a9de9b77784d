package nlu

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/domain"
)

// Wednesday.
var testNow = time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

func newTestExtractor(t *testing.T) (*Extractor, *Normalizer) {
	t.Helper()
	n := NewNormalizer()
	lib, err := DefaultLibrary(n)
	require.NoError(t, err)
	e := NewExtractor(lib, time.UTC, zap.NewNop(), WithClock(func() time.Time { return testNow }))
	return e, n
}

func day(y int, m time.Month, d int) domain.EntityValue {
	return domain.DateValue(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

type kv struct {
	key string
	val domain.EntityValue
}

func entities(pairs ...kv) *domain.EntitySet {
	set := domain.NewEntitySet()
	for _, p := range pairs {
		set.Set(p.key, p.val)
	}
	return set
}

func TestExtract(t *testing.T) {
	e, n := newTestExtractor(t)

	tests := []struct {
		name  string
		text  string
		tag   domain.IntentTag
		prior *domain.EntitySet
		want  *domain.EntitySet
	}{
		{
			name: "task description after trigger",
			text: "Терра, создать задачу позвонить поставщику",
			tag:  domain.IntentTaskCreation,
			want: entities(
				kv{domain.EntityPriority, domain.PriorityValue(domain.PriorityNormal)},
				kv{domain.EntityDescription, domain.TextValue("позвонить поставщику")},
			),
		},
		{
			name: "reminder with date and clock",
			text: "напомни завтра в 10 позвонить маме",
			tag:  domain.IntentReminder,
			want: entities(
				kv{domain.EntityDate, day(2025, time.March, 13)},
				kv{domain.EntityTime, domain.TimeValue(10, 0)},
				kv{domain.EntityPriority, domain.PriorityValue(domain.PriorityNormal)},
				kv{domain.EntityDescription, domain.TextValue("позвонить маме")},
			),
		},
		{
			name:  "urgency only backfills description",
			text:  "срочно",
			tag:   domain.IntentTaskCreation,
			prior: entities(kv{domain.EntityDescription, domain.TextValue("позвонить поставщику")}),
			want: entities(
				kv{domain.EntityPriority, domain.PriorityValue(domain.PriorityHigh)},
				kv{domain.EntityDescription, domain.TextValue("позвонить поставщику")},
			),
		},
		{
			name: "fresh payload wins over prior",
			text: "добавь задачу купить бумагу срочно",
			tag:  domain.IntentTaskCreation,
			prior: entities(kv{domain.EntityDescription, domain.TextValue("старое")}),
			want: entities(
				kv{domain.EntityPriority, domain.PriorityValue(domain.PriorityHigh)},
				kv{domain.EntityDescription, domain.TextValue("купить бумагу")},
			),
		},
		{
			name: "low urgency is not high",
			text: "создать задачу не срочно обновить сайт",
			tag:  domain.IntentTaskCreation,
			want: entities(
				kv{domain.EntityPriority, domain.PriorityValue(domain.PriorityLow)},
				kv{domain.EntityDescription, domain.TextValue("обновить сайт")},
			),
		},
		{
			name: "no payload without a trigger",
			text: "позвонить поставщику",
			tag:  domain.IntentTaskCreation,
			want: entities(kv{domain.EntityPriority, domain.PriorityValue(domain.PriorityNormal)}),
		},
		{
			name: "report taxonomies",
			text: "сформируй отчет по продажам за месяц",
			tag:  domain.IntentReport,
			want: entities(
				kv{domain.EntityReportType, domain.TextValue("sales")},
				kv{domain.EntityTimePeriod, domain.TextValue("month")},
			),
		},
		{
			name: "project stage and name",
			text: "завершить проект сайт",
			tag:  domain.IntentProject,
			want: entities(
				kv{domain.EntityPriority, domain.PriorityValue(domain.PriorityMedium)},
				kv{domain.EntityProjectName, domain.TextValue("сайт")},
				kv{domain.EntityProjectStage, domain.StatusValue(domain.StatusCompleted)},
			),
		},
		{
			name: "inventory count",
			text: "заказать товар 50 штук",
			tag:  domain.IntentInventory,
			want: entities(
				kv{domain.EntityQuantity, domain.QuantityValue(50, "pcs")},
				kv{domain.EntityOperation, domain.TextValue("order")},
			),
		},
		{
			name: "finance amount",
			text: "оплата 1500 рублей поставщику",
			tag:  domain.IntentFinance,
			want: entities(
				kv{domain.EntityAmount, domain.QuantityValue(1500, "RUB")},
				kv{domain.EntitySubject, domain.TextValue("поставщику")},
				kv{domain.EntityOperation, domain.TextValue("payment")},
			),
		},
		{
			name: "meeting duration and weekday",
			text: "совещание в пятницу на 30 минут",
			tag:  domain.IntentMeeting,
			want: entities(
				kv{domain.EntityDate, day(2025, time.March, 14)},
				kv{domain.EntityDuration, domain.QuantityValue(30, "min")},
				kv{domain.EntityPriority, domain.PriorityValue(domain.PriorityMedium)},
			),
		},
		{
			name: "greeting flag",
			text: "привет",
			tag:  domain.IntentGreeting,
			want: entities(kv{domain.EntityGreeting, domain.FlagValue(true)}),
		},
		{
			name: "unknown intent keeps generic entities",
			text: "завтра",
			tag:  domain.IntentUnknown,
			want: entities(kv{domain.EntityDate, day(2025, time.March, 13)}),
		},
		{
			name: "empty text",
			text: "",
			tag:  domain.IntentUnknown,
			want: domain.NewEntitySet(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(n.Normalize(tt.text), tt.tag, tt.prior)

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("entities mismatch (-want +got):\n%s\nkeys: %v", diff, got.Keys())
			}
		})
	}
}

func TestExtract_Dates(t *testing.T) {
	e, n := newTestExtractor(t)

	tests := []struct {
		text string
		want *domain.EntityValue
	}{
		{"сегодня", ptr(day(2025, time.March, 12))},
		{"послезавтра", ptr(day(2025, time.March, 14))},
		{"через 3 дня", ptr(day(2025, time.March, 15))},
		{"через день", ptr(day(2025, time.March, 13))},
		{"через неделю", ptr(day(2025, time.March, 19))},
		{"через две недели", ptr(day(2025, time.March, 26))},
		{"через два месяца", ptr(day(2025, time.May, 12))},
		{"в понедельник", ptr(day(2025, time.March, 17))},
		{"в среду", ptr(day(2025, time.March, 19))},
		{"25.12.2025", ptr(day(2025, time.December, 25))},
		{"31.02.2025", nil},
		{"13.13.2025", nil},
		{"через", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := e.Extract(n.Normalize(tt.text), domain.IntentUnknown, nil).Get(domain.EntityDate)
			if tt.want == nil {
				require.False(t, ok, "unexpected date %s", got)
				return
			}
			require.True(t, ok)
			require.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestExtract_Clock(t *testing.T) {
	e, n := newTestExtractor(t)

	tests := []struct {
		text string
		want string
	}{
		{"в 15", "15:00"},
		{"к 9:30", "09:30"},
		{"at 8", "08:00"},
		{"в 3 часа", "03:00"},
		{"в 7 вечера", "19:00"},
		{"в 3 дня", "15:00"},
		{"в 12 дня", "12:00"},
		{"к 8 утра", "08:00"},
		{"встреча 15:30", "15:30"},
		{"в 25:00", ""},
		{"в 12:75", ""},
		{"в 24", ""},
		{"в 5 дней", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := e.Extract(n.Normalize(tt.text), domain.IntentUnknown, nil)
			require.Equal(t, tt.want, got.Text(domain.EntityTime))
		})
	}
}

func TestExtract_AfternoonClockIsNotDuration(t *testing.T) {
	// Arrange
	e, n := newTestExtractor(t)

	// Act
	got := e.Extract(n.Normalize("напомни позвонить в 3 дня"), domain.IntentReminder, nil)

	// Assert
	require.Equal(t, "15:00", got.Text(domain.EntityTime))
	require.False(t, got.Has(domain.EntityDuration))
	require.Equal(t, "позвонить", got.Text(domain.EntityDescription))
}

func TestExtract_Quantities(t *testing.T) {
	e, n := newTestExtractor(t)

	tests := []struct {
		text  string
		field string
		want  string
	}{
		{"$200", domain.EntityAmount, "200 USD"},
		{"15€", domain.EntityAmount, "15 EUR"},
		{"$ 40", domain.EntityAmount, "40 USD"},
		{"100 евро", domain.EntityAmount, "100 EUR"},
		{"2,5 часа", domain.EntityDuration, "2.5 h"},
		{"через 2 часа", domain.EntityDuration, "2 h"},
		{"10 единиц", domain.EntityQuantity, "10 pcs"},
		{"10 яблок", domain.EntityQuantity, ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := e.Extract(n.Normalize(tt.text), domain.IntentUnknown, nil)
			require.Equal(t, tt.want, got.Text(tt.field))
		})
	}
}

func TestExtract_BackfillOnlyRequiredFields(t *testing.T) {
	// Arrange
	e, n := newTestExtractor(t)
	prior := entities(
		kv{domain.EntityDescription, domain.TextValue("позвонить поставщику")},
		kv{domain.EntityAmount, domain.QuantityValue(10, "USD")},
	)

	// Act
	got := e.Extract(n.Normalize("срочно"), domain.IntentTaskCreation, prior)

	// Assert
	require.True(t, got.Has(domain.EntityDescription))
	require.False(t, got.Has(domain.EntityAmount))
}

func ptr(v domain.EntityValue) *domain.EntityValue { return &v }
