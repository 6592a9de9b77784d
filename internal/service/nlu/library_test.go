package nlu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seu-repo/terra-assistant/internal/domain"
)

func newTestLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := DefaultLibrary(NewNormalizer())
	require.NoError(t, err)
	return lib
}

func TestDefaultLibrary_Order(t *testing.T) {
	lib := newTestLibrary(t)

	intents := lib.Intents()
	require.Len(t, intents, 24)
	require.Equal(t, domain.IntentReminder, intents[0].Tag)
	require.Equal(t, domain.IntentCalendar, intents[1].Tag)
	require.Equal(t, domain.IntentMeeting, intents[2].Tag)
	for _, p := range intents[3:] {
		require.False(t, p.Priority, "intent %s", p.Tag)
	}
}

func TestDefaultLibrary_RequiredFields(t *testing.T) {
	lib := newTestLibrary(t)

	tests := []struct {
		tag  domain.IntentTag
		want []string
	}{
		{domain.IntentTaskCreation, []string{domain.EntityDescription}},
		{domain.IntentSearch, []string{domain.EntitySearchQuery}},
		{domain.IntentReport, []string{domain.EntityReportType, domain.EntityTimePeriod}},
		{domain.IntentReminder, []string{domain.EntityDescription}},
		{domain.IntentMeeting, []string{domain.EntityDate}},
		{domain.IntentFinance, nil},
		{domain.IntentUnknown, nil},
	}
	for _, tt := range tests {
		t.Run(tt.tag.String(), func(t *testing.T) {
			require.Equal(t, tt.want, lib.RequiredFields(tt.tag))
			for _, field := range tt.want {
				require.NotEmpty(t, lib.Question(field))
			}
		})
	}
}

func TestLoadLibrary_Errors(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "intents: [::"},
		{"no intents", "questions: {}"},
		{"missing tag", "intents:\n  - triggers: [a]\n"},
		{"reserved tag", "intents:\n  - tag: unknown\n    triggers: [a]\n"},
		{"no triggers", "intents:\n  - tag: x\n"},
		{"bad regex", "intents:\n  - tag: x\n    patterns: ['(']\n"},
		{"duplicate", "intents:\n  - tag: x\n    triggers: [a]\n  - tag: x\n    triggers: [b]\n"},
		{"required without question", "intents:\n  - tag: x\n    triggers: [a]\n    required: [date]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadLibrary([]byte(tt.yaml), n)
			require.Error(t, err)
		})
	}
}

func TestLoadLibrary_NormalizesTriggers(t *testing.T) {
	data := []byte("intents:\n  - tag: x\n    triggers: ['Терра, Отчёт!']\n")

	lib, err := LoadLibrary(data, NewNormalizer())

	require.NoError(t, err)
	p, ok := lib.Lookup("x")
	require.True(t, ok)
	require.Equal(t, []string{"отчет"}, p.Triggers)
}

func TestIntentPattern_FindTriggerPrefersLongest(t *testing.T) {
	lib := newTestLibrary(t)
	p, ok := lib.Lookup(domain.IntentProject)
	require.True(t, ok)

	end, found := p.FindTrigger("завершить проект сайт")

	require.True(t, found)
	require.Equal(t, len("завершить проект"), end)
}

func TestIntentPattern_ScoreOverlap(t *testing.T) {
	lib := newTestLibrary(t)
	p, _ := lib.Lookup(domain.IntentTaskCreation)

	require.Equal(t, 1.0, p.Score("создать задачу купить бумагу"))
	require.Equal(t, 0.5, p.Score("задачи создать"))
	require.Equal(t, 0.0, p.Score("погода"))
	require.Equal(t, 0.0, p.Score(""))
}
