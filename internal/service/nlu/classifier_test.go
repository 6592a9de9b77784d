package nlu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/domain"
)

func newTestClassifier(t *testing.T, opts ...ClassifierOption) (*Classifier, *Normalizer) {
	t.Helper()
	n := NewNormalizer()
	lib, err := DefaultLibrary(n)
	require.NoError(t, err)
	c, err := NewClassifier(lib, zap.NewNop(), opts...)
	require.NoError(t, err)
	return c, n
}

func topicSnapshot(topic domain.IntentTag) domain.ContextSnapshot {
	return domain.ContextSnapshot{
		CurrentTopic: topic,
		History: []domain.HistoryEntry{
			{Text: "создать задачу", Intent: topic, Entities: domain.NewEntitySet(), Timestamp: time.Now()},
		},
	}
}

func TestClassify_EveryTriggerWinsItsIntent(t *testing.T) {
	c, n := newTestClassifier(t)
	lib, err := DefaultLibrary(n)
	require.NoError(t, err)

	for _, p := range lib.Intents() {
		for _, trig := range p.Triggers {
			text := n.Normalize("Терра, " + trig)

			got := c.Classify(text, domain.ContextSnapshot{})

			require.Equal(t, p.Tag, got.Tag, "trigger %q", trig)
			require.Equal(t, 1.0, got.Confidence, "trigger %q", trig)
		}
	}
}

func TestClassify(t *testing.T) {
	c, n := newTestClassifier(t)

	tests := []struct {
		name     string
		text     string
		snapshot domain.ContextSnapshot
		wantTag  domain.IntentTag
		wantConf float64
	}{
		{"empty", "", domain.ContextSnapshot{}, domain.IntentUnknown, 0},
		{"priority intent wins", "запланировать встречу с командой", domain.ContextSnapshot{}, domain.IntentCalendar, 1},
		{"trigger inside sentence", "сформируй отчет по продажам за месяц", domain.ContextSnapshot{}, domain.IntentReport, 1},
		{"greeting pattern", "хай", domain.ContextSnapshot{}, domain.IntentGreeting, 1},
		{"below threshold without topic", "задачи создать", domain.ContextSnapshot{}, domain.IntentUnknown, 0.5},
		{"no match without topic", "да", domain.ContextSnapshot{}, domain.IntentUnknown, 0},
		{"fallback to topic", "да", topicSnapshot(domain.IntentTaskCreation), domain.IntentTaskCreation, DefaultFallbackConfidence},
		{"short reply stays on topic", "15:00", topicSnapshot(domain.IntentMeeting), domain.IntentMeeting, DefaultFallbackConfidence},
		{"topic without history is ignored", "да", domain.ContextSnapshot{CurrentTopic: domain.IntentSearch}, domain.IntentUnknown, 0},
		{"strong match overrides topic", "найди договор поставки", topicSnapshot(domain.IntentTaskCreation), domain.IntentSearch, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(n.Normalize(tt.text), tt.snapshot)

			require.Equal(t, tt.wantTag, got.Tag)
			require.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
			require.GreaterOrEqual(t, got.Confidence, 0.0)
			require.LessOrEqual(t, got.Confidence, 1.0)
		})
	}
}

type fixedScorer float64

func (f fixedScorer) Score(string) float64 { return float64(f) }

func TestClassify_CustomScorer(t *testing.T) {
	// Arrange
	c, _ := newTestClassifier(t, WithScorer("weather", fixedScorer(0.9)))

	// Act
	got := c.Classify("какая погода", domain.ContextSnapshot{})

	// Assert
	require.Equal(t, domain.IntentTag("weather"), got.Tag)
	require.Equal(t, 0.9, got.Confidence)
}

func TestClassify_ClampsScorerOutput(t *testing.T) {
	c, _ := newTestClassifier(t, WithScorer(domain.IntentFinance, fixedScorer(3.5)))

	got := c.Classify("что угодно", domain.ContextSnapshot{})

	require.Equal(t, domain.IntentFinance, got.Tag)
	require.Equal(t, 1.0, got.Confidence)
}

func TestNewClassifier_RejectsBadThresholds(t *testing.T) {
	lib := newTestLibrary(t)

	_, err := NewClassifier(lib, zap.NewNop(), WithThreshold(0))
	require.Error(t, err)

	_, err = NewClassifier(lib, zap.NewNop(), WithThreshold(0.6), WithFallbackConfidence(0.6))
	require.Error(t, err)

	c, err := NewClassifier(lib, zap.NewNop(), WithThreshold(0.6), WithFallbackConfidence(0.4))
	require.NoError(t, err)
	require.NotNil(t, c)
}
