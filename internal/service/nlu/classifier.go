package nlu

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/domain"
)

const (
	DefaultThreshold          = 0.7
	DefaultFallbackConfidence = 0.5
)

// Scorer rates how well a normalized utterance matches one intent.
type Scorer interface {
	Score(text string) float64
}

type scoredIntent struct {
	tag    domain.IntentTag
	scorer Scorer
}

// Classifier picks the best intent for a normalized utterance.
type Classifier struct {
	intents   []scoredIntent
	threshold float64
	fallback  float64
	log       *zap.Logger
}

type ClassifierOption func(*Classifier)

func WithThreshold(t float64) ClassifierOption {
	return func(c *Classifier) { c.threshold = t }
}

func WithFallbackConfidence(f float64) ClassifierOption {
	return func(c *Classifier) { c.fallback = f }
}

// WithScorer replaces the scorer of tag, or appends a new intent when the
// library does not define it.
func WithScorer(tag domain.IntentTag, s Scorer) ClassifierOption {
	return func(c *Classifier) {
		for i := range c.intents {
			if c.intents[i].tag == tag {
				c.intents[i].scorer = s
				return
			}
		}
		c.intents = append(c.intents, scoredIntent{tag: tag, scorer: s})
	}
}

func NewClassifier(lib *Library, log *zap.Logger, opts ...ClassifierOption) (*Classifier, error) {
	c := &Classifier{
		threshold: DefaultThreshold,
		fallback:  DefaultFallbackConfidence,
		log:       log,
	}
	for _, p := range lib.Intents() {
		c.intents = append(c.intents, scoredIntent{tag: p.Tag, scorer: p})
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.threshold <= 0 || c.threshold > 1 {
		return nil, fmt.Errorf("classifier: threshold %.2f outside (0,1]", c.threshold)
	}
	if c.fallback < 0 || c.fallback >= c.threshold {
		return nil, fmt.Errorf("classifier: fallback confidence %.2f must be in [0, threshold)", c.fallback)
	}
	return c, nil
}

// Classify returns the highest-scoring intent when it reaches the
// threshold. Below it, the session's current topic is kept with the
// fallback confidence; without a topic the result is unknown.
func (c *Classifier) Classify(text string, snapshot domain.ContextSnapshot) domain.Intent {
	if text == "" {
		return domain.Intent{Tag: domain.IntentUnknown, Confidence: 0}
	}

	bestTag := domain.IntentUnknown
	best := 0.0
	for _, si := range c.intents {
		score := clamp(si.scorer.Score(text))
		if score > best {
			best, bestTag = score, si.tag
		}
		if best == 1 {
			break
		}
	}

	if best >= c.threshold {
		return domain.Intent{Tag: bestTag, Confidence: best}
	}
	if snapshot.HasTopic() {
		c.log.Debug("Classification below threshold, keeping topic",
			zap.String("topic", snapshot.CurrentTopic.String()),
			zap.Float64("score", best),
		)
		return domain.Intent{Tag: snapshot.CurrentTopic, Confidence: c.fallback}
	}
	return domain.Intent{Tag: domain.IntentUnknown, Confidence: best}
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
