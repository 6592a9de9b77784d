package nlu

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/domain"
)

// Extractor pulls structured entities out of a normalized utterance.
type Extractor struct {
	lib *Library
	loc *time.Location
	now func() time.Time
	log *zap.Logger
}

type ExtractorOption func(*Extractor)

// WithClock overrides the reference time used for relative dates.
func WithClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) { e.now = now }
}

func NewExtractor(lib *Library, loc *time.Location, log *zap.Logger, opts ...ExtractorOption) *Extractor {
	if loc == nil {
		loc = time.Local
	}
	e := &Extractor{
		lib: lib,
		loc: loc,
		now: time.Now,
		log: log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// scan tracks which tokens have been consumed by an extractor.
type scan struct {
	text   string
	tokens []string
	used   []bool
}

func newScan(text string) *scan {
	tokens := tokenize(text)
	return &scan{text: text, tokens: tokens, used: make([]bool, len(tokens))}
}

func (s *scan) consume(from, to int) {
	for i := from; i < to && i < len(s.used); i++ {
		s.used[i] = true
	}
}

func (s *scan) token(i int) (string, bool) {
	if i < 0 || i >= len(s.tokens) || s.used[i] {
		return "", false
	}
	return s.tokens[i], true
}

// Extract runs the generic extractors, then the intent-specific ones, then
// backfills required fields from prior. It never fails; unmatched patterns
// leave their key out.
func (e *Extractor) Extract(text string, tag domain.IntentTag, prior *domain.EntitySet) *domain.EntitySet {
	set := domain.NewEntitySet()
	pattern, known := e.lib.Lookup(tag)

	if text != "" {
		s := newScan(text)
		now := e.now().In(e.loc)

		if d, ok := e.extractDate(s, now); ok {
			set.Set(domain.EntityDate, domain.DateValue(d))
		}
		if h, m, ok := e.extractClock(s); ok {
			set.Set(domain.EntityTime, domain.TimeValue(h, m))
		}
		e.extractQuantities(s, set)
		e.extractPriority(s, pattern, set)

		if known {
			e.extractPayload(s, pattern, set)
			e.extractTaxonomies(s, pattern, set)
			if pattern.Flag != "" {
				set.Set(pattern.Flag, domain.FlagValue(true))
			}
		}
	} else if known && pattern.DefaultPriority != "" {
		set.Set(domain.EntityPriority, domain.PriorityValue(pattern.DefaultPriority))
	}

	if known {
		for _, field := range pattern.Required {
			if set.Has(field) {
				continue
			}
			if v, ok := prior.Get(field); ok {
				set.Set(field, v)
				e.log.Debug("Backfilled entity from context", zap.String("field", field), zap.String("intent", tag.String()))
			}
		}
	}
	return set
}

// extractPayload takes the text after the matched trigger, minus consumed
// spans and leading or trailing stopwords.
func (e *Extractor) extractPayload(s *scan, p *IntentPattern, set *domain.EntitySet) {
	if p.PayloadField == "" {
		return
	}
	end, ok := p.FindTrigger(s.text)
	if !ok {
		return
	}

	var words []string
	offset := 0
	for i, tok := range s.tokens {
		start := offset
		offset += len(tok) + 1
		if start < end || s.used[i] {
			continue
		}
		words = append(words, tok)
	}
	for len(words) > 0 && e.isStopword(words[0]) {
		words = words[1:]
	}
	for len(words) > 0 && e.isStopword(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	if len(words) == 0 {
		return
	}
	set.Set(p.PayloadField, domain.TextValue(strings.Join(words, " ")))
}

func (e *Extractor) isStopword(w string) bool {
	_, ok := e.lib.stopwords[w]
	return ok
}

func (e *Extractor) extractTaxonomies(s *scan, p *IntentPattern, set *domain.EntitySet) {
	for _, tx := range p.Taxonomies {
		if set.Has(tx.Field) {
			continue
		}
	values:
		for _, v := range tx.Values {
			for _, kw := range v.Keywords {
				if _, _, ok := findKeyword(s.tokens, kw, nil); ok {
					if tx.Kind == domain.KindStatus {
						set.Set(tx.Field, domain.StatusValue(domain.Status(v.Value)))
					} else {
						set.Set(tx.Field, domain.TextValue(v.Value))
					}
					break values
				}
			}
		}
	}
}

// extractPriority checks low-urgency phrasing first so "не срочно" is not
// read as urgent.
func (e *Extractor) extractPriority(s *scan, p *IntentPattern, set *domain.EntitySet) {
	for _, kw := range e.lib.lowPriority {
		if from, to, ok := findKeyword(s.tokens, kw, s.used); ok {
			s.consume(from, to)
			set.Set(domain.EntityPriority, domain.PriorityValue(domain.PriorityLow))
			return
		}
	}
	found := false
	for _, kw := range e.lib.highPriority {
		for {
			from, to, ok := findKeyword(s.tokens, kw, s.used)
			if !ok {
				break
			}
			s.consume(from, to)
			found = true
		}
	}
	if found {
		set.Set(domain.EntityPriority, domain.PriorityValue(domain.PriorityHigh))
		return
	}
	if p != nil && p.DefaultPriority != "" {
		set.Set(domain.EntityPriority, domain.PriorityValue(p.DefaultPriority))
	}
}

// findKeyword locates kw in tokens. Every keyword token but the last must
// match exactly; the last one matches as a prefix. Tokens marked in skip
// are never matched.
func findKeyword(tokens []string, kw string, skip []bool) (int, int, bool) {
	parts := tokenize(kw)
	if len(parts) == 0 {
		return 0, 0, false
	}
	last := len(parts) - 1
outer:
	for i := 0; i+len(parts) <= len(tokens); i++ {
		for k, part := range parts {
			j := i + k
			if skip != nil && skip[j] {
				continue outer
			}
			if k == last {
				if !strings.HasPrefix(tokens[j], part) {
					continue outer
				}
			} else if tokens[j] != part {
				continue outer
			}
		}
		return i, i + len(parts), true
	}
	return 0, 0, false
}
