package nlu

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seu-repo/terra-assistant/internal/domain"
)

//go:embed phrases.yaml
var defaultPhrases []byte

type libraryFile struct {
	Questions        map[string]string `yaml:"questions"`
	PayloadStopwords []string          `yaml:"payload_stopwords"`
	PriorityKeywords struct {
		Low  []string `yaml:"low"`
		High []string `yaml:"high"`
	} `yaml:"priority_keywords"`
	Intents []intentFile `yaml:"intents"`
}

type intentFile struct {
	Tag             string         `yaml:"tag"`
	Priority        bool           `yaml:"priority"`
	Triggers        []string       `yaml:"triggers"`
	Patterns        []string       `yaml:"patterns"`
	Payload         string         `yaml:"payload"`
	Required        []string       `yaml:"required"`
	DefaultPriority string         `yaml:"default_priority"`
	Flag            string         `yaml:"flag"`
	Taxonomies      []taxonomyFile `yaml:"taxonomies"`
}

type taxonomyFile struct {
	Field  string `yaml:"field"`
	Kind   string `yaml:"kind"`
	Values []struct {
		Value    string   `yaml:"value"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"values"`
}

// IntentPattern is the compiled trigger set of one intent.
type IntentPattern struct {
	Tag             domain.IntentTag
	Priority        bool
	Triggers        []string
	Patterns        []*regexp.Regexp
	PayloadField    string
	Required        []string
	DefaultPriority domain.Priority
	Flag            string
	Taxonomies      []Taxonomy
}

// Taxonomy maps keywords in the utterance to an enumerated field value.
type Taxonomy struct {
	Field  string
	Kind   domain.EntityKind
	Values []TaxonomyValue
}

type TaxonomyValue struct {
	Value    string
	Keywords []string
}

// Library is the static registry of intents, follow-up questions and
// keyword lists used by the classifier and the extractor.
type Library struct {
	intents      []*IntentPattern
	byTag        map[domain.IntentTag]*IntentPattern
	questions    map[string]string
	stopwords    map[string]struct{}
	lowPriority  []string
	highPriority []string
}

// DefaultLibrary parses the embedded phrase catalog.
func DefaultLibrary(n *Normalizer) (*Library, error) {
	return LoadLibrary(defaultPhrases, n)
}

// LoadLibrary parses a YAML phrase catalog. Trigger phrases and keywords
// are normalized with n so they compare against normalized input.
func LoadLibrary(data []byte, n *Normalizer) (*Library, error) {
	var file libraryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse phrase library: %w", err)
	}
	if len(file.Intents) == 0 {
		return nil, fmt.Errorf("phrase library: no intents defined")
	}

	lib := &Library{
		byTag:     make(map[domain.IntentTag]*IntentPattern, len(file.Intents)),
		questions: make(map[string]string, len(file.Questions)),
		stopwords: make(map[string]struct{}, len(file.PayloadStopwords)),
	}
	for field, q := range file.Questions {
		lib.questions[field] = strings.TrimSpace(q)
	}
	for _, w := range file.PayloadStopwords {
		lib.stopwords[n.Normalize(w)] = struct{}{}
	}
	lib.lowPriority = normalizeAll(n, file.PriorityKeywords.Low)
	lib.highPriority = normalizeAll(n, file.PriorityKeywords.High)

	var priority, rest []*IntentPattern
	for _, raw := range file.Intents {
		p, err := compileIntent(raw, n)
		if err != nil {
			return nil, err
		}
		if _, dup := lib.byTag[p.Tag]; dup {
			return nil, fmt.Errorf("phrase library: duplicate intent %q", p.Tag)
		}
		for _, field := range p.Required {
			if _, ok := lib.questions[field]; !ok {
				return nil, fmt.Errorf("phrase library: intent %q requires %q but no question is defined", p.Tag, field)
			}
		}
		lib.byTag[p.Tag] = p
		if p.Priority {
			priority = append(priority, p)
		} else {
			rest = append(rest, p)
		}
	}
	lib.intents = append(priority, rest...)
	return lib, nil
}

func compileIntent(raw intentFile, n *Normalizer) (*IntentPattern, error) {
	tag := domain.IntentTag(strings.TrimSpace(raw.Tag))
	if tag == "" {
		return nil, fmt.Errorf("phrase library: intent without tag")
	}
	if tag == domain.IntentUnknown {
		return nil, fmt.Errorf("phrase library: %q is reserved", tag)
	}
	p := &IntentPattern{
		Tag:             tag,
		Priority:        raw.Priority,
		Triggers:        normalizeAll(n, raw.Triggers),
		PayloadField:    raw.Payload,
		Required:        raw.Required,
		DefaultPriority: domain.Priority(raw.DefaultPriority),
		Flag:            raw.Flag,
	}
	for _, expr := range raw.Patterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("phrase library: intent %q pattern %q: %w", tag, expr, err)
		}
		p.Patterns = append(p.Patterns, re)
	}
	if len(p.Triggers) == 0 && len(p.Patterns) == 0 {
		return nil, fmt.Errorf("phrase library: intent %q has no triggers", tag)
	}
	for _, tx := range raw.Taxonomies {
		kind := domain.KindText
		if tx.Kind == string(domain.KindStatus) {
			kind = domain.KindStatus
		}
		t := Taxonomy{Field: tx.Field, Kind: kind}
		for _, v := range tx.Values {
			t.Values = append(t.Values, TaxonomyValue{Value: v.Value, Keywords: normalizeAll(n, v.Keywords)})
		}
		p.Taxonomies = append(p.Taxonomies, t)
	}
	return p, nil
}

func normalizeAll(n *Normalizer, in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = n.Normalize(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Intents returns the patterns in classification order: priority intents
// first, then the rest in declaration order.
func (l *Library) Intents() []*IntentPattern {
	return l.intents
}

func (l *Library) Lookup(tag domain.IntentTag) (*IntentPattern, bool) {
	p, ok := l.byTag[tag]
	return p, ok
}

// RequiredFields returns the fields tag must eventually carry.
func (l *Library) RequiredFields(tag domain.IntentTag) []string {
	if p, ok := l.byTag[tag]; ok {
		return p.Required
	}
	return nil
}

// Question returns the follow-up prompt for a missing field.
func (l *Library) Question(field string) string {
	if q, ok := l.questions[field]; ok {
		return q
	}
	return fmt.Sprintf("Уточните, пожалуйста: %s", field)
}

// Score implements Scorer: 1.0 when a trigger occurs at a token boundary
// or a pattern matches, otherwise the best token-overlap ratio.
func (p *IntentPattern) Score(text string) float64 {
	if text == "" {
		return 0
	}
	if _, ok := p.FindTrigger(text); ok {
		return 1
	}
	input := tokenSet(text)
	best := 0.0
	for _, trig := range p.Triggers {
		if s := overlap(tokenSet(trig), input); s > best {
			best = s
		}
	}
	return best
}

// FindTrigger returns the byte offset just past the longest trigger
// present in text. Regex patterns are tried when no phrase matches.
func (p *IntentPattern) FindTrigger(text string) (int, bool) {
	end, bestLen := -1, 0
	for _, trig := range p.Triggers {
		if len(trig) <= bestLen {
			continue
		}
		if i := indexAtBoundary(text, trig); i >= 0 {
			end, bestLen = i+len(trig), len(trig)
		}
	}
	if end >= 0 {
		return end, true
	}
	for _, re := range p.Patterns {
		if loc := re.FindStringIndex(text); loc != nil {
			return loc[1], true
		}
	}
	return 0, false
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tokenize(text) {
		set[t] = struct{}{}
	}
	return set
}

func overlap(trigger, input map[string]struct{}) float64 {
	if len(trigger) == 0 || len(input) == 0 {
		return 0
	}
	shared := 0
	for t := range trigger {
		if _, ok := input[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(trigger), len(input)))
}
