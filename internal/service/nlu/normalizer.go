package nlu

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// wakePattern matches one token spelling of the assistant's name.
// Go's \b is ASCII-only, so the match runs per token.
var wakePattern = regexp.MustCompile(`^(т[еэ]рр?а|terr?a)$`)

var defaultFillers = []string{
	"ну", "эм", "ээ", "эээ", "ммм", "мм", "хм", "слушай", "пожалуйста", "эй",
}

// Normalizer canonicalizes raw utterances before classification.
type Normalizer struct {
	wake    map[string]struct{}
	phrases [][]string
	fillers map[string]struct{}
}

// NewNormalizer builds a normalizer. extraWake adds spellings of the wake
// phrase on top of the built-in variants; a multi-word spelling is only
// stripped where its words appear together and in order.
func NewNormalizer(extraWake ...string) *Normalizer {
	n := &Normalizer{
		wake:    make(map[string]struct{}),
		fillers: make(map[string]struct{}, len(defaultFillers)),
	}
	for _, f := range defaultFillers {
		n.fillers[f] = struct{}{}
	}
	for _, w := range extraWake {
		phrase := cleanTokens(strings.Fields(fold(w)))
		switch len(phrase) {
		case 0:
		case 1:
			n.wake[phrase[0]] = struct{}{}
		default:
			n.phrases = append(n.phrases, phrase)
		}
	}
	return n
}

// Normalize folds case, strips the wake phrase and filler tokens, trims
// punctuation at token edges and collapses whitespace. It is idempotent.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}
	tokens := cleanTokens(strings.Fields(fold(text)))
	// Dropping fillers can join the halves of a wake phrase, so both passes
	// repeat until the token list is stable.
	for {
		before := len(tokens)
		tokens = n.dropWakeAndFillers(n.stripPhrases(tokens))
		if len(tokens) == before {
			break
		}
	}
	return strings.Join(tokens, " ")
}

func (n *Normalizer) dropWakeAndFillers(tokens []string) []string {
	out := tokens[:0]
	for _, tok := range tokens {
		if n.isWake(tok) {
			continue
		}
		if _, ok := n.fillers[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// stripPhrases removes every multi-word wake phrase matched as a whole
// token sequence.
func (n *Normalizer) stripPhrases(tokens []string) []string {
	if len(n.phrases) == 0 {
		return tokens
	}
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		if k := n.phraseAt(tokens, i); k > 0 {
			i += k - 1
			continue
		}
		out = append(out, tokens[i])
	}
	return out
}

func (n *Normalizer) phraseAt(tokens []string, i int) int {
	for _, p := range n.phrases {
		if i+len(p) > len(tokens) {
			continue
		}
		match := true
		for k, part := range p {
			if tokens[i+k] != part {
				match = false
				break
			}
		}
		if match {
			return len(p)
		}
	}
	return 0
}

// cleanTokens trims punctuation from each token and drops empty ones.
func cleanTokens(tokens []string) []string {
	out := tokens[:0]
	for _, tok := range tokens {
		if tok = trimPunct(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func (n *Normalizer) isWake(tok string) bool {
	if wakePattern.MatchString(tok) {
		return true
	}
	_, ok := n.wake[tok]
	return ok
}

// fold lower-cases with Russian rules, composes to NFC and maps ё to е.
// A Caser keeps state, so one is created per call.
func fold(s string) string {
	s = cases.Lower(language.Russian).String(s)
	s = norm.NFC.String(s)
	return strings.ReplaceAll(s, "ё", "е")
}

func trimPunct(tok string) string {
	return strings.TrimFunc(tok, unicode.IsPunct)
}

// tokenize splits normalized text on single spaces.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, " ")
}

// indexAtBoundary returns the byte offset of the first occurrence of phrase
// in text that starts at a token boundary, or -1.
func indexAtBoundary(text, phrase string) int {
	if phrase == "" {
		return -1
	}
	offset := 0
	for offset <= len(text) {
		i := strings.Index(text[offset:], phrase)
		if i < 0 {
			return -1
		}
		pos := offset + i
		if pos == 0 || text[pos-1] == ' ' {
			return pos
		}
		offset = pos + 1
	}
	return -1
}
