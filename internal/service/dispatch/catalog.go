package dispatch

import (
	_ "embed"
	"fmt"
	"math/rand"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

//go:embed responses.yaml
var defaultResponses []byte

const (
	keyError   = "error"
	groupHello = "greeting"
	groupUnk   = "unknown"
)

type responseFile struct {
	Locale   string                       `yaml:"locale"`
	Messages map[string]string            `yaml:"messages"`
	Variants map[string][]string          `yaml:"variants"`
	Labels   map[string]map[string]string `yaml:"labels"`
}

// Catalog renders the assistant's replies in the configured locale.
type Catalog struct {
	printer  *message.Printer
	variants map[string]int
	labels   map[string]map[string]string
	pick     func(n int) int
}

type CatalogOption func(*Catalog)

// WithPicker overrides how a reply variant is chosen. pick receives the
// number of variants and returns an index.
func WithPicker(pick func(n int) int) CatalogOption {
	return func(c *Catalog) { c.pick = pick }
}

// DefaultCatalog loads the embedded Russian replies.
func DefaultCatalog(opts ...CatalogOption) (*Catalog, error) {
	return LoadCatalog(defaultResponses, opts...)
}

func LoadCatalog(data []byte, opts ...CatalogOption) (*Catalog, error) {
	var f responseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse responses: %w", err)
	}
	tag, err := language.Parse(f.Locale)
	if err != nil {
		return nil, fmt.Errorf("responses locale %q: %w", f.Locale, err)
	}
	if f.Messages[keyError] == "" {
		return nil, fmt.Errorf("responses: missing %q template", keyError)
	}
	for _, group := range []string{groupHello, groupUnk} {
		if len(f.Variants[group]) == 0 {
			return nil, fmt.Errorf("responses: no %q variants", group)
		}
	}

	b := catalog.NewBuilder(catalog.Fallback(tag))
	for key, msg := range f.Messages {
		if err := b.SetString(tag, key, msg); err != nil {
			return nil, fmt.Errorf("responses: message %q: %w", key, err)
		}
	}
	variants := make(map[string]int, len(f.Variants))
	for group, list := range f.Variants {
		for i, msg := range list {
			if err := b.SetString(tag, variantKey(group, i), msg); err != nil {
				return nil, fmt.Errorf("responses: variant %q: %w", group, err)
			}
		}
		variants[group] = len(list)
	}

	c := &Catalog{
		printer:  message.NewPrinter(tag, message.Catalog(b)),
		variants: variants,
		labels:   f.Labels,
		pick:     rand.Intn,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func variantKey(group string, i int) string {
	return fmt.Sprintf("%s#%d", group, i)
}

// Text renders the message stored under key.
func (c *Catalog) Text(key string, args ...interface{}) string {
	return c.printer.Sprintf(key, args...)
}

// Variant renders one of the group's variants.
func (c *Catalog) Variant(group string) string {
	n := c.variants[group]
	if n == 0 {
		return ""
	}
	i := c.pick(n)
	if i < 0 || i >= n {
		i = 0
	}
	return c.printer.Sprintf(variantKey(group, i))
}

// Variants returns every variant of group in declaration order.
func (c *Catalog) Variants(group string) []string {
	out := make([]string, c.variants[group])
	for i := range out {
		out[i] = c.printer.Sprintf(variantKey(group, i))
	}
	return out
}

// Label returns the display name of an enumerated entity value, or the
// value itself when none is defined.
func (c *Catalog) Label(field, value string) string {
	if l, ok := c.labels[field][value]; ok {
		return l
	}
	return value
}

// Error formats details with the fixed error template.
func (c *Catalog) Error(details string) string {
	return c.Text(keyError, details)
}
