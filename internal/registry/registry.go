// Package registry provides the immutable, versioned template registry:
// a context-key → template mapping loaded once and shared read-only by
// every annotation run. Reloads build a whole new snapshot and swap it
// atomically; in-flight runs keep the snapshot they started with.
package registry

import (
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/tree"
)

// Variant count bounds per template entry.
const (
	MinVariants = 5
	MaxVariants = 15
)

// TemplateEntry is one registry row: a context key mapped to a template
// with several pre-authored note variants.
type TemplateEntry struct {
	ContextKey string        `yaml:"context_key" json:"context_key"`
	TemplateID string        `yaml:"template_id" json:"template_id"`
	NodeFamily tree.NodeType `yaml:"node_family" json:"node_family"`
	Variants   []string      `yaml:"variants" json:"variants"`
}

// Validate checks the entry shape.
func (e TemplateEntry) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.ContextKey, validation.Required),
		validation.Field(&e.TemplateID, validation.Required),
		validation.Field(&e.NodeFamily, validation.Required, validation.In(tree.Sentence, tree.Phrase, tree.Word)),
		validation.Field(&e.Variants, validation.Required, validation.Length(MinVariants, MaxVariants)),
	)
}

// Snapshot is an immutable registry state. Safe for unsynchronized
// concurrent reads; never mutated after construction.
type Snapshot struct {
	version string
	byKey   map[string]TemplateEntry
	byID    map[string]TemplateEntry
	keys    []string
}

// NewSnapshot validates every entry and builds the lookup maps.
// Duplicate context keys or template ids are rejected.
func NewSnapshot(version string, entries []TemplateEntry) (*Snapshot, error) {
	if version == "" {
		return nil, fmt.Errorf("registry: version is required")
	}
	s := &Snapshot{
		version: version,
		byKey:   make(map[string]TemplateEntry, len(entries)),
		byID:    make(map[string]TemplateEntry, len(entries)),
	}
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("registry: entry %d (%s): %w", i, e.TemplateID, err)
		}
		if _, dup := s.byKey[e.ContextKey]; dup {
			return nil, fmt.Errorf("registry: duplicate context key %q", e.ContextKey)
		}
		if _, dup := s.byID[e.TemplateID]; dup {
			return nil, fmt.Errorf("registry: duplicate template id %q", e.TemplateID)
		}
		e.Variants = append([]string(nil), e.Variants...)
		s.byKey[e.ContextKey] = e
		s.byID[e.TemplateID] = e
		s.keys = append(s.keys, e.ContextKey)
	}
	sort.Strings(s.keys)
	return s, nil
}

// Version returns the registry format/content version (e.g. "v1").
func (s *Snapshot) Version() string { return s.version }

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.keys) }

// Lookup returns the entry for an exact context key.
func (s *Snapshot) Lookup(key string) (TemplateEntry, bool) {
	e, ok := s.byKey[key]
	return e, ok
}

// ByID returns the entry for a template id. Used by the two-stage flow,
// where the model predicts an id and the rule engine renders the text.
func (s *Snapshot) ByID(id string) (TemplateEntry, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// Entries returns all entries ordered by context key.
func (s *Snapshot) Entries() []TemplateEntry {
	out := make([]TemplateEntry, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.byKey[k])
	}
	return out
}
