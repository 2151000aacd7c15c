package joingraph

import (
	"sort"
	"sync"
)

// DefaultMaxVocabulary bounds the business-entity vocabulary to a
// curated priority list plus up to this many additional tables
// (spec.md §9: "default 10 + priorities").
const DefaultMaxVocabulary = 10

// defaultSystemTableDenyList excludes well-known non-business tables
// (migration tracking, sync logs) from the classifier's vocabulary.
var defaultSystemTableDenyList = map[string]struct{}{
	"schema_migrations":      {},
	"migrations":             {},
	"sync_log":               {},
	"audit_log":              {},
	"ar_internal_metadata":   {},
	"flyway_schema_history":  {},
	"gorp_migrations":        {},
}

// Vocabulary derives and caches the business-entity vocabulary used by
// the classifier. Derivation happens lazily on first use and the
// result is immutable thereafter (spec.md §5, §9).
type Vocabulary struct {
	graph      *Graph
	denyList   map[string]struct{}
	priority   []string
	maxEntries int

	once     sync.Once
	entities []string
}

// VocabularyOption configures vocabulary derivation.
type VocabularyOption func(*Vocabulary)

// WithDenyList overrides the default system-table deny-list.
func WithDenyList(tables []string) VocabularyOption {
	return func(v *Vocabulary) {
		deny := make(map[string]struct{}, len(tables))
		for _, t := range tables {
			deny[t] = struct{}{}
		}
		v.denyList = deny
	}
}

// WithPriority sets the curated priority list of table names that are
// always included (ahead of the truncation bound) and ordered first.
func WithPriority(tables []string) VocabularyOption {
	return func(v *Vocabulary) { v.priority = tables }
}

// WithMaxEntries overrides DefaultMaxVocabulary for the non-priority
// portion of the vocabulary.
func WithMaxEntries(max int) VocabularyOption {
	return func(v *Vocabulary) { v.maxEntries = max }
}

// NewVocabulary creates a Vocabulary over graph. Derivation is
// deferred until Entities() is first called.
func NewVocabulary(graph *Graph, opts ...VocabularyOption) *Vocabulary {
	v := &Vocabulary{
		graph:      graph,
		denyList:   defaultSystemTableDenyList,
		maxEntries: DefaultMaxVocabulary,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Entities returns the business-entity vocabulary: the curated
// priority list (in order, deny-list and existence filtered) followed
// by the remaining non-system tables (alphabetical, for determinism),
// truncated to maxEntries additional entries.
func (v *Vocabulary) Entities() []string {
	v.once.Do(func() {
		v.entities = v.derive()
	})
	return v.entities
}

func (v *Vocabulary) derive() []string {
	present := make(map[string]struct{}, len(v.graph.Tables))
	for name := range v.graph.Tables {
		present[name] = struct{}{}
	}

	seen := make(map[string]struct{})
	entities := make([]string, 0, len(v.priority)+v.maxEntries)

	for _, name := range v.priority {
		if _, ok := present[name]; !ok {
			continue
		}
		if _, excluded := v.denyList[name]; excluded {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		entities = append(entities, name)
	}

	remaining := make([]string, 0, len(present))
	for name := range present {
		if _, excluded := v.denyList[name]; excluded {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		remaining = append(remaining, name)
	}
	sort.Strings(remaining)

	if len(remaining) > v.maxEntries {
		remaining = remaining[:v.maxEntries]
	}
	entities = append(entities, remaining...)

	return entities
}
