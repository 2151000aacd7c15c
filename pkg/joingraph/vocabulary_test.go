package joingraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleGraph() *Graph {
	return &Graph{
		Tables: map[string]Table{
			"technician":        {Columns: []string{"id", "name"}},
			"inspection":        {Columns: []string{"id", "work_order_id"}},
			"work_order":        {Columns: []string{"id"}},
			"schema_migrations": {Columns: []string{"version"}},
		},
	}
}

func TestVocabulary_ExcludesSystemTables(t *testing.T) {
	v := NewVocabulary(sampleGraph())
	entities := v.Entities()
	assert.NotContains(t, entities, "schema_migrations")
	assert.Contains(t, entities, "technician")
	assert.Contains(t, entities, "inspection")
	assert.Contains(t, entities, "work_order")
}

func TestVocabulary_PriorityOrderedFirst(t *testing.T) {
	v := NewVocabulary(sampleGraph(), WithPriority([]string{"work_order", "technician"}))
	entities := v.Entities()
	as := assert.New(t)
	as.Equal("work_order", entities[0])
	as.Equal("technician", entities[1])
}

func TestVocabulary_PriorityIgnoresMissingOrDeniedTables(t *testing.T) {
	v := NewVocabulary(sampleGraph(), WithPriority([]string{"no_such_table", "schema_migrations", "technician"}))
	entities := v.Entities()
	assert.Equal(t, []string{"technician", "inspection", "work_order"}, entities)
}

func TestVocabulary_TruncatesNonPriorityEntries(t *testing.T) {
	v := NewVocabulary(sampleGraph(), WithMaxEntries(1))
	entities := v.Entities()
	assert.Len(t, entities, 1)
	assert.Equal(t, "inspection", entities[0], "alphabetical first non-system table")
}

func TestVocabulary_CachedAfterFirstDerivation(t *testing.T) {
	graph := sampleGraph()
	v := NewVocabulary(graph)
	first := v.Entities()
	graph.Tables["new_table"] = Table{Columns: []string{"id"}}
	second := v.Entities()
	assert.Equal(t, first, second, "vocabulary must be immutable after first derivation")
}

func TestVocabulary_CustomDenyList(t *testing.T) {
	v := NewVocabulary(sampleGraph(), WithDenyList([]string{"technician"}))
	entities := v.Entities()
	assert.NotContains(t, entities, "technician")
	assert.Contains(t, entities, "schema_migrations", "overriding the deny-list drops the built-in defaults")
}
