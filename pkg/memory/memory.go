package memory

import (
	"sort"
	"time"
)

// DefaultCapacity is the default bound on the number of QueryResults a
// QueryResultMemory retains, matching the query_result_memory_size
// config default.
const DefaultCapacity = 5

// Clock returns the current time. A field rather than a direct
// time.Now() call so tests can inject a fixed clock and assert on
// QueryResult.Timestamp deterministically.
type Clock func() time.Time

// QueryResultMemory is a bounded ordered sequence of QueryResult, with
// capacity N. Insertion appends at the tail; once the length exceeds N
// the head (oldest entry) is evicted. It is a plain value type with no
// internal locking — it lives inside a WorkflowState and is owned
// exclusively by the conversation that holds that state, never shared
// across goroutines directly (spec.md §3 "Ownership").
type QueryResultMemory struct {
	capacity int
	results  []*QueryResult
	clock    Clock
}

// New creates an empty QueryResultMemory with the given capacity. A
// non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *QueryResultMemory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &QueryResultMemory{capacity: capacity, clock: time.Now}
}

// WithClock overrides the memory's clock, for deterministic tests.
func (m *QueryResultMemory) WithClock(clock Clock) *QueryResultMemory {
	m.clock = clock
	return m
}

// Len returns the number of results currently retained.
func (m *QueryResultMemory) Len() int {
	return len(m.results)
}

// Capacity returns the configured retention bound.
func (m *QueryResultMemory) Capacity() int {
	return m.capacity
}

// Add constructs a QueryResult and appends it, evicting the oldest
// entry if the memory is over capacity afterward. Adding an empty
// structuredData is a no-op, per spec.md §4.2.
func (m *QueryResultMemory) Add(question string, structuredData []Row, sqlQuery string, tablesUsed []string) {
	if len(structuredData) == 0 {
		return
	}
	result := newQueryResult(question, structuredData, sqlQuery, tablesUsed, m.clock())
	m.results = append(m.results, result)
	if len(m.results) > m.capacity {
		m.results = m.results[len(m.results)-m.capacity:]
	}
}

// Recent returns the last n results in reverse chronological order
// (most recent first). n is clamped to the number of results held.
func (m *QueryResultMemory) Recent(n int) []*QueryResult {
	if n <= 0 || len(m.results) == 0 {
		return nil
	}
	if n > len(m.results) {
		n = len(m.results)
	}
	out := make([]*QueryResult, n)
	for i := 0; i < n; i++ {
		out[i] = m.results[len(m.results)-1-i]
	}
	return out
}

// AllIdentifiers unions the Identifiers maps of the last n results,
// deduplicating values per column. Values are returned sorted.
func (m *QueryResultMemory) AllIdentifiers(n int) map[string][]string {
	sets := make(map[string]map[string]struct{})
	for _, result := range m.Recent(n) {
		for column, values := range result.Identifiers {
			set, ok := sets[column]
			if !ok {
				set = make(map[string]struct{})
				sets[column] = set
			}
			for _, v := range values {
				set[v] = struct{}{}
			}
		}
	}

	out := make(map[string][]string, len(sets))
	for column, set := range sets {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		sort.Strings(values)
		out[column] = values
	}
	return out
}
