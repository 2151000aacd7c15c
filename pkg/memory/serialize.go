package memory

import "time"

// SerializedQueryResult is the JSON-compatible shape of a QueryResult,
// used for checkpoint persistence (pkg/conversation embeds this inside the
// serialized WorkflowState).
type SerializedQueryResult struct {
	Question       string              `json:"question"`
	StructuredData []Row               `json:"structured_data"`
	SQLQuery       string              `json:"sql_query,omitempty"`
	TablesUsed     []string            `json:"tables_used,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
	RowCount       int                 `json:"row_count"`
	Identifiers    map[string][]string `json:"identifiers"`
}

// SerializedMemory is the JSON-compatible shape of a QueryResultMemory.
type SerializedMemory struct {
	Capacity int                     `json:"capacity"`
	Results  []SerializedQueryResult `json:"results"`
}

// ToSerializable converts the memory to a JSON-compatible structure,
// preserving insertion order (oldest first).
func (m *QueryResultMemory) ToSerializable() SerializedMemory {
	out := SerializedMemory{
		Capacity: m.capacity,
		Results:  make([]SerializedQueryResult, len(m.results)),
	}
	for i, result := range m.results {
		out.Results[i] = SerializedQueryResult{
			Question:       result.Question,
			StructuredData: result.StructuredData,
			SQLQuery:       result.SQLQuery,
			TablesUsed:     result.TablesUsed,
			Timestamp:      result.Timestamp,
			RowCount:       result.RowCount,
			Identifiers:    result.Identifiers,
		}
	}
	return out
}

// FromSerializable reconstructs a QueryResultMemory from the structure
// produced by ToSerializable. Identifiers are trusted as given rather
// than recomputed, since they were frozen at original construction
// time and a round trip must reproduce the exact same memory.
func FromSerializable(s SerializedMemory) *QueryResultMemory {
	m := New(s.Capacity)
	m.results = make([]*QueryResult, len(s.Results))
	for i, sr := range s.Results {
		m.results[i] = &QueryResult{
			Question:       sr.Question,
			StructuredData: sr.StructuredData,
			SQLQuery:       sr.SQLQuery,
			TablesUsed:     sr.TablesUsed,
			Timestamp:      sr.Timestamp,
			RowCount:       sr.RowCount,
			Identifiers:    sr.Identifiers,
		}
	}
	return m
}
