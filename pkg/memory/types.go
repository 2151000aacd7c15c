// Package memory implements the query-result memory described in
// spec.md §4.2: a bounded FIFO of recent structured SQL results that
// lets a follow-up question cite identifiers ("that inspection") from
// an earlier answer without replaying the original query.
package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Row is a single structured result row: a mapping from column name to
// scalar value. Go map iteration order is randomized, so anywhere a
// row's columns must be rendered in a stable order (format_context,
// the six-column sample truncation) we sort column names
// lexicographically rather than relying on insertion order.
type Row map[string]any

// QueryResult is a single stored SQL outcome. Identifiers are computed
// once at construction time and are immutable afterward.
type QueryResult struct {
	Question       string
	StructuredData []Row
	SQLQuery       string
	TablesUsed     []string
	Timestamp      time.Time
	RowCount       int
	Identifiers    map[string][]string
}

// newQueryResult builds a QueryResult, deriving RowCount and
// Identifiers from structuredData. now is injected so callers (and
// tests) control the timestamp deterministically.
func newQueryResult(question string, structuredData []Row, sqlQuery string, tablesUsed []string, now time.Time) *QueryResult {
	return &QueryResult{
		Question:       question,
		StructuredData: structuredData,
		SQLQuery:       sqlQuery,
		TablesUsed:     tablesUsed,
		Timestamp:      now,
		RowCount:       len(structuredData),
		Identifiers:    extractIdentifiers(structuredData),
	}
}

// isIDColumn reports whether a column name is an identifier column:
// literally "id", or ending in the lowercase suffix "id" or the
// camelCase suffix "Id" (e.g. "inspection_id", "workOrderId").
func isIDColumn(column string) bool {
	if column == "id" {
		return true
	}
	return strings.HasSuffix(column, "id") || strings.HasSuffix(column, "Id")
}

// extractIdentifiers collects, for every ID column across all rows,
// the set of unique non-null values seen. Values are returned sorted
// for deterministic output.
func extractIdentifiers(rows []Row) map[string][]string {
	sets := make(map[string]map[string]struct{})
	for _, row := range rows {
		for column, value := range row {
			if value == nil || !isIDColumn(column) {
				continue
			}
			str := stringifyScalar(value)
			set, ok := sets[column]
			if !ok {
				set = make(map[string]struct{})
				sets[column] = set
			}
			set[str] = struct{}{}
		}
	}

	identifiers := make(map[string][]string, len(sets))
	for column, set := range sets {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		sort.Strings(values)
		identifiers[column] = values
	}
	return identifiers
}

// stringifyScalar renders a scalar value (string, number, bool) as
// text for identifier sets and prompt formatting.
func stringifyScalar(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// sortedColumns returns the row's column names in lexicographic order.
func sortedColumns(row Row) []string {
	columns := make([]string, 0, len(row))
	for column := range row {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}
