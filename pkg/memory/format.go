package memory

import (
	"fmt"
	"sort"
	"strings"
)

// charsPerToken is the rough token-budget heuristic from spec.md §4.2:
// one token is approximated as four characters.
const charsPerToken = 4

// maxSampleIDValues caps how many representative identifier values are
// listed per ID column before the remainder is summarized by count.
const maxSampleIDValues = 5

// maxSampleRows and maxSampleColumns bound the optional row preview.
const (
	maxSampleRows    = 2
	maxSampleColumns = 6
)

// FormatContext renders a plain-text block describing the last n
// results, for inclusion in a classifier or SQL prompt. If the
// rendered block exceeds maxTokens, sample rows are dropped first; if
// still over budget, n is decremented and the whole block is
// re-rendered. The recursion is bounded because n decreases
// monotonically toward zero.
func (m *QueryResultMemory) FormatContext(n int, maxTokens int, includeSamples bool) string {
	return m.formatContext(n, maxTokens, includeSamples)
}

func (m *QueryResultMemory) formatContext(n int, maxTokens int, includeSamples bool) string {
	results := m.Recent(n)
	if len(results) == 0 {
		return ""
	}

	block := renderBlock(results, includeSamples)
	if maxTokens <= 0 || estimateTokens(block) <= maxTokens {
		return block
	}

	// Over budget: first try dropping sample rows.
	if includeSamples {
		return m.formatContext(n, maxTokens, false)
	}

	// Still over budget with no samples: shrink the window. n decreases
	// monotonically, so this recursion terminates at n == 0 (empty string).
	if n > 0 {
		return m.formatContext(n-1, maxTokens, includeSamples)
	}
	return ""
}

func estimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}

func renderBlock(results []*QueryResult, includeSamples bool) string {
	var b strings.Builder
	b.WriteString("Recent query results:\n")

	for i, result := range results {
		fmt.Fprintf(&b, "%d. Question: %s\n", i+1, result.Question)
		if len(result.TablesUsed) > 0 {
			fmt.Fprintf(&b, "   Tables: %s\n", strings.Join(result.TablesUsed, ", "))
		}
		fmt.Fprintf(&b, "   Rows: %d\n", result.RowCount)

		for _, column := range sortedIdentifierColumns(result.Identifiers) {
			values := result.Identifiers[column]
			shown := values
			remainder := 0
			if len(values) > maxSampleIDValues {
				shown = values[:maxSampleIDValues]
				remainder = len(values) - maxSampleIDValues
			}
			if remainder > 0 {
				fmt.Fprintf(&b, "   %s: %s (+%d more)\n", column, strings.Join(shown, ", "), remainder)
			} else {
				fmt.Fprintf(&b, "   %s: %s\n", column, strings.Join(shown, ", "))
			}
		}

		if includeSamples {
			writeSampleRows(&b, result.StructuredData)
		}
	}

	return b.String()
}

func sortedIdentifierColumns(identifiers map[string][]string) []string {
	columns := make([]string, 0, len(identifiers))
	for column := range identifiers {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

func writeSampleRows(b *strings.Builder, rows []Row) {
	limit := len(rows)
	if limit > maxSampleRows {
		limit = maxSampleRows
	}
	for i := 0; i < limit; i++ {
		columns := sortedColumns(rows[i])
		if len(columns) > maxSampleColumns {
			columns = columns[:maxSampleColumns]
		}
		parts := make([]string, len(columns))
		for j, column := range columns {
			parts[j] = fmt.Sprintf("%s=%v", column, rows[i][column])
		}
		fmt.Fprintf(b, "   sample: %s\n", strings.Join(parts, ", "))
	}
}
