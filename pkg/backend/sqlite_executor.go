package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/qa-router/pkg/memory"
)

// SQLiteExecutor runs generated queries against a *sql.DB and scans
// results into memory.Row generically, using column metadata rather
// than a fixed struct — the query text is only known at request time.
// Despite the name it works over any database/sql driver; it is named
// for the default deployment target (spec.md §6
// "conversation_db_path" sibling analytical database).
type SQLiteExecutor struct {
	db *sql.DB
}

// NewSQLiteExecutor wraps db. db is not owned by the executor and is
// not closed by it.
func NewSQLiteExecutor(db *sql.DB) *SQLiteExecutor {
	return &SQLiteExecutor{db: db}
}

// Execute implements backend.SQLExecutor. Only read-only statements are
// accepted; maxRows bounds how many result rows are scanned, with the
// remainder discarded (spec.md §6 "max_query_rows").
func (e *SQLiteExecutor) Execute(ctx context.Context, query string, maxRows int) ([]memory.Row, []string, error) {
	if err := requireReadOnly(query); err != nil {
		return nil, nil, err
	}

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("read columns: %w", err)
	}

	var result []memory.Row
	for rows.Next() {
		if maxRows > 0 && len(result) >= maxRows {
			break
		}

		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(memory.Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, tableNamesFromQuery(query), nil
}

// requireReadOnly rejects anything but a SELECT/WITH statement. The
// generator is expected to only ever produce read queries; this is a
// defense-in-depth check, not the primary safeguard.
func requireReadOnly(query string) error {
	trimmed := strings.TrimSpace(strings.ToUpper(query))
	if !strings.HasPrefix(trimmed, "SELECT") && !strings.HasPrefix(trimmed, "WITH") {
		return fmt.Errorf("only read-only queries are permitted")
	}
	return nil
}

// normalizeValue converts driver-returned byte slices (modernc.org/sqlite
// returns TEXT columns as []byte) into strings so memory.Row values are
// JSON-serializable and comparable.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// tableNamesFromQuery extracts the FROM/JOIN table names from query for
// attribution in memory.QueryResult.TablesUsed. This is a best-effort
// textual scan, not a parser — good enough for the simple single- or
// few-table analytical queries the SQL adapter generates.
func tableNamesFromQuery(query string) []string {
	upper := strings.ToUpper(query)
	fields := strings.Fields(upper)
	lowerFields := strings.Fields(query)

	seen := make(map[string]struct{})
	var tables []string
	for i, f := range fields {
		if (f == "FROM" || f == "JOIN") && i+1 < len(fields) {
			name := strings.Trim(lowerFields[i+1], `"'`+"`,;()")
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			tables = append(tables, name)
		}
	}
	return tables
}
