package backend

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/qa-router/pkg/conversation"
	"github.com/codeready-toolchain/qa-router/pkg/memory"
)

// DefaultSQLMaxAttempts bounds the generate-execute-correct loop
// (spec.md §4.4, §6 "sql_agent_max_iterations").
const DefaultSQLMaxAttempts = 3

// SQLAdapter translates a question to SQL, executes it with a row cap,
// and on execution failure feeds the raw database error back into the
// translator for a bounded number of correction attempts (spec.md
// §4.4 "SQL adapter").
type SQLAdapter struct {
	translator  SQLTranslator
	executor    SQLExecutor
	vocabulary  []string
	maxAttempts int
	maxRows     int

	stream chan StreamChunk
}

// NewSQLAdapter creates a SQLAdapter. maxAttempts defaults to
// DefaultSQLMaxAttempts when non-positive.
func NewSQLAdapter(translator SQLTranslator, executor SQLExecutor, vocabulary []string, maxAttempts, maxRows int) *SQLAdapter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultSQLMaxAttempts
	}
	return &SQLAdapter{
		translator:  translator,
		executor:    executor,
		vocabulary:  vocabulary,
		maxAttempts: maxAttempts,
		maxRows:     maxRows,
		stream:      make(chan StreamChunk, 16),
	}
}

// Stream implements Adapter. The SQL adapter has no token-by-token
// narrative step of its own: each attempt emits a reasoning-channel
// chunk announcing query generation and, when a query was generated,
// a second one naming the query it executes; a final-channel chunk
// with the answer follows once a query succeeds.
func (a *SQLAdapter) Stream() <-chan StreamChunk { return a.stream }

// Answer implements Adapter.
func (a *SQLAdapter) Answer(ctx context.Context, question string, messages []conversation.Message, mem *memory.QueryResultMemory) (*AnswerResult, error) {
	defer close(a.stream)

	if len(a.vocabulary) == 0 {
		return nil, &DomainResolutionError{Question: question, Err: fmt.Errorf("no business-entity vocabulary available")}
	}

	memoryContext := ""
	if mem != nil {
		memoryContext = mem.FormatContext(mem.Len(), 0, true)
	}

	var (
		priorErr    string
		lastGenErr  error
		lastExecErr error
		lastQuery   string
	)

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := a.emit(ctx, ChannelReasoning, fmt.Sprintf("generating SQL (attempt %d/%d)...", attempt, a.maxAttempts)); err != nil {
			return nil, err
		}

		query, err := a.translator.Translate(ctx, TranslateRequest{
			Question:      question,
			Vocabulary:    a.vocabulary,
			MemoryContext: memoryContext,
			PriorError:    priorErr,
		})
		if err != nil {
			lastGenErr = err
			priorErr = err.Error()
			continue
		}
		lastQuery = query

		if err := a.emit(ctx, ChannelReasoning, fmt.Sprintf("executing: %s", query)); err != nil {
			return nil, err
		}

		rows, tablesUsed, err := a.executor.Execute(ctx, query, a.maxRows)
		if err != nil {
			lastExecErr = err
			priorErr = err.Error()
			continue
		}

		if mem != nil {
			mem.Add(question, rows, query, tablesUsed)
		}

		answer := renderRowSummary(rows)
		if err := a.emit(ctx, ChannelFinal, answer); err != nil {
			return nil, err
		}

		return &AnswerResult{
			AnswerText:     answer,
			StructuredData: rows,
			SQLQuery:       query,
			TablesUsed:     tablesUsed,
		}, nil
	}

	if lastExecErr != nil {
		return nil, &SQLExecutionError{Attempts: a.maxAttempts, Query: lastQuery, Err: lastExecErr}
	}
	return nil, &SQLGenerationError{Attempts: a.maxAttempts, Err: lastGenErr}
}

func (a *SQLAdapter) emit(ctx context.Context, channel Channel, content string) error {
	select {
	case a.stream <- StreamChunk{Channel: channel, Content: content}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// renderRowSummary builds a short narrative summary of a query's
// result set. The workflow/classifier layer is responsible for any
// richer presentation; this is the SQL adapter's own narrative text.
func renderRowSummary(rows []memory.Row) string {
	if len(rows) == 0 {
		return "The query returned no results."
	}
	if len(rows) == 1 {
		return "The query returned 1 row."
	}
	return fmt.Sprintf("The query returned %d rows.", len(rows))
}
