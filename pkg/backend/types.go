// Package backend implements the uniform adapter contract over the
// three execution backends (SQL, RAG, general) and the concrete SQL
// translation/execution and document-retrieval collaborators that back
// them (spec.md §4.4).
package backend

import (
	"context"

	"github.com/codeready-toolchain/qa-router/pkg/conversation"
	"github.com/codeready-toolchain/qa-router/pkg/llmclient"
	"github.com/codeready-toolchain/qa-router/pkg/memory"
)

// AnswerResult is what every adapter returns: narrative text plus,
// for the SQL adapter only, the structured rows it produced.
type AnswerResult struct {
	AnswerText     string
	StructuredData []memory.Row
	SQLQuery       string
	TablesUsed     []string
}

// StreamChunk is one piece of an adapter's streamed response.
type StreamChunk struct {
	Channel Channel
	Content string
}

// Channel identifies which of the event protocol's two token channels a
// StreamChunk belongs to (mirrors pkg/events.Channel without importing
// it, so this package stays independent of the event-serialization
// layer).
type Channel string

const (
	ChannelReasoning Channel = "reasoning"
	ChannelFinal     Channel = "final"
)

// Adapter is the uniform contract all three backends implement
// (spec.md §4.4). Stream is consumed by the workflow engine as it
// executes; Answer's return value becomes available only once the
// stream is fully drained.
type Adapter interface {
	// Answer runs the backend to completion, returning the final
	// narrative text and (SQL only) structured data. Callers must drain
	// Stream to receive it.
	Answer(ctx context.Context, question string, messages []conversation.Message, mem *memory.QueryResultMemory) (*AnswerResult, error)

	// Stream returns the channel of incremental output produced by the
	// most recent Answer call. Implementations buffer nothing beyond
	// what Answer has already produced — this is not a replay log.
	Stream() <-chan StreamChunk
}

// SQLTranslator resolves business vocabulary and generates a SQL query
// for question, given the business-entity vocabulary and any
// query-result-memory context. Out of scope per spec.md §1 ("the
// natural-language-to-SQL translator and its schema graph") — this is
// the interface the SQL adapter depends on, with one concrete
// implementation (LLMTranslator) provided for an end-to-end-runnable
// service.
type SQLTranslator interface {
	Translate(ctx context.Context, req TranslateRequest) (query string, err error)
}

// TranslateRequest carries everything a SQLTranslator needs to produce
// one SQL query attempt.
type TranslateRequest struct {
	Question      string
	Vocabulary    []string
	MemoryContext string
	// PriorError is the raw database error from the previous attempt,
	// fed back into the correction loop (spec.md §4.4). Empty on the
	// first attempt.
	PriorError string
}

// SQLExecutor runs a generated query and returns its rows, capped at
// maxRows, plus the table names it touched. Out of scope per spec.md
// §1 in the sense that the underlying analytical database is an
// external system; SQLiteExecutor is provided as a concrete
// implementation for local/demo use against any database/sql driver.
type SQLExecutor interface {
	Execute(ctx context.Context, query string, maxRows int) (rows []memory.Row, tablesUsed []string, err error)
}

// LLMGenerator is the minimal surface adapters need from an LLM client:
// a single non-streamed completion. Adapters that need streaming use
// llmclient.Client directly; this exists for one-shot generation steps
// (SQL query text, the workflow's identity finalization) that must be fully formed
// before any tokens are forwarded to the caller.
type LLMGenerator interface {
	Complete(ctx context.Context, messages []llmclient.Message, temperature float64, maxTokens int) (string, error)
}
