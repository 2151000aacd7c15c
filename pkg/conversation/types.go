// Package conversation defines the per-thread data model: Message,
// WorkflowState, and the Conversation they belong to (spec.md §3).
// These are plain value types; durability and per-thread concurrency
// discipline live in pkg/store, and the workflow state machine that
// mutates WorkflowState lives in pkg/workflow.
package conversation

import (
	"time"

	"github.com/codeready-toolchain/qa-router/pkg/memory"
)

// Role identifies who authored a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is an immutable entry in a conversation's message log.
// Insertion order is semantically significant. Route is set only on
// assistant messages and records which backend produced the reply, so
// the classifier's referential-demonstrative rule (spec.md §4.5 rule
// 3) can tell whether the previous assistant action was a SQL result
// without re-deriving it from content.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Route     string    `json:"route,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Step identifies a workflow node: "classify", one of the executor
// nodes ("execute_sql"/"execute_rag"/"execute_general"), "finalize",
// or "end".
type Step string

const (
	StepClassify       Step = "classify"
	StepExecuteSQL     Step = "execute_sql"
	StepExecuteRAG     Step = "execute_rag"
	StepExecuteGeneral Step = "execute_general"
	StepFinalize       Step = "finalize"
	StepEnd            Step = "end"
)

// WorkflowState is the per-invocation mutable record threaded through
// the workflow engine's nodes. Exactly zero or one of SQLResult,
// RAGResult, GeneralResult is non-empty when Finalize is entered, and
// FinalAnswer is non-empty if and only if the workflow reached
// finalize normally (spec.md §3).
type WorkflowState struct {
	Question string    `json:"question"`
	Messages []Message `json:"messages"`
	NextStep Step      `json:"next_step"`

	SQLResult     string `json:"sql_result,omitempty"`
	RAGResult     string `json:"rag_result,omitempty"`
	GeneralResult string `json:"general_result,omitempty"`

	SQLStructuredResult []memory.Row `json:"sql_structured_result,omitempty"`

	FinalAnswer         string       `json:"final_answer,omitempty"`
	FinalStructuredData []memory.Row `json:"final_structured_data,omitempty"`

	QueryResultMemory *memory.QueryResultMemory `json:"-"`
}

// Conversation owns its Messages and current WorkflowState exclusively
// (spec.md §3 "Ownership"). QueryResultMemory is a sub-structure of
// WorkflowState, not a field here.
type Conversation struct {
	ThreadID string
	Messages []Message
	State    *WorkflowState
}

// NewConversation creates an empty conversation for a thread, lazily
// instantiated on first request (spec.md §3 "Lifecycle").
func NewConversation(threadID string) *Conversation {
	return &Conversation{ThreadID: threadID}
}

// AppendUserMessage appends a user message unless the conversation
// already ends in a user message with the same content — used by the
// classify node to ensure the
// current question is appended exactly once (spec.md §4.6).
func (c *Conversation) AppendUserMessage(content string, now time.Time) {
	if len(c.Messages) > 0 && c.Messages[len(c.Messages)-1].Role == RoleUser &&
		c.Messages[len(c.Messages)-1].Content == content {
		return
	}
	c.Messages = append(c.Messages, Message{Role: RoleUser, Content: content, CreatedAt: now})
}

// AppendAssistantMessage appends the final answer as an assistant
// message, completing the alternation invariant for this turn. route
// is the backend that produced it ("sql", "rag", "general").
func (c *Conversation) AppendAssistantMessage(content, route string, now time.Time) {
	c.Messages = append(c.Messages, Message{Role: RoleAssistant, Content: content, Route: route, CreatedAt: now})
}

// TruncateMessages keeps only the last maxMessages entries
// (tail-keeping), matching max_conversation_messages history
// truncation (spec.md §4.6).
func TruncateMessages(messages []Message, maxMessages int) []Message {
	if maxMessages <= 0 || len(messages) <= maxMessages {
		return messages
	}
	return messages[len(messages)-maxMessages:]
}

// LastAssistantRoute scans messages (most recent first, bounded to the
// last lookback entries) and returns the route recorded on the most
// recent assistant message, if any. Used by the classifier's
// referential-demonstrative rule (spec.md §4.5 rule 3).
func LastAssistantRoute(messages []Message, lookback int) (string, bool) {
	start := 0
	if lookback > 0 && len(messages) > lookback {
		start = len(messages) - lookback
	}
	for i := len(messages) - 1; i >= start; i-- {
		if messages[i].Role == RoleAssistant {
			return messages[i].Route, messages[i].Route != ""
		}
	}
	return "", false
}
