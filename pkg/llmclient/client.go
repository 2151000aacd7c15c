// Package llmclient provides a provider-agnostic streaming LLM client,
// generalizing the teacher's gRPC-to-Python-sidecar LLM client
// (pkg/agent/llm_client.go, pkg/agent/llm_grpc.go) to a small set of
// direct HTTP-backed providers (spec.md's llm_provider knob: openai or
// ollama).
package llmclient

import "context"

// Role identifies the author of a message sent to the LLM.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in the prompt sent to the LLM.
type Message struct {
	Role    Role
	Content string
}

// Request parameterizes a single completion call.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Chunk is the interface for all streamed response chunks, mirroring
// the teacher's Chunk/chunkType() pattern (pkg/agent/llm_client.go)
// narrowed to the subset this service's event protocol needs: text and
// a final usage summary.
type Chunk interface {
	chunkType() chunkType
}

type chunkType string

const (
	chunkTypeText  chunkType = "text"
	chunkTypeUsage chunkType = "usage"
)

// TextChunk carries one piece of the assistant's streamed reply.
type TextChunk struct{ Content string }

// UsageChunk reports token consumption once the stream completes.
type UsageChunk struct{ PromptTokens, CompletionTokens, TotalTokens int }

func (c *TextChunk) chunkType() chunkType  { return chunkTypeText }
func (c *UsageChunk) chunkType() chunkType { return chunkTypeUsage }

// Client streams a chat completion from an LLM provider. The returned
// channel is closed when the stream completes; a non-nil error from
// Stream itself means the call could not be started at all.
type Client interface {
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}
