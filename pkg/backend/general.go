package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/qa-router/pkg/conversation"
	"github.com/codeready-toolchain/qa-router/pkg/llmclient"
	"github.com/codeready-toolchain/qa-router/pkg/memory"
)

// GeneralAdapter sends the question and truncated history directly to
// the LLM, with no retrieval or structured-data step (spec.md §4.4
// "General adapter").
type GeneralAdapter struct {
	client      llmclient.Client
	temperature float64
	maxTokens   int

	stream chan StreamChunk
}

// NewGeneralAdapter creates a GeneralAdapter over client. Each adapter
// instance is built fresh per workflow invocation (mirroring the
// teacher's "agents are created per-execution, not shared" rule —
// pkg/agent doc comment) and answers exactly one question.
func NewGeneralAdapter(client llmclient.Client, temperature float64, maxTokens int) *GeneralAdapter {
	return &GeneralAdapter{client: client, temperature: temperature, maxTokens: maxTokens, stream: make(chan StreamChunk, 16)}
}

// Stream implements Adapter.
func (a *GeneralAdapter) Stream() <-chan StreamChunk { return a.stream }

// Answer implements Adapter. Call it from a separate goroutine than the
// one draining Stream(), since Answer blocks sending once the stream's
// buffer is full and nothing is reading it.
func (a *GeneralAdapter) Answer(ctx context.Context, question string, messages []conversation.Message, _ *memory.QueryResultMemory) (*AnswerResult, error) {
	defer close(a.stream)

	llmMessages := make([]llmclient.Message, 0, len(messages)+2)
	llmMessages = append(llmMessages, llmclient.Message{
		Role:    llmclient.RoleSystem,
		Content: "You are a helpful assistant answering general questions.",
	})
	for _, m := range messages {
		role := llmclient.RoleUser
		if m.Role == conversation.RoleAssistant {
			role = llmclient.RoleAssistant
		}
		llmMessages = append(llmMessages, llmclient.Message{Role: role, Content: m.Content})
	}
	llmMessages = append(llmMessages, llmclient.Message{Role: llmclient.RoleUser, Content: question})

	chunks, err := a.client.Stream(ctx, llmclient.Request{
		Messages:    llmMessages,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("general adapter: start stream: %w", err)
	}

	var sb strings.Builder
	for chunk := range chunks {
		text, ok := chunk.(*llmclient.TextChunk)
		if !ok {
			continue
		}
		sb.WriteString(text.Content)
		select {
		case a.stream <- StreamChunk{Channel: ChannelFinal, Content: text.Content}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return &AnswerResult{AnswerText: sb.String()}, nil
}
