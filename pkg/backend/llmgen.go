package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/qa-router/pkg/llmclient"
)

// StreamingGenerator adapts an llmclient.Client to the LLMGenerator
// interface by draining its stream into a single string. Used for
// generation steps that must be fully formed before anything is
// forwarded downstream (a SQL query string, a RAG grounded prompt's
// final answer is instead streamed directly — see rag.go).
type StreamingGenerator struct {
	client llmclient.Client
}

// NewStreamingGenerator wraps client.
func NewStreamingGenerator(client llmclient.Client) *StreamingGenerator {
	return &StreamingGenerator{client: client}
}

// Complete implements LLMGenerator.
func (g *StreamingGenerator) Complete(ctx context.Context, messages []llmclient.Message, temperature float64, maxTokens int) (string, error) {
	chunks, err := g.client.Stream(ctx, llmclient.Request{
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("start completion: %w", err)
	}

	var sb strings.Builder
	for chunk := range chunks {
		if text, ok := chunk.(*llmclient.TextChunk); ok {
			sb.WriteString(text.Content)
		}
	}
	return sb.String(), nil
}
