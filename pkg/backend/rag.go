package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/qa-router/pkg/conversation"
	"github.com/codeready-toolchain/qa-router/pkg/llmclient"
	"github.com/codeready-toolchain/qa-router/pkg/memory"
)

// DefaultRAGTopK is how many corpus chunks are retrieved per question
// when the caller does not override it (spec.md §4.4 "RAG adapter").
const DefaultRAGTopK = 5

// VectorStore retrieves the top-k scored chunks of a document corpus
// relevant to question. pkg/corpus.Store satisfies this; any retrieval
// backend can substitute by implementing the same signature.
type VectorStore interface {
	Retrieve(ctx context.Context, question string, k int) ([]RetrievedChunk, error)
}

// RetrievedChunk is one scored fragment returned by a VectorStore.
type RetrievedChunk struct {
	Source  string
	Content string
	Score   float64
}

// RAGAdapter grounds its answer in chunks retrieved from a document
// corpus, composing them into a system prompt before streaming the
// LLM's response (spec.md §4.4 "RAG adapter").
type RAGAdapter struct {
	store       VectorStore
	client      llmclient.Client
	topK        int
	temperature float64
	maxTokens   int

	stream chan StreamChunk
}

// NewRAGAdapter creates a RAGAdapter. topK defaults to DefaultRAGTopK
// when non-positive.
func NewRAGAdapter(store VectorStore, client llmclient.Client, topK int, temperature float64, maxTokens int) *RAGAdapter {
	if topK <= 0 {
		topK = DefaultRAGTopK
	}
	return &RAGAdapter{
		store:       store,
		client:      client,
		topK:        topK,
		temperature: temperature,
		maxTokens:   maxTokens,
		stream:      make(chan StreamChunk, 16),
	}
}

// Stream implements Adapter.
func (a *RAGAdapter) Stream() <-chan StreamChunk { return a.stream }

// Answer implements Adapter. The adapter never populates StructuredData
// — retrieved chunks are folded into the prompt, not returned as rows
// (spec.md §4.4: structured_data is SQL-only).
func (a *RAGAdapter) Answer(ctx context.Context, question string, messages []conversation.Message, _ *memory.QueryResultMemory) (*AnswerResult, error) {
	defer close(a.stream)

	chunks, err := a.store.Retrieve(ctx, question, a.topK)
	if err != nil {
		return nil, fmt.Errorf("rag adapter: retrieve corpus: %w", err)
	}

	if err := a.emit(ctx, ChannelReasoning, fmt.Sprintf("retrieved %d document chunk(s)", len(chunks))); err != nil {
		return nil, err
	}

	llmMessages := make([]llmclient.Message, 0, len(messages)+2)
	llmMessages = append(llmMessages, llmclient.Message{
		Role:    llmclient.RoleSystem,
		Content: groundingPrompt(chunks),
	})
	for _, m := range messages {
		role := llmclient.RoleUser
		if m.Role == conversation.RoleAssistant {
			role = llmclient.RoleAssistant
		}
		llmMessages = append(llmMessages, llmclient.Message{Role: role, Content: m.Content})
	}
	llmMessages = append(llmMessages, llmclient.Message{Role: llmclient.RoleUser, Content: question})

	stream, err := a.client.Stream(ctx, llmclient.Request{
		Messages:    llmMessages,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("rag adapter: start stream: %w", err)
	}

	var sb strings.Builder
	for chunk := range stream {
		text, ok := chunk.(*llmclient.TextChunk)
		if !ok {
			continue
		}
		sb.WriteString(text.Content)
		if err := a.emit(ctx, ChannelFinal, text.Content); err != nil {
			return nil, err
		}
	}

	return &AnswerResult{AnswerText: sb.String()}, nil
}

func (a *RAGAdapter) emit(ctx context.Context, channel Channel, content string) error {
	select {
	case a.stream <- StreamChunk{Channel: channel, Content: content}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// groundingPrompt composes a system prompt instructing the model to
// answer only from the retrieved chunks, attributing its source.
func groundingPrompt(chunks []RetrievedChunk) string {
	if len(chunks) == 0 {
		return "You are a documentation assistant. No relevant documents were found for this question; say so plainly rather than guessing."
	}

	var b strings.Builder
	b.WriteString("You are a documentation assistant. Answer using only the following excerpts, and cite the source file for any claim you make.\n\n")
	for _, c := range chunks {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", c.Source, c.Content)
	}
	return b.String()
}
