package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/codeready-toolchain/qa-router/pkg/llmclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLMClient struct {
	chunks []llmclient.Chunk
	err    error
}

func (f *fakeLLMClient) Stream(ctx context.Context, req llmclient.Request) (<-chan llmclient.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan llmclient.Chunk, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func TestStreamingGenerator_Complete_ConcatenatesTextChunks(t *testing.T) {
	client := &fakeLLMClient{chunks: []llmclient.Chunk{
		&llmclient.TextChunk{Content: "SELECT "},
		&llmclient.TextChunk{Content: "1"},
		&llmclient.UsageChunk{TotalTokens: 10},
	}}
	gen := NewStreamingGenerator(client)

	out, err := gen.Complete(context.Background(), []llmclient.Message{{Role: llmclient.RoleUser, Content: "q"}}, 0.2, 100)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out)
}

func TestStreamingGenerator_Complete_PropagatesStreamStartError(t *testing.T) {
	client := &fakeLLMClient{err: errors.New("boom")}
	gen := NewStreamingGenerator(client)

	_, err := gen.Complete(context.Background(), nil, 0, 0)
	assert.Error(t, err)
}
