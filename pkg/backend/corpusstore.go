package backend

import (
	"context"

	"github.com/codeready-toolchain/qa-router/pkg/corpus"
)

// CorpusVectorStore adapts a *corpus.Store to the VectorStore
// interface, translating corpus.Chunk into the backend package's own
// RetrievedChunk so rag.go stays independent of the corpus package's
// concrete type (mirrors the events-decoupling rationale in types.go).
type CorpusVectorStore struct {
	store *corpus.Store
}

// NewCorpusVectorStore wraps store.
func NewCorpusVectorStore(store *corpus.Store) *CorpusVectorStore {
	return &CorpusVectorStore{store: store}
}

// Retrieve implements VectorStore.
func (c *CorpusVectorStore) Retrieve(ctx context.Context, question string, k int) ([]RetrievedChunk, error) {
	chunks, err := c.store.Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}
	out := make([]RetrievedChunk, len(chunks))
	for i, ch := range chunks {
		out[i] = RetrievedChunk{Source: ch.Source, Content: ch.Content, Score: ch.Score}
	}
	return out, nil
}
