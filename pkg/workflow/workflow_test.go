package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/codeready-toolchain/qa-router/pkg/backend"
	"github.com/codeready-toolchain/qa-router/pkg/classifier"
	"github.com/codeready-toolchain/qa-router/pkg/config"
	"github.com/codeready-toolchain/qa-router/pkg/conversation"
	"github.com/codeready-toolchain/qa-router/pkg/events"
	"github.com/codeready-toolchain/qa-router/pkg/joingraph"
	"github.com/codeready-toolchain/qa-router/pkg/llmclient"
	"github.com/codeready-toolchain/qa-router/pkg/memory"
	"github.com/codeready-toolchain/qa-router/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Client {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "conversations.db")
	client, err := store.NewClient(context.Background(), store.Config{Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testConfig() *config.Config {
	return &config.Config{
		EnableSQLAgent:           true,
		EnableRAGAgent:           true,
		MaxConversationMessages:  20,
		FollowupMaxContextTokens: 2000,
		QueryResultMemorySize:    5,
	}
}

type scriptedGenerator struct{ reply string }

func (g *scriptedGenerator) Complete(ctx context.Context, messages []llmclient.Message, temperature float64, maxTokens int) (string, error) {
	return g.reply, nil
}

type fakeAdapter struct {
	result *backend.AnswerResult
	err    error
	stream chan backend.StreamChunk
}

func newFakeAdapter(finalText string, err error) *fakeAdapter {
	return &fakeAdapter{
		result: &backend.AnswerResult{AnswerText: finalText},
		err:    err,
		stream: make(chan backend.StreamChunk, 4),
	}
}

func (a *fakeAdapter) Stream() <-chan backend.StreamChunk { return a.stream }

func (a *fakeAdapter) Answer(ctx context.Context, question string, messages []conversation.Message, mem *memory.QueryResultMemory) (*backend.AnswerResult, error) {
	defer close(a.stream)
	if a.err != nil {
		return nil, a.err
	}
	a.stream <- backend.StreamChunk{Channel: backend.ChannelFinal, Content: a.result.AnswerText}
	return a.result, nil
}

func testClassifier(route classifier.Route) *classifier.Classifier {
	graph := &joingraph.Graph{Tables: map[string]joingraph.Table{"technician": {}}}
	return classifier.New(&scriptedGenerator{reply: string(route)}, joingraph.NewVocabulary(graph), 0)
}

func TestEngine_Run_FreshSQLQuery(t *testing.T) {
	st := newTestStore(t)
	adapter := newFakeAdapter("There are 10 active technicians.", nil)
	engine := New(st, testClassifier(classifier.RouteSQL), &scriptedGenerator{reply: "ok"}, AdapterFactories{
		SQL: func() backend.Adapter { return adapter },
	}, testConfig())

	rec := events.NewRecorder()
	err := engine.Run(context.Background(), Request{ThreadID: "t1", Message: "How many technicians are active?"}, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{events.TypeRouteDecision, events.TypeToolStart, events.TypeToken, events.TypeComplete}, rec.Types())
	assert.Equal(t, "There are 10 active technicians.", rec.FinalText())
}

func TestEngine_Run_DisabledBackendShortCircuits(t *testing.T) {
	st := newTestStore(t)
	cfg := testConfig()
	cfg.EnableSQLAgent = false
	engine := New(st, testClassifier(classifier.RouteSQL), &scriptedGenerator{reply: "ok"}, AdapterFactories{
		SQL: func() backend.Adapter { return newFakeAdapter("unused", nil) },
	}, cfg)

	rec := events.NewRecorder()
	err := engine.Run(context.Background(), Request{ThreadID: "t5", Message: "How many technicians?"}, rec)
	require.NoError(t, err)

	assert.Contains(t, rec.FinalText(), "SQL Agent is not enabled")
}

func TestEngine_Run_AdapterFailureIsErrorAsData(t *testing.T) {
	st := newTestStore(t)
	adapter := newFakeAdapter("", errors.New("database unreachable"))
	engine := New(st, testClassifier(classifier.RouteSQL), &scriptedGenerator{reply: "I couldn't complete that request: database unreachable"}, AdapterFactories{
		SQL: func() backend.Adapter { return adapter },
	}, testConfig())

	rec := events.NewRecorder()
	err := engine.Run(context.Background(), Request{ThreadID: "t6", Message: "How many technicians?"}, rec)
	require.NoError(t, err)

	assert.NotContains(t, rec.Types(), events.TypeError)
	assert.Equal(t, events.TypeComplete, rec.Types()[len(rec.Types())-1])
	assert.Contains(t, rec.FinalText(), "database unreachable")
}

func TestEngine_Run_PersistsCheckpointAcrossRequests(t *testing.T) {
	st := newTestStore(t)
	engine := New(st, testClassifier(classifier.RouteGeneral), &scriptedGenerator{reply: "ok"}, AdapterFactories{
		General: func() backend.Adapter { return newFakeAdapter("hi there", nil) },
	}, testConfig())

	rec := events.NewRecorder()
	require.NoError(t, engine.Run(context.Background(), Request{ThreadID: "t7", Message: "hello"}, rec))

	messages, err := st.ListMessages(context.Background(), "t7")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, conversation.RoleUser, messages[0].Role)
	assert.Equal(t, conversation.RoleAssistant, messages[1].Role)
	assert.Equal(t, "hi there", messages[1].Content)
}

func TestEngine_Run_EmptyAdapterAnswerIsNotFinalizedTwice(t *testing.T) {
	st := newTestStore(t)
	adapter := newFakeAdapter("", nil)
	engine := New(st, testClassifier(classifier.RouteGeneral), &scriptedGenerator{reply: "ok"}, AdapterFactories{
		General: func() backend.Adapter { return adapter },
	}, testConfig())

	rec := events.NewRecorder()
	err := engine.Run(context.Background(), Request{ThreadID: "t11", Message: "hello"}, rec)
	require.NoError(t, err)

	// The adapter already streamed its (empty) final-channel chunk;
	// finalize must not run the identity-finalization LLM a second time
	// and append its reply on top.
	tokenCount := 0
	for _, typ := range rec.Types() {
		if typ == events.TypeToken {
			tokenCount++
		}
	}
	assert.Equal(t, 1, tokenCount)
	assert.Empty(t, rec.FinalText())
}

func TestEngine_Run_CancellationDiscardsCheckpoint(t *testing.T) {
	st := newTestStore(t)
	adapter := newFakeAdapter("", context.Canceled)
	engine := New(st, testClassifier(classifier.RouteGeneral), &scriptedGenerator{reply: "ok"}, AdapterFactories{
		General: func() backend.Adapter { return adapter },
	}, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := events.NewRecorder()
	err := engine.Run(ctx, Request{ThreadID: "t9", Message: "hello"}, rec)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, rec.Types(), events.TypeComplete)
	assert.NotContains(t, rec.Types(), events.TypeError)

	messages, err := st.ListMessages(context.Background(), "t9")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestEngine_Run_BackendDeadlineIsErrorAsData(t *testing.T) {
	st := newTestStore(t)
	adapter := newFakeAdapter("", context.DeadlineExceeded)
	engine := New(st, testClassifier(classifier.RouteGeneral), &scriptedGenerator{reply: "I couldn't complete that request: timed out querying the backend"}, AdapterFactories{
		General: func() backend.Adapter { return adapter },
	}, testConfig())

	rec := events.NewRecorder()
	err := engine.Run(context.Background(), Request{ThreadID: "t10", Message: "hello"}, rec)
	require.NoError(t, err)

	assert.NotContains(t, rec.Types(), events.TypeError)
	assert.Equal(t, events.TypeComplete, rec.Types()[len(rec.Types())-1])
	assert.Contains(t, rec.FinalText(), "timed out querying the backend")
}

func TestEngine_Run_SecondRequestSeesPriorCheckpoint(t *testing.T) {
	st := newTestStore(t)
	engine := New(st, testClassifier(classifier.RouteGeneral), &scriptedGenerator{reply: "ok"}, AdapterFactories{
		General: func() backend.Adapter { return newFakeAdapter("first answer", nil) },
	}, testConfig())
	require.NoError(t, engine.Run(context.Background(), Request{ThreadID: "t8", Message: "first question"}, events.NewRecorder()))

	engine2 := New(st, testClassifier(classifier.RouteGeneral), &scriptedGenerator{reply: "ok"}, AdapterFactories{
		General: func() backend.Adapter { return newFakeAdapter("second answer", nil) },
	}, testConfig())
	require.NoError(t, engine2.Run(context.Background(), Request{ThreadID: "t8", Message: "second question"}, events.NewRecorder()))

	messages, err := st.ListMessages(context.Background(), "t8")
	require.NoError(t, err)
	require.Len(t, messages, 4)
}
