package cleanup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/codeready-toolchain/qa-router/pkg/conversation"
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

func backdateCheckpoint(t *testing.T, st *store.Client, threadID string, age time.Duration) {
	t.Helper()
	_, err := st.DB().Exec(`UPDATE checkpoints SET updated_at = ? WHERE thread_id = ?`,
		time.Now().UTC().Add(-age), threadID)
	require.NoError(t, err)
}

func TestService_DeletesThreadsOlderThanTTL(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutCheckpoint(ctx, "stale", "c1", &conversation.WorkflowState{}))
	backdateCheckpoint(t, st, "stale", 400*24*time.Hour)

	svc := NewService(st, 365*24*time.Hour, time.Hour)
	svc.runOnce(ctx)

	_, found, err := st.GetCheckpoint(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, found, "stale thread should have been deleted")
}

func TestService_PreservesRecentThreads(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutCheckpoint(ctx, "fresh", "c1", &conversation.WorkflowState{}))

	svc := NewService(st, 365*24*time.Hour, time.Hour)
	svc.runOnce(ctx)

	_, found, err := st.GetCheckpoint(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, found, "recent thread should be preserved")
}

func TestService_StartStop(t *testing.T) {
	st := newTestStore(t)
	svc := NewService(st, time.Hour, 10*time.Millisecond)

	svc.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	svc.Stop()
}
