package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/qa-router/pkg/conversation"
)

// ErrThreadNotFound is returned when a thread has no checkpoint row.
var ErrThreadNotFound = errors.New("thread not found")

// ThreadSummary is a row from ListThreads.
type ThreadSummary struct {
	ThreadID  string
	UpdatedAt time.Time
}

// Lock acquires the in-process per-thread logical lock for threadID.
// Callers must invoke the returned func exactly once to release it.
func (c *Client) Lock(threadID string) func() {
	return c.locks.Lock(threadID)
}

// GetCheckpoint loads the most recent WorkflowState for threadID. The
// second return value is false if the thread has never been
// checkpointed.
func (c *Client) GetCheckpoint(ctx context.Context, threadID string) (*conversation.WorkflowState, bool, error) {
	var stateJSON string
	err := c.db.QueryRowContext(ctx,
		`SELECT state_json FROM checkpoints WHERE thread_id = ?`, threadID,
	).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get checkpoint for thread %s: %w", threadID, err)
	}

	state, err := conversation.UnmarshalCheckpoint([]byte(stateJSON))
	if err != nil {
		return nil, false, fmt.Errorf("decode checkpoint for thread %s: %w", threadID, err)
	}
	return state, true, nil
}

// PutCheckpoint persists state as the latest checkpoint for threadID,
// replacing any prior checkpoint (spec.md §4.3 "latest checkpoint wins").
func (c *Client) PutCheckpoint(ctx context.Context, threadID, checkpointID string, state *conversation.WorkflowState) error {
	data, err := conversation.MarshalCheckpoint(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint for thread %s: %w", threadID, err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, checkpoint_id, state_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			checkpoint_id = excluded.checkpoint_id,
			state_json    = excluded.state_json,
			updated_at    = excluded.updated_at
	`, threadID, checkpointID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put checkpoint for thread %s: %w", threadID, err)
	}
	return nil
}

// AppendMessages appends messages to threadID's log in order, assigning
// each a monotonically increasing sequence number.
func (c *Client) AppendMessages(ctx context.Context, threadID string, messages []conversation.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append-messages transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var nextSeq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM messages WHERE thread_id = ?`, threadID,
	).Scan(&nextSeq)
	if err != nil {
		return fmt.Errorf("read next sequence for thread %s: %w", threadID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (thread_id, seq, role, content, route, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert message: %w", err)
	}
	defer stmt.Close()

	for i, msg := range messages {
		if _, err := stmt.ExecContext(ctx, threadID, nextSeq+int64(i), string(msg.Role), msg.Content, msg.Route, msg.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("insert message %d for thread %s: %w", i, threadID, err)
		}
	}

	return tx.Commit()
}

// ListMessages returns every message for threadID, oldest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]conversation.Message, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT role, content, route, created_at FROM messages
		WHERE thread_id = ? ORDER BY seq ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages for thread %s: %w", threadID, err)
	}
	defer rows.Close()

	var out []conversation.Message
	for rows.Next() {
		var msg conversation.Message
		var role string
		if err := rows.Scan(&role, &msg.Content, &msg.Route, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message for thread %s: %w", threadID, err)
		}
		msg.Role = conversation.Role(role)
		out = append(out, msg)
	}
	return out, rows.Err()
}

// ListThreads returns every known thread, most recently updated first.
func (c *Client) ListThreads(ctx context.Context) ([]ThreadSummary, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT thread_id, updated_at FROM checkpoints ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var out []ThreadSummary
	for rows.Next() {
		var s ThreadSummary
		if err := rows.Scan(&s.ThreadID, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan thread summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteThread removes all messages and the checkpoint for threadID.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete-thread transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete messages for thread %s: %w", threadID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete checkpoint for thread %s: %w", threadID, err)
	}
	return tx.Commit()
}

// CleanupOlderThan deletes threads (messages + checkpoint) whose
// checkpoint has not been updated within ttl, and returns the count of
// threads removed. Grounded on the teacher's cleanup.Service retention
// sweep (pkg/cleanup/service.go).
func (c *Client) CleanupOlderThan(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl)

	rows, err := c.db.QueryContext(ctx, `SELECT thread_id FROM checkpoints WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("select stale threads: %w", err)
	}
	var staleThreads []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan stale thread id: %w", err)
		}
		staleThreads = append(staleThreads, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	var deleted int64
	for _, threadID := range staleThreads {
		if err := c.DeleteThread(ctx, threadID); err != nil {
			// A single bad thread must never abort the sweep (spec.md §4.3
			// "Failures on individual threads are logged and skipped").
			slog.Error("cleanup: failed to delete stale thread", "thread_id", threadID, "error", err)
			continue
		}
		deleted++
	}

	return deleted, nil
}
