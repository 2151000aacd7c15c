// Package cleanup runs the background retention loop that deletes
// threads whose conversations have been idle past the configured TTL
// (spec.md §8 "Conversation TTL / retention"), grounded on the
// teacher's periodic-ticker retention service (originally soft-deleting
// stale alert sessions and orphaned events in Postgres; generalized
// here to delete expired rows from the single conversation store).
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/qa-router/pkg/store"
)

// Service periodically deletes threads (and their messages and
// checkpoints) whose most recent activity is older than TTL. All
// operations are idempotent and safe to run from multiple processes
// sharing the same store.
type Service struct {
	store    *store.Client
	ttl      time.Duration
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service over storeClient.
func NewService(storeClient *store.Client, ttl, interval time.Duration) *Service {
	return &Service{store: storeClient, ttl: ttl, interval: interval}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started", "conversation_ttl", s.ttl, "interval", s.interval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	count, err := s.store.CleanupOlderThan(ctx, s.ttl)
	if err != nil {
		slog.Error("retention: conversation cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: deleted expired threads", "count", count)
	}
}
