package store

import (
	"context"
	"time"
)

// HealthStatus reports conversation-store connectivity and pool
// statistics, grounded on the teacher's database.HealthStatus
// (pkg/database/health.go).
type HealthStatus struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time_ms"`
	OpenThreads  int           `json:"open_thread_locks"`
}

// Health pings the database and reports the number of threads currently
// holding or waiting on their logical lock.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()

	if err := c.db.PingContext(ctx); err != nil {
		return &HealthStatus{Status: "unhealthy", ResponseTime: time.Since(start)}, err
	}

	return &HealthStatus{
		Status:       "healthy",
		ResponseTime: time.Since(start),
		OpenThreads:  c.locks.Size(),
	}, nil
}
