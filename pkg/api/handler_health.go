package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/qa-router/pkg/version"
)

// Health handles GET /healthz (spec.md §4.7 "A health endpoint returns
// service liveness").
func (s *Server) Health(c *gin.Context) {
	status, err := s.store.Health(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "version": version.Full(), "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           status.Status,
		"version":          version.Full(),
		"response_time_ms": status.ResponseTime.Milliseconds(),
		"open_threads":     status.OpenThreads,
	})
}
