// Package api is the HTTP edge (spec.md §4.7): a single streaming
// query endpoint over server-sent events plus a liveness check,
// built on gin for its native SSE support (c.SSEvent), the same way
// the teacher used gin for its WebSocket-adjacent session endpoints
// before this service's edge was rebuilt around SSE.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/qa-router/pkg/store"
	"github.com/codeready-toolchain/qa-router/pkg/workflow"
)

// Server wraps the gin engine and the workflow engine it dispatches
// requests to.
type Server struct {
	engine     *gin.Engine
	wf         *workflow.Engine
	store      *store.Client
	httpServer *http.Server
}

// NewServer creates a Server. mode should be gin.ReleaseMode in
// production; left to the caller so tests can use gin.TestMode.
func NewServer(wf *workflow.Engine, storeClient *store.Client, mode string) *Server {
	gin.SetMode(mode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{engine: engine, wf: wf, store: storeClient}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.Health)
	v1 := s.engine.Group("/api/v1")
	v1.POST("/query", s.Query)
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

// Start starts the HTTP server on addr (blocking), grounded on the
// teacher's Server.Start/Shutdown pair.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server, letting in-flight SSE
// streams finish up to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
