package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/qa-router/pkg/events"
	"github.com/codeready-toolchain/qa-router/pkg/workflow"
)

// QueryInput carries the caller's message (spec.md §6: message length
// must fall within 1..2000 characters).
type QueryInput struct {
	Message string `json:"message" binding:"required,min=1,max=2000"`
}

// QueryConversation identifies which thread the message belongs to
// (spec.md §4.7, §6).
type QueryConversation struct {
	ID        string `json:"id" binding:"required"`
	UserID    string `json:"user_id" binding:"required"`
	CompanyID string `json:"company_id" binding:"required"`
}

// QueryRequest is the POST /api/v1/query request body.
type QueryRequest struct {
	Input        QueryInput        `json:"input" binding:"required"`
	Conversation QueryConversation `json:"conversation" binding:"required"`
}

// sseSink adapts a gin.Context to events.Sink, writing one SSE frame
// per event and flushing immediately so tokens reach the client as
// the workflow produces them (spec.md §4.7: "Streams the event
// sequence... one event per line prefixed data:").
type sseSink struct {
	c *gin.Context
}

func (s *sseSink) Emit(_ context.Context, event events.Event) error {
	s.c.SSEvent(event.Type(), event)
	s.c.Writer.Flush()
	return nil
}

// Query handles POST /api/v1/query.
func (s *Server) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	sink := &sseSink{c: c}
	err := s.wf.Run(c.Request.Context(), workflow.Request{
		ThreadID:  req.Conversation.ID,
		UserID:    req.Conversation.UserID,
		CompanyID: req.Conversation.CompanyID,
		Message:   req.Input.Message,
	}, sink)
	if err != nil {
		slog.Error("workflow run failed", "thread_id", req.Conversation.ID, "error", err)
	}
}
