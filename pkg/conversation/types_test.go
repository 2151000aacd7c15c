package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppendUserMessage_IdempotentForRepeatedContent(t *testing.T) {
	c := NewConversation("thread-1")
	now := time.Now()

	c.AppendUserMessage("how many work orders are open", now)
	c.AppendUserMessage("how many work orders are open", now)

	assert.Len(t, c.Messages, 1)
	assert.Equal(t, RoleUser, c.Messages[0].Role)
}

func TestAppendUserMessage_AppendsWhenLastMessageIsAssistant(t *testing.T) {
	c := NewConversation("thread-1")
	now := time.Now()

	c.AppendUserMessage("how many work orders are open", now)
	c.AppendAssistantMessage("there are 12", "sql", now)
	c.AppendUserMessage("how many work orders are open", now)

	assert.Len(t, c.Messages, 3)
	assert.Equal(t, RoleUser, c.Messages[2].Role)
}

func TestAppendAssistantMessage_RecordsRoute(t *testing.T) {
	c := NewConversation("thread-1")
	now := time.Now()

	c.AppendAssistantMessage("there are 12", "sql", now)

	assert.Equal(t, "sql", c.Messages[0].Route)
	assert.Equal(t, RoleAssistant, c.Messages[0].Role)
}

func TestTruncateMessages_KeepsTail(t *testing.T) {
	now := time.Now()
	messages := []Message{
		{Role: RoleUser, Content: "a", CreatedAt: now},
		{Role: RoleAssistant, Content: "b", CreatedAt: now},
		{Role: RoleUser, Content: "c", CreatedAt: now},
		{Role: RoleAssistant, Content: "d", CreatedAt: now},
	}

	truncated := TruncateMessages(messages, 2)

	assert.Equal(t, []Message{messages[2], messages[3]}, truncated)
}

func TestTruncateMessages_NoOpWhenUnderLimit(t *testing.T) {
	messages := []Message{{Role: RoleUser, Content: "a"}}
	assert.Equal(t, messages, TruncateMessages(messages, 10))
	assert.Equal(t, messages, TruncateMessages(messages, 0))
}

func TestLastAssistantRoute_ReturnsMostRecent(t *testing.T) {
	now := time.Now()
	messages := []Message{
		{Role: RoleUser, Content: "q1", CreatedAt: now},
		{Role: RoleAssistant, Content: "a1", Route: "sql", CreatedAt: now},
		{Role: RoleUser, Content: "q2", CreatedAt: now},
		{Role: RoleAssistant, Content: "a2", Route: "rag", CreatedAt: now},
	}

	route, ok := LastAssistantRoute(messages, 10)

	assert.True(t, ok)
	assert.Equal(t, "rag", route)
}

func TestLastAssistantRoute_NoAssistantMessageInWindow(t *testing.T) {
	now := time.Now()
	messages := []Message{
		{Role: RoleAssistant, Content: "a1", Route: "sql", CreatedAt: now},
		{Role: RoleUser, Content: "q2", CreatedAt: now},
	}

	route, ok := LastAssistantRoute(messages, 1)

	assert.False(t, ok)
	assert.Empty(t, route)
}

func TestLastAssistantRoute_EmptyMessages(t *testing.T) {
	route, ok := LastAssistantRoute(nil, 5)
	assert.False(t, ok)
	assert.Empty(t, route)
}
