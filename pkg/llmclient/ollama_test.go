package llmclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Stream_EmitsTextThenUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"message":{"content":"hel"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"lo"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":""},"done":true,"prompt_eval_count":5,"eval_count":2}`)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3")
	chunks, err := client.Stream(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	var text string
	var usage *UsageChunk
	for chunk := range chunks {
		switch c := chunk.(type) {
		case *TextChunk:
			text += c.Content
		case *UsageChunk:
			usage = c
		}
	}

	assert.Equal(t, "hello", text)
	require.NotNil(t, usage)
	assert.Equal(t, 5, usage.PromptTokens)
	assert.Equal(t, 2, usage.CompletionTokens)
	assert.Equal(t, 7, usage.TotalTokens)
}

func TestOllamaClient_Stream_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3")
	_, err := client.Stream(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.Error(t, err)
}

func TestNewOllamaClient_DefaultsBaseURL(t *testing.T) {
	client := NewOllamaClient("", "llama3")
	assert.Equal(t, "http://localhost:11434", client.baseURL)
}
