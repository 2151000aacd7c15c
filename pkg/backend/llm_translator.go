package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/qa-router/pkg/llmclient"
)

// LLMTranslator generates SQL by composing a system prompt from the
// business-entity vocabulary and any prior-attempt error, then asking
// an LLM for a single query string (spec.md §4.4, §1 "natural-language-
// to-SQL translator... out of scope" — this is the one concrete,
// runnable implementation of the SQLTranslator contract). Prompt
// composition follows the teacher's PromptBuilder pattern of combining
// a fixed instruction block with request-specific sections
// (pkg/agent/prompt/builder.go).
type LLMTranslator struct {
	generator   LLMGenerator
	temperature float64
	maxTokens   int
}

// NewLLMTranslator creates an LLMTranslator over generator.
func NewLLMTranslator(generator LLMGenerator, temperature float64, maxTokens int) *LLMTranslator {
	return &LLMTranslator{generator: generator, temperature: temperature, maxTokens: maxTokens}
}

// Translate implements SQLTranslator.
func (t *LLMTranslator) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	messages := []llmclient.Message{
		{Role: llmclient.RoleSystem, Content: t.systemPrompt(req)},
		{Role: llmclient.RoleUser, Content: req.Question},
	}

	raw, err := t.generator.Complete(ctx, messages, t.temperature, t.maxTokens)
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}

	query := extractSQL(raw)
	if query == "" {
		return "", fmt.Errorf("generator returned no SQL statement")
	}
	return query, nil
}

func (t *LLMTranslator) systemPrompt(req TranslateRequest) string {
	var b strings.Builder
	b.WriteString("You translate natural-language questions into a single read-only SQL query.\n")
	b.WriteString("Respond with only the SQL statement, optionally wrapped in a ```sql code fence.\n\n")

	if len(req.Vocabulary) > 0 {
		fmt.Fprintf(&b, "Known tables: %s\n", strings.Join(req.Vocabulary, ", "))
	}
	if req.MemoryContext != "" {
		fmt.Fprintf(&b, "\n%s\n", req.MemoryContext)
	}
	if req.PriorError != "" {
		fmt.Fprintf(&b, "\nThe previous attempt failed with this error — correct it:\n%s\n", req.PriorError)
	}

	return b.String()
}

// extractSQL pulls the query text out of a model response, stripping a
// ```sql fence if present.
func extractSQL(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```sql")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
