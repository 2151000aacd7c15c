package llmclient

import (
	"fmt"

	"github.com/codeready-toolchain/qa-router/pkg/config"
)

// New constructs the Client selected by cfg.LLMProvider, grounded on the
// teacher's factory pattern for per-execution component construction
// (pkg/agent/factory.go).
func New(cfg *config.Config) (Client, error) {
	switch cfg.LLMProvider {
	case config.LLMProviderOpenAI:
		return NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMBaseURL)
	case config.LLMProviderOllama:
		return NewOllamaClient(cfg.LLMBaseURL, cfg.LLMModel), nil
	default:
		return nil, fmt.Errorf("llmclient: unsupported provider %q", cfg.LLMProvider)
	}
}
