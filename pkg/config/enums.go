package config

// LLMProvider selects which backend serves chat completions.
type LLMProvider string

const (
	LLMProviderOpenAI LLMProvider = "openai"
	LLMProviderOllama LLMProvider = "ollama"
)

func (p LLMProvider) valid() bool {
	switch p {
	case LLMProviderOpenAI, LLMProviderOllama:
		return true
	default:
		return false
	}
}

// MemoryStrategy selects how conversation history is condensed into the
// prompt (spec.md §4.2, §4.6).
type MemoryStrategy string

const (
	MemoryStrategySimple MemoryStrategy = "simple"
	MemoryStrategyTiered MemoryStrategy = "tiered"
)

func (s MemoryStrategy) valid() bool {
	switch s {
	case MemoryStrategySimple, MemoryStrategyTiered:
		return true
	default:
		return false
	}
}
