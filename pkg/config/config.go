// Package config loads the service's closed set of environment-variable
// knobs (spec.md §6) plus the handful of infrastructure settings needed
// to wire the concrete stack (listen address, join graph path, LLM
// credentials). There is no YAML registry: every field is scalar and
// comes from the process environment, optionally seeded by a .env file.
package config

import "time"

// Config is the fully-resolved, validated configuration for a single
// process. It is constructed once at startup and treated as read-only
// thereafter.
type Config struct {
	// LLM routes and generation
	LLMProvider    LLMProvider
	LLMModel       string
	LLMAPIKey      string
	LLMBaseURL     string
	LLMTemperature float64
	MaxOutputTokens int

	// Orchestrator/classifier behavior
	OrchestratorTemperature  float64
	FollowupDetectionEnabled bool
	FollowupMaxContextTokens int

	// Conversation history and memory
	MaxConversationMessages     int
	ConversationMemoryStrategy  MemoryStrategy
	ConversationDBPath          string
	QueryResultMemorySize       int

	// Backend enablement
	EnableSQLAgent bool
	EnableRAGAgent bool

	// SQL backend limits
	SQLAgentMaxIterations int
	MaxQueryRows          int

	// Infrastructure (outside spec.md's closed knob set, needed to run
	// the process at all)
	HTTPAddr        string
	JoinGraphPath   string
	CleanupInterval time.Duration
	ConversationTTL time.Duration

	// RAG corpus and SQL analytical database (out-of-scope collaborators
	// per spec.md §1, wired here so the process is runnable end-to-end)
	CorpusRepoURL     string
	CorpusGitHubToken string
	CorpusCacheTTL    time.Duration
	AnalyticalDBPath  string
}

// Stats summarizes the resolved configuration for structured startup
// logging (grounded on the teacher's ConfigStats/Config.Stats pattern).
type Stats struct {
	LLMProvider      string
	LLMModel         string
	MemoryStrategy   string
	SQLAgentEnabled  bool
	RAGAgentEnabled  bool
	QueryMemorySize  int
}

func (c *Config) Stats() Stats {
	return Stats{
		LLMProvider:     string(c.LLMProvider),
		LLMModel:        c.LLMModel,
		MemoryStrategy:  string(c.ConversationMemoryStrategy),
		SQLAgentEnabled: c.EnableSQLAgent,
		RAGAgentEnabled: c.EnableRAGAgent,
		QueryMemorySize: c.QueryResultMemorySize,
	}
}
