package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the service's environment variables, optionally seeded from
// a .env file at envPath (a missing file is not an error — the teacher's
// cmd/tarsy/main.go treats it the same way), applies defaults, and
// validates the result before returning it.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			slog.Warn("could not load env file, continuing with process environment", "path", envPath, "error", err)
		} else {
			slog.Info("loaded environment file", "path", envPath)
		}
	}

	temperature, err := parseFloat("LLM_TEMPERATURE", "0.0")
	if err != nil {
		return nil, err
	}
	orchestratorTemperature, err := parseFloat("ORCHESTRATOR_TEMPERATURE", "0.0")
	if err != nil {
		return nil, err
	}
	maxOutputTokens, err := parseInt("LLM_MAX_OUTPUT_TOKENS", "1024")
	if err != nil {
		return nil, err
	}
	maxConversationMessages, err := parseInt("MAX_CONVERSATION_MESSAGES", "20")
	if err != nil {
		return nil, err
	}
	queryResultMemorySize, err := parseInt("QUERY_RESULT_MEMORY_SIZE", "5")
	if err != nil {
		return nil, err
	}
	followupMaxContextTokens, err := parseInt("FOLLOWUP_MAX_CONTEXT_TOKENS", "2000")
	if err != nil {
		return nil, err
	}
	sqlAgentMaxIterations, err := parseInt("SQL_AGENT_MAX_ITERATIONS", "5")
	if err != nil {
		return nil, err
	}
	maxQueryRows, err := parseInt("MAX_QUERY_ROWS", "200")
	if err != nil {
		return nil, err
	}
	followupDetectionEnabled, err := parseBool("FOLLOWUP_DETECTION_ENABLED", "true")
	if err != nil {
		return nil, err
	}
	enableSQLAgent, err := parseBool("ENABLE_SQL_AGENT", "true")
	if err != nil {
		return nil, err
	}
	enableRAGAgent, err := parseBool("ENABLE_RAG_AGENT", "true")
	if err != nil {
		return nil, err
	}
	cleanupInterval, err := parseDuration("CLEANUP_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	conversationTTL, err := parseDuration("CONVERSATION_TTL", "720h")
	if err != nil {
		return nil, err
	}
	corpusCacheTTL, err := parseDuration("CORPUS_CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LLMProvider:     LLMProvider(getEnvOrDefault("LLM_PROVIDER", "openai")),
		LLMModel:        getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
		LLMAPIKey:       os.Getenv("LLM_API_KEY"),
		LLMBaseURL:      os.Getenv("LLM_BASE_URL"),
		LLMTemperature:  temperature,
		MaxOutputTokens: maxOutputTokens,

		OrchestratorTemperature:  orchestratorTemperature,
		FollowupDetectionEnabled: followupDetectionEnabled,
		FollowupMaxContextTokens: followupMaxContextTokens,

		MaxConversationMessages:    maxConversationMessages,
		ConversationMemoryStrategy: MemoryStrategy(getEnvOrDefault("CONVERSATION_MEMORY_STRATEGY", "simple")),
		ConversationDBPath:         getEnvOrDefault("CONVERSATION_DB_PATH", "./data/conversations.db"),
		QueryResultMemorySize:      queryResultMemorySize,

		EnableSQLAgent: enableSQLAgent,
		EnableRAGAgent: enableRAGAgent,

		SQLAgentMaxIterations: sqlAgentMaxIterations,
		MaxQueryRows:          maxQueryRows,

		HTTPAddr:        getEnvOrDefault("HTTP_ADDR", ":8080"),
		JoinGraphPath:   getEnvOrDefault("JOIN_GRAPH_PATH", "./data/join_graph.json"),
		CleanupInterval: cleanupInterval,
		ConversationTTL: conversationTTL,

		CorpusRepoURL:     os.Getenv("CORPUS_REPO_URL"),
		CorpusGitHubToken: os.Getenv("CORPUS_GITHUB_TOKEN"),
		CorpusCacheTTL:    corpusCacheTTL,
		AnalyticalDBPath:  getEnvOrDefault("ANALYTICAL_DB_PATH", "./data/analytical.db"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every field holds an acceptable value. It is run
// once at startup, before any other component is constructed (spec.md
// §6).
func (c *Config) Validate() error {
	if !c.LLMProvider.valid() {
		return newValidationError("LLM_PROVIDER", fmt.Errorf("%w: %q (want openai or ollama)", ErrInvalidValue, c.LLMProvider))
	}
	if c.LLMProvider == LLMProviderOpenAI && c.LLMAPIKey == "" {
		return newValidationError("LLM_API_KEY", ErrMissingRequiredField)
	}
	if c.LLMModel == "" {
		return newValidationError("LLM_MODEL", ErrMissingRequiredField)
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return newValidationError("LLM_TEMPERATURE", fmt.Errorf("%w: must be within [0,2]", ErrInvalidValue))
	}
	if c.OrchestratorTemperature < 0 || c.OrchestratorTemperature > 2 {
		return newValidationError("ORCHESTRATOR_TEMPERATURE", fmt.Errorf("%w: must be within [0,2]", ErrInvalidValue))
	}
	if c.MaxOutputTokens < 1 {
		return newValidationError("LLM_MAX_OUTPUT_TOKENS", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.MaxConversationMessages < 1 {
		return newValidationError("MAX_CONVERSATION_MESSAGES", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if !c.ConversationMemoryStrategy.valid() {
		return newValidationError("CONVERSATION_MEMORY_STRATEGY", fmt.Errorf("%w: %q (want simple or tiered)", ErrInvalidValue, c.ConversationMemoryStrategy))
	}
	if c.ConversationDBPath == "" {
		return newValidationError("CONVERSATION_DB_PATH", ErrMissingRequiredField)
	}
	if c.QueryResultMemorySize < 1 {
		return newValidationError("QUERY_RESULT_MEMORY_SIZE", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.FollowupMaxContextTokens < 1 {
		return newValidationError("FOLLOWUP_MAX_CONTEXT_TOKENS", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.SQLAgentMaxIterations < 1 {
		return newValidationError("SQL_AGENT_MAX_ITERATIONS", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.MaxQueryRows < 1 {
		return newValidationError("MAX_QUERY_ROWS", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.CleanupInterval <= 0 {
		return newValidationError("CLEANUP_INTERVAL", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.ConversationTTL <= 0 {
		return newValidationError("CONVERSATION_TTL", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if !c.EnableSQLAgent && !c.EnableRAGAgent {
		slog.Warn("both SQL and RAG backends disabled; classifier will only ever route to general")
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseInt(key, defaultVal string) (int, error) {
	raw := getEnvOrDefault(key, defaultVal)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, newValidationError(key, fmt.Errorf("%w: %v", ErrInvalidValue, err))
	}
	return v, nil
}

func parseFloat(key, defaultVal string) (float64, error) {
	raw := getEnvOrDefault(key, defaultVal)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, newValidationError(key, fmt.Errorf("%w: %v", ErrInvalidValue, err))
	}
	return v, nil
}

func parseBool(key, defaultVal string) (bool, error) {
	raw := getEnvOrDefault(key, defaultVal)
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, newValidationError(key, fmt.Errorf("%w: %v", ErrInvalidValue, err))
	}
	return v, nil
}

func parseDuration(key, defaultVal string) (time.Duration, error) {
	raw := getEnvOrDefault(key, defaultVal)
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, newValidationError(key, fmt.Errorf("%w: %v", ErrInvalidValue, err))
	}
	return v, nil
}
