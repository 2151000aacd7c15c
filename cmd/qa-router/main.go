// qa-router is the natural-language question-routing orchestration
// service (spec.md §1): it classifies each incoming question as a SQL,
// RAG, or general query, dispatches it to the matching backend, and
// streams the result back over server-sent events.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"github.com/codeready-toolchain/qa-router/pkg/api"
	"github.com/codeready-toolchain/qa-router/pkg/backend"
	"github.com/codeready-toolchain/qa-router/pkg/classifier"
	"github.com/codeready-toolchain/qa-router/pkg/cleanup"
	"github.com/codeready-toolchain/qa-router/pkg/config"
	"github.com/codeready-toolchain/qa-router/pkg/corpus"
	"github.com/codeready-toolchain/qa-router/pkg/joingraph"
	"github.com/codeready-toolchain/qa-router/pkg/llmclient"
	"github.com/codeready-toolchain/qa-router/pkg/store"
	"github.com/codeready-toolchain/qa-router/pkg/version"
	"github.com/codeready-toolchain/qa-router/pkg/workflow"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	envPath := flag.String("env-file",
		getEnv("ENV_FILE", "./deploy/.env"),
		"Path to an optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envPath)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	stats := cfg.Stats()
	slog.Info("starting",
		"version", version.Full(),
		"llm_provider", stats.LLMProvider,
		"llm_model", stats.LLMModel,
		"memory_strategy", stats.MemoryStrategy,
		"sql_agent_enabled", stats.SQLAgentEnabled,
		"rag_agent_enabled", stats.RAGAgentEnabled,
	)

	ctx := context.Background()

	storeClient, err := store.NewClient(ctx, store.Config{Path: cfg.ConversationDBPath})
	if err != nil {
		log.Fatalf("open conversation store: %v", err)
	}
	defer func() {
		if err := storeClient.Close(); err != nil {
			slog.Error("error closing conversation store", "error", err)
		}
	}()
	slog.Info("conversation store ready", "path", cfg.ConversationDBPath)

	graph, err := joingraph.Load(cfg.JoinGraphPath)
	if err != nil {
		log.Fatalf("load join graph: %v", err)
	}
	vocabulary := joingraph.NewVocabulary(graph)

	llmClient, err := llmclient.New(cfg)
	if err != nil {
		log.Fatalf("construct LLM client: %v", err)
	}
	generator := backend.NewStreamingGenerator(llmClient)

	clf := classifier.New(generator, vocabulary, cfg.OrchestratorTemperature, classifier.WithFollowupDetection(cfg.FollowupDetectionEnabled))

	analyticalDB, err := sql.Open("sqlite", cfg.AnalyticalDBPath)
	if err != nil {
		log.Fatalf("open analytical database: %v", err)
	}
	defer func() {
		if err := analyticalDB.Close(); err != nil {
			slog.Error("error closing analytical database", "error", err)
		}
	}()

	sqlExecutor := backend.NewSQLiteExecutor(analyticalDB)
	sqlTranslator := backend.NewLLMTranslator(generator, cfg.LLMTemperature, cfg.MaxOutputTokens)

	corpusStore := corpus.NewStore(cfg.CorpusRepoURL, cfg.CorpusGitHubToken, cfg.CorpusCacheTTL)
	vectorStore := backend.NewCorpusVectorStore(corpusStore)

	adapters := workflow.AdapterFactories{
		SQL: func() backend.Adapter {
			return backend.NewSQLAdapter(sqlTranslator, sqlExecutor, vocabulary.Entities(), cfg.SQLAgentMaxIterations, cfg.MaxQueryRows)
		},
		RAG: func() backend.Adapter {
			return backend.NewRAGAdapter(vectorStore, llmClient, backend.DefaultRAGTopK, cfg.LLMTemperature, cfg.MaxOutputTokens)
		},
		General: func() backend.Adapter {
			return backend.NewGeneralAdapter(llmClient, cfg.LLMTemperature, cfg.MaxOutputTokens)
		},
	}

	wf := workflow.New(storeClient, clf, generator, adapters, cfg)

	cleanupSvc := cleanup.NewService(storeClient, cfg.ConversationTTL, cfg.CleanupInterval)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	ginMode := getEnv("GIN_MODE", gin.ReleaseMode)
	server := api.NewServer(wf, storeClient, ginMode)

	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.Start(cfg.HTTPAddr); err != nil {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		slog.Error("error during http server shutdown", "error", err)
	}
}
