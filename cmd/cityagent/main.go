// Command cityagent runs the city-assistant chat service for St. Petersburg
// residents.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/yazdeszhivu/cityagent/agent"
	"github.com/yazdeszhivu/cityagent/config"
	"github.com/yazdeszhivu/cityagent/llm"
	"github.com/yazdeszhivu/cityagent/log"
	"github.com/yazdeszhivu/cityagent/rag"
	"github.com/yazdeszhivu/cityagent/rag/retriever"
	"github.com/yazdeszhivu/cityagent/rag/store"
	"github.com/yazdeszhivu/cityagent/server"
	"github.com/yazdeszhivu/cityagent/session"
	"github.com/yazdeszhivu/cityagent/tool"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional, env vars always apply)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "cityagent: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := log.NewGologLogger(log.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model, err := openai.New(
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.OpenAIAPIKey),
	)
	if err != nil {
		return fmt.Errorf("create model: %w", err)
	}
	embedder := llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)

	vectorStore, closeStore, err := buildVectorStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	docRetriever, err := retriever.New(retriever.Options{
		Embedder: embedder,
		Store:    vectorStore,
		TopK:     cfg.TopK,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	pipeline, err := rag.New(rag.Config{
		Model:              model,
		Retriever:          docRetriever,
		UseQueryRewriting:  cfg.RAGUseQueryRewriting,
		UseDocumentGrading: cfg.RAGUseDocumentGrading,
		MaxRetries:         cfg.RAGMaxRetries,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	catalog, err := buildCatalog(cfg, logger)
	if err != nil {
		return err
	}

	hybrid, err := agent.NewHybrid(agent.HybridConfig{
		Model:     model,
		Catalog:   catalog,
		Retriever: pipeline,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	sessions, closeSessions, err := buildSessionStore(cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	supervisor, err := agent.NewSupervisor(agent.SupervisorConfig{
		Model:         model,
		Classifier:    agent.NewClassifier(model, cfg.RouteConfidenceThreshold, logger),
		RAG:           pipeline,
		Hybrid:        hybrid,
		Sessions:      sessions,
		HistoryWindow: cfg.HistoryWindow,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	return server.NewServer(supervisor, logger).Run(ctx, cfg.Addr)
}

func buildVectorStore(ctx context.Context, cfg *config.Config) (store.VectorStore, func(), error) {
	if cfg.PostgresDSN == "" {
		return store.NewMemoryStore(), func() {}, nil
	}

	pg, err := store.NewPgvectorStore(ctx, store.PgvectorOptions{ConnString: cfg.PostgresDSN})
	if err != nil {
		return nil, nil, fmt.Errorf("connect vector store: %w", err)
	}
	if err := pg.InitSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func buildCatalog(cfg *config.Config, logger log.Logger) (*tool.Catalog, error) {
	cityClient := tool.NewClient(cfg.CityAPIURL,
		tool.WithTimeout(cfg.ToolTimeout),
		tool.WithMaxRetries(cfg.ToolMaxRetries),
		tool.WithLogger(logger),
	)
	eventsClient := tool.NewClient(cfg.EventsAPIURL,
		tool.WithTimeout(cfg.ToolTimeout),
		tool.WithMaxRetries(cfg.ToolMaxRetries),
		tool.WithLogger(logger),
	)

	return tool.NewCatalog(logger,
		tool.NewFacilityTool(cityClient),
		tool.NewDistrictTool(cityClient),
		tool.NewEventsTool(eventsClient),
		tool.NewSportsTool(cityClient),
	)
}

func buildSessionStore(cfg *config.Config) (session.Store, func(), error) {
	switch cfg.SessionBackend {
	case "memory":
		return session.NewMemoryStore(), func() {}, nil
	case "redis":
		s := session.NewRedisStore(session.RedisOptions{Addr: cfg.RedisAddr})
		return s, func() { _ = s.Close() }, nil
	case "sqlite":
		s, err := session.NewSqliteStore(session.SqliteOptions{Path: cfg.SQLitePath})
		if err != nil {
			return nil, nil, fmt.Errorf("open session store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}
