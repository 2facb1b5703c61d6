package main

import (
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/docqa/internal/config"
	"github.com/nikhilbhutani/docqa/internal/embedding"
	"github.com/nikhilbhutani/docqa/internal/index"
	"github.com/nikhilbhutani/docqa/internal/llm"
	"github.com/nikhilbhutani/docqa/internal/queue"
	"github.com/nikhilbhutani/docqa/internal/queue/workers"
	"github.com/nikhilbhutani/docqa/internal/rag"
	"github.com/nikhilbhutani/docqa/internal/session"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	metric, err := index.ParseMetric(cfg.Index.Metric)
	if err != nil {
		slog.Error("invalid metric", "error", err)
		os.Exit(1)
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	gw := llm.NewGateway(cfg.LLM)
	embedSvc := embedding.NewService(gw, cfg.Embedding.Model, cfg.Embedding.BatchSize)
	composer := rag.NewComposer(gw, cfg.LLM.DefaultProvider, cfg.LLM.ChatModel, cfg.Session.MaxContextTokens)
	sessionCfg := session.Config{
		MaxDocuments: cfg.Session.MaxDocuments,
		TopK:         cfg.Session.TopK,
	}

	registry := queue.NewHandlersRegistry()

	buildWorker := workers.NewBuildWorker(embedSvc, composer, metric, sessionCfg)
	registry.Register(queue.TypeSessionBuild, asynq.HandlerFunc(buildWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
