package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docqa/internal/api/handlers"
	"github.com/nikhilbhutani/docqa/internal/api/middleware"
	"github.com/nikhilbhutani/docqa/internal/cache"
	"github.com/nikhilbhutani/docqa/internal/config"
	"github.com/nikhilbhutani/docqa/internal/document"
	"github.com/nikhilbhutani/docqa/internal/embedding"
	"github.com/nikhilbhutani/docqa/internal/index"
	"github.com/nikhilbhutani/docqa/internal/llm"
	"github.com/nikhilbhutani/docqa/internal/queue"
	"github.com/nikhilbhutani/docqa/internal/rag"
	"github.com/nikhilbhutani/docqa/internal/session"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	llmGW llm.Gateway
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		llmGW: llm.NewGateway(cfg.LLM),
	}
}

func (rt *Router) Setup() (http.Handler, error) {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Initialize services
	var embedOpts []embedding.Option
	if rt.redis != nil {
		embedOpts = append(embedOpts, embedding.WithCache(cache.NewCache(rt.redis), rt.cfg.Embedding.CacheTTL))
	}
	embedSvc := embedding.NewService(rt.llmGW, rt.cfg.Embedding.Model, rt.cfg.Embedding.BatchSize, embedOpts...)
	composer := rag.NewComposer(rt.llmGW, rt.cfg.LLM.DefaultProvider, rt.cfg.LLM.ChatModel, rt.cfg.Session.MaxContextTokens)

	newIndex, err := rt.indexFactory()
	if err != nil {
		return nil, err
	}

	sessionCfg := session.Config{
		MaxDocuments: rt.cfg.Session.MaxDocuments,
		TopK:         rt.cfg.Session.TopK,
	}

	var queueClient *queue.Client
	if rt.cfg.Redis.Addr != "" {
		queueClient = queue.NewClient(rt.cfg.Redis)
	}

	registry := session.NewRegistry()
	sessionH := handlers.NewSessionHandler(registry, document.NewLoader(), embedSvc, composer, newIndex, sessionCfg, queueClient)
	modelsH := handlers.NewModelsHandler(rt.llmGW)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionH.Create)
			r.Post("/async", sessionH.CreateAsync)
			r.Post("/restore", sessionH.Restore)
			r.Get("/{id}", sessionH.Get)
			r.Post("/{id}/ask", sessionH.Ask)
			r.Post("/{id}/persist", sessionH.Persist)
			r.Delete("/{id}", sessionH.Delete)
		})

		r.Get("/models", modelsH.List)
	})

	return r, nil
}

// indexFactory builds new, empty indexes for session builds. Every build
// gets its own identity so a rebuild never disturbs the index it replaces.
func (rt *Router) indexFactory() (func() index.Index, error) {
	metric, err := index.ParseMetric(rt.cfg.Index.Metric)
	if err != nil {
		return nil, err
	}

	switch rt.cfg.Index.Backend {
	case "memory":
		return func() index.Index { return index.NewMemory(metric) }, nil

	case "pgvector":
		if rt.db == nil {
			return nil, fmt.Errorf("pgvector backend requires a database connection")
		}
		db := rt.db
		return func() index.Index { return index.NewPgVector(db, uuid.New(), metric) }, nil

	case "qdrant":
		conn, err := index.DialQdrant(rt.cfg.Qdrant.Addr)
		if err != nil {
			return nil, err
		}
		base := rt.cfg.Qdrant.Collection
		return func() index.Index {
			name := fmt.Sprintf("%s_%s", base, uuid.NewString()[:8])
			return index.NewQdrant(conn, name, metric)
		}, nil

	default:
		return nil, fmt.Errorf("unknown index backend: %q", rt.cfg.Index.Backend)
	}
}
