package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Index     IndexConfig
	Database  DatabaseConfig
	Qdrant    QdrantConfig
	Session   SessionConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	OllamaURL        string
	DefaultProvider  string
	ChatModel        string
	FallbackProvider string
	MaxRetries       int
	Timeout          time.Duration
}

type EmbeddingConfig struct {
	Model     string
	BatchSize int
	CacheTTL  time.Duration
}

type IndexConfig struct {
	Backend string // "memory", "pgvector", "qdrant"
	Metric  string // "cosine" or "euclidean"
	DataDir string
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
}

type QdrantConfig struct {
	Addr       string
	Collection string
}

type SessionConfig struct {
	MaxDocuments     int
	TopK             int
	MaxContextTokens int
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	timeoutSec, err := getEnvInt("LLM_TIMEOUT_SECONDS", 60)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_TIMEOUT_SECONDS: %w", err)
	}

	batchSize, err := getEnvInt("EMBEDDING_BATCH_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBEDDING_BATCH_SIZE: %w", err)
	}

	cacheTTLMin, err := getEnvInt("EMBEDDING_CACHE_TTL_MINUTES", 24*60)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBEDDING_CACHE_TTL_MINUTES: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	maxDocs, err := getEnvInt("SESSION_MAX_DOCUMENTS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_MAX_DOCUMENTS: %w", err)
	}

	topK, err := getEnvInt("SESSION_TOP_K", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TOP_K: %w", err)
	}

	maxCtxTokens, err := getEnvInt("SESSION_MAX_CONTEXT_TOKENS", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_MAX_CONTEXT_TOKENS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			ChatModel:        getEnv("LLM_CHAT_MODEL", "gpt-4-turbo"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       maxRetries,
			Timeout:          time.Duration(timeoutSec) * time.Second,
		},
		Embedding: EmbeddingConfig{
			Model:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			BatchSize: batchSize,
			CacheTTL:  time.Duration(cacheTTLMin) * time.Minute,
		},
		Index: IndexConfig{
			Backend: getEnv("INDEX_BACKEND", "memory"),
			Metric:  getEnv("INDEX_METRIC", "cosine"),
			DataDir: getEnv("INDEX_DATA_DIR", "data"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: maxConns,
		},
		Qdrant: QdrantConfig{
			Addr:       getEnv("QDRANT_ADDR", "localhost:6334"),
			Collection: getEnv("QDRANT_COLLECTION", "docqa_chunks"),
		},
		Session: SessionConfig{
			MaxDocuments:     maxDocs,
			TopK:             topK,
			MaxContextTokens: maxCtxTokens,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.LLM.OpenAIKey == "" && c.LLM.OllamaURL == "" {
		missing = append(missing, "OPENAI_API_KEY or OLLAMA_URL")
	}
	if c.Index.Backend == "pgvector" && c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	switch c.Index.Backend {
	case "memory", "pgvector", "qdrant":
	default:
		return fmt.Errorf("unknown INDEX_BACKEND: %q", c.Index.Backend)
	}

	switch c.Index.Metric {
	case "cosine", "euclidean":
	default:
		return fmt.Errorf("unknown INDEX_METRIC: %q", c.Index.Metric)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
