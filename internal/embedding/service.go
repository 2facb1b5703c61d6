// Package embedding maps text to fixed-length vectors through the LLM
// gateway, with request batching and an optional redis cache.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/nikhilbhutani/docqa/internal/cache"
	"github.com/nikhilbhutani/docqa/internal/llm"
)

// EmbedError reports an embedding failure after the gateway's retries are
// exhausted, or a malformed provider response.
type EmbedError struct {
	Err error
}

func (e *EmbedError) Error() string { return fmt.Sprintf("embedding: %v", e.Err) }
func (e *EmbedError) Unwrap() error { return e.Err }

type Service struct {
	gateway   llm.Gateway
	model     string
	batchSize int
	cache     *cache.Cache
	cacheTTL  time.Duration

	mu   sync.Mutex
	dims int
}

type Option func(*Service)

// WithCache caches vectors by model and text hash so repeated ingestion of
// the same content skips provider calls.
func WithCache(c *cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func NewService(gw llm.Gateway, model string, batchSize int, opts ...Option) *Service {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	s := &Service{gateway: gw, model: model, batchSize: batchSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model returns the configured embedding model identifier.
func (s *Service) Model() string { return s.model }

// Dimensions reports the vector length observed from the provider, or zero
// before the first successful call.
func (s *Service) Dimensions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dims
}

// Embed returns one vector per input text, in input order. Uncached texts
// are sent to the provider in grouped batches.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if vec, ok := s.cacheLookup(ctx, text); ok {
			vectors[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	for start := 0; start < len(missTexts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		batch := missTexts[start:end]

		resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
			Model: s.model,
			Input: batch,
		})
		if err != nil {
			return nil, &EmbedError{Err: fmt.Errorf("batch %d: %w", start/s.batchSize, err)}
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, &EmbedError{Err: fmt.Errorf("provider returned %d vectors for %d inputs", len(resp.Embeddings), len(batch))}
		}

		for j, vec := range resp.Embeddings {
			if err := s.recordDims(len(vec)); err != nil {
				return nil, &EmbedError{Err: err}
			}
			vectors[missIdx[start+j]] = vec
			s.cacheStore(ctx, batch[j], vec)
		}
	}

	return vectors, nil
}

// EmbedOne embeds a single text as a one-item batch.
func (s *Service) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, &EmbedError{Err: fmt.Errorf("no embedding returned")}
	}
	return vectors[0], nil
}

func (s *Service) recordDims(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == 0 {
		return fmt.Errorf("provider returned empty vector")
	}
	if s.dims == 0 {
		s.dims = n
		return nil
	}
	if s.dims != n {
		return fmt.Errorf("provider returned %d-dimensional vector, expected %d", n, s.dims)
	}
	return nil
}

func (s *Service) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(s.model + "|" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func (s *Service) cacheLookup(ctx context.Context, text string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}
	var vec []float32
	if err := s.cache.Get(ctx, s.cacheKey(text), &vec); err != nil {
		return nil, false
	}
	if err := s.recordDims(len(vec)); err != nil {
		return nil, false
	}
	return vec, true
}

func (s *Service) cacheStore(ctx context.Context, text string, vec []float32) {
	if s.cache == nil {
		return
	}
	// best effort; a failed cache write never fails the embed
	_ = s.cache.Set(ctx, s.cacheKey(text), vec, s.cacheTTL)
}
