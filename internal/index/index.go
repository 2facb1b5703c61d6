// Package index stores chunk embeddings and serves nearest-neighbor queries.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Chunk is the minimal retrievable unit of document text with its
// provenance. Chunks are immutable once built into an index.
type Chunk struct {
	DocumentID uuid.UUID `json:"document_id"`
	Document   string    `json:"document"`
	Page       int       `json:"page_number"`
	Seq        int       `json:"sequence_index"`
	Text       string    `json:"text"`
	Tokens     int       `json:"tokens,omitempty"`
}

// Match is one retrieval hit. Score is monotonically related to similarity
// under the index metric; higher is more similar.
type Match struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Metric selects the similarity computation.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
)

func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, MetricEuclidean:
		return Metric(s), nil
	default:
		return "", fmt.Errorf("unknown metric: %q", s)
	}
}

var (
	// ErrMismatchedInputs marks a build whose chunks and vectors differ in length.
	ErrMismatchedInputs = errors.New("chunks and vectors length mismatch")
	// ErrDimensionMismatch marks a vector whose length differs from the index's.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Index is a built collection of (chunk, vector) pairs. Build replaces the
// contents wholesale; there is no per-entry upsert. Query is safe for
// concurrent use once the index is built.
type Index interface {
	Build(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
	Len() int
	Dimensions() int
	Metric() Metric
}

// Persister is implemented by indexes that can serialize themselves to a
// single file artifact. Server-backed indexes are durable on their own and
// do not implement it.
type Persister interface {
	Persist(path string) error
}

func validateBuild(chunks []Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("%w: %d chunks, %d vectors", ErrMismatchedInputs, len(chunks), len(vectors))
	}
	dims := 0
	for i, v := range vectors {
		if i == 0 {
			dims = len(v)
			continue
		}
		if len(v) != dims {
			return 0, fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(v), dims)
		}
	}
	return dims, nil
}
