package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process index using brute-force similarity search.
// Suitable for bounded document sets held by a single session.
type Memory struct {
	mu      sync.RWMutex
	metric  Metric
	dims    int
	chunks  []Chunk
	vectors [][]float32
}

func NewMemory(metric Metric) *Memory {
	return &Memory{metric: metric}
}

func (m *Memory) Metric() Metric { return m.metric }

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func (m *Memory) Dimensions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dims
}

// Build replaces the index contents with the given set. Vectors are copied,
// so callers may reuse their slices.
func (m *Memory) Build(_ context.Context, chunks []Chunk, vectors [][]float32) error {
	dims, err := validateBuild(chunks, vectors)
	if err != nil {
		return err
	}

	newChunks := make([]Chunk, len(chunks))
	copy(newChunks, chunks)
	newVectors := make([][]float32, len(vectors))
	for i, v := range vectors {
		vec := make([]float32, len(v))
		copy(vec, v)
		newVectors[i] = vec
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.dims = dims
	m.chunks = newChunks
	m.vectors = newVectors
	return nil
}

// Query returns up to k matches, descending by score. An empty index yields
// an empty result. Ties keep insertion order so the top-k1 results are
// always a prefix of the top-k2 results for k1 < k2.
func (m *Memory) Query(_ context.Context, vector []float32, k int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.chunks) == 0 || k <= 0 {
		return []Match{}, nil
	}
	if len(vector) != m.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(vector), m.dims)
	}

	matches := make([]Match, len(m.chunks))
	for i, vec := range m.vectors {
		matches[i] = Match{Chunk: m.chunks[i], Score: m.score(vector, vec)}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

func (m *Memory) score(query, vec []float32) float64 {
	switch m.metric {
	case MetricEuclidean:
		var sum float64
		for i := range query {
			d := float64(query[i] - vec[i])
			sum += d * d
		}
		// map distance to a descending-by-similarity score
		return 1.0 / (1.0 + math.Sqrt(sum))
	default:
		return cosineSimilarity(query, vec)
	}
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
