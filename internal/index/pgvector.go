package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVector keeps index contents in a Postgres table with the pgvector
// extension. Rows are scoped by index ID so several indexes can share one
// database. Durability comes from Postgres; the file Persister interface is
// intentionally not implemented.
type PgVector struct {
	db      *pgxpool.Pool
	indexID uuid.UUID
	metric  Metric

	mu    sync.RWMutex
	dims  int
	count int
}

func NewPgVector(db *pgxpool.Pool, indexID uuid.UUID, metric Metric) *PgVector {
	return &PgVector{db: db, indexID: indexID, metric: metric}
}

func (s *PgVector) Metric() Metric { return s.metric }

func (s *PgVector) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *PgVector) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// Build replaces all rows for this index ID in one transaction.
func (s *PgVector) Build(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	dims, err := validateBuild(chunks, vectors)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM docqa_chunks WHERE index_id = $1`, s.indexID); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}

	for i, c := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO docqa_chunks (index_id, document_id, document, page_number, seq_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.indexID, c.DocumentID, c.Document, c.Page, c.Seq, c.Text, pgvector.NewVector(vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.mu.Lock()
	s.dims = dims
	s.count = len(chunks)
	s.mu.Unlock()
	return nil
}

func (s *PgVector) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	s.mu.RLock()
	dims, count := s.dims, s.count
	s.mu.RUnlock()

	if count == 0 || k <= 0 {
		return []Match{}, nil
	}
	if len(vector) != dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(vector), dims)
	}

	// <=> is cosine distance, <-> is L2 distance
	operator := "<=>"
	if s.metric == MetricEuclidean {
		operator = "<->"
	}

	embedding := pgvector.NewVector(vector)
	rows, err := s.db.Query(ctx, fmt.Sprintf(
		`SELECT document_id, document, page_number, seq_index, content, embedding %s $1 AS distance
		 FROM docqa_chunks
		 WHERE index_id = $2
		 ORDER BY embedding %s $1, seq_index
		 LIMIT $3`, operator, operator),
		embedding, s.indexID, k,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var distance float64
		if err := rows.Scan(&m.Chunk.DocumentID, &m.Chunk.Document, &m.Chunk.Page, &m.Chunk.Seq, &m.Chunk.Text, &distance); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if s.metric == MetricEuclidean {
			m.Score = 1.0 / (1.0 + distance)
		} else {
			m.Score = 1.0 - distance
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	if matches == nil {
		matches = []Match{}
	}
	return matches, nil
}
