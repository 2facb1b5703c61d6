package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const chunkSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS docqa_chunks (
	id          BIGSERIAL PRIMARY KEY,
	index_id    UUID NOT NULL,
	document_id UUID NOT NULL,
	document    TEXT NOT NULL,
	page_number INT NOT NULL,
	seq_index   INT NOT NULL,
	content     TEXT NOT NULL,
	embedding   VECTOR
);

CREATE INDEX IF NOT EXISTS docqa_chunks_index_id_idx ON docqa_chunks (index_id);
`

// EnsureSchema creates the pgvector extension and chunk table if missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, chunkSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
