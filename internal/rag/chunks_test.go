package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docqa/internal/document"
	"github.com/nikhilbhutani/docqa/internal/embedding"
	"github.com/nikhilbhutani/docqa/internal/index"
	"github.com/nikhilbhutani/docqa/pkg/chunker"
)

func TestChunkPagesSequenceSpansPages(t *testing.T) {
	docID := uuid.New()
	pages := []document.Page{
		{DocumentID: docID, Document: "a.txt", Number: 1, Text: strings.Repeat("one ", 40) + "\n\n" + strings.Repeat("two ", 40)},
		{DocumentID: docID, Document: "a.txt", Number: 2, Text: "short page"},
	}

	chunks := ChunkPages(pages, chunker.Options{ChunkSize: 120, Strategy: "recursive"})
	require.GreaterOrEqual(t, len(chunks), 3)

	for i, c := range chunks {
		assert.Equal(t, i, c.Seq, "sequence must be contiguous")
		assert.Equal(t, docID, c.DocumentID)
		assert.Equal(t, "a.txt", c.Document)
		assert.Positive(t, c.Tokens)
	}
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 2, chunks[len(chunks)-1].Page)
}

func TestChunkPagesEmpty(t *testing.T) {
	assert.Empty(t, ChunkPages(nil, chunker.DefaultOptions()))
}

func TestRetrieverEmbedsQueryAndSearches(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{embedDims: 2}

	svc := embedding.NewService(gw, "test-model", 10)
	idx := index.NewMemory(index.MetricCosine)

	chunks := []index.Chunk{
		{Document: "a.txt", Seq: 0, Text: "alpha"},
		{Document: "a.txt", Seq: 1, Text: "beta"},
	}
	require.NoError(t, idx.Build(ctx, chunks, [][]float32{{1, 0}, {0, 1}}))

	r := NewRetriever(idx, svc)
	matches, err := r.Retrieve(ctx, "alpha", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}
