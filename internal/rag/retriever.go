package rag

import (
	"context"

	"github.com/nikhilbhutani/docqa/internal/embedding"
	"github.com/nikhilbhutani/docqa/internal/index"
)

type Retriever struct {
	idx      index.Index
	embedSvc *embedding.Service
}

func NewRetriever(idx index.Index, embedSvc *embedding.Service) *Retriever {
	return &Retriever{idx: idx, embedSvc: embedSvc}
}

// Retrieve embeds the query and returns its top-k nearest chunks. Errors
// from the embedder or the index surface unchanged.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]index.Match, error) {
	queryVec, err := r.embedSvc.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.idx.Query(ctx, queryVec, k)
}
