// Package rag implements the retrieval-augmented answering pipeline:
// chunk assembly, top-k retrieval and grounded answer composition.
package rag

import (
	"github.com/nikhilbhutani/docqa/internal/document"
	"github.com/nikhilbhutani/docqa/internal/index"
	"github.com/nikhilbhutani/docqa/pkg/chunker"
	"github.com/nikhilbhutani/docqa/pkg/tokenizer"
)

// ChunkPages splits the pages of one document into indexable chunks. The
// sequence index runs across the whole document in page order, so output
// order always matches source order.
func ChunkPages(pages []document.Page, opts chunker.Options) []index.Chunk {
	var chunks []index.Chunk
	seq := 0
	for _, page := range pages {
		for _, text := range chunker.Split(page.Text, opts) {
			chunks = append(chunks, index.Chunk{
				DocumentID: page.DocumentID,
				Document:   page.Document,
				Page:       page.Number,
				Seq:        seq,
				Text:       text,
				Tokens:     tokenizer.CountTokens(text),
			})
			seq++
		}
	}
	return chunks
}
