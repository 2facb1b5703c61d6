// Package session owns one prepared similarity index across its lifecycle:
// uninitialized, building, ready. A ready session answers questions
// concurrently; rebuilds swap the index atomically.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/docqa/internal/document"
	"github.com/nikhilbhutani/docqa/internal/embedding"
	"github.com/nikhilbhutani/docqa/internal/index"
	"github.com/nikhilbhutani/docqa/internal/rag"
	"github.com/nikhilbhutani/docqa/pkg/chunker"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateBuilding      State = "building"
	StateReady         State = "ready"
)

// DocumentInfo records one document of the session's originating set.
type DocumentInfo struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Pages  int       `json:"pages"`
	Chunks int       `json:"chunks"`
}

type Config struct {
	MaxDocuments int
	TopK         int
	ChunkOpts    chunker.Options
}

func (c Config) withDefaults() Config {
	if c.MaxDocuments <= 0 {
		c.MaxDocuments = 10
	}
	if c.TopK <= 0 {
		c.TopK = 4
	}
	if c.ChunkOpts.ChunkSize == 0 {
		c.ChunkOpts = chunker.DefaultOptions()
	}
	return c
}

// Session holds one index built from a bounded document set.
type Session struct {
	id       uuid.UUID
	cfg      Config
	loader   *document.Loader
	embedSvc *embedding.Service
	composer *rag.Composer
	newIndex func() index.Index

	mu    sync.RWMutex
	state State
	idx   index.Index
	docs  []DocumentInfo
}

// New creates an uninitialized session. newIndex supplies a fresh, empty
// index for each build so rebuilds never mutate an index readers may hold.
func New(loader *document.Loader, embedSvc *embedding.Service, composer *rag.Composer, newIndex func() index.Index, cfg Config) *Session {
	return &Session{
		id:       uuid.New(),
		cfg:      cfg.withDefaults(),
		loader:   loader,
		embedSvc: embedSvc,
		composer: composer,
		newIndex: newIndex,
		state:    StateUninitialized,
	}
}

// Restore reconstructs a ready session directly from a persisted index
// artifact, without repeating ingestion.
func Restore(location string, embedSvc *embedding.Service, composer *rag.Composer, cfg Config) (*Session, error) {
	idx, err := index.Open(location)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	s := &Session{
		id:       uuid.New(),
		cfg:      cfg.withDefaults(),
		loader:   document.NewLoader(),
		embedSvc: embedSvc,
		composer: composer,
		newIndex: func() index.Index { return index.NewMemory(idx.Metric()) },
		state:    StateReady,
		idx:      idx,
	}
	return s, nil
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Documents returns the originating document set of the current index.
func (s *Session) Documents() []DocumentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]DocumentInfo, len(s.docs))
	copy(docs, s.docs)
	return docs
}

type loadResult struct {
	pages  []document.Page
	chunks []index.Chunk
	err    error
}

// Ingest loads, chunks, embeds and indexes the given documents as one batch.
// Oversized batches are rejected before any work starts. Any failure aborts
// the whole ingestion: a first build returns to uninitialized, a rebuild
// keeps the previous index serving.
func (s *Session) Ingest(ctx context.Context, sources []document.Source) error {
	if len(sources) == 0 {
		return fmt.Errorf("no documents to ingest")
	}
	if len(sources) > s.cfg.MaxDocuments {
		return &TooManyDocumentsError{Count: len(sources), Limit: s.cfg.MaxDocuments}
	}

	s.mu.Lock()
	if s.state == StateBuilding {
		s.mu.Unlock()
		return ErrBuilding
	}
	wasReady := s.state == StateReady
	if !wasReady {
		s.state = StateBuilding
	}
	s.mu.Unlock()

	fail := func(err error) error {
		if !wasReady {
			s.mu.Lock()
			s.state = StateUninitialized
			s.mu.Unlock()
		}
		return err
	}

	// loading and chunking are independent per document
	results := make([]loadResult, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src document.Source) {
			defer wg.Done()
			pages, err := s.loader.Load(ctx, src)
			if err != nil {
				results[i] = loadResult{err: err}
				return
			}
			results[i] = loadResult{pages: pages, chunks: rag.ChunkPages(pages, s.cfg.ChunkOpts)}
		}(i, src)
	}
	wg.Wait()

	var chunks []index.Chunk
	docs := make([]DocumentInfo, 0, len(sources))
	for i, res := range results {
		if res.err != nil {
			return fail(res.err)
		}
		if len(res.chunks) == 0 {
			return fail(&document.LoadError{Name: sources[i].Name, Err: fmt.Errorf("no chunks produced")})
		}
		chunks = append(chunks, res.chunks...)
		docs = append(docs, DocumentInfo{
			ID:     res.pages[0].DocumentID,
			Name:   sources[i].Name,
			Pages:  len(res.pages),
			Chunks: len(res.chunks),
		})
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedSvc.Embed(ctx, texts)
	if err != nil {
		return fail(err)
	}

	idx := s.newIndex()
	if err := idx.Build(ctx, chunks, vectors); err != nil {
		return fail(fmt.Errorf("build index: %w", err))
	}

	s.mu.Lock()
	s.idx = idx
	s.docs = docs
	s.state = StateReady
	s.mu.Unlock()

	slog.Info("session ready",
		"session_id", s.id,
		"documents", len(docs),
		"chunks", len(chunks),
		"dimensions", idx.Dimensions(),
	)
	return nil
}

// Ask answers a question against the built index. The session stays ready
// after a failed question; only ingestion-phase errors reset it.
func (s *Session) Ask(ctx context.Context, query string, k int) (*rag.Answer, error) {
	s.mu.RLock()
	state, idx := s.state, s.idx
	s.mu.RUnlock()

	if state != StateReady {
		return nil, ErrNotReady
	}
	if k <= 0 {
		k = s.cfg.TopK
	}

	retriever := rag.NewRetriever(idx, s.embedSvc)
	matches, err := retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}

	return s.composer.Compose(ctx, query, matches)
}

// Persist writes the session's index to a file artifact. Only in-process
// indexes support this; server-backed ones are durable already.
func (s *Session) Persist(location string) error {
	s.mu.RLock()
	state, idx := s.state, s.idx
	s.mu.RUnlock()

	if state != StateReady {
		return ErrNotReady
	}
	p, ok := idx.(index.Persister)
	if !ok {
		return ErrNotPersistable
	}
	return p.Persist(location)
}
