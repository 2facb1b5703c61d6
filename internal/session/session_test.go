package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docqa/internal/document"
	"github.com/nikhilbhutani/docqa/internal/embedding"
	"github.com/nikhilbhutani/docqa/internal/index"
	"github.com/nikhilbhutani/docqa/internal/llm"
	"github.com/nikhilbhutani/docqa/internal/rag"
	"github.com/nikhilbhutani/docqa/pkg/chunker"
)

// fakeGateway produces deterministic embeddings from text content and echoes
// the retrieved context back as the chat answer.
type fakeGateway struct {
	embedErr error
	chatErr  error
}

func (g *fakeGateway) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if g.chatErr != nil {
		return nil, g.chatErr
	}
	user := req.Messages[len(req.Messages)-1].Content
	answer := "not found"
	if strings.Contains(user, "Paris") {
		answer = "The capital of France is Paris."
	}
	return &llm.ChatResponse{Model: req.Model, Content: answer, TotalTokens: 10}, nil
}

func (g *fakeGateway) Embed(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	if g.embedErr != nil {
		return nil, g.embedErr
	}
	embeddings := make([][]float32, len(req.Input))
	for i, text := range req.Input {
		embeddings[i] = embedText(text)
	}
	return &llm.EmbeddingResponse{Model: req.Model, Embeddings: embeddings}, nil
}

func (g *fakeGateway) Provider(name string) (llm.Provider, error) {
	return nil, errors.New("not implemented")
}

func (g *fakeGateway) ListModels() []llm.ModelInfo { return nil }

// embedText maps text to a 4-dimensional vector from crude keyword counts,
// so related texts land near each other.
func embedText(text string) []float32 {
	lower := strings.ToLower(text)
	vec := []float32{0.1, 0.1, 0.1, 0.1}
	for i, kw := range []string{"france", "paris", "cheese", "wine"} {
		vec[i] += float32(strings.Count(lower, kw))
	}
	return vec
}

func newTestSession(t *testing.T, gw llm.Gateway, cfg Config) *Session {
	t.Helper()
	embedSvc := embedding.NewService(gw, "test-model", 100)
	composer := rag.NewComposer(gw, "openai", "test-chat", 0)
	return New(
		document.NewLoader(),
		embedSvc,
		composer,
		func() index.Index { return index.NewMemory(index.MetricCosine) },
		cfg,
	)
}

func writeDoc(t *testing.T, name, content string) document.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return document.FromPath(path)
}

func TestAskBeforeIngest(t *testing.T) {
	s := newTestSession(t, &fakeGateway{}, Config{})
	assert.Equal(t, StateUninitialized, s.State())

	_, err := s.Ask(context.Background(), "anything?", 0)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestPersistBeforeIngest(t *testing.T) {
	s := newTestSession(t, &fakeGateway{}, Config{})
	assert.ErrorIs(t, s.Persist("/tmp/nope.idx"), ErrNotReady)
}

func TestIngestEmptyBatch(t *testing.T) {
	s := newTestSession(t, &fakeGateway{}, Config{})
	assert.Error(t, s.Ingest(context.Background(), nil))
	assert.Equal(t, StateUninitialized, s.State())
}

func TestIngestTooManyDocuments(t *testing.T) {
	s := newTestSession(t, &fakeGateway{}, Config{MaxDocuments: 10})

	sources := make([]document.Source, 11)
	for i := range sources {
		sources[i] = document.FromBytes(fmt.Sprintf("doc%d.txt", i), []byte("text"))
	}

	err := s.Ingest(context.Background(), sources)
	var tooMany *TooManyDocumentsError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, 11, tooMany.Count)
	assert.Equal(t, 10, tooMany.Limit)
	assert.Equal(t, StateUninitialized, s.State())
}

func TestIngestLoadFailureResetsState(t *testing.T) {
	s := newTestSession(t, &fakeGateway{}, Config{})

	err := s.Ingest(context.Background(), []document.Source{
		document.FromBytes("ok.txt", []byte("fine content")),
		document.FromPath("/nonexistent/broken.txt"),
	})
	var loadErr *document.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, StateUninitialized, s.State())
	assert.Empty(t, s.Documents())
}

func TestIngestEmbedFailureResetsState(t *testing.T) {
	s := newTestSession(t, &fakeGateway{embedErr: errors.New("provider down")}, Config{})

	err := s.Ingest(context.Background(), []document.Source{
		document.FromBytes("a.txt", []byte("content")),
	})
	var embedErr *embedding.EmbedError
	require.ErrorAs(t, err, &embedErr)
	assert.Equal(t, StateUninitialized, s.State())
}

func TestCapitalOfFrance(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, &fakeGateway{}, Config{})

	src := writeDoc(t, "france.txt", "Paris is the capital of France.")
	require.NoError(t, s.Ingest(ctx, []document.Source{src}))
	require.Equal(t, StateReady, s.State())

	docs := s.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "france.txt", docs[0].Name)
	assert.Equal(t, 1, docs[0].Pages)
	assert.Equal(t, 1, docs[0].Chunks)

	answer, err := s.Ask(ctx, "What is the capital of France?", 0)
	require.NoError(t, err)
	assert.Equal(t, "The capital of France is Paris.", answer.Text)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "france.txt", answer.Sources[0].Chunk.Document)
	assert.Contains(t, answer.Sources[0].Chunk.Text, "Paris")
	assert.Greater(t, answer.Sources[0].Score, 0.7)
}

func TestTwoDocumentAttribution(t *testing.T) {
	ctx := context.Background()
	// small chunks so each document yields several
	s := newTestSession(t, &fakeGateway{}, Config{
		TopK:      3,
		ChunkOpts: chunker.Options{ChunkSize: 60, Strategy: "recursive"},
	})

	var france, cheese strings.Builder
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&france, "Fact %d: Paris is the capital of France.\n\n", i)
	}
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&cheese, "Note %d: cheese pairs well with wine.\n\n", i)
	}

	require.NoError(t, s.Ingest(ctx, []document.Source{
		writeDoc(t, "france.txt", france.String()),
		writeDoc(t, "cheese.txt", cheese.String()),
	}))

	docs := s.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, 5, docs[0].Chunks)
	assert.Equal(t, 3, docs[1].Chunks)

	answer, err := s.Ask(ctx, "Tell me about Paris, the capital of France", 0)
	require.NoError(t, err)
	require.Len(t, answer.Sources, 3)
	for _, src := range answer.Sources {
		assert.Equal(t, "france.txt", src.Chunk.Document, "question about France must retrieve from france.txt")
	}

	answer, err = s.Ask(ctx, "What pairs well with cheese and wine?", 0)
	require.NoError(t, err)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "cheese.txt", answer.Sources[0].Chunk.Document)
}

func TestRebuildKeepsServingOnFailure(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	s := newTestSession(t, gw, Config{})

	require.NoError(t, s.Ingest(ctx, []document.Source{
		document.FromBytes("a.txt", []byte("Paris is the capital of France.")),
	}))
	require.Equal(t, StateReady, s.State())

	// failed rebuild must not disturb the live index
	gw.embedErr = errors.New("provider down")
	err := s.Ingest(ctx, []document.Source{
		document.FromBytes("b.txt", []byte("totally different content")),
	})
	require.Error(t, err)
	assert.Equal(t, StateReady, s.State())

	gw.embedErr = nil
	answer, err := s.Ask(ctx, "What is the capital of France?", 0)
	require.NoError(t, err)
	assert.Contains(t, answer.Text, "Paris")
}

func TestRebuildReplacesDocuments(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, &fakeGateway{}, Config{})

	require.NoError(t, s.Ingest(ctx, []document.Source{
		document.FromBytes("a.txt", []byte("first corpus")),
	}))
	require.NoError(t, s.Ingest(ctx, []document.Source{
		document.FromBytes("b.txt", []byte("second corpus")),
		document.FromBytes("c.txt", []byte("third corpus")),
	}))

	docs := s.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "b.txt", docs[0].Name)
	assert.Equal(t, "c.txt", docs[1].Name)
}

func TestPersistRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	s := newTestSession(t, gw, Config{})

	require.NoError(t, s.Ingest(ctx, []document.Source{
		document.FromBytes("france.txt", []byte("Paris is the capital of France.")),
	}))

	location := filepath.Join(t.TempDir(), "session.idx")
	require.NoError(t, s.Persist(location))

	embedSvc := embedding.NewService(gw, "test-model", 100)
	composer := rag.NewComposer(gw, "openai", "test-chat", 0)
	restored, err := Restore(location, embedSvc, composer, Config{})
	require.NoError(t, err)
	assert.Equal(t, StateReady, restored.State())
	assert.NotEqual(t, s.ID(), restored.ID())

	answer, err := restored.Ask(ctx, "What is the capital of France?", 0)
	require.NoError(t, err)
	assert.Contains(t, answer.Text, "Paris")
}

func TestRestoreMissingArtifact(t *testing.T) {
	gw := &fakeGateway{}
	embedSvc := embedding.NewService(gw, "test-model", 100)
	composer := rag.NewComposer(gw, "openai", "test-chat", 0)

	_, err := Restore(filepath.Join(t.TempDir(), "missing.idx"), embedSvc, composer, Config{})
	assert.Error(t, err)
}

func TestAskDefaultTopK(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, &fakeGateway{}, Config{TopK: 2, ChunkOpts: chunker.Options{ChunkSize: 40, Strategy: "recursive"}})

	var sb strings.Builder
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&sb, "Paragraph %d about France.\n\n", i)
	}
	require.NoError(t, s.Ingest(ctx, []document.Source{
		document.FromBytes("a.txt", []byte(sb.String())),
	}))

	answer, err := s.Ask(ctx, "France?", 0)
	require.NoError(t, err)
	assert.Len(t, answer.Sources, 2)

	answer, err = s.Ask(ctx, "France?", 4)
	require.NoError(t, err)
	assert.Len(t, answer.Sources, 4)
}
