package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docqa/internal/document"
	"github.com/nikhilbhutani/docqa/internal/embedding"
	"github.com/nikhilbhutani/docqa/internal/index"
	"github.com/nikhilbhutani/docqa/internal/llm"
	"github.com/nikhilbhutani/docqa/internal/rag"
	"github.com/nikhilbhutani/docqa/internal/session"
)

type fakeGateway struct{}

func (g *fakeGateway) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Model: req.Model, Content: "an answer"}, nil
}

func (g *fakeGateway) Embed(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	embeddings := make([][]float32, len(req.Input))
	for i := range embeddings {
		embeddings[i] = []float32{1, 0}
	}
	return &llm.EmbeddingResponse{Embeddings: embeddings}, nil
}

func (g *fakeGateway) Provider(name string) (llm.Provider, error) {
	return nil, errors.New("not implemented")
}

func (g *fakeGateway) ListModels() []llm.ModelInfo { return nil }

func newTestRouter(t *testing.T) (*chi.Mux, *session.Registry) {
	t.Helper()
	gw := &fakeGateway{}
	registry := session.NewRegistry()
	h := NewSessionHandler(
		registry,
		document.NewLoader(),
		embedding.NewService(gw, "test-model", 100),
		rag.NewComposer(gw, "openai", "test-chat", 0),
		func() index.Index { return index.NewMemory(index.MetricCosine) },
		session.Config{},
		nil,
	)

	r := chi.NewRouter()
	r.Post("/sessions", h.Create)
	r.Post("/sessions/async", h.CreateAsync)
	r.Post("/sessions/restore", h.Restore)
	r.Get("/sessions/{id}", h.Get)
	r.Post("/sessions/{id}/ask", h.Ask)
	r.Post("/sessions/{id}/persist", h.Persist)
	r.Delete("/sessions/{id}", h.Delete)
	return r, registry
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateSessionInvalidBody(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSessionNoPaths(t *testing.T) {
	r, _ := newTestRouter(t)
	w := postJSON(t, r, "/sessions", map[string]any{"paths": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSessionMissingFile(t *testing.T) {
	r, _ := newTestRouter(t)
	w := postJSON(t, r, "/sessions", map[string]any{"paths": []string{"/nonexistent/a.txt"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCreateSessionTooManyDocuments(t *testing.T) {
	r, _ := newTestRouter(t)
	paths := make([]string, 11)
	for i := range paths {
		paths[i] = fmt.Sprintf("/tmp/doc%d.txt", i)
	}
	w := postJSON(t, r, "/sessions", map[string]any{"paths": paths})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAskUnknownSession(t *testing.T) {
	r, _ := newTestRouter(t)
	w := postJSON(t, r, "/sessions/8a1e6f9e-0000-0000-0000-000000000000/ask", map[string]any{"question": "q"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAskInvalidSessionID(t *testing.T) {
	r, _ := newTestRouter(t)
	w := postJSON(t, r, "/sessions/not-a-uuid/ask", map[string]any{"question": "q"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	r, registry := newTestRouter(t)

	// multipart-free path: upload a document via JSON is path-based, so use
	// the registry directly for the ingest and drive ask/get over HTTP
	gw := &fakeGateway{}
	sess := session.New(
		document.NewLoader(),
		embedding.NewService(gw, "test-model", 100),
		rag.NewComposer(gw, "openai", "test-chat", 0),
		func() index.Index { return index.NewMemory(index.MetricCosine) },
		session.Config{},
	)
	require.NoError(t, sess.Ingest(context.Background(), []document.Source{
		document.FromBytes("a.txt", []byte("some document text")),
	}))
	registry.Add(sess)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/"+sess.ID().String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "ready", got.State)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "a.txt", got.Documents[0].Name)

	w = postJSON(t, r, "/sessions/"+sess.ID().String()+"/ask", map[string]any{"question": "what is this?"})
	require.Equal(t, http.StatusOK, w.Code)
	var answer rag.Answer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answer))
	assert.Equal(t, "an answer", answer.Text)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/sessions/"+sess.ID().String(), nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, registry.Len())
}

func TestRestoreMissingLocation(t *testing.T) {
	r, _ := newTestRouter(t)
	w := postJSON(t, r, "/sessions/restore", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAsyncWithoutQueue(t *testing.T) {
	r, _ := newTestRouter(t)
	w := postJSON(t, r, "/sessions/async", map[string]any{"paths": []string{"/tmp/a.txt"}, "location": "/tmp/out.idx"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"too many documents", &session.TooManyDocumentsError{Count: 11, Limit: 10}, http.StatusBadRequest},
		{"not persistable", session.ErrNotPersistable, http.StatusBadRequest},
		{"load error", &document.LoadError{Name: "a.txt", Err: errors.New("missing")}, http.StatusUnprocessableEntity},
		{"not ready", session.ErrNotReady, http.StatusConflict},
		{"building", session.ErrBuilding, http.StatusConflict},
		{"embed error", &embedding.EmbedError{Err: errors.New("down")}, http.StatusBadGateway},
		{"generate error", &rag.GenerateError{Err: errors.New("down")}, http.StatusBadGateway},
		{"wrapped load error", fmt.Errorf("ingest: %w", &document.LoadError{Name: "b", Err: errors.New("x")}), http.StatusUnprocessableEntity},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusForError(tc.err))
		})
	}
}
