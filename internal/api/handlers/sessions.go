package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/docqa/internal/document"
	"github.com/nikhilbhutani/docqa/internal/embedding"
	"github.com/nikhilbhutani/docqa/internal/index"
	"github.com/nikhilbhutani/docqa/internal/queue"
	"github.com/nikhilbhutani/docqa/internal/rag"
	"github.com/nikhilbhutani/docqa/internal/session"
)

const maxUploadBytes = 64 << 20

type SessionHandler struct {
	registry    *session.Registry
	loader      *document.Loader
	embedSvc    *embedding.Service
	composer    *rag.Composer
	newIndex    func() index.Index
	sessionCfg  session.Config
	queueClient *queue.Client
}

func NewSessionHandler(
	registry *session.Registry,
	loader *document.Loader,
	embedSvc *embedding.Service,
	composer *rag.Composer,
	newIndex func() index.Index,
	cfg session.Config,
	qc *queue.Client,
) *SessionHandler {
	return &SessionHandler{
		registry:    registry,
		loader:      loader,
		embedSvc:    embedSvc,
		composer:    composer,
		newIndex:    newIndex,
		sessionCfg:  cfg,
		queueClient: qc,
	}
}

type createSessionRequest struct {
	Paths []string `json:"paths"`
}

type sessionResponse struct {
	SessionID string                 `json:"session_id"`
	State     string                 `json:"state"`
	Documents []session.DocumentInfo `json:"documents"`
}

// Create ingests a batch of documents into a new session. The batch comes
// either as a JSON list of file paths or as a multipart upload.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sources, ok := h.parseSources(w, r)
	if !ok {
		return
	}

	sess := session.New(h.loader, h.embedSvc, h.composer, h.newIndex, h.sessionCfg)
	if err := sess.Ingest(r.Context(), sources); err != nil {
		writeError(w, err)
		return
	}

	h.registry.Add(sess)
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: sess.ID().String(),
		State:     string(sess.State()),
		Documents: sess.Documents(),
	})
}

func (h *SessionHandler) parseSources(w http.ResponseWriter, r *http.Request) ([]document.Source, bool) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
			return nil, false
		}
		var sources []document.Source
		for _, fh := range r.MultipartForm.File["files"] {
			f, err := fh.Open()
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "open upload: " + err.Error()})
				return nil, false
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read upload: " + err.Error()})
				return nil, false
			}
			sources = append(sources, document.FromBytes(fh.Filename, data))
		}
		if len(sources) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no files provided"})
			return nil, false
		}
		return sources, true
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return nil, false
	}
	if len(req.Paths) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "paths required"})
		return nil, false
	}
	sources := make([]document.Source, 0, len(req.Paths))
	for _, p := range req.Paths {
		sources = append(sources, document.FromPath(p))
	}
	return sources, true
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: sess.ID().String(),
		State:     string(sess.State()),
		Documents: sess.Documents(),
	})
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

func (h *SessionHandler) Ask(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Question == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question required"})
		return
	}

	answer, err := sess.Ask(r.Context(), req.Question, req.TopK)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

type persistRequest struct {
	Location string `json:"location"`
}

func (h *SessionHandler) Persist(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req persistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Location == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "location required"})
		return
	}

	if err := sess.Persist(req.Location); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"location": req.Location})
}

func (h *SessionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req persistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Location == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "location required"})
		return
	}

	sess, err := session.Restore(req.Location, h.embedSvc, h.composer, h.sessionCfg)
	if err != nil {
		writeError(w, err)
		return
	}

	h.registry.Add(sess)
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: sess.ID().String(),
		State:     string(sess.State()),
		Documents: sess.Documents(),
	})
}

type asyncBuildRequest struct {
	Paths    []string `json:"paths"`
	Location string   `json:"location"`
}

// CreateAsync hands the build off to the background worker. The caller
// restores the finished artifact once the task completes.
func (h *SessionHandler) CreateAsync(w http.ResponseWriter, r *http.Request) {
	if h.queueClient == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "background builds not configured"})
		return
	}

	var req asyncBuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Paths) == 0 || req.Location == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "paths and location required"})
		return
	}

	if err := h.queueClient.EnqueueSessionBuild(queue.SessionBuildPayload{
		Paths:    req.Paths,
		Location: req.Location,
	}); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"location": req.Location, "status": "queued"})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}
	h.registry.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return nil, false
	}
	sess, err := h.registry.Get(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return nil, false
	}
	return sess, true
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
}

func statusForError(err error) int {
	var tooMany *session.TooManyDocumentsError
	var loadErr *document.LoadError
	var embedErr *embedding.EmbedError
	var genErr *rag.GenerateError

	switch {
	case errors.As(err, &tooMany):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotPersistable):
		return http.StatusBadRequest
	case errors.As(err, &loadErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotReady), errors.Is(err, session.ErrBuilding):
		return http.StatusConflict
	case errors.As(err, &embedErr), errors.As(err, &genErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
