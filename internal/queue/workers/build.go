package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/docqa/internal/document"
	"github.com/nikhilbhutani/docqa/internal/embedding"
	"github.com/nikhilbhutani/docqa/internal/index"
	"github.com/nikhilbhutani/docqa/internal/queue"
	"github.com/nikhilbhutani/docqa/internal/rag"
	"github.com/nikhilbhutani/docqa/internal/session"
)

// BuildWorker ingests a batch of documents into a fresh in-memory index
// and writes the resulting artifact to disk so an API instance can
// restore it later.
type BuildWorker struct {
	embedSvc   *embedding.Service
	composer   *rag.Composer
	metric     index.Metric
	sessionCfg session.Config
}

func NewBuildWorker(embedSvc *embedding.Service, composer *rag.Composer, metric index.Metric, cfg session.Config) *BuildWorker {
	return &BuildWorker{
		embedSvc:   embedSvc,
		composer:   composer,
		metric:     metric,
		sessionCfg: cfg,
	}
}

func (w *BuildWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.SessionBuildPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	slog.Info("building index", "documents", len(payload.Paths), "location", payload.Location)

	sources := make([]document.Source, 0, len(payload.Paths))
	for _, p := range payload.Paths {
		sources = append(sources, document.FromPath(p))
	}

	sess := session.New(
		document.NewLoader(),
		w.embedSvc,
		w.composer,
		func() index.Index { return index.NewMemory(w.metric) },
		w.sessionCfg,
	)

	if err := sess.Ingest(ctx, sources); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if err := sess.Persist(payload.Location); err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	slog.Info("index built", "session_id", sess.ID(), "location", payload.Location)
	return nil
}
