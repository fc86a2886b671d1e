package database

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"docsum/internal/domain"
	"docsum/internal/pipeline"
)

// Recorder stores one runs row per summarization request. A request starts
// with StateExtracting and ends with StateDone or StateFailed.
type Recorder struct {
	db  *Database
	log *slog.Logger
	now func() time.Time

	mu     sync.Mutex
	active map[string][]string
}

func NewRecorder(db *Database, log *slog.Logger) *Recorder {
	return &Recorder{
		db:     db,
		log:    log,
		now:    time.Now,
		active: make(map[string][]string),
	}
}

func (r *Recorder) Observe(ctx context.Context, e pipeline.Event) {
	switch {
	case e.State == pipeline.StateExtracting:
		r.start(ctx, e)
	case e.State.Terminal():
		r.finish(ctx, e)
	}
}

func (r *Recorder) start(ctx context.Context, e pipeline.Event) {
	id, err := r.db.StartRun(ctx, e.Document, r.now())
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to start run",
			"error", err,
			"document", e.Document)
		return
	}

	r.mu.Lock()
	r.active[e.Document] = append(r.active[e.Document], id)
	r.mu.Unlock()
}

func (r *Recorder) finish(ctx context.Context, e pipeline.Event) {
	id, ok := r.pop(e.Document)
	if !ok {
		return
	}

	run := &domain.Run{
		ID:         id,
		Status:     domain.RunStatusDone,
		ChunkCount: e.ChunkCount,
		TokenCount: e.TokenCount,
		FinishedAt: r.now(),
	}

	if e.State == pipeline.StateFailed {
		run.Status = domain.RunStatusFailed
		run.FailureKind = string(domain.KindOf(e.Err))
		if e.Err != nil {
			run.Message = e.Err.Error()
		}
	}

	if err := r.db.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		r.log.ErrorContext(ctx, "Failed to finish run",
			"error", err,
			"runID", id,
			"document", e.Document,
			"status", run.Status)
	}
}

// pop takes the oldest active run of the document. Concurrent requests for
// the same name are matched in start order.
func (r *Recorder) pop(document string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.active[document]
	if len(ids) == 0 {
		return "", false
	}

	id := ids[0]
	if len(ids) == 1 {
		delete(r.active, document)
	} else {
		r.active[document] = ids[1:]
	}

	return id, true
}
