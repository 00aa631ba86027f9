package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/render"
	"github.com/reelforge/api/internal/service"
)

// RenderWorker processes render jobs
type RenderWorker struct {
	manager *render.Manager
	hub     Notifier
	logger  *slog.Logger
}

// NewRenderWorker creates a new render worker
func NewRenderWorker(manager *render.Manager, hub Notifier, logger *slog.Logger) *RenderWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RenderWorker{
		manager: manager,
		hub:     hub,
		logger:  logger.With("component", "render_worker"),
	}
}

// ProcessTask handles render task processing. Progress is published on the
// job's own topic.
func (w *RenderWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var env service.TaskEnvelope
	if err := json.Unmarshal(t.Payload(), &env); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID := env.JobID
	w.logger.Info("starting render job", "job_id", jobID)

	job, err := w.manager.Run(ctx, jobID, func(p model.RenderProgress) {
		w.hub.BroadcastProgress(jobID, jobID, p.ProgressPercent, string(p.Status),
			fmt.Sprintf("segment %d of %d", p.CurrentSegment, p.TotalSegments))
	})
	switch {
	case errors.Is(err, render.ErrJobFinished):
		// redelivered after it already ran
		w.logger.Info("render job already finished", "job_id", jobID, "status", job.Status)
		return nil
	case errors.Is(err, render.ErrJobNotFound):
		return fmt.Errorf("render job %s: %v: %w", jobID, err, asynq.SkipRetry)
	case err != nil:
		return err
	}

	if job.Status == model.RenderFailed {
		w.hub.BroadcastError(jobID, jobID, "RENDER_FAILED", job.Error)
		return nil
	}
	w.hub.BroadcastComplete(jobID, jobID, job)
	w.logger.Info("render job completed", "job_id", jobID, "output", job.OutputURL)
	return nil
}
