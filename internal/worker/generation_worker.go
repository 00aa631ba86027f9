package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/hibiken/asynq"

	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/orchestrator"
	"github.com/reelforge/api/internal/service"
	"github.com/reelforge/api/internal/store"
	"github.com/reelforge/api/internal/timeline"
)

const interruptedMessage = "generation interrupted"

// Notifier pushes progress to websocket subscribers
type Notifier interface {
	BroadcastSegmentProgress(timelineID string, segmentID, percent int)
	BroadcastSegmentComplete(timelineID string, result model.GenerationResult)
	BroadcastProgress(topic, jobID string, progress int, status, step string)
	BroadcastComplete(topic, jobID string, result interface{})
	BroadcastError(topic, jobID, code, message string)
}

// GenerationWorker executes timeline:generate tasks. The run guard taken at
// enqueue time is released when the task ends, so failed tasks are not
// retried.
type GenerationWorker struct {
	timelines *service.TimelineService
	orch      *orchestrator.Orchestrator
	guard     service.RunGuard
	hub       Notifier
	logger    *slog.Logger
}

func NewGenerationWorker(timelines *service.TimelineService, orch *orchestrator.Orchestrator, guard service.RunGuard, hub Notifier, logger *slog.Logger) *GenerationWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationWorker{
		timelines: timelines,
		orch:      orch,
		guard:     guard,
		hub:       hub,
		logger:    logger.With("component", "generation_worker"),
	}
}

// ProcessTask handles generation task processing
func (w *GenerationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var env service.TaskEnvelope
	if err := json.Unmarshal(t.Payload(), &env); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	var payload service.GenerationPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal generation payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID, topic := env.JobID, payload.TimelineID
	log := w.logger.With("job_id", jobID, "timeline_id", topic)
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := w.guard.Release(context.WithoutCancel(ctx), payload.TimelineID); err != nil {
			log.Error("failed to release run guard", "error", err)
		}
	}
	defer release()

	tl, err := w.timelines.Get(ctx, payload.TimelineID)
	if err != nil {
		w.hub.BroadcastError(topic, jobID, "GENERATION_FAILED", "timeline could not be loaded")
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("timeline %s: %v: %w", payload.TimelineID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("load timeline: %v: %w", err, asynq.SkipRetry)
	}

	if n := recoverInterrupted(tl); n > 0 {
		log.Warn("recovered interrupted segments", "count", n)
	}

	log.Info("generation started", "mode", payload.Mode, "segment", payload.SegmentID, "force", payload.Force)

	var results []model.GenerationResult
	switch {
	case payload.SegmentID != 0:
		results, err = w.runSegment(ctx, tl, jobID, payload.SegmentID)
	case payload.Mode == model.ModePreview && w.orch.ParallelPreview():
		results = w.runParallelPreview(ctx, tl, jobID, payload.Force)
	default:
		results = w.runSequential(ctx, tl, jobID, payload.Mode, payload.Force)
	}
	if err != nil {
		w.hub.BroadcastError(topic, jobID, "GENERATION_FAILED", err.Error())
		return fmt.Errorf("generate segment: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.timelines.Save(context.WithoutCancel(ctx), tl); err != nil {
		w.hub.BroadcastError(topic, jobID, "GENERATION_FAILED", "failed to save timeline")
		return fmt.Errorf("save timeline: %v: %w", err, asynq.SkipRetry)
	}

	// subscribers may start editing as soon as they see completion
	release()

	summary := summarize(tl.ID, payload.Mode, results)
	summary.Cancelled = ctx.Err() != nil
	w.hub.BroadcastComplete(topic, jobID, summary)
	log.Info("generation finished",
		"generated", summary.Generated,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"cancelled", summary.Cancelled,
	)
	return nil
}

// runSequential steps the run one segment at a time and persists after every
// step so readers see progress as it happens
func (w *GenerationWorker) runSequential(ctx context.Context, tl *model.Timeline, jobID string, mode model.GenerationMode, force bool) []model.GenerationResult {
	total := len(tl.Segments)
	cb := orchestrator.Callbacks{
		OnProgress: func(segmentID, percent int) {
			w.hub.BroadcastSegmentProgress(tl.ID, segmentID, percent)
			if percent == 0 {
				w.persist(ctx, tl)
			}
		},
		OnSegmentComplete: func(_ int, result model.GenerationResult) {
			w.hub.BroadcastSegmentComplete(tl.ID, result)
		},
	}

	var opts []orchestrator.RunOption
	if force {
		opts = append(opts, orchestrator.WithForce())
	}
	run := w.orch.NewRun(tl, mode, cb, opts...)
	for done := 1; ; done++ {
		res, ok := run.Next(ctx)
		if !ok {
			break
		}
		w.persist(ctx, tl)
		w.hub.BroadcastProgress(tl.ID, jobID, percentOf(done, total), "running",
			fmt.Sprintf("segment %d of %d (id %d)", done, total, res.SegmentID))
	}
	return run.Results()
}

// runParallelPreview runs previews concurrently. Callbacks may fire from
// several goroutines, so the timeline is persisted once at the end.
func (w *GenerationWorker) runParallelPreview(ctx context.Context, tl *model.Timeline, jobID string, force bool) []model.GenerationResult {
	cb := orchestrator.Callbacks{
		OnProgress: func(segmentID, percent int) {
			w.hub.BroadcastSegmentProgress(tl.ID, segmentID, percent)
		},
		OnSegmentComplete: func(_ int, result model.GenerationResult) {
			w.hub.BroadcastSegmentComplete(tl.ID, result)
		},
	}
	var opts []orchestrator.RunOption
	if force {
		opts = append(opts, orchestrator.WithForce())
	}
	w.hub.BroadcastProgress(tl.ID, jobID, 0, "running", "generating previews")
	return w.orch.GeneratePreview(ctx, tl, cb, opts...)
}

func (w *GenerationWorker) runSegment(ctx context.Context, tl *model.Timeline, jobID string, segmentID int) ([]model.GenerationResult, error) {
	cb := orchestrator.Callbacks{
		OnProgress: func(id, percent int) {
			w.hub.BroadcastSegmentProgress(tl.ID, id, percent)
			if percent == 0 {
				w.persist(ctx, tl)
			}
		},
		OnSegmentComplete: func(_ int, result model.GenerationResult) {
			w.hub.BroadcastSegmentComplete(tl.ID, result)
		},
	}
	res, err := w.orch.GenerateSegment(ctx, tl, segmentID, cb)
	if err != nil {
		return nil, err
	}
	w.hub.BroadcastProgress(tl.ID, jobID, 100, "running", fmt.Sprintf("segment %d", segmentID))
	return []model.GenerationResult{res}, nil
}

func (w *GenerationWorker) persist(ctx context.Context, tl *model.Timeline) {
	if err := w.timelines.Save(context.WithoutCancel(ctx), tl); err != nil {
		w.logger.Warn("failed to persist generation progress", "timeline_id", tl.ID, "error", err)
	}
}

// recoverInterrupted fails segments left generating by a run that no longer
// holds the guard, such as one killed with its worker
func recoverInterrupted(tl *model.Timeline) int {
	n := 0
	for i := range tl.Segments {
		seg := &tl.Segments[i]
		if seg.Status != model.SegmentGenerating {
			continue
		}
		if err := timeline.Transition(seg, model.SegmentError, interruptedMessage); err == nil {
			n++
		}
	}
	return n
}

func summarize(timelineID string, mode model.GenerationMode, results []model.GenerationResult) model.GenerationSummary {
	if mode == "" {
		mode = model.ModeFull
	}
	s := model.GenerationSummary{TimelineID: timelineID, Mode: mode, Results: results}
	var cost float64
	for _, r := range results {
		switch {
		case r.Skipped:
			s.Skipped++
		case r.Success:
			s.Generated++
		default:
			s.Failed++
		}
		cost += r.Cost
	}
	s.TotalCost = math.Round(cost*100) / 100
	if s.Results == nil {
		s.Results = []model.GenerationResult{}
	}
	return s
}

func percentOf(done, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
