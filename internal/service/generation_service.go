package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/timeline"
)

// GenerationService admits generation runs and hands them to the worker
type GenerationService struct {
	timelines *TimelineService
	queue     TaskQueue
	guard     RunGuard
	logger    *slog.Logger
}

func NewGenerationService(timelines *TimelineService, queue TaskQueue, guard RunGuard, logger *slog.Logger) *GenerationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationService{
		timelines: timelines,
		queue:     queue,
		guard:     guard,
		logger:    logger.With("component", "generation_service"),
	}
}

// Start enqueues a full or preview run over the whole timeline
func (s *GenerationService) Start(ctx context.Context, timelineID string, req *model.GenerateRequest) (*model.JobResponse, error) {
	mode := req.Mode
	if mode == "" {
		mode = model.ModeFull
	}
	return s.enqueue(ctx, GenerationPayload{TimelineID: timelineID, Mode: mode, Force: req.Force})
}

// StartSegment enqueues a retry of a single segment
func (s *GenerationService) StartSegment(ctx context.Context, timelineID string, segmentID int) (*model.JobResponse, error) {
	return s.enqueue(ctx, GenerationPayload{TimelineID: timelineID, Mode: model.ModeFull, Force: true, SegmentID: segmentID})
}

func (s *GenerationService) enqueue(ctx context.Context, payload GenerationPayload) (*model.JobResponse, error) {
	tl, err := s.timelines.Get(ctx, payload.TimelineID)
	if err != nil {
		return nil, err
	}
	if payload.SegmentID != 0 && tl.IndexOf(payload.SegmentID) < 0 {
		return nil, fmt.Errorf("%w: %d", timeline.ErrSegmentNotFound, payload.SegmentID)
	}
	// Segments left generating without a guard belong to an interrupted
	// run; the worker recovers them.
	jobID := uuid.New().String()
	ok, err := s.guard.Acquire(ctx, tl.ID, jobID)
	if err != nil {
		return nil, fmt.Errorf("acquire run guard: %w", err)
	}
	if !ok {
		return nil, ErrRunInFlight
	}

	task, err := newTask(TaskTypeGenerate, jobID, payload)
	if err == nil {
		err = enqueue(ctx, s.queue, task, QueueGeneration)
	}
	if err != nil {
		if rerr := s.guard.Release(context.WithoutCancel(ctx), tl.ID); rerr != nil {
			s.logger.Error("failed to release run guard", "timeline_id", tl.ID, "error", rerr)
		}
		return nil, fmt.Errorf("failed to enqueue generation: %w", err)
	}

	s.logger.Info("generation enqueued", "job_id", jobID, "timeline_id", tl.ID, "mode", payload.Mode, "segment", payload.SegmentID)
	return &model.JobResponse{JobID: jobID, Status: "queued", Topic: tl.ID}, nil
}
