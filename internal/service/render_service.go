package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/render"
)

// RenderService creates render jobs and queues them for the worker
type RenderService struct {
	timelines *TimelineService
	manager   *render.Manager
	queue     TaskQueue
	logger    *slog.Logger
}

func NewRenderService(timelines *TimelineService, manager *render.Manager, queue TaskQueue, logger *slog.Logger) *RenderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RenderService{
		timelines: timelines,
		manager:   manager,
		queue:     queue,
		logger:    logger.With("component", "render_service"),
	}
}

// StartRender snapshots the timeline into a new queued job. Every call
// creates a new job.
func (s *RenderService) StartRender(ctx context.Context, timelineID string) (*model.RenderJob, error) {
	tl, err := s.timelines.Get(ctx, timelineID)
	if err != nil {
		return nil, err
	}
	if !tl.AllGenerated() {
		return nil, ErrTimelineNotReady
	}

	job, err := s.manager.CreateJob(ctx, tl)
	if err != nil {
		return nil, err
	}

	task, err := newTask(TaskTypeRender, job.ID, RenderPayload{TimelineID: tl.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	if err := enqueue(ctx, s.queue, task, QueueRender); err != nil {
		return nil, fmt.Errorf("failed to enqueue render: %w", err)
	}

	s.logger.Info("render enqueued", "job_id", job.ID, "timeline_id", tl.ID, "segments", job.TotalSegments)
	return job, nil
}

func (s *RenderService) GetJob(ctx context.Context, jobID string) (*model.RenderJob, error) {
	return s.manager.Get(ctx, jobID)
}
