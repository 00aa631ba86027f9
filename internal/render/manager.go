package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/api/internal/model"
)

var ErrJobFinished = errors.New("render job already finished")

// ProgressFunc receives one update per composed segment
type ProgressFunc func(model.RenderProgress)

// Manager drives render jobs from queued to a terminal status
type Manager struct {
	store    JobStore
	composer Composer
	logger   *slog.Logger
}

func NewManager(store JobStore, composer Composer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, composer: composer, logger: logger}
}

// CreateJob snapshots the timeline's clips into a queued job. Later edits to
// the timeline do not affect the job.
func (m *Manager) CreateJob(ctx context.Context, tl *model.Timeline) (*model.RenderJob, error) {
	clips := make([]model.Clip, len(tl.Segments))
	for i, s := range tl.Segments {
		clip := model.Clip{
			SegmentID:   s.ID,
			DurationSec: s.DurationSec,
			Transition:  s.Transition,
		}
		if s.HasOutput() {
			clip.VideoURL = s.VideoURL
			if s.ActualDurationSec > 0 {
				clip.DurationSec = s.ActualDurationSec
			}
		}
		if clip.Transition == "" {
			clip.Transition = model.TransitionCut
		}
		clips[i] = clip
	}

	now := time.Now()
	job := &model.RenderJob{
		ID:            uuid.New().String(),
		TimelineID:    tl.ID,
		Status:        model.RenderQueued,
		TotalSegments: len(clips),
		Clips:         clips,
		Resolution:    tl.Resolution,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save render job: %w", err)
	}
	return job, nil
}

// Get returns a copy of the job
func (m *Manager) Get(ctx context.Context, id string) (*model.RenderJob, error) {
	return m.store.Get(ctx, id)
}

// StartRender creates a fresh job and runs it to completion
func (m *Manager) StartRender(ctx context.Context, tl *model.Timeline, onProgress ProgressFunc) (*model.RenderJob, error) {
	job, err := m.CreateJob(ctx, tl)
	if err != nil {
		return nil, err
	}
	return m.Run(ctx, job.ID, onProgress)
}

// Run composes a queued job. A render failure is recorded on the job and
// returned with a nil error; the error return is reserved for store problems
// and jobs that cannot be run at all.
func (m *Manager) Run(ctx context.Context, jobID string, onProgress ProgressFunc) (*model.RenderJob, error) {
	job, err := m.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		return job, ErrJobFinished
	}

	now := time.Now()
	job.Status = model.RenderProcessing
	job.StartedAt = &now
	job.UpdatedAt = now
	if err := m.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save render job: %w", err)
	}

	log := m.logger.With("job_id", job.ID, "timeline_id", job.TimelineID)
	log.Info("render started", "segments", job.TotalSegments)

	for _, clip := range job.Clips {
		if clip.VideoURL == "" {
			return m.fail(ctx, job, fmt.Sprintf("segment %d has no generated video", clip.SegmentID))
		}
	}

	var total float64
	for i, clip := range job.Clips {
		if err := ctx.Err(); err != nil {
			return m.fail(context.WithoutCancel(ctx), job, "render cancelled")
		}

		input := ClipInput{
			SegmentID:   clip.SegmentID,
			VideoURL:    clip.VideoURL,
			DurationSec: clip.DurationSec,
			Transition:  string(clip.Transition),
		}
		if err := m.composer.AddClip(ctx, job.ID, i, input); err != nil {
			return m.fail(context.WithoutCancel(ctx), job, fmt.Sprintf("segment %d: %v", clip.SegmentID, err))
		}
		total += clip.DurationSec

		job.CurrentSegment = i + 1
		job.ProgressPercent = int(math.Round(float64(i+1) / float64(job.TotalSegments) * 100))
		if job.CurrentSegment < job.TotalSegments && job.ProgressPercent >= 100 {
			job.ProgressPercent = 99
		}
		job.UpdatedAt = time.Now()
		if err := m.store.Save(ctx, job); err != nil {
			log.Warn("failed to save render progress", "error", err)
		}
		if onProgress != nil {
			onProgress(model.RenderProgress{
				JobID:           job.ID,
				Status:          job.Status,
				ProgressPercent: job.ProgressPercent,
				CurrentSegment:  job.CurrentSegment,
				TotalSegments:   job.TotalSegments,
			})
		}
	}

	output, err := m.composer.Finish(ctx, job.ID, OutputSpec{
		TimelineID:       job.TimelineID,
		Resolution:       job.Resolution,
		TotalDurationSec: math.Round(total*10) / 10,
		ClipCount:        len(job.Clips),
	})
	if err != nil {
		return m.fail(context.WithoutCancel(ctx), job, fmt.Sprintf("compose: %v", err))
	}

	done := time.Now()
	job.Status = model.RenderCompleted
	job.OutputURL = output
	job.ProgressPercent = 100
	job.CompletedAt = &done
	job.UpdatedAt = done
	if err := m.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save render job: %w", err)
	}
	log.Info("render completed", "output", output)
	return job, nil
}

func (m *Manager) fail(ctx context.Context, job *model.RenderJob, msg string) (*model.RenderJob, error) {
	now := time.Now()
	job.Status = model.RenderFailed
	job.Error = msg
	job.CompletedAt = &now
	job.UpdatedAt = now
	if err := m.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save render job: %w", err)
	}
	m.logger.Warn("render failed", "job_id", job.ID, "error", msg)
	return job, nil
}
