package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/reelforge/api/internal/model"
)

const (
	TaskTypeGenerate = "timeline:generate"
	TaskTypeRender   = "timeline:render"

	QueueGeneration = "generation"
	QueueRender     = "render"

	// TaskTimeout bounds one task execution. A full run walks every segment
	// sequentially, each under its own segment timeout.
	TaskTimeout = 6 * time.Hour
)

// RunGuardTTL outlives the longest task so an orphaned guard expires on its own
const RunGuardTTL = TaskTimeout + 10*time.Minute

// TaskQueue is the enqueue side of asynq
type TaskQueue interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskEnvelope is the body of every task this service enqueues
type TaskEnvelope struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

// GenerationPayload describes one generation run. A zero SegmentID means the
// whole timeline.
type GenerationPayload struct {
	TimelineID string               `json:"timelineId"`
	Mode       model.GenerationMode `json:"mode"`
	Force      bool                 `json:"force"`
	SegmentID  int                  `json:"segmentId,omitempty"`
}

// RenderPayload identifies the render job to run
type RenderPayload struct {
	TimelineID string `json:"timelineId"`
}

func newTask(taskType, jobID string, payload interface{}) (*asynq.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(TaskEnvelope{JobID: jobID, Payload: raw})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

func enqueue(ctx context.Context, q TaskQueue, task *asynq.Task, queue string) error {
	_, err := q.EnqueueContext(ctx, task,
		asynq.Queue(queue),
		asynq.MaxRetry(3),
		asynq.Timeout(TaskTimeout),
		asynq.Retention(24*time.Hour),
	)
	return err
}
