package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/api/internal/capability"
	"github.com/reelforge/api/internal/consistency"
	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/orchestrator"
	"github.com/reelforge/api/internal/render"
	"github.com/reelforge/api/internal/routing"
	"github.com/reelforge/api/internal/service"
	"github.com/reelforge/api/internal/store"
)

type event struct {
	kind    string
	topic   string
	payload interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *recordingNotifier) add(e event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) BroadcastSegmentProgress(timelineID string, segmentID, percent int) {
	n.add(event{kind: "segment_progress", topic: timelineID, payload: [2]int{segmentID, percent}})
}

func (n *recordingNotifier) BroadcastSegmentComplete(timelineID string, result model.GenerationResult) {
	n.add(event{kind: "segment_complete", topic: timelineID, payload: result})
}

func (n *recordingNotifier) BroadcastProgress(topic, jobID string, progress int, status, step string) {
	n.add(event{kind: "progress", topic: topic, payload: progress})
}

func (n *recordingNotifier) BroadcastComplete(topic, jobID string, result interface{}) {
	n.add(event{kind: "complete", topic: topic, payload: result})
}

func (n *recordingNotifier) BroadcastError(topic, jobID, code, message string) {
	n.add(event{kind: "error", topic: topic, payload: code})
}

func (n *recordingNotifier) ofKind(kind string) []event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []event
	for _, e := range n.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type stubGenerator struct {
	failPrompt string
}

func (g stubGenerator) Generate(_ context.Context, req *orchestrator.GenerateRequest) (*orchestrator.GenerateResponse, error) {
	if g.failPrompt != "" && req.Prompt == g.failPrompt {
		return nil, errors.New("backend unavailable")
	}
	return &orchestrator.GenerateResponse{
		VideoRef:          "video-" + req.Prompt,
		ThumbnailRef:      "thumb-" + req.Prompt,
		LastFrameRef:      "last-" + req.Prompt,
		ActualDurationSec: req.DurationSec,
	}, nil
}

type captureQueue struct {
	tasks []*asynq.Task
}

func (q *captureQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task", Type: task.Type()}, nil
}

func (q *captureQueue) last(t *testing.T) *asynq.Task {
	t.Helper()
	require.NotEmpty(t, q.tasks)
	return q.tasks[len(q.tasks)-1]
}

type harness struct {
	timelines  *service.TimelineService
	generation *service.GenerationService
	guard      *service.MemoryRunGuard
	store      *store.MemoryStore
	queue      *captureQueue
	hub        *recordingNotifier
	worker     *GenerationWorker
}

func newHarness(t *testing.T, gen orchestrator.Generator, concurrency int) *harness {
	t.Helper()
	reg, err := capability.NewDefault()
	require.NoError(t, err)

	st := store.NewMemoryStore()
	guard := service.NewMemoryRunGuard()
	timelines := service.NewTimelineService(st, reg,
		routing.NewEngine(reg, routing.DefaultQualityTolerance),
		routing.NewSplitter(reg),
		consistency.NewChecker(),
		guard, nil)
	queue := &captureQueue{}
	hub := &recordingNotifier{}
	orch := orchestrator.New(gen, reg, nil, nil, orchestrator.Options{PreviewConcurrency: concurrency})

	return &harness{
		timelines:  timelines,
		generation: service.NewGenerationService(timelines, queue, guard, nil),
		guard:      guard,
		store:      st,
		queue:      queue,
		hub:        hub,
		worker:     NewGenerationWorker(timelines, orch, guard, hub, nil),
	}
}

// threeShots creates a timeline with three 6s segments prompted a, b and c
func (h *harness) threeShots(t *testing.T) *model.Timeline {
	t.Helper()
	ctx := context.Background()
	tl, err := h.timelines.Create(ctx, &model.CreateTimelineRequest{Name: "Trailer"})
	require.NoError(t, err)

	first := "a"
	duration := 6.0
	_, err = h.timelines.UpdateSegment(ctx, tl.ID, 1, model.SegmentPatch{Prompt: &first, DurationSec: &duration})
	require.NoError(t, err)
	for _, p := range []string{"b", "c"} {
		_, err = h.timelines.AddSegment(ctx, tl.ID, &model.AddSegmentRequest{
			SegmentInput: model.SegmentInput{DurationSec: 6, Model: capability.DefaultModelID, Prompt: p},
		})
		require.NoError(t, err)
	}
	return tl
}

func (h *harness) summary(t *testing.T) model.GenerationSummary {
	t.Helper()
	done := h.hub.ofKind("complete")
	require.Len(t, done, 1)
	s, ok := done[0].payload.(model.GenerationSummary)
	require.True(t, ok)
	return s
}

func TestGenerationWorker_FullRun(t *testing.T) {
	h := newHarness(t, stubGenerator{}, 1)
	ctx := context.Background()
	tl := h.threeShots(t)

	resp, err := h.generation.Start(ctx, tl.ID, &model.GenerateRequest{})
	require.NoError(t, err)
	assert.Equal(t, tl.ID, resp.Topic)

	require.NoError(t, h.worker.ProcessTask(ctx, h.queue.last(t)))

	got, err := h.timelines.Get(ctx, tl.ID)
	require.NoError(t, err)
	for _, seg := range got.Segments {
		assert.Equal(t, model.SegmentGenerated, seg.Status, "segment %d", seg.ID)
		assert.False(t, seg.IsPreview)
	}
	require.NotNil(t, got.Segments[1].FirstFrame)
	assert.Equal(t, "last-a", *got.Segments[1].FirstFrame)
	assert.Equal(t, "last-b", *got.Segments[2].FirstFrame)

	s := h.summary(t)
	assert.Equal(t, 3, s.Generated)
	assert.Zero(t, s.Failed)
	assert.False(t, s.Cancelled)
	assert.Len(t, h.hub.ofKind("segment_complete"), 3)

	progress := h.hub.ofKind("progress")
	require.Len(t, progress, 3)
	assert.Equal(t, 100, progress[2].payload)

	active, err := h.guard.Active(ctx, tl.ID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestGenerationWorker_SecondRunSkipsGenerated(t *testing.T) {
	h := newHarness(t, stubGenerator{}, 1)
	ctx := context.Background()
	tl := h.threeShots(t)

	_, err := h.generation.Start(ctx, tl.ID, &model.GenerateRequest{})
	require.NoError(t, err)
	require.NoError(t, h.worker.ProcessTask(ctx, h.queue.last(t)))

	h.hub = &recordingNotifier{}
	h.worker.hub = h.hub
	_, err = h.generation.Start(ctx, tl.ID, &model.GenerateRequest{})
	require.NoError(t, err)
	require.NoError(t, h.worker.ProcessTask(ctx, h.queue.last(t)))

	s := h.summary(t)
	assert.Equal(t, 3, s.Skipped)
	assert.Zero(t, s.Generated)
}

func TestGenerationWorker_FailureIsRecorded(t *testing.T) {
	h := newHarness(t, stubGenerator{failPrompt: "b"}, 1)
	ctx := context.Background()
	tl := h.threeShots(t)

	_, err := h.generation.Start(ctx, tl.ID, &model.GenerateRequest{})
	require.NoError(t, err)
	require.NoError(t, h.worker.ProcessTask(ctx, h.queue.last(t)))

	got, err := h.timelines.Get(ctx, tl.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SegmentGenerated, got.Segments[0].Status)
	assert.Equal(t, model.SegmentError, got.Segments[1].Status)
	assert.Equal(t, "backend unavailable", got.Segments[1].ErrorMessage)
	assert.Equal(t, model.SegmentGenerated, got.Segments[2].Status)
	// failed predecessor chains nothing
	assert.Nil(t, got.Segments[2].FirstFrame)

	s := h.summary(t)
	assert.Equal(t, 2, s.Generated)
	assert.Equal(t, 1, s.Failed)
}

func TestGenerationWorker_SingleSegment(t *testing.T) {
	h := newHarness(t, stubGenerator{}, 1)
	ctx := context.Background()
	tl := h.threeShots(t)

	_, err := h.generation.StartSegment(ctx, tl.ID, 2)
	require.NoError(t, err)
	require.NoError(t, h.worker.ProcessTask(ctx, h.queue.last(t)))

	got, err := h.timelines.Get(ctx, tl.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SegmentModified, got.Segments[0].Status)
	assert.Equal(t, model.SegmentGenerated, got.Segments[1].Status)
	assert.Equal(t, model.SegmentPending, got.Segments[2].Status)

	s := h.summary(t)
	require.Len(t, s.Results, 1)
	assert.Equal(t, 2, s.Results[0].SegmentID)
}

func TestGenerationWorker_ParallelPreview(t *testing.T) {
	h := newHarness(t, stubGenerator{}, 3)
	ctx := context.Background()
	tl := h.threeShots(t)

	_, err := h.generation.Start(ctx, tl.ID, &model.GenerateRequest{Mode: model.ModePreview})
	require.NoError(t, err)
	require.NoError(t, h.worker.ProcessTask(ctx, h.queue.last(t)))

	got, err := h.timelines.Get(ctx, tl.ID)
	require.NoError(t, err)
	for _, seg := range got.Segments {
		assert.Equal(t, model.SegmentGenerated, seg.Status)
		assert.True(t, seg.IsPreview)
		assert.Equal(t, capability.DefaultModelID, seg.Model)
	}
	assert.Nil(t, got.Segments[1].FirstFrame)

	s := h.summary(t)
	assert.Equal(t, model.ModePreview, s.Mode)
	assert.Equal(t, 3, s.Generated)
}

func TestGenerationWorker_RecoversInterruptedSegments(t *testing.T) {
	h := newHarness(t, stubGenerator{}, 1)
	ctx := context.Background()
	tl := h.threeShots(t)

	stored, err := h.store.Get(ctx, tl.ID)
	require.NoError(t, err)
	stored.Segments[0].Status = model.SegmentGenerating
	require.NoError(t, h.store.Update(ctx, stored))

	_, err = h.generation.Start(ctx, tl.ID, &model.GenerateRequest{})
	require.NoError(t, err)
	require.NoError(t, h.worker.ProcessTask(ctx, h.queue.last(t)))

	got, err := h.timelines.Get(ctx, tl.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SegmentGenerated, got.Segments[0].Status)
}

func TestRecoverInterrupted(t *testing.T) {
	tl := &model.Timeline{Segments: []model.Segment{
		{ID: 1, Status: model.SegmentGenerated},
		{ID: 2, Status: model.SegmentGenerating},
	}}
	assert.Equal(t, 1, recoverInterrupted(tl))
	assert.Equal(t, model.SegmentError, tl.Segments[1].Status)
	assert.Equal(t, interruptedMessage, tl.Segments[1].ErrorMessage)
	assert.Equal(t, model.SegmentGenerated, tl.Segments[0].Status)
}

func TestGenerationWorker_UnknownTimeline(t *testing.T) {
	h := newHarness(t, stubGenerator{}, 1)
	payload, err := json.Marshal(service.GenerationPayload{TimelineID: "missing", Mode: model.ModeFull})
	require.NoError(t, err)
	data, err := json.Marshal(service.TaskEnvelope{JobID: "job-1", Payload: payload})
	require.NoError(t, err)

	err = h.worker.ProcessTask(context.Background(), asynq.NewTask(service.TaskTypeGenerate, data))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Len(t, h.hub.ofKind("error"), 1)
}

func TestGenerationWorker_MalformedPayload(t *testing.T) {
	h := newHarness(t, stubGenerator{}, 1)
	err := h.worker.ProcessTask(context.Background(), asynq.NewTask(service.TaskTypeGenerate, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSummarize(t *testing.T) {
	s := summarize("tl", "", []model.GenerationResult{
		{Success: true, Cost: 1.005},
		{Success: true, Skipped: true},
		{Error: "boom", Cost: 0},
	})
	assert.Equal(t, model.ModeFull, s.Mode)
	assert.Equal(t, 1, s.Generated)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Failed)

	empty := summarize("tl", model.ModePreview, nil)
	assert.NotNil(t, empty.Results)
}

func renderTask(t *testing.T, jobID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(service.RenderPayload{TimelineID: "tl-1"})
	require.NoError(t, err)
	data, err := json.Marshal(service.TaskEnvelope{JobID: jobID, Payload: payload})
	require.NoError(t, err)
	return asynq.NewTask(service.TaskTypeRender, data)
}

func generatedTimeline() *model.Timeline {
	tl := &model.Timeline{ID: "tl-1", Resolution: "1080p"}
	for i := 1; i <= 2; i++ {
		tl.Segments = append(tl.Segments, model.Segment{
			ID: i, DurationSec: 5, Model: "kling-2.1", Status: model.SegmentGenerated,
			VideoURL: "https://cdn/clip.mp4",
		})
	}
	return tl
}

func TestRenderWorker_Completes(t *testing.T) {
	hub := &recordingNotifier{}
	manager := render.NewManager(render.NewMemoryJobStore(), render.NewMockComposer(""), nil)
	w := NewRenderWorker(manager, hub, nil)
	ctx := context.Background()

	job, err := manager.CreateJob(ctx, generatedTimeline())
	require.NoError(t, err)
	require.NoError(t, w.ProcessTask(ctx, renderTask(t, job.ID)))

	got, err := manager.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RenderCompleted, got.Status)

	progress := hub.ofKind("progress")
	require.Len(t, progress, 2)
	assert.Equal(t, job.ID, progress[0].topic)
	assert.Equal(t, 50, progress[0].payload)
	require.Len(t, hub.ofKind("complete"), 1)

	// redelivery of a finished job is a no-op
	require.NoError(t, w.ProcessTask(ctx, renderTask(t, job.ID)))
	assert.Len(t, hub.ofKind("complete"), 1)
}

func TestRenderWorker_FailedJob(t *testing.T) {
	hub := &recordingNotifier{}
	manager := render.NewManager(render.NewMemoryJobStore(), render.NewMockComposer(""), nil)
	w := NewRenderWorker(manager, hub, nil)
	ctx := context.Background()

	tl := generatedTimeline()
	tl.Segments[1].Status = model.SegmentError
	job, err := manager.CreateJob(ctx, tl)
	require.NoError(t, err)

	require.NoError(t, w.ProcessTask(ctx, renderTask(t, job.ID)))
	errs := hub.ofKind("error")
	require.Len(t, errs, 1)
	assert.Equal(t, "RENDER_FAILED", errs[0].payload)
}

func TestRenderWorker_UnknownJob(t *testing.T) {
	manager := render.NewManager(render.NewMemoryJobStore(), render.NewMockComposer(""), nil)
	w := NewRenderWorker(manager, &recordingNotifier{}, nil)

	err := w.ProcessTask(context.Background(), renderTask(t, "missing"))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
