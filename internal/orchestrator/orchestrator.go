package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reelforge/api/internal/chain"
	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/timeline"
)

const DefaultSegmentTimeout = 10 * time.Minute

// GenerateRequest is one call to a video generation backend
type GenerateRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negativePrompt,omitempty"`
	ModelID        string  `json:"modelId"`
	DurationSec    float64 `json:"durationSec"`
	FirstFrame     *string `json:"firstFrame,omitempty"`
	LastFrame      *string `json:"lastFrame,omitempty"`
	MotionProfile  string  `json:"motionProfile,omitempty"`
	CameraPath     string  `json:"cameraPath,omitempty"`
	StylePreset    string  `json:"stylePreset,omitempty"`
	Seed           *int64  `json:"seed,omitempty"`
	Resolution     string  `json:"resolution,omitempty"`
}

// GenerateResponse is what a backend returns for a finished clip
type GenerateResponse struct {
	VideoRef          string  `json:"videoRef"`
	ThumbnailRef      string  `json:"thumbnailRef"`
	LastFrameRef      string  `json:"lastFrameRef,omitempty"`
	ActualDurationSec float64 `json:"actualDurationSec"`
	TokensUsed        int     `json:"tokensUsed"`
}

// Generator is the external video generation backend
type Generator interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// Capabilities is the registry view the orchestrator needs
type Capabilities interface {
	Lookup(id string) (model.ModelCapability, bool)
	PreviewModel() model.ModelCapability
}

// FrameExtractor pulls boundary frames out of generated clips
type FrameExtractor interface {
	ExtractBoundaryFrame(ctx context.Context, videoRef string, which model.Boundary) model.FrameResult
}

// Callbacks are optional progress hooks. With parallel previews they may be
// called from several goroutines.
type Callbacks struct {
	OnProgress        func(segmentID, percent int)
	OnSegmentComplete func(segmentID int, result model.GenerationResult)
}

func (c Callbacks) progress(segmentID, percent int) {
	if c.OnProgress != nil {
		c.OnProgress(segmentID, percent)
	}
}

func (c Callbacks) complete(segmentID int, result model.GenerationResult) {
	if c.OnSegmentComplete != nil {
		c.OnSegmentComplete(segmentID, result)
	}
}

type Options struct {
	SegmentTimeout     time.Duration
	PreviewConcurrency int
}

// Orchestrator drives segment generation against the backend
type Orchestrator struct {
	gen     Generator
	caps    Capabilities
	frames  FrameExtractor
	logger  *slog.Logger
	timeout time.Duration
	workers int
}

func New(gen Generator, caps Capabilities, frames FrameExtractor, logger *slog.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SegmentTimeout <= 0 {
		opts.SegmentTimeout = DefaultSegmentTimeout
	}
	if opts.PreviewConcurrency < 1 {
		opts.PreviewConcurrency = 1
	}
	return &Orchestrator{
		gen:     gen,
		caps:    caps,
		frames:  frames,
		logger:  logger.With("component", "orchestrator"),
		timeout: opts.SegmentTimeout,
		workers: opts.PreviewConcurrency,
	}
}

// ParallelPreview reports whether preview runs fan out across goroutines
func (o *Orchestrator) ParallelPreview() bool {
	return o.workers > 1
}

// RunOption tweaks a single run
type RunOption func(*Run)

// WithForce regenerates segments that already hold a generated clip
func WithForce() RunOption {
	return func(r *Run) { r.force = true }
}

// Run is one pass over a timeline. Each call to Next resolves exactly one
// segment, including any chaining into the following segment.
type Run struct {
	o      *Orchestrator
	tl     *model.Timeline
	mode   model.GenerationMode
	cb     Callbacks
	force  bool
	next   int
	done   bool
	frames map[int]string

	results []model.GenerationResult
}

// NewRun prepares a run; it mutates tl in place as segments complete
func (o *Orchestrator) NewRun(tl *model.Timeline, mode model.GenerationMode, cb Callbacks, opts ...RunOption) *Run {
	if mode != model.ModePreview {
		mode = model.ModeFull
	}
	r := &Run{o: o, tl: tl, mode: mode, cb: cb, frames: make(map[int]string)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next resolves the next segment. It returns false once the timeline is
// exhausted or ctx is cancelled between segments.
func (r *Run) Next(ctx context.Context) (model.GenerationResult, bool) {
	if r.done || r.next >= len(r.tl.Segments) || ctx.Err() != nil {
		r.done = true
		return model.GenerationResult{}, false
	}
	i := r.next
	r.next++

	res := r.step(ctx, i)
	r.results = append(r.results, res)
	r.tl.UpdatedAt = time.Now().UTC()
	r.cb.complete(res.SegmentID, res)
	return res, true
}

// Results returns every result produced so far
func (r *Run) Results() []model.GenerationResult {
	return append([]model.GenerationResult(nil), r.results...)
}

// Done reports whether the run has finished
func (r *Run) Done() bool {
	return r.done
}

func (r *Run) step(ctx context.Context, i int) model.GenerationResult {
	seg := &r.tl.Segments[i]

	if r.skip(seg) {
		return model.GenerationResult{
			Success:           true,
			Skipped:           true,
			SegmentID:         seg.ID,
			VideoURL:          seg.VideoURL,
			ThumbnailURL:      seg.ThumbnailURL,
			ActualDurationSec: seg.ActualDurationSec,
			ModelUsed:         seg.Model,
		}
	}

	if r.mode == model.ModeFull && i > 0 {
		r.chainInto(ctx, i)
	}
	frames := r.frames
	if r.mode == model.ModePreview {
		frames = nil
	}
	return r.o.generate(ctx, seg, attempt{
		mode:          r.mode,
		resolution:    r.tl.Resolution,
		frames:        frames,
		needLastFrame: r.hasSuccessor(i),
		cb:            r.cb,
	})
}

func (r *Run) skip(seg *model.Segment) bool {
	if r.force {
		return false
	}
	if r.mode == model.ModePreview {
		return seg.HasOutput()
	}
	return seg.HasFinalOutput()
}

func (r *Run) hasSuccessor(i int) bool {
	return r.mode == model.ModeFull && i+1 < len(r.tl.Segments)
}

// chainInto copies the predecessor's last frame onto segment i unless the
// user pinned that segment's first frame. Failed predecessors chain nothing.
func (r *Run) chainInto(ctx context.Context, i int) {
	prev, seg := &r.tl.Segments[i-1], &r.tl.Segments[i]
	if !prev.HasFinalOutput() {
		return
	}

	ref, ok := r.frames[prev.ID]
	if !ok && r.o.frames != nil {
		res := r.o.frames.ExtractBoundaryFrame(ctx, prev.VideoURL, model.BoundaryLast)
		if res.Success {
			ref = res.FrameRef
		}
		r.frames[prev.ID] = ref
	}
	if ref == "" {
		return
	}
	if seg.FirstFramePinned {
		r.o.logger.Info("keeping pinned first frame", "segment", seg.ID, "predecessor", prev.ID)
		return
	}
	chain.Apply(seg, ref)
}

type attempt struct {
	mode          model.GenerationMode
	resolution    string
	frames        map[int]string
	needLastFrame bool
	cb            Callbacks
}

// generate performs one backend call and records the outcome on seg. Failures
// come back as data, never as an error.
func (o *Orchestrator) generate(ctx context.Context, seg *model.Segment, a attempt) model.GenerationResult {
	// Preview runs call the preview backend but leave seg.Model as chosen.
	modelID := seg.Model
	if a.mode == model.ModePreview {
		modelID = o.caps.PreviewModel().ID
	}

	res := model.GenerationResult{SegmentID: seg.ID, ModelUsed: modelID}
	if err := timeline.ResetForRun(seg); err != nil {
		res.Error = err.Error()
		return res
	}
	if err := timeline.Transition(seg, model.SegmentGenerating, ""); err != nil {
		res.Error = err.Error()
		return res
	}
	a.cb.progress(seg.ID, 0)

	fail := func(msg string) model.GenerationResult {
		_ = timeline.Transition(seg, model.SegmentError, msg)
		res.Error = msg
		o.logger.Warn("segment generation failed", "segment", seg.ID, "model", res.ModelUsed, "error", msg)
		return res
	}

	capability, ok := o.caps.Lookup(modelID)
	if !ok {
		return fail(fmt.Sprintf("model %q is not in the registry", modelID))
	}

	req := &GenerateRequest{
		Prompt:         seg.Prompt,
		NegativePrompt: seg.NegativePrompt,
		ModelID:        modelID,
		DurationSec:    seg.DurationSec,
		FirstFrame:     seg.FirstFrame,
		LastFrame:      seg.LastFrame,
		MotionProfile:  seg.MotionProfile,
		CameraPath:     seg.CameraPath,
		StylePreset:    seg.StylePreset,
		Seed:           seg.Seed,
		Resolution:     a.resolution,
	}

	// A call already submitted is not cancelled with the run; it only
	// answers to its own timeout.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.gen.Generate(callCtx, req)
	res.ElapsedMs = time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fail(fmt.Sprintf("generation timed out after %s", o.timeout))
		}
		return fail(err.Error())
	}
	if resp == nil || resp.VideoRef == "" {
		return fail("backend returned no video")
	}

	actual := resp.ActualDurationSec
	if actual <= 0 {
		actual = seg.DurationSec
	}
	seg.VideoURL = resp.VideoRef
	seg.ThumbnailURL = resp.ThumbnailRef
	seg.ActualDurationSec = actual
	seg.IsPreview = a.mode == model.ModePreview
	if err := timeline.Transition(seg, model.SegmentGenerated, ""); err != nil {
		return fail(err.Error())
	}

	lastFrame := resp.LastFrameRef
	if lastFrame == "" && a.needLastFrame && o.frames != nil {
		if fr := o.frames.ExtractBoundaryFrame(ctx, resp.VideoRef, model.BoundaryLast); fr.Success {
			lastFrame = fr.FrameRef
		}
	}
	if a.frames != nil {
		a.frames[seg.ID] = lastFrame
	}

	res.Success = true
	res.VideoURL = resp.VideoRef
	res.ThumbnailURL = resp.ThumbnailRef
	res.LastFrameURL = lastFrame
	res.ActualDurationSec = actual
	res.Cost = math.Round(capability.CreditsPerSecond*actual*100) / 100
	a.cb.progress(seg.ID, 100)

	o.logger.Info("segment generated", "segment", seg.ID, "model", res.ModelUsed, "elapsed_ms", res.ElapsedMs)
	return res
}

// GenerateAll runs a full, strictly sequential generation pass
func (o *Orchestrator) GenerateAll(ctx context.Context, tl *model.Timeline, cb Callbacks, opts ...RunOption) []model.GenerationResult {
	return drain(ctx, o.NewRun(tl, model.ModeFull, cb, opts...))
}

// GeneratePreview generates every segment on the preview model. With a
// concurrency above one the calls run in parallel and nothing is chained.
func (o *Orchestrator) GeneratePreview(ctx context.Context, tl *model.Timeline, cb Callbacks, opts ...RunOption) []model.GenerationResult {
	if o.workers <= 1 {
		return drain(ctx, o.NewRun(tl, model.ModePreview, cb, opts...))
	}

	run := o.NewRun(tl, model.ModePreview, cb, opts...)
	results := make([]model.GenerationResult, len(tl.Segments))
	attempted := make([]bool, len(tl.Segments))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i := range tl.Segments {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = run.step(ctx, i)
			attempted[i] = true
			cb.complete(results[i].SegmentID, results[i])
			return nil
		})
	}
	_ = g.Wait()
	tl.UpdatedAt = time.Now().UTC()

	out := make([]model.GenerationResult, 0, len(results))
	for i, res := range results {
		if attempted[i] {
			out = append(out, res)
		}
	}
	return out
}

// GenerateSegment regenerates one segment, chaining from a generated
// predecessor when there is one.
func (o *Orchestrator) GenerateSegment(ctx context.Context, tl *model.Timeline, segmentID int, cb Callbacks) (model.GenerationResult, error) {
	i := tl.IndexOf(segmentID)
	if i < 0 {
		return model.GenerationResult{}, fmt.Errorf("%w: %d", timeline.ErrSegmentNotFound, segmentID)
	}

	run := o.NewRun(tl, model.ModeFull, cb, WithForce())
	if i > 0 {
		run.chainInto(ctx, i)
	}
	res := o.generate(ctx, &tl.Segments[i], attempt{
		mode:          model.ModeFull,
		resolution:    tl.Resolution,
		frames:        run.frames,
		needLastFrame: i+1 < len(tl.Segments),
		cb:            cb,
	})
	tl.UpdatedAt = time.Now().UTC()
	cb.complete(res.SegmentID, res)
	return res, nil
}

func drain(ctx context.Context, run *Run) []model.GenerationResult {
	for {
		if _, ok := run.Next(ctx); !ok {
			break
		}
	}
	return run.Results()
}
