package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/reelforge/api/internal/model"
)

// Policy selects where in a clip a boundary frame is taken
type Policy string

const (
	NearStart Policy = "near_start"
	NearEnd   Policy = "near_end"
)

// Frame is one decoded raster image
type Frame struct {
	Data        []byte
	ContentType string
	Timestamp   float64
	Width       int
	Height      int
}

// Resolution formats the frame size as WxH
func (f Frame) Resolution() string {
	if f.Width == 0 || f.Height == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// Extractor decodes a media container and seeks to a boundary
type Extractor interface {
	DecodeAndSeek(ctx context.Context, videoRef string, policy Policy) (Frame, error)
}

// FrameStore persists extracted frames and returns a public reference
type FrameStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// Engine extracts boundary frames and threads them between adjacent segments
type Engine struct {
	extractor Extractor
	store     FrameStore
	logger    *slog.Logger
}

// NewEngine creates a chaining engine. A nil store keeps frames inline as data URIs.
func NewEngine(extractor Extractor, store FrameStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{extractor: extractor, store: store, logger: logger.With("component", "chain")}
}

// ExtractBoundaryFrame never fails with an error; failures come back as
// Success=false so callers decide policy.
func (e *Engine) ExtractBoundaryFrame(ctx context.Context, videoRef string, which model.Boundary) model.FrameResult {
	if videoRef == "" {
		return model.FrameResult{Error: "empty video reference"}
	}

	var policy Policy
	switch which {
	case model.BoundaryFirst:
		policy = NearStart
	case model.BoundaryLast:
		policy = NearEnd
	default:
		return model.FrameResult{Error: fmt.Sprintf("unknown boundary %q", which)}
	}

	frame, err := e.extractor.DecodeAndSeek(ctx, videoRef, policy)
	if err != nil {
		e.logger.Warn("frame extraction failed", "video", videoRef, "boundary", which, "error", err)
		return model.FrameResult{Error: err.Error()}
	}
	if len(frame.Data) == 0 {
		return model.FrameResult{Error: "extractor returned an empty frame"}
	}

	ref, err := e.persist(ctx, frame)
	if err != nil {
		e.logger.Warn("frame upload failed", "video", videoRef, "error", err)
		return model.FrameResult{Error: err.Error()}
	}

	return model.FrameResult{
		Success:    true,
		FrameRef:   ref,
		Timestamp:  frame.Timestamp,
		Resolution: frame.Resolution(),
	}
}

// ChainAdjacent returns a copy of segments where every generated segment's
// last frame becomes its own LastFrame and the next segment's FirstFrame.
// It always overwrites; callers that honour pinned frames must filter.
func (e *Engine) ChainAdjacent(ctx context.Context, segments []model.Segment) []model.Segment {
	out := make([]model.Segment, len(segments))
	for i, s := range segments {
		out[i] = s.Clone()
	}

	for i := 0; i+1 < len(out); i++ {
		if ctx.Err() != nil {
			break
		}
		if out[i].Status != model.SegmentGenerated || out[i].VideoURL == "" {
			continue
		}
		res := e.ExtractBoundaryFrame(ctx, out[i].VideoURL, model.BoundaryLast)
		if !res.Success {
			continue
		}
		out[i].LastFrame = model.StringPtr(res.FrameRef)
		Apply(&out[i+1], res.FrameRef)
	}
	return out
}

// Apply writes a chained first frame onto seg without marking it edited
func Apply(seg *model.Segment, frameRef string) {
	seg.FirstFrame = model.StringPtr(frameRef)
	seg.FirstFrameSource = model.FrameSourceChain
}

func (e *Engine) persist(ctx context.Context, frame Frame) (string, error) {
	contentType := frame.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	if e.store == nil {
		return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(frame.Data), nil
	}
	key := fmt.Sprintf("frames/%s.png", uuid.New().String())
	return e.store.Upload(ctx, key, bytes.NewReader(frame.Data), contentType)
}
