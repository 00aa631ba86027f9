package model

import "time"

// Segment is one generation request within a timeline
type Segment struct {
	ID                int           `json:"id" validate:"gt=0"`
	DurationSec       float64       `json:"durationSec" validate:"gt=0"`
	Model             string        `json:"model" validate:"required"`
	Prompt            string        `json:"prompt"`
	NegativePrompt    string        `json:"negativePrompt,omitempty"`
	FirstFrame        *string       `json:"firstFrame"`
	LastFrame         *string       `json:"lastFrame"`
	FirstFrameSource  FrameSource   `json:"firstFrameSource,omitempty"`
	FirstFramePinned  bool          `json:"firstFramePinned,omitempty"`
	MotionProfile     string        `json:"motionProfile,omitempty"`
	CameraPath        string        `json:"cameraPath,omitempty"`
	StylePreset       string        `json:"stylePreset,omitempty"`
	Seed              *int64        `json:"seed,omitempty"`
	Transition        Transition    `json:"transition,omitempty" validate:"omitempty,oneof=cut crossfade fade wipe"`
	VideoURL          string        `json:"videoUrl,omitempty"`
	ThumbnailURL      string        `json:"thumbnailUrl,omitempty"`
	ActualDurationSec float64       `json:"actualDurationSec,omitempty"`
	IsPreview         bool          `json:"isPreview,omitempty"`
	Status            SegmentStatus `json:"status" validate:"required,oneof=pending generating generated modified error"`
	ErrorMessage      string        `json:"errorMessage,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Clone returns a deep copy so callers never share frame pointers
func (s Segment) Clone() Segment {
	out := s
	out.FirstFrame = cloneString(s.FirstFrame)
	out.LastFrame = cloneString(s.LastFrame)
	if s.Seed != nil {
		seed := *s.Seed
		out.Seed = &seed
	}
	return out
}

// HasOutput reports whether the segment holds a resolved generated clip
func (s Segment) HasOutput() bool {
	return s.Status == SegmentGenerated && s.VideoURL != ""
}

// HasFinalOutput is HasOutput excluding preview-quality clips
func (s Segment) HasFinalOutput() bool {
	return s.HasOutput() && !s.IsPreview
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// StringPtr is a small helper for optional frame references
func StringPtr(s string) *string {
	return &s
}

// GenerationResult is the outcome of one segment generation attempt
type GenerationResult struct {
	Success           bool    `json:"success"`
	SegmentID         int     `json:"segmentId"`
	VideoURL          string  `json:"videoUrl,omitempty"`
	ThumbnailURL      string  `json:"thumbnailUrl,omitempty"`
	LastFrameURL      string  `json:"lastFrameUrl,omitempty"`
	ActualDurationSec float64 `json:"actualDurationSec,omitempty"`
	ModelUsed         string  `json:"modelUsed"`
	ElapsedMs         int64   `json:"elapsedMs"`
	Cost              float64 `json:"cost"`
	Skipped           bool    `json:"skipped,omitempty"`
	Error             string  `json:"error,omitempty"`
}

// FrameResult is the outcome of a boundary frame extraction
type FrameResult struct {
	Success    bool    `json:"success"`
	FrameRef   string  `json:"frameRef,omitempty"`
	Timestamp  float64 `json:"timestamp"`
	Resolution string  `json:"resolution,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// GenerationSummary is broadcast when a generation run finishes
type GenerationSummary struct {
	TimelineID string             `json:"timelineId"`
	Mode       GenerationMode     `json:"mode"`
	Results    []GenerationResult `json:"results"`
	Generated  int                `json:"generated"`
	Skipped    int                `json:"skipped"`
	Failed     int                `json:"failed"`
	TotalCost  float64            `json:"totalCost"`
	Cancelled  bool               `json:"cancelled,omitempty"`
}
