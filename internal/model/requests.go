package model

// CreateTimelineRequest is the body of POST /api/v1/timelines
type CreateTimelineRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=50"`
	Resolution  string   `json:"resolution" validate:"omitempty,oneof=480p 720p 768p 1080p 4k"`
	Style       string   `json:"style" validate:"max=100"`
}

// TimelineMetaPatch updates timeline metadata; nil fields are left as they are
type TimelineMetaPatch struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Tags        []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Resolution  *string  `json:"resolution" validate:"omitempty,oneof=480p 720p 768p 1080p 4k"`
	Style       *string  `json:"style" validate:"omitempty,max=100"`
}

// SegmentInput describes a new segment
type SegmentInput struct {
	DurationSec      float64    `json:"durationSec" validate:"required,gt=0,lte=600"`
	Model            string     `json:"model" validate:"required,max=100"`
	Prompt           string     `json:"prompt" validate:"max=4000"`
	NegativePrompt   string     `json:"negativePrompt" validate:"max=2000"`
	FirstFrame       *string    `json:"firstFrame" validate:"omitempty,max=2048"`
	FirstFramePinned bool       `json:"firstFramePinned"`
	LastFrame        *string    `json:"lastFrame" validate:"omitempty,max=2048"`
	MotionProfile    string     `json:"motionProfile" validate:"max=100"`
	CameraPath       string     `json:"cameraPath" validate:"max=100"`
	StylePreset      string     `json:"stylePreset" validate:"max=100"`
	Seed             *int64     `json:"seed"`
	Transition       Transition `json:"transition" validate:"omitempty,oneof=cut crossfade fade wipe"`
}

// SegmentPatch edits a segment. Nil fields are untouched; an empty frame
// reference clears that boundary.
type SegmentPatch struct {
	DurationSec      *float64    `json:"durationSec" validate:"omitempty,gt=0,lte=600"`
	Model            *string     `json:"model" validate:"omitempty,min=1,max=100"`
	Prompt           *string     `json:"prompt" validate:"omitempty,max=4000"`
	NegativePrompt   *string     `json:"negativePrompt" validate:"omitempty,max=2000"`
	FirstFrame       *string     `json:"firstFrame" validate:"omitempty,max=2048"`
	FirstFramePinned *bool       `json:"firstFramePinned"`
	LastFrame        *string     `json:"lastFrame" validate:"omitempty,max=2048"`
	MotionProfile    *string     `json:"motionProfile" validate:"omitempty,max=100"`
	CameraPath       *string     `json:"cameraPath" validate:"omitempty,max=100"`
	StylePreset      *string     `json:"stylePreset" validate:"omitempty,max=100"`
	Seed             *int64      `json:"seed"`
	Transition       *Transition `json:"transition" validate:"omitempty,oneof=cut crossfade fade wipe"`
}

// IsEmpty reports whether the patch changes nothing
func (p SegmentPatch) IsEmpty() bool {
	return p.DurationSec == nil && p.Model == nil && p.Prompt == nil && p.NegativePrompt == nil &&
		p.FirstFrame == nil && p.FirstFramePinned == nil && p.LastFrame == nil &&
		p.MotionProfile == nil && p.CameraPath == nil && p.StylePreset == nil &&
		p.Seed == nil && p.Transition == nil
}

type AddSegmentRequest struct {
	SegmentInput
	Position *int `json:"position" validate:"omitempty,gte=0"`
}

type MoveSegmentRequest struct {
	Index int `json:"index" validate:"gte=0"`
}

type ReorderSegmentsRequest struct {
	SegmentIDs []int `json:"segmentIds" validate:"required,min=1,dive,gt=0"`
}

// GenerateRequest starts a generation run for a timeline
type GenerateRequest struct {
	Mode  GenerationMode `json:"mode" validate:"omitempty,oneof=full preview"`
	Force bool           `json:"force"`
}

// ApplyRoutingRequest accepts a routing recommendation for one segment
type ApplyRoutingRequest struct {
	Model string `json:"model" validate:"required,max=100"`
}

// JobResponse is the answer to an enqueued background task
type JobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
	Topic  string `json:"topic"`
}
