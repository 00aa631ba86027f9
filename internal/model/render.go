package model

import "time"

// Clip is the render snapshot of one segment, taken when the job is created
type Clip struct {
	SegmentID   int        `json:"segmentId"`
	VideoURL    string     `json:"videoUrl"`
	DurationSec float64    `json:"durationSec"`
	Transition  Transition `json:"transition"`
}

// RenderJob composes a timeline's generated clips into one output video
type RenderJob struct {
	ID              string       `json:"id"`
	TimelineID      string       `json:"timelineId"`
	Status          RenderStatus `json:"status"`
	ProgressPercent int          `json:"progressPercent"`
	CurrentSegment  int          `json:"currentSegment"`
	TotalSegments   int          `json:"totalSegments"`
	OutputURL       string       `json:"outputUrl,omitempty"`
	Error           string       `json:"error,omitempty"`
	Clips           []Clip       `json:"clips"`
	Resolution      string       `json:"resolution"`
	CreatedAt       time.Time    `json:"createdAt"`
	StartedAt       *time.Time   `json:"startedAt,omitempty"`
	CompletedAt     *time.Time   `json:"completedAt,omitempty"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Clone returns a copy that shares no slices or pointers with j
func (j *RenderJob) Clone() *RenderJob {
	out := *j
	out.Clips = append([]Clip(nil), j.Clips...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// Terminal reports whether the job has finished
func (j *RenderJob) Terminal() bool {
	return j.Status == RenderCompleted || j.Status == RenderFailed
}

// RenderProgress is one progress notification of a running render
type RenderProgress struct {
	JobID           string       `json:"jobId"`
	Status          RenderStatus `json:"status"`
	ProgressPercent int          `json:"progressPercent"`
	CurrentSegment  int          `json:"currentSegment"`
	TotalSegments   int          `json:"totalSegments"`
}
