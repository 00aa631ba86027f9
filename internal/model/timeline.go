package model

import (
	"math"
	"time"
)

// Timeline is an ordered sequence of segments composing one video
type Timeline struct {
	ID               string    `json:"id"`
	Name             string    `json:"name" validate:"required,max=200"`
	Description      string    `json:"description,omitempty" validate:"max=2000"`
	Tags             []string  `json:"tags,omitempty" validate:"max=20"`
	Segments         []Segment `json:"segments" validate:"required,min=1,dive"`
	TotalDurationSec float64   `json:"totalDurationSec"`
	Resolution       string    `json:"resolution" validate:"required"`
	Style            string    `json:"style,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// RecalculateDuration recomputes the aggregate duration from the segments
func (t *Timeline) RecalculateDuration() {
	var total float64
	for _, s := range t.Segments {
		total += s.DurationSec
	}
	t.TotalDurationSec = math.Round(total*10) / 10
}

// IndexOf returns the array position of a segment, or -1
func (t *Timeline) IndexOf(segmentID int) int {
	for i := range t.Segments {
		if t.Segments[i].ID == segmentID {
			return i
		}
	}
	return -1
}

// Neighbors returns the previous and next segment of position i, nil at the edges
func (t *Timeline) Neighbors(i int) (prev, next *Segment) {
	if i > 0 {
		prev = &t.Segments[i-1]
	}
	if i+1 < len(t.Segments) {
		next = &t.Segments[i+1]
	}
	return prev, next
}

// NextSegmentID returns an identifier not yet used in the timeline
func (t *Timeline) NextSegmentID() int {
	maxID := 0
	for _, s := range t.Segments {
		if s.ID > maxID {
			maxID = s.ID
		}
	}
	return maxID + 1
}

// Clone returns a deep copy of the timeline
func (t *Timeline) Clone() *Timeline {
	out := *t
	out.Tags = append([]string(nil), t.Tags...)
	out.Segments = make([]Segment, len(t.Segments))
	for i, s := range t.Segments {
		out.Segments[i] = s.Clone()
	}
	return &out
}

// AllGenerated reports whether every segment holds a generated clip
func (t *Timeline) AllGenerated() bool {
	for _, s := range t.Segments {
		if !s.HasOutput() {
			return false
		}
	}
	return true
}

// InFlight reports whether any segment is currently generating
func (t *Timeline) InFlight() bool {
	for _, s := range t.Segments {
		if s.Status == SegmentGenerating {
			return true
		}
	}
	return false
}

// TimelineSummary is the list view of a timeline
type TimelineSummary struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	SegmentCount     int       `json:"segmentCount"`
	TotalDurationSec float64   `json:"totalDurationSec"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Summary builds the list view
func (t *Timeline) Summary() TimelineSummary {
	return TimelineSummary{
		ID:               t.ID,
		Name:             t.Name,
		SegmentCount:     len(t.Segments),
		TotalDurationSec: t.TotalDurationSec,
		UpdatedAt:        t.UpdatedAt,
	}
}

// TimelineExport is the portable import/export envelope
type TimelineExport struct {
	Version    int       `json:"version" validate:"required,eq=1"`
	ExportedAt time.Time `json:"exportedAt"`
	Timeline   Timeline  `json:"timeline"`
}

// ConsistencyIssue is one finding of the consistency checker
type ConsistencyIssue struct {
	Type       IssueType `json:"type"`
	Severity   Severity  `json:"severity"`
	SegmentIDs []int     `json:"segmentIds,omitempty"`
	Message    string    `json:"message"`
}

// ConsistencyReport is the advisory result of a consistency check
type ConsistencyReport struct {
	IsConsistent bool               `json:"isConsistent"`
	Issues       []ConsistencyIssue `json:"issues"`
	OverallScore int                `json:"overallScore"`
}
