package render

import (
	"context"
	"fmt"
	"sync"
)

// OutputSpec describes the final composition
type OutputSpec struct {
	TimelineID       string  `json:"timelineId"`
	Resolution       string  `json:"resolution"`
	TotalDurationSec float64 `json:"totalDurationSec"`
	ClipCount        int     `json:"clipCount"`
}

// Composer stitches clips into one video. Clips arrive in timeline order,
// Finish returns a reference to the composed output.
type Composer interface {
	AddClip(ctx context.Context, jobID string, index int, clip ClipInput) error
	Finish(ctx context.Context, jobID string, spec OutputSpec) (string, error)
}

// ClipInput is a clip as handed to the composer
type ClipInput struct {
	SegmentID   int     `json:"segmentId"`
	VideoURL    string  `json:"videoUrl"`
	DurationSec float64 `json:"durationSec"`
	Transition  string  `json:"transition"`
}

// MockComposer records clips and returns a synthetic output URL. Used when
// no media service is configured.
type MockComposer struct {
	BaseURL string

	mu    sync.Mutex
	clips map[string][]ClipInput
}

func NewMockComposer(baseURL string) *MockComposer {
	if baseURL == "" {
		baseURL = "https://cdn.reelforge.dev"
	}
	return &MockComposer{BaseURL: baseURL, clips: make(map[string][]ClipInput)}
}

func (m *MockComposer) AddClip(ctx context.Context, jobID string, index int, clip ClipInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if index != len(m.clips[jobID]) {
		return fmt.Errorf("clip %d out of order, expected %d", index, len(m.clips[jobID]))
	}
	m.clips[jobID] = append(m.clips[jobID], clip)
	return nil
}

func (m *MockComposer) Finish(ctx context.Context, jobID string, spec OutputSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if got := len(m.clips[jobID]); got != spec.ClipCount {
		return "", fmt.Errorf("expected %d clips, got %d", spec.ClipCount, got)
	}
	delete(m.clips, jobID)
	return fmt.Sprintf("%s/renders/%s/%s.mp4", m.BaseURL, spec.TimelineID, jobID), nil
}
