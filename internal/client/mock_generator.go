package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/api/internal/orchestrator"
)

// MockGenerator produces synthetic clips for development when no
// generation backend is configured
type MockGenerator struct {
	BaseURL string
	Delay   time.Duration
}

func NewMockGenerator(delay time.Duration) *MockGenerator {
	return &MockGenerator{BaseURL: "https://cdn.reelforge.dev/mock", Delay: delay}
}

func (m *MockGenerator) Generate(ctx context.Context, req *orchestrator.GenerateRequest) (*orchestrator.GenerateResponse, error) {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}

	id := uuid.New().String()
	return &orchestrator.GenerateResponse{
		VideoRef:          fmt.Sprintf("%s/%s/%s.mp4", m.BaseURL, req.ModelID, id),
		ThumbnailRef:      fmt.Sprintf("%s/%s/%s.jpg", m.BaseURL, req.ModelID, id),
		LastFrameRef:      fmt.Sprintf("%s/%s/%s-last.png", m.BaseURL, req.ModelID, id),
		ActualDurationSec: req.DurationSec,
	}, nil
}
