package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/reelforge/api/internal/config"
	"github.com/reelforge/api/internal/orchestrator"
)

// VideoClient talks to the video generation gateway. Generation is
// asynchronous upstream: a task is submitted and then polled until done.
type VideoClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *slog.Logger
}

// SubmitVideoRequest is the body of a generation submit call
type SubmitVideoRequest struct {
	Model          string  `json:"model"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	DurationSec    float64 `json:"duration"`
	FirstFrameURL  string  `json:"first_frame_url,omitempty"`
	LastFrameURL   string  `json:"last_frame_url,omitempty"`
	MotionProfile  string  `json:"motion_profile,omitempty"`
	CameraPath     string  `json:"camera_path,omitempty"`
	StylePreset    string  `json:"style_preset,omitempty"`
	Seed           *int64  `json:"seed,omitempty"`
	Resolution     string  `json:"resolution,omitempty"`
}

// SubmitVideoResponse acknowledges a submitted task
type SubmitVideoResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// VideoResult is the polled state of a generation task
type VideoResult struct {
	TaskID       string  `json:"task_id"`
	Status       string  `json:"status"`
	VideoURL     string  `json:"video_url,omitempty"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	LastFrameURL string  `json:"last_frame_url,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	TokensUsed   int     `json:"tokens_used,omitempty"`
	Error        string  `json:"error,omitempty"`
}

func NewVideoClient(cfg *config.GenerationConfig, logger *slog.Logger) *VideoClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoClient{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		pollInterval: cfg.PollInterval,
		maxWait:      cfg.SegmentTimeout,
		logger:       logger.With("component", "video_client"),
	}
}

// IsConfigured returns true if the client has valid configuration
func (c *VideoClient) IsConfigured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// Generate submits one clip and waits for it to finish
func (c *VideoClient) Generate(ctx context.Context, req *orchestrator.GenerateRequest) (*orchestrator.GenerateResponse, error) {
	body := &SubmitVideoRequest{
		Model:          req.ModelID,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		DurationSec:    req.DurationSec,
		MotionProfile:  req.MotionProfile,
		CameraPath:     req.CameraPath,
		StylePreset:    req.StylePreset,
		Seed:           req.Seed,
		Resolution:     req.Resolution,
	}
	if req.FirstFrame != nil {
		body.FirstFrameURL = *req.FirstFrame
	}
	if req.LastFrame != nil {
		body.LastFrameURL = *req.LastFrame
	}

	submitted, err := c.Submit(ctx, body)
	if err != nil {
		return nil, err
	}

	result, err := c.PollVideoStatus(ctx, submitted.TaskID, c.pollInterval, c.maxWait)
	if err != nil {
		return nil, err
	}
	if result.VideoURL == "" {
		return nil, fmt.Errorf("video task %s completed without a video", submitted.TaskID)
	}

	return &orchestrator.GenerateResponse{
		VideoRef:          result.VideoURL,
		ThumbnailRef:      result.ThumbnailURL,
		LastFrameRef:      result.LastFrameURL,
		ActualDurationSec: result.Duration,
		TokensUsed:        result.TokensUsed,
	}, nil
}

// Submit starts a generation task
func (c *VideoClient) Submit(ctx context.Context, req *SubmitVideoRequest) (*SubmitVideoResponse, error) {
	var result SubmitVideoResponse
	if err := c.post(ctx, "/v1/videos/generations", req, &result); err != nil {
		return nil, err
	}
	if result.TaskID == "" {
		return nil, fmt.Errorf("video API returned no task id")
	}
	return &result, nil
}

// GetVideoStatus retrieves the status of a generation task
func (c *VideoClient) GetVideoStatus(ctx context.Context, taskID string) (*VideoResult, error) {
	var result VideoResult
	if err := c.get(ctx, fmt.Sprintf("/v1/videos/generations/%s", taskID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PollVideoStatus polls until the task completes, fails or maxWait elapses
func (c *VideoClient) PollVideoStatus(ctx context.Context, taskID string, interval, maxWait time.Duration) (*VideoResult, error) {
	deadline := time.Now().Add(maxWait)
	attempt := 0

	for time.Now().Before(deadline) {
		attempt++
		result, err := c.GetVideoStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}

		c.logger.Debug("poll video", "task_id", taskID, "attempt", attempt, "status", result.Status)

		switch result.Status {
		case "completed", "succeeded", "success":
			return result, nil
		case "failed", "error", "cancelled":
			if result.Error != "" {
				return nil, fmt.Errorf("video generation failed: %s", result.Error)
			}
			return nil, fmt.Errorf("video generation failed: %s", result.Status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}

	return nil, fmt.Errorf("video generation timed out after %v", maxWait)
}

func (c *VideoClient) post(ctx context.Context, endpoint string, body, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

func (c *VideoClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the JSON response
func (c *VideoClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", req.Method, "url", req.URL.String(), "error", err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("response", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("video API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
