package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/reelforge/api/internal/config"
	"github.com/reelforge/api/internal/render"
)

// MediaClient drives the media composition service. It implements
// render.Composer.
type MediaClient struct {
	httpClient *http.Client
	baseURL    string
}

type addClipRequest struct {
	Index int `json:"index"`
	render.ClipInput
}

type finishResponse struct {
	OutputURL string  `json:"output_url"`
	Duration  float64 `json:"duration"`
}

func NewMediaClient(cfg *config.MediaConfig) *MediaClient {
	return &MediaClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
	}
}

// AddClip appends one clip to the job's composition
func (c *MediaClient) AddClip(ctx context.Context, jobID string, index int, clip render.ClipInput) error {
	var ack map[string]interface{}
	return c.post(ctx, fmt.Sprintf("/compose/%s/clips", jobID), addClipRequest{Index: index, ClipInput: clip}, &ack)
}

// Finish renders the composition and returns the output URL
func (c *MediaClient) Finish(ctx context.Context, jobID string, spec render.OutputSpec) (string, error) {
	var result finishResponse
	if err := c.post(ctx, fmt.Sprintf("/compose/%s/finish", jobID), spec, &result); err != nil {
		return "", err
	}
	if result.OutputURL == "" {
		return "", fmt.Errorf("media service returned no output for job %s", jobID)
	}
	return result.OutputURL, nil
}

// HealthCheck checks if the media service is available
func (c *MediaClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("media service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *MediaClient) post(ctx context.Context, endpoint string, body, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("media service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *MediaClient) IsConfigured() bool {
	return c.baseURL != ""
}
