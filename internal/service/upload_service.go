package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/api/internal/client"
	"github.com/reelforge/api/internal/model"
)

var frameExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

// UploadService stores user supplied boundary frames in R2
type UploadService struct {
	r2Client client.StorageClient
}

// NewUploadService takes a nil client to run with mock URLs
func NewUploadService(r2Client client.StorageClient) *UploadService {
	return &UploadService{r2Client: r2Client}
}

// SupportedFrameType reports whether contentType is an accepted image type
func SupportedFrameType(contentType string) bool {
	_, ok := frameExtensions[contentType]
	return ok
}

// UploadFrame stores an image under the timeline and returns its public URL
func (s *UploadService) UploadFrame(ctx context.Context, timelineID string, file io.Reader, size int64, contentType string) (*model.FrameUploadResponse, error) {
	ext, ok := frameExtensions[contentType]
	if !ok {
		return nil, fmt.Errorf("unsupported frame type %q", contentType)
	}

	frameID := uuid.New().String()
	key := fmt.Sprintf("frames/%s/%s.%s", timelineID, frameID, ext)

	fileURL := fmt.Sprintf("https://cdn.reelforge.dev/%s", key)
	if s.r2Client != nil {
		var err error
		fileURL, err = s.r2Client.Upload(ctx, key, file, contentType)
		if err != nil {
			return nil, fmt.Errorf("failed to upload frame: %w", err)
		}
	}

	return &model.FrameUploadResponse{
		ID:          frameID,
		FileURL:     fileURL,
		ContentType: contentType,
		Size:        size,
		CreatedAt:   time.Now(),
	}, nil
}

// DeleteFrame removes a previously uploaded frame. The stored extension is
// not known here, so every supported one is deleted.
func (s *UploadService) DeleteFrame(ctx context.Context, timelineID, frameID string) error {
	if s.r2Client == nil {
		return nil
	}
	for _, ext := range frameExtensions {
		key := fmt.Sprintf("frames/%s/%s.%s", timelineID, frameID, ext)
		if err := s.r2Client.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
