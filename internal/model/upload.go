package model

import "time"

// FrameUploadResponse represents the response for a frame image upload
type FrameUploadResponse struct {
	ID          string    `json:"id"`
	FileURL     string    `json:"fileUrl"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}
