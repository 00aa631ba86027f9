package model

// WebSocket message types
const (
	WSMessageTypeSegmentProgress = "segment_progress"
	WSMessageTypeSegmentComplete = "segment_complete"
	WSMessageTypeProgress        = "progress"
	WSMessageTypeComplete        = "complete"
	WSMessageTypeError           = "error"
	WSMessageTypePing            = "ping"
	WSMessageTypePong            = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSSegmentProgressMessage reports progress of one segment call
type WSSegmentProgressMessage struct {
	Type       string `json:"type"`
	TimelineID string `json:"timelineId"`
	SegmentID  int    `json:"segmentId"`
	Percent    int    `json:"percent"`
}

// WSSegmentCompleteMessage carries the result of one segment
type WSSegmentCompleteMessage struct {
	Type       string           `json:"type"`
	TimelineID string           `json:"timelineId"`
	Result     GenerationResult `json:"result"`
}

// WSProgressMessage reports job level progress
type WSProgressMessage struct {
	Type     string `json:"type"`
	JobID    string `json:"jobId"`
	Progress int    `json:"progress"`
	Status   string `json:"status"`
	Step     string `json:"step,omitempty"`
}

// WSCompleteMessage represents job completion
type WSCompleteMessage struct {
	Type   string      `json:"type"`
	JobID  string      `json:"jobId"`
	Result interface{} `json:"result"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
