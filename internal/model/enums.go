package model

// Segment status
type SegmentStatus string

const (
	SegmentPending    SegmentStatus = "pending"
	SegmentGenerating SegmentStatus = "generating"
	SegmentGenerated  SegmentStatus = "generated"
	SegmentModified   SegmentStatus = "modified"
	SegmentError      SegmentStatus = "error"
)

var ValidSegmentStatuses = []SegmentStatus{
	SegmentPending, SegmentGenerating, SegmentGenerated, SegmentModified, SegmentError,
}

// Where a segment's first frame came from
type FrameSource string

const (
	FrameSourceNone  FrameSource = ""
	FrameSourceUser  FrameSource = "user"
	FrameSourceChain FrameSource = "chain"
)

// Boundary of a generated clip
type Boundary string

const (
	BoundaryFirst Boundary = "first"
	BoundaryLast  Boundary = "last"
)

// Generation run modes
type GenerationMode string

const (
	ModeFull    GenerationMode = "full"
	ModePreview GenerationMode = "preview"
)

// Render job status
type RenderStatus string

const (
	RenderQueued     RenderStatus = "queued"
	RenderProcessing RenderStatus = "processing"
	RenderCompleted  RenderStatus = "completed"
	RenderFailed     RenderStatus = "failed"
)

// Transitions between clips in the final render
type Transition string

const (
	TransitionCut       Transition = "cut"
	TransitionCrossfade Transition = "crossfade"
	TransitionFade      Transition = "fade"
	TransitionWipe      Transition = "wipe"
)

// Consistency issue types
type IssueType string

const (
	IssueCharacterMismatch     IssueType = "character_mismatch"
	IssueLightingInconsistency IssueType = "lighting_inconsistency"
	IssueTemporalGap           IssueType = "temporal_gap"
)

// Issue severity
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)
