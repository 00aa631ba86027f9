package timeline

import "errors"

var (
	ErrSegmentNotFound   = errors.New("segment not found")
	ErrSegmentBusy       = errors.New("segment is generating")
	ErrLastSegment       = errors.New("timeline must keep at least one segment")
	ErrInvalidTransition = errors.New("invalid segment status transition")
	ErrInvalidSegment    = errors.New("invalid segment")
	ErrInvalidOrder      = errors.New("invalid segment order")
	ErrInvalidImport     = errors.New("invalid timeline import")
	ErrInvalidTimeline   = errors.New("invalid timeline")
)
