package timeline

import (
	"fmt"
	"time"

	"github.com/reelforge/api/internal/model"
)

// allowed lists every legal status change. Edits are handled by MarkEdited.
var allowed = map[model.SegmentStatus][]model.SegmentStatus{
	model.SegmentPending:    {model.SegmentGenerating},
	model.SegmentModified:   {model.SegmentGenerating},
	model.SegmentGenerating: {model.SegmentGenerated, model.SegmentError},
	model.SegmentGenerated:  {model.SegmentPending},
	model.SegmentError:      {model.SegmentPending},
}

func now() time.Time {
	return time.Now().UTC()
}

// CanTransition reports whether a segment may move from one status to another
func CanTransition(from, to model.SegmentStatus) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves seg to a new status. The error message is kept only in the
// error state.
func Transition(seg *model.Segment, to model.SegmentStatus, errMsg string) error {
	if !CanTransition(seg.Status, to) {
		return fmt.Errorf("%w: segment %d %s -> %s", ErrInvalidTransition, seg.ID, seg.Status, to)
	}
	seg.Status = to
	if to == model.SegmentError {
		seg.ErrorMessage = errMsg
	} else {
		seg.ErrorMessage = ""
	}
	seg.UpdatedAt = now()
	return nil
}

// MarkEdited records a user edit. A generating segment cannot be edited; any
// other status becomes modified.
func MarkEdited(seg *model.Segment) error {
	if seg.Status == model.SegmentGenerating {
		return fmt.Errorf("%w: segment %d", ErrSegmentBusy, seg.ID)
	}
	seg.Status = model.SegmentModified
	seg.ErrorMessage = ""
	seg.UpdatedAt = now()
	return nil
}

// ClearChainedFirstFrame drops a first frame the chain wrote, leaving user
// supplied or pinned frames alone.
func ClearChainedFirstFrame(seg *model.Segment) bool {
	if seg.FirstFramePinned || seg.FirstFrameSource != model.FrameSourceChain {
		return false
	}
	seg.FirstFrame = nil
	seg.FirstFrameSource = model.FrameSourceNone
	return true
}

// ResetForRun prepares a segment for a generation attempt
func ResetForRun(seg *model.Segment) error {
	switch seg.Status {
	case model.SegmentPending, model.SegmentModified:
		return nil
	case model.SegmentError, model.SegmentGenerated:
		return Transition(seg, model.SegmentPending, "")
	default:
		return fmt.Errorf("%w: segment %d", ErrSegmentBusy, seg.ID)
	}
}
