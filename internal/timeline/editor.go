package timeline

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/reelforge/api/internal/model"
)

const (
	DefaultResolution  = "1080p"
	DefaultDurationSec = 5.0
)

// New creates a timeline holding one pending segment on the given model
func New(name, resolution, style, defaultModel string) *model.Timeline {
	if resolution == "" {
		resolution = DefaultResolution
	}
	ts := now()
	tl := &model.Timeline{
		ID:         uuid.New().String(),
		Name:       strings.TrimSpace(name),
		Resolution: resolution,
		Style:      style,
		CreatedAt:  ts,
		UpdatedAt:  ts,
		Segments: []model.Segment{{
			ID:          1,
			DurationSec: DefaultDurationSec,
			Model:       defaultModel,
			Status:      model.SegmentPending,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}},
	}
	tl.RecalculateDuration()
	return tl
}

// CleanName trims a timeline name and rejects one that is blank afterwards,
// since an empty name would not survive an export/import cycle.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidTimeline)
	}
	return name, nil
}

// UpdateMeta applies a metadata patch. Metadata never affects segment status.
func UpdateMeta(tl *model.Timeline, patch model.TimelineMetaPatch) error {
	if patch.Name != nil {
		name, err := CleanName(*patch.Name)
		if err != nil {
			return err
		}
		tl.Name = name
	}
	if patch.Description != nil {
		tl.Description = *patch.Description
	}
	if patch.Tags != nil {
		tl.Tags = append([]string(nil), patch.Tags...)
	}
	if patch.Resolution != nil {
		tl.Resolution = *patch.Resolution
	}
	if patch.Style != nil {
		tl.Style = *patch.Style
	}
	tl.UpdatedAt = now()
	return nil
}

// AddSegment inserts a new pending segment at position; a negative or
// out-of-range position appends.
func AddSegment(tl *model.Timeline, in model.SegmentInput, position int) (model.Segment, error) {
	if in.DurationSec <= 0 {
		return model.Segment{}, fmt.Errorf("%w: duration must be positive", ErrInvalidSegment)
	}
	if strings.TrimSpace(in.Model) == "" {
		return model.Segment{}, fmt.Errorf("%w: model is required", ErrInvalidSegment)
	}

	ts := now()
	seg := model.Segment{
		ID:             tl.NextSegmentID(),
		DurationSec:    in.DurationSec,
		Model:          in.Model,
		Prompt:         in.Prompt,
		NegativePrompt: in.NegativePrompt,
		LastFrame:      nonEmpty(in.LastFrame),
		MotionProfile:  in.MotionProfile,
		CameraPath:     in.CameraPath,
		StylePreset:    in.StylePreset,
		Transition:     in.Transition,
		Status:         model.SegmentPending,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	if in.Seed != nil {
		seed := *in.Seed
		seg.Seed = &seed
	}
	setUserFirstFrame(&seg, in.FirstFrame)
	seg.FirstFramePinned = in.FirstFramePinned && seg.FirstFrame != nil

	before := predecessors(tl)
	if position < 0 || position >= len(tl.Segments) {
		tl.Segments = append(tl.Segments, seg)
	} else {
		tl.Segments = append(tl.Segments, model.Segment{})
		copy(tl.Segments[position+1:], tl.Segments[position:])
		tl.Segments[position] = seg
	}
	invalidateMovedChains(tl, before)
	touch(tl)
	return seg.Clone(), nil
}

// UpdateSegment applies a field patch. The segment becomes modified; editing a
// generated segment also drops the chained first frame of its successor.
func UpdateSegment(tl *model.Timeline, id int, patch model.SegmentPatch) (model.Segment, error) {
	i := tl.IndexOf(id)
	if i < 0 {
		return model.Segment{}, fmt.Errorf("%w: %d", ErrSegmentNotFound, id)
	}
	seg := &tl.Segments[i]
	if patch.IsEmpty() {
		return seg.Clone(), nil
	}
	if patch.DurationSec != nil && *patch.DurationSec <= 0 {
		return model.Segment{}, fmt.Errorf("%w: duration must be positive", ErrInvalidSegment)
	}
	if patch.Model != nil && strings.TrimSpace(*patch.Model) == "" {
		return model.Segment{}, fmt.Errorf("%w: model is required", ErrInvalidSegment)
	}

	wasGenerated := seg.Status == model.SegmentGenerated
	if err := MarkEdited(seg); err != nil {
		return model.Segment{}, err
	}

	if patch.DurationSec != nil {
		seg.DurationSec = *patch.DurationSec
	}
	if patch.Model != nil {
		seg.Model = *patch.Model
	}
	if patch.Prompt != nil {
		seg.Prompt = *patch.Prompt
	}
	if patch.NegativePrompt != nil {
		seg.NegativePrompt = *patch.NegativePrompt
	}
	if patch.FirstFrame != nil {
		setUserFirstFrame(seg, patch.FirstFrame)
	}
	if patch.FirstFramePinned != nil {
		seg.FirstFramePinned = *patch.FirstFramePinned
	}
	if seg.FirstFrame == nil {
		seg.FirstFramePinned = false
	}
	if patch.LastFrame != nil {
		seg.LastFrame = nonEmpty(patch.LastFrame)
	}
	if patch.MotionProfile != nil {
		seg.MotionProfile = *patch.MotionProfile
	}
	if patch.CameraPath != nil {
		seg.CameraPath = *patch.CameraPath
	}
	if patch.StylePreset != nil {
		seg.StylePreset = *patch.StylePreset
	}
	if patch.Seed != nil {
		s := *patch.Seed
		seg.Seed = &s
	}
	if patch.Transition != nil {
		seg.Transition = *patch.Transition
	}

	if wasGenerated && i+1 < len(tl.Segments) {
		ClearChainedFirstFrame(&tl.Segments[i+1])
	}
	touch(tl)
	return seg.Clone(), nil
}

// DuplicateSegment inserts a pending copy right after the original
func DuplicateSegment(tl *model.Timeline, id int) (model.Segment, error) {
	i := tl.IndexOf(id)
	if i < 0 {
		return model.Segment{}, fmt.Errorf("%w: %d", ErrSegmentNotFound, id)
	}

	ts := now()
	dup := tl.Segments[i].Clone()
	dup.ID = tl.NextSegmentID()
	dup.Status = model.SegmentPending
	dup.ErrorMessage = ""
	dup.VideoURL = ""
	dup.ThumbnailURL = ""
	dup.ActualDurationSec = 0
	dup.IsPreview = false
	dup.CreatedAt = ts
	dup.UpdatedAt = ts
	ClearChainedFirstFrame(&dup)

	before := predecessors(tl)
	tl.Segments = append(tl.Segments, model.Segment{})
	copy(tl.Segments[i+2:], tl.Segments[i+1:])
	tl.Segments[i+1] = dup
	invalidateMovedChains(tl, before)
	touch(tl)
	return dup.Clone(), nil
}

// RemoveSegment deletes a segment; the last remaining segment cannot be removed
func RemoveSegment(tl *model.Timeline, id int) error {
	i := tl.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrSegmentNotFound, id)
	}
	if len(tl.Segments) == 1 {
		return ErrLastSegment
	}
	if tl.Segments[i].Status == model.SegmentGenerating {
		return fmt.Errorf("%w: segment %d", ErrSegmentBusy, id)
	}

	before := predecessors(tl)
	tl.Segments = append(tl.Segments[:i], tl.Segments[i+1:]...)
	invalidateMovedChains(tl, before)
	touch(tl)
	return nil
}

// MoveSegment moves a segment to a new array index
func MoveSegment(tl *model.Timeline, id, index int) error {
	i := tl.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrSegmentNotFound, id)
	}
	if index < 0 || index >= len(tl.Segments) {
		return fmt.Errorf("%w: index %d out of range", ErrInvalidOrder, index)
	}
	if i == index {
		return nil
	}

	ids := make([]int, 0, len(tl.Segments))
	for _, s := range tl.Segments {
		if s.ID != id {
			ids = append(ids, s.ID)
		}
	}
	ids = append(ids[:index], append([]int{id}, ids[index:]...)...)
	return Reorder(tl, ids)
}

// Reorder rearranges segments to match ids, which must be a permutation of
// the current identifiers.
func Reorder(tl *model.Timeline, ids []int) error {
	if len(ids) != len(tl.Segments) {
		return fmt.Errorf("%w: expected %d ids, got %d", ErrInvalidOrder, len(tl.Segments), len(ids))
	}
	if tl.InFlight() {
		return fmt.Errorf("%w: cannot reorder during generation", ErrSegmentBusy)
	}

	byID := make(map[int]model.Segment, len(tl.Segments))
	for _, s := range tl.Segments {
		byID[s.ID] = s
	}
	reordered := make([]model.Segment, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: unknown or repeated id %d", ErrInvalidOrder, id)
		}
		delete(byID, id)
		reordered = append(reordered, s)
	}

	before := predecessors(tl)
	tl.Segments = reordered
	invalidateMovedChains(tl, before)
	touch(tl)
	return nil
}

// SetSegmentStatus is the pure status operation. It follows the state machine
// and never marks the segment modified.
func SetSegmentStatus(tl *model.Timeline, id int, status model.SegmentStatus, errMsg string) error {
	i := tl.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrSegmentNotFound, id)
	}
	if err := Transition(&tl.Segments[i], status, errMsg); err != nil {
		return err
	}
	tl.UpdatedAt = now()
	return nil
}

// ApplySplit replaces a segment with its split parts in place. Part ids that
// collide with existing segments are remapped past the current maximum.
func ApplySplit(tl *model.Timeline, id int, parts []model.Segment) ([]model.Segment, error) {
	i := tl.IndexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %d", ErrSegmentNotFound, id)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: split produced no parts", ErrInvalidSegment)
	}
	if tl.Segments[i].Status == model.SegmentGenerating {
		return nil, fmt.Errorf("%w: segment %d", ErrSegmentBusy, id)
	}
	if len(parts) == 1 && parts[0].ID == id {
		return []model.Segment{tl.Segments[i].Clone()}, nil
	}

	taken := make(map[int]bool, len(tl.Segments)+len(parts))
	maxID := 0
	for j, s := range tl.Segments {
		if j != i {
			taken[s.ID] = true
		}
		if s.ID > maxID {
			maxID = s.ID
		}
	}
	for _, p := range parts {
		if p.ID > maxID {
			maxID = p.ID
		}
	}

	ts := now()
	placed := make([]model.Segment, len(parts))
	for j, p := range parts {
		p = p.Clone()
		if p.ID <= 0 || taken[p.ID] {
			maxID++
			p.ID = maxID
		}
		taken[p.ID] = true
		p.CreatedAt = ts
		p.UpdatedAt = ts
		placed[j] = p
	}

	before := predecessors(tl)
	rest := append([]model.Segment(nil), tl.Segments[i+1:]...)
	tl.Segments = append(append(tl.Segments[:i], placed...), rest...)
	invalidateMovedChains(tl, before)
	touch(tl)

	out := make([]model.Segment, len(placed))
	for j, p := range placed {
		out[j] = p.Clone()
	}
	return out, nil
}

func touch(tl *model.Timeline) {
	tl.RecalculateDuration()
	tl.UpdatedAt = now()
}

func nonEmpty(ref *string) *string {
	if ref == nil || strings.TrimSpace(*ref) == "" {
		return nil
	}
	v := *ref
	return &v
}

func setUserFirstFrame(seg *model.Segment, ref *string) {
	seg.FirstFrame = nonEmpty(ref)
	if seg.FirstFrame == nil {
		seg.FirstFrameSource = model.FrameSourceNone
		return
	}
	seg.FirstFrameSource = model.FrameSourceUser
}

// predecessors maps each segment id to the id preceding it (0 for the first)
func predecessors(tl *model.Timeline) map[int]int {
	out := make(map[int]int, len(tl.Segments))
	prev := 0
	for _, s := range tl.Segments {
		out[s.ID] = prev
		prev = s.ID
	}
	return out
}

// invalidateMovedChains drops chained first frames on segments whose
// predecessor changed.
func invalidateMovedChains(tl *model.Timeline, before map[int]int) {
	prev := 0
	for i := range tl.Segments {
		s := &tl.Segments[i]
		if old, ok := before[s.ID]; ok && old != prev {
			ClearChainedFirstFrame(s)
		}
		prev = s.ID
	}
}
