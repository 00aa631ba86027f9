package timeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/reelforge/api/internal/model"
)

const ExportVersion = 1

var validate = validator.New()

// Export serializes a timeline into the portable envelope
func Export(tl *model.Timeline) ([]byte, error) {
	env := model.TimelineExport{
		Version:    ExportVersion,
		ExportedAt: now(),
		Timeline:   *tl.Clone(),
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timeline: %w", err)
	}
	return data, nil
}

// Import parses an exported envelope into a new timeline. The result always
// gets a fresh id and fresh timestamps; malformed input creates nothing.
func Import(data []byte) (*model.Timeline, error) {
	var env model.TimelineExport
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if err := validate.Struct(env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidImport, describe(err))
	}

	tl := env.Timeline.Clone()
	seen := make(map[int]bool, len(tl.Segments))
	for _, s := range tl.Segments {
		if seen[s.ID] {
			return nil, fmt.Errorf("%w: duplicate segment id %d", ErrInvalidImport, s.ID)
		}
		seen[s.ID] = true
	}

	ts := now()
	tl.ID = uuid.New().String()
	tl.CreatedAt = ts
	tl.UpdatedAt = ts
	for i := range tl.Segments {
		s := &tl.Segments[i]
		s.CreatedAt = ts
		s.UpdatedAt = ts
		// A snapshot taken mid-run has no live generation behind it.
		if s.Status == model.SegmentGenerating {
			s.Status = model.SegmentPending
		}
		if s.Status != model.SegmentError {
			s.ErrorMessage = ""
		}
		if s.FirstFrame == nil {
			s.FirstFrameSource = model.FrameSourceNone
			s.FirstFramePinned = false
		}
	}
	tl.RecalculateDuration()
	return tl, nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag()))
	}
	return strings.Join(msgs, "; ")
}
