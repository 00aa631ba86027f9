package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/api/internal/model"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.SegmentStatus
		ok       bool
	}{
		{model.SegmentPending, model.SegmentGenerating, true},
		{model.SegmentModified, model.SegmentGenerating, true},
		{model.SegmentGenerating, model.SegmentGenerated, true},
		{model.SegmentGenerating, model.SegmentError, true},
		{model.SegmentError, model.SegmentPending, true},
		{model.SegmentGenerated, model.SegmentPending, true},
		{model.SegmentGenerated, model.SegmentGenerating, false},
		{model.SegmentError, model.SegmentGenerating, false},
		{model.SegmentPending, model.SegmentGenerated, false},
		{model.SegmentGenerating, model.SegmentPending, false},
		{model.SegmentPending, model.SegmentModified, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTransition_ErrorMessageOnlyInErrorState(t *testing.T) {
	seg := &model.Segment{ID: 1, Status: model.SegmentPending}

	require.NoError(t, Transition(seg, model.SegmentGenerating, "ignored"))
	assert.Empty(t, seg.ErrorMessage)

	require.NoError(t, Transition(seg, model.SegmentError, "backend timeout"))
	assert.Equal(t, "backend timeout", seg.ErrorMessage)

	require.NoError(t, Transition(seg, model.SegmentPending, ""))
	assert.Empty(t, seg.ErrorMessage)
}

func TestTransition_Rejected(t *testing.T) {
	seg := &model.Segment{ID: 4, Status: model.SegmentGenerated}

	err := Transition(seg, model.SegmentError, "x")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, model.SegmentGenerated, seg.Status)
}

func TestMarkEdited(t *testing.T) {
	for _, status := range []model.SegmentStatus{
		model.SegmentPending, model.SegmentGenerated, model.SegmentModified, model.SegmentError,
	} {
		seg := &model.Segment{ID: 1, Status: status, ErrorMessage: "old"}
		require.NoError(t, MarkEdited(seg))
		assert.Equal(t, model.SegmentModified, seg.Status)
		assert.Empty(t, seg.ErrorMessage)
	}

	busy := &model.Segment{ID: 2, Status: model.SegmentGenerating}
	assert.ErrorIs(t, MarkEdited(busy), ErrSegmentBusy)
	assert.Equal(t, model.SegmentGenerating, busy.Status)
}

func TestClearChainedFirstFrame(t *testing.T) {
	chained := &model.Segment{FirstFrame: model.StringPtr("f"), FirstFrameSource: model.FrameSourceChain}
	assert.True(t, ClearChainedFirstFrame(chained))
	assert.Nil(t, chained.FirstFrame)

	user := &model.Segment{FirstFrame: model.StringPtr("u"), FirstFrameSource: model.FrameSourceUser}
	assert.False(t, ClearChainedFirstFrame(user))
	assert.NotNil(t, user.FirstFrame)

	pinned := &model.Segment{FirstFrame: model.StringPtr("p"), FirstFrameSource: model.FrameSourceChain, FirstFramePinned: true}
	assert.False(t, ClearChainedFirstFrame(pinned))
	assert.NotNil(t, pinned.FirstFrame)
}

func TestResetForRun(t *testing.T) {
	failed := &model.Segment{Status: model.SegmentError, ErrorMessage: "boom"}
	require.NoError(t, ResetForRun(failed))
	assert.Equal(t, model.SegmentPending, failed.Status)
	assert.Empty(t, failed.ErrorMessage)

	modified := &model.Segment{Status: model.SegmentModified}
	require.NoError(t, ResetForRun(modified))
	assert.Equal(t, model.SegmentModified, modified.Status)

	busy := &model.Segment{Status: model.SegmentGenerating}
	assert.ErrorIs(t, ResetForRun(busy), ErrSegmentBusy)
}
