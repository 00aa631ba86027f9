package capability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/api/internal/model"
)

func testCaps() []model.ModelCapability {
	return []model.ModelCapability{
		{ID: "alpha", MinDuration: 1, MaxDuration: 4, QualityScore: 80, IsAvailable: true, SupportsFirstFrame: true},
		{ID: "beta", MinDuration: 1, MaxDuration: 10, QualityScore: 90, IsAvailable: true, SupportsFirstFrame: true, SupportsLastFrame: true},
		{ID: "gamma", MinDuration: 1, MaxDuration: 10, QualityScore: 90, IsAvailable: false},
		{ID: "quick", MinDuration: 1, MaxDuration: 10, QualityScore: 40, IsAvailable: true, IsPreviewModel: true},
	}
}

func TestNew_RejectsInvalidBounds(t *testing.T) {
	caps := testCaps()
	caps[0].MinDuration = 5

	_, err := New(caps, Options{})
	assert.ErrorContains(t, err, "invalid duration bounds")
}

func TestNew_RejectsDuplicateIDs(t *testing.T) {
	caps := append(testCaps(), model.ModelCapability{ID: "alpha", MinDuration: 1, MaxDuration: 2})

	_, err := New(caps, Options{})
	assert.ErrorContains(t, err, "duplicate model id")
}

func TestNew_RejectsUnavailableDefault(t *testing.T) {
	_, err := New(testCaps(), Options{DefaultModel: "gamma"})
	assert.Error(t, err)
}

func TestNew_RequiresPreviewModel(t *testing.T) {
	caps := testCaps()[:3]

	_, err := New(caps, Options{})
	assert.ErrorIs(t, err, ErrNoPreviewModel)
}

func TestNew_PicksBestAvailableDefaults(t *testing.T) {
	reg, err := New(testCaps(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "beta", reg.DefaultModel().ID)
	assert.Equal(t, "quick", reg.PreviewModel().ID)
}

func TestLookup(t *testing.T) {
	reg, err := New(testCaps(), Options{})
	require.NoError(t, err)

	c, ok := reg.Lookup("alpha")
	require.True(t, ok)
	assert.Equal(t, 4.0, c.MaxDuration)

	_, ok = reg.Lookup("retired")
	assert.False(t, ok)
}

func TestListOrdering(t *testing.T) {
	reg, err := New(testCaps(), Options{})
	require.NoError(t, err)

	ids := func(caps []model.ModelCapability) []string {
		out := make([]string, 0, len(caps))
		for _, c := range caps {
			out = append(out, c.ID)
		}
		return out
	}

	assert.Equal(t, []string{"beta", "gamma", "alpha", "quick"}, ids(reg.All()))
	assert.Equal(t, []string{"beta", "alpha", "quick"}, ids(reg.ListAvailable()))
	assert.Equal(t, []string{"quick"}, ids(reg.ListPreview()))
	assert.Equal(t, []string{"beta", "alpha"}, ids(reg.ListHighQuality(80)))
}

func TestDefaults_Valid(t *testing.T) {
	reg, err := NewDefault()
	require.NoError(t, err)

	assert.Equal(t, DefaultModelID, reg.DefaultModel().ID)
	assert.True(t, reg.PreviewModel().IsPreviewModel)

	for _, c := range reg.All() {
		assert.LessOrEqual(t, c.MinDuration, c.MaxDuration, c.ID)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	content := `
default_model: steady
preview_model: draft
models:
  - id: steady
    name: Steady
    provider: acme
    min_duration: 2
    max_duration: 6
    supports_first_frame: true
    supports_last_frame: true
    resolutions: ["720p"]
    quality_score: 75
    credits_per_second: 2.5
    is_available: true
  - id: draft
    name: Draft
    provider: acme
    min_duration: 1
    max_duration: 6
    quality_score: 30
    is_available: true
    is_preview_model: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	reg, err := LoadFile(path, Options{})
	require.NoError(t, err)

	steady, ok := reg.Lookup("steady")
	require.True(t, ok)
	assert.True(t, steady.SupportsBothFrames())
	assert.Equal(t, 2.5, steady.CreditsPerSecond)
	assert.Equal(t, []string{"720p"}, steady.Resolutions)
	assert.Equal(t, "steady", reg.DefaultModel().ID)
	assert.Equal(t, "draft", reg.PreviewModel().ID)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), Options{})
	assert.Error(t, err)
}
