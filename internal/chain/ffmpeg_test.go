package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/api/internal/config"
)

func TestBoundaryTimestamp(t *testing.T) {
	assert.Equal(t, 0.1, boundaryTimestamp(5, 0.1, NearStart))
	assert.InDelta(t, 4.9, boundaryTimestamp(5, 0.1, NearEnd), 1e-9)
	// clips shorter than two offsets use the midpoint
	assert.InDelta(t, 0.075, boundaryTimestamp(0.15, 0.1, NearEnd), 1e-9)

	for _, p := range []Policy{NearStart, NearEnd} {
		ts := boundaryTimestamp(3, 0.1, p)
		assert.Greater(t, ts, 0.0)
		assert.Less(t, ts, 3.0)
	}
}

func TestParseProbe(t *testing.T) {
	info, err := parseProbe([]byte(`{"streams":[{"width":1920,"height":1080}],"format":{"duration":"5.041000"}}`))
	require.NoError(t, err)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.InDelta(t, 5.041, info.Duration, 1e-9)

	_, err = parseProbe([]byte(`{"streams":[],"format":{"duration":"5"}}`))
	assert.Error(t, err)

	_, err = parseProbe([]byte(`{"streams":[{"width":1,"height":1}],"format":{"duration":"N/A"}}`))
	assert.Error(t, err)

	_, err = parseProbe([]byte(`not json`))
	assert.Error(t, err)
}

func TestNewFFmpegExtractor_Defaults(t *testing.T) {
	x := NewFFmpegExtractor(&config.FramesConfig{})

	assert.Equal(t, "ffmpeg", x.ffmpegPath)
	assert.Equal(t, "ffprobe", x.ffprobePath)
	assert.Equal(t, DefaultOffsetSec, x.offset)
}
