package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestAsynqLevel(t *testing.T) {
	assert.Equal(t, asynq.DebugLevel, AsynqLevel("debug"))
	assert.Equal(t, asynq.InfoLevel, AsynqLevel(""))
	assert.Equal(t, asynq.ErrorLevel, AsynqLevel("error"))
}

func TestAsynqLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAsynqLogger(NewWithWriter(&buf, "info"))

	logger.Debug("hidden")
	logger.Warn("queue ", "paused")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "queue paused", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "asynq", entry["component"])
}
