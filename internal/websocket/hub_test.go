package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/api/internal/model"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(nil)
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func receive(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "channel closed")
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestHub_DeliversToTopicOnly(t *testing.T) {
	h := runHub(t)
	a := &Client{Topic: "tl-1", Send: make(chan []byte, 4)}
	b := &Client{Topic: "tl-2", Send: make(chan []byte, 4)}
	h.Register(a)
	h.Register(b)
	assert.Equal(t, 1, h.Subscribers("tl-1"))

	h.BroadcastSegmentProgress("tl-1", 3, 50)

	msg := receive(t, a)
	assert.Equal(t, model.WSMessageTypeSegmentProgress, msg["type"])
	assert.EqualValues(t, 3, msg["segmentId"])
	assert.EqualValues(t, 50, msg["percent"])

	h.BroadcastComplete("tl-2", "job-9", map[string]int{"n": 1})
	msg = receive(t, b)
	assert.Equal(t, model.WSMessageTypeComplete, msg["type"])
	assert.Equal(t, "job-9", msg["jobId"])
	assert.Empty(t, a.Send)
}

func TestHub_SegmentCompleteAndError(t *testing.T) {
	h := runHub(t)
	c := &Client{Topic: "tl", Send: make(chan []byte, 4)}
	h.Register(c)

	h.BroadcastSegmentComplete("tl", model.GenerationResult{SegmentID: 2, Success: false, Error: "timeout"})
	msg := receive(t, c)
	assert.Equal(t, model.WSMessageTypeSegmentComplete, msg["type"])
	result := msg["result"].(map[string]interface{})
	assert.Equal(t, "timeout", result["error"])

	h.BroadcastError("tl", "job", "RENDER_FAILED", "no clips")
	msg = receive(t, c)
	assert.Equal(t, model.WSMessageTypeError, msg["type"])
	assert.Equal(t, "RENDER_FAILED", msg["error"].(map[string]interface{})["code"])
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	h := runHub(t)
	c := &Client{Topic: "tl", Send: make(chan []byte, 1)}
	h.Register(c)
	h.Unregister(c)

	_, ok := <-c.Send
	assert.False(t, ok)
	assert.Zero(t, h.Subscribers("tl"))
}

func TestHub_DropsSlowConsumer(t *testing.T) {
	h := runHub(t)
	c := &Client{Topic: "tl", Send: make(chan []byte, 1)}
	h.Register(c)

	h.BroadcastProgress("tl", "job", 10, "processing", "")
	h.BroadcastProgress("tl", "job", 20, "processing", "")

	require.Eventually(t, func() bool { return h.Subscribers("tl") == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_RegisterAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(nil)
	go h.Run(ctx)
	cancel()
	<-h.done

	c := &Client{Topic: "tl", Send: make(chan []byte, 1)}
	h.Register(c)
	_, ok := <-c.Send
	assert.False(t, ok)
	h.Unregister(c)
}
