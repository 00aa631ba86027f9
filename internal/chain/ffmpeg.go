package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/reelforge/api/internal/config"
)

// DefaultOffsetSec keeps boundary frames clear of black lead-in and tail frames
const DefaultOffsetSec = 0.1

// FFmpegExtractor shells out to ffprobe and ffmpeg
type FFmpegExtractor struct {
	ffmpegPath  string
	ffprobePath string
	offset      float64
}

func NewFFmpegExtractor(cfg *config.FramesConfig) *FFmpegExtractor {
	x := &FFmpegExtractor{
		ffmpegPath:  cfg.FFmpegPath,
		ffprobePath: cfg.FFprobePath,
		offset:      cfg.OffsetSec,
	}
	if x.ffmpegPath == "" {
		x.ffmpegPath = "ffmpeg"
	}
	if x.ffprobePath == "" {
		x.ffprobePath = "ffprobe"
	}
	if x.offset <= 0 {
		x.offset = DefaultOffsetSec
	}
	return x
}

// IsConfigured reports whether both binaries resolve on this host
func (x *FFmpegExtractor) IsConfigured() bool {
	if _, err := exec.LookPath(x.ffmpegPath); err != nil {
		return false
	}
	_, err := exec.LookPath(x.ffprobePath)
	return err == nil
}

type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type probeInfo struct {
	Duration float64
	Width    int
	Height   int
}

func parseProbe(data []byte) (probeInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return probeInfo{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return probeInfo{}, fmt.Errorf("no video stream found")
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil || dur <= 0 {
		return probeInfo{}, fmt.Errorf("invalid media duration %q", out.Format.Duration)
	}
	return probeInfo{Duration: dur, Width: out.Streams[0].Width, Height: out.Streams[0].Height}, nil
}

// boundaryTimestamp picks a seek point near, never exactly at, a clip edge
func boundaryTimestamp(duration, offset float64, policy Policy) float64 {
	if duration <= 2*offset {
		return duration / 2
	}
	if policy == NearEnd {
		return duration - offset
	}
	return offset
}

func (x *FFmpegExtractor) probe(ctx context.Context, videoRef string) (probeInfo, error) {
	cmd := exec.CommandContext(ctx, x.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "json",
		videoRef,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return probeInfo{}, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseProbe(out)
}

// DecodeAndSeek probes the clip and rasterizes one PNG at the boundary
func (x *FFmpegExtractor) DecodeAndSeek(ctx context.Context, videoRef string, policy Policy) (Frame, error) {
	info, err := x.probe(ctx, videoRef)
	if err != nil {
		return Frame{}, err
	}
	ts := boundaryTimestamp(info.Duration, x.offset, policy)

	cmd := exec.CommandContext(ctx, x.ffmpegPath,
		"-v", "error",
		"-ss", strconv.FormatFloat(ts, 'f', 3, 64),
		"-i", videoRef,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Frame{}, fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return Frame{}, fmt.Errorf("ffmpeg produced no frame at %.3fs", ts)
	}

	return Frame{
		Data:        stdout.Bytes(),
		ContentType: "image/png",
		Timestamp:   ts,
		Width:       info.Width,
		Height:      info.Height,
	}, nil
}
