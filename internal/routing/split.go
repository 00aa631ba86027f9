package routing

import (
	"fmt"
	"math"
	"strings"

	"github.com/reelforge/api/internal/model"
)

// Splitter partitions over-long segments to fit their model's duration ceiling
type Splitter struct {
	caps Capabilities
}

func NewSplitter(caps Capabilities) *Splitter {
	return &Splitter{caps: caps}
}

// Split returns the segment unchanged when it fits (or its model is unknown),
// otherwise n = ceil(d/max) pending parts whose durations sum to d.
func (s *Splitter) Split(seg model.Segment) []model.Segment {
	c, ok := s.caps.Lookup(seg.Model)
	if !ok || seg.DurationSec <= c.MaxDuration {
		return []model.Segment{seg}
	}

	durations := partDurations(seg.DurationSec, c.MaxDuration)
	n := len(durations)

	parts := make([]model.Segment, n)
	for i := 0; i < n; i++ {
		p := seg.Clone()
		p.ID = seg.ID*100 + i + 1
		p.DurationSec = durations[i]
		p.Prompt = strings.TrimSpace(fmt.Sprintf("%s (Part %d/%d)", seg.Prompt, i+1, n))
		p.Status = model.SegmentPending
		p.ErrorMessage = ""
		p.VideoURL = ""
		p.ThumbnailURL = ""
		p.ActualDurationSec = 0
		p.IsPreview = false

		if i > 0 {
			p.FirstFrame = nil
			p.FirstFrameSource = model.FrameSourceNone
			p.FirstFramePinned = false
		}
		if i < n-1 {
			p.LastFrame = nil
			p.Transition = model.TransitionCut
		}
		parts[i] = p
	}
	return parts
}

// partDurations spreads d over PartCount(d, max) parts in tenths of a second,
// extra tenths going to the earliest parts. The last part absorbs any
// sub-tenth remainder so the sum stays exact. When a tenth-aligned plan
// cannot respect max (a ceiling like 4.25s), parts get an exact even share.
func partDurations(d, max float64) []float64 {
	n := PartCount(d, max)
	total := int(math.Floor(d*10 + splitEpsilon))
	base, rem := total/n, total%n

	out := make([]float64, n)
	var sum float64
	for i := 0; i < n-1; i++ {
		tenths := base
		if i < rem {
			tenths++
		}
		out[i] = float64(tenths) / 10
		sum += out[i]
	}
	out[n-1] = roundMicro(d - sum)

	if fits(out, max) {
		return out
	}
	sum = 0
	share := d / float64(n)
	for i := 0; i < n-1; i++ {
		out[i] = share
		sum += share
	}
	out[n-1] = roundMicro(d - sum)
	return out
}

func fits(durations []float64, max float64) bool {
	for _, v := range durations {
		if v > max+splitEpsilon || v <= 0 {
			return false
		}
	}
	return true
}

func roundMicro(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
