package routing

import (
	"fmt"
	"math"
	"sort"

	"github.com/reelforge/api/internal/model"
)

// DefaultQualityTolerance is the quality window searched for a replacement
// when the assigned model is unavailable.
const DefaultQualityTolerance = 10

// Capabilities is the read-only registry view used for routing
type Capabilities interface {
	Lookup(id string) (model.ModelCapability, bool)
	All() []model.ModelCapability
	ListAvailable() []model.ModelCapability
	DefaultModel() model.ModelCapability
}

// Engine produces advisory routing decisions. It never mutates segments.
type Engine struct {
	caps      Capabilities
	tolerance int
}

func NewEngine(caps Capabilities, tolerance int) *Engine {
	if tolerance < 0 {
		tolerance = DefaultQualityTolerance
	}
	return &Engine{caps: caps, tolerance: tolerance}
}

// minGenericFallbacks is how many alternatives an unknown-model decision lists
const minGenericFallbacks = 2

// splitEpsilon absorbs float noise such as 0.3/0.1 = 2.9999999999999996
const splitEpsilon = 1e-9

// PartCount returns ceil(duration/maxDuration), the number of parts of at
// most maxDuration needed to cover duration.
func PartCount(duration, maxDuration float64) int {
	if maxDuration <= 0 {
		return 1
	}
	n := int(math.Ceil(duration/maxDuration - splitEpsilon))
	if n < 1 {
		return 1
	}
	return n
}

// Decide evaluates one segment against its neighbours
func (e *Engine) Decide(seg model.Segment, prev, next *model.Segment) model.RoutingDecision {
	d := model.RoutingDecision{
		SegmentID:        seg.ID,
		RecommendedModel: seg.Model,
		Warnings:         []string{},
		Fallbacks:        []string{},
	}

	c, ok := e.caps.Lookup(seg.Model)
	if !ok {
		def := e.caps.DefaultModel()
		d.RecommendedModel = def.ID
		d.Reason = fmt.Sprintf("Model %q is not in the registry; using default %s", seg.Model, def.ID)
		d.Warnings = append(d.Warnings, fmt.Sprintf("Unknown model %q", seg.Model))
		var offline []string
		d.Fallbacks, offline = e.genericFallbacks(def.ID)
		for _, id := range offline {
			d.Warnings = append(d.Warnings, fmt.Sprintf("Fallback %s is currently unavailable", id))
		}
		if len(d.Fallbacks) < minGenericFallbacks {
			d.Warnings = append(d.Warnings, fmt.Sprintf("Registry offers only %d fallback model(s)", len(d.Fallbacks)))
		}
		return d
	}
	d.Reason = fmt.Sprintf("%s satisfies the segment constraints", c.Name)

	if seg.DurationSec > c.MaxDuration {
		n := PartCount(seg.DurationSec, c.MaxDuration)
		d.RequiresSplit = true
		d.SuggestedSegments = n
		d.Warnings = append(d.Warnings, fmt.Sprintf(
			"Duration %.1fs exceeds the %s maximum of %.1fs by %.1fs",
			seg.DurationSec, c.Name, c.MaxDuration, seg.DurationSec-c.MaxDuration))
		d.Reason = fmt.Sprintf("Split into %d segments of at most %.1fs to fit %s", n, c.MaxDuration, c.Name)
	} else if seg.DurationSec < c.MinDuration {
		d.Warnings = append(d.Warnings, fmt.Sprintf(
			"Duration %.1fs is below the %s minimum of %.1fs and may be clamped",
			seg.DurationSec, c.Name, c.MinDuration))
	}

	swapped := false
	if prev != nil && next != nil && !c.SupportsLastFrame {
		d.Warnings = append(d.Warnings, fmt.Sprintf(
			"Middle segment needs first and last frame control; %s cannot constrain the last frame", c.Name))
		both := e.available(func(m model.ModelCapability) bool { return m.SupportsBothFrames() })
		if len(both) > 0 {
			d.RecommendedModel = both[0].ID
			d.Reason = fmt.Sprintf(
				"Middle segments need both boundary frames for continuity; %s supports first and last frame", both[0].Name)
			d.Fallbacks = appendIDs(d.Fallbacks, both[1:]...)
			swapped = true
		} else {
			d.Warnings = append(d.Warnings, "No available model supports both boundary frames")
		}
	}

	if prev == nil && seg.FirstFrame != nil && !c.SupportsFirstFrame {
		d.Warnings = append(d.Warnings, fmt.Sprintf("%s ignores the first frame of this segment", c.Name))
		d.Fallbacks = appendIDs(d.Fallbacks, e.available(func(m model.ModelCapability) bool {
			return m.SupportsFirstFrame
		})...)
	}

	if !c.IsAvailable && !swapped {
		alts := e.withinTolerance(c)
		if len(alts) > 0 {
			d.RecommendedModel = alts[0].ID
			d.Reason = fmt.Sprintf("%s is unavailable; substituting %s (quality %d vs %d)",
				c.Name, alts[0].Name, alts[0].QualityScore, c.QualityScore)
			d.Fallbacks = appendIDs(d.Fallbacks, alts[1:]...)
		} else {
			d.Warnings = append(d.Warnings, fmt.Sprintf(
				"%s is unavailable and no model is within %d quality points", c.Name, e.tolerance))
			d.Fallbacks = appendIDs(d.Fallbacks, e.available(func(model.ModelCapability) bool { return true })...)
		}
	}

	if seg.NegativePrompt != "" {
		if rec, ok := e.caps.Lookup(d.RecommendedModel); ok && !rec.SupportsNegativePrompt {
			d.Warnings = append(d.Warnings, fmt.Sprintf("%s ignores the negative prompt", rec.Name))
		}
	}

	d.Fallbacks = dedupe(d.Fallbacks, d.RecommendedModel)
	return d
}

// DecideTimeline evaluates every segment with its array neighbours
func (e *Engine) DecideTimeline(tl *model.Timeline) []model.RoutingDecision {
	out := make([]model.RoutingDecision, 0, len(tl.Segments))
	for i := range tl.Segments {
		prev, next := tl.Neighbors(i)
		out = append(out, e.Decide(tl.Segments[i], prev, next))
	}
	return out
}

func (e *Engine) available(keep func(model.ModelCapability) bool) []model.ModelCapability {
	var out []model.ModelCapability
	for _, m := range e.caps.ListAvailable() {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// genericFallbacks lists available models other than exclude. Small
// registries are padded with unavailable entries, which are also returned
// as offline so the caller can flag them.
func (e *Engine) genericFallbacks(exclude string) (ids, offline []string) {
	ids = appendIDs(nil, e.available(func(m model.ModelCapability) bool { return m.ID != exclude })...)
	for _, m := range e.caps.All() {
		if len(ids) >= minGenericFallbacks {
			break
		}
		if m.IsAvailable || m.ID == exclude {
			continue
		}
		ids = append(ids, m.ID)
		offline = append(offline, m.ID)
	}
	return ids, offline
}

// withinTolerance returns available models close in quality, closest first
func (e *Engine) withinTolerance(c model.ModelCapability) []model.ModelCapability {
	alts := e.available(func(m model.ModelCapability) bool {
		return m.ID != c.ID && abs(m.QualityScore-c.QualityScore) <= e.tolerance
	})
	sort.SliceStable(alts, func(i, j int) bool {
		di, dj := abs(alts[i].QualityScore-c.QualityScore), abs(alts[j].QualityScore-c.QualityScore)
		if di != dj {
			return di < dj
		}
		return alts[i].QualityScore > alts[j].QualityScore
	})
	return alts
}

func appendIDs(ids []string, caps ...model.ModelCapability) []string {
	for _, c := range caps {
		ids = append(ids, c.ID)
	}
	return ids
}

func dedupe(ids []string, exclude string) []string {
	seen := map[string]bool{exclude: true}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
