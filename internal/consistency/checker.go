package consistency

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/reelforge/api/internal/model"
)

const (
	maxCharacters      = 3
	minPromptLength    = 10
	characterPenalty   = 10
	lightingPenalty    = 20
	shortPromptPenalty = 15
)

var characterTerms = setOf(
	"man", "woman", "boy", "girl", "child", "kid", "baby",
	"hero", "heroine", "villain", "detective", "soldier", "knight", "king", "queen",
	"prince", "princess", "wizard", "witch", "robot", "alien", "astronaut", "pilot",
	"doctor", "nurse", "teacher", "student", "farmer", "chef", "dancer", "singer",
	"dog", "cat", "horse", "bird", "dragon", "monster", "ghost", "stranger",
)

var dayTerms = setOf("day", "daytime", "daylight", "sunny", "sunlight", "morning", "noon", "midday", "afternoon")

var nightTerms = setOf("night", "nighttime", "midnight", "moonlight", "moonlit", "evening", "starlight")

// Checker runs cheap, advisory heuristics over a timeline. It never blocks
// generation.
type Checker struct{}

func NewChecker() *Checker {
	return &Checker{}
}

func (c *Checker) Check(tl *model.Timeline) model.ConsistencyReport {
	score := 100
	issues := []model.ConsistencyIssue{}

	characters := map[string][]int{}
	lighting := make([]lightingTag, len(tl.Segments))
	for i, s := range tl.Segments {
		words := tokenize(s.Prompt)
		for w := range words {
			if characterTerms[w] {
				characters[w] = append(characters[w], s.ID)
			}
		}
		lighting[i] = classify(words)
	}

	if len(characters) > maxCharacters {
		names := make([]string, 0, len(characters))
		ids := map[int]bool{}
		for name, segs := range characters {
			names = append(names, name)
			for _, id := range segs {
				ids[id] = true
			}
		}
		sort.Strings(names)
		score -= characterPenalty
		issues = append(issues, model.ConsistencyIssue{
			Type:       model.IssueCharacterMismatch,
			Severity:   model.SeverityMedium,
			SegmentIDs: sortedIDs(ids),
			Message:    fmt.Sprintf("%d distinct characters mentioned (%s); keep descriptions consistent", len(names), strings.Join(names, ", ")),
		})
	}

	for i := 0; i+1 < len(tl.Segments); i++ {
		from, to := lighting[i], lighting[i+1]
		if from == unlit || to == unlit || from == to {
			continue
		}
		score -= lightingPenalty
		issues = append(issues, model.ConsistencyIssue{
			Type:       model.IssueLightingInconsistency,
			Severity:   model.SeverityHigh,
			SegmentIDs: []int{tl.Segments[i].ID, tl.Segments[i+1].ID},
			Message:    fmt.Sprintf("Lighting flips from %s to %s between segments %d and %d", from, to, tl.Segments[i].ID, tl.Segments[i+1].ID),
		})
	}

	for _, s := range tl.Segments {
		prompt := strings.TrimSpace(s.Prompt)
		if len([]rune(prompt)) >= minPromptLength {
			continue
		}
		severity := model.SeverityLow
		if prompt == "" {
			severity = model.SeverityMedium
		}
		score -= shortPromptPenalty
		issues = append(issues, model.ConsistencyIssue{
			Type:       model.IssueTemporalGap,
			Severity:   severity,
			SegmentIDs: []int{s.ID},
			Message:    fmt.Sprintf("Segment %d has too little prompt detail to keep continuity", s.ID),
		})
	}

	if score < 0 {
		score = 0
	}
	return model.ConsistencyReport{
		IsConsistent: len(issues) == 0,
		Issues:       issues,
		OverallScore: score,
	}
}

type lightingTag string

const (
	unlit lightingTag = ""
	day   lightingTag = "day"
	night lightingTag = "night"
)

// classify tags a prompt as day or night; prompts naming both stay untagged
func classify(words map[string]bool) lightingTag {
	var hasDay, hasNight bool
	for w := range words {
		hasDay = hasDay || dayTerms[w]
		hasNight = hasNight || nightTerms[w]
	}
	switch {
	case hasDay && !hasNight:
		return day
	case hasNight && !hasDay:
		return night
	default:
		return unlit
	}
}

func tokenize(s string) map[string]bool {
	out := map[string]bool{}
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return !unicode.IsLetter(r) }) {
		out[f] = true
	}
	return out
}

func setOf(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func sortedIDs(ids map[int]bool) []int {
	out := make([]int, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
