package model

// ModelCapability describes the constraints of one video generation backend
type ModelCapability struct {
	ID                     string   `json:"id" mapstructure:"id"`
	Name                   string   `json:"name" mapstructure:"name"`
	Provider               string   `json:"provider" mapstructure:"provider"`
	MinDuration            float64  `json:"minDuration" mapstructure:"min_duration"`
	MaxDuration            float64  `json:"maxDuration" mapstructure:"max_duration"`
	SupportsFirstFrame     bool     `json:"supportsFirstFrame" mapstructure:"supports_first_frame"`
	SupportsLastFrame      bool     `json:"supportsLastFrame" mapstructure:"supports_last_frame"`
	SupportsNegativePrompt bool     `json:"supportsNegativePrompt" mapstructure:"supports_negative_prompt"`
	Resolutions            []string `json:"resolutions" mapstructure:"resolutions"`
	QualityScore           int      `json:"qualityScore" mapstructure:"quality_score"`
	CreditsPerSecond       float64  `json:"creditsPerSecond" mapstructure:"credits_per_second"`
	IsAvailable            bool     `json:"isAvailable" mapstructure:"is_available"`
	IsPreviewModel         bool     `json:"isPreviewModel" mapstructure:"is_preview_model"`
}

// SupportsBothFrames reports whether the backend can pin both clip boundaries
func (c ModelCapability) SupportsBothFrames() bool {
	return c.SupportsFirstFrame && c.SupportsLastFrame
}

// SupportsResolution reports whether res is in the supported set
func (c ModelCapability) SupportsResolution(res string) bool {
	for _, r := range c.Resolutions {
		if r == res {
			return true
		}
	}
	return false
}

// RoutingDecision is the advisory output of the routing engine
type RoutingDecision struct {
	SegmentID         int      `json:"segmentId"`
	RecommendedModel  string   `json:"recommendedModel"`
	Reason            string   `json:"reason"`
	RequiresSplit     bool     `json:"requiresSplit"`
	SuggestedSegments int      `json:"suggestedSegments,omitempty"`
	Warnings          []string `json:"warnings"`
	Fallbacks         []string `json:"fallbacks"`
}

// Changed reports whether the recommendation differs from the assigned model
func (d RoutingDecision) Changed(assigned string) bool {
	return d.RecommendedModel != assigned
}
