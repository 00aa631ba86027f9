package capability

import "github.com/reelforge/api/internal/model"

// Compiled-in model table used when no registry file is configured
const (
	DefaultModelID = "kling-2.1"
	PreviewModelID = "ltx-video-fast"
)

var standardResolutions = []string{"720p", "1080p"}

func Defaults() []model.ModelCapability {
	return []model.ModelCapability{
		{
			ID: "veo-3", Name: "Veo 3", Provider: "google",
			MinDuration: 4, MaxDuration: 8,
			SupportsFirstFrame: true, SupportsLastFrame: false, SupportsNegativePrompt: true,
			Resolutions: []string{"720p", "1080p", "4k"}, QualityScore: 95, CreditsPerSecond: 12,
			IsAvailable: true,
		},
		{
			ID: "kling-2.1", Name: "Kling 2.1", Provider: "kuaishou",
			MinDuration: 5, MaxDuration: 10,
			SupportsFirstFrame: true, SupportsLastFrame: true, SupportsNegativePrompt: true,
			Resolutions: standardResolutions, QualityScore: 90, CreditsPerSecond: 8,
			IsAvailable: true,
		},
		{
			ID: "runway-gen4", Name: "Runway Gen-4", Provider: "runway",
			MinDuration: 5, MaxDuration: 10,
			SupportsFirstFrame: true, SupportsLastFrame: false, SupportsNegativePrompt: false,
			Resolutions: standardResolutions, QualityScore: 88, CreditsPerSecond: 10,
			IsAvailable: true,
		},
		{
			ID: "luma-ray2", Name: "Luma Ray 2", Provider: "luma",
			MinDuration: 5, MaxDuration: 9,
			SupportsFirstFrame: true, SupportsLastFrame: true, SupportsNegativePrompt: false,
			Resolutions: standardResolutions, QualityScore: 85, CreditsPerSecond: 7,
			IsAvailable: true,
		},
		{
			ID: "hailuo-02", Name: "Hailuo 02", Provider: "minimax",
			MinDuration: 6, MaxDuration: 10,
			SupportsFirstFrame: true, SupportsLastFrame: false, SupportsNegativePrompt: false,
			Resolutions: []string{"768p", "1080p"}, QualityScore: 82, CreditsPerSecond: 5,
			IsAvailable: true,
		},
		{
			ID: "sora-1", Name: "Sora", Provider: "openai",
			MinDuration: 5, MaxDuration: 20,
			SupportsFirstFrame: true, SupportsLastFrame: false, SupportsNegativePrompt: false,
			Resolutions: standardResolutions, QualityScore: 87, CreditsPerSecond: 15,
			IsAvailable: false,
		},
		{
			ID: "wan-2.1", Name: "Wan 2.1", Provider: "alibaba",
			MinDuration: 2, MaxDuration: 5,
			SupportsFirstFrame: true, SupportsLastFrame: true, SupportsNegativePrompt: true,
			Resolutions: []string{"480p", "720p"}, QualityScore: 70, CreditsPerSecond: 3,
			IsAvailable: true,
		},
		{
			ID: "ltx-video-fast", Name: "LTX Video Fast", Provider: "lightricks",
			MinDuration: 1, MaxDuration: 10,
			SupportsFirstFrame: true, SupportsLastFrame: true, SupportsNegativePrompt: true,
			Resolutions: []string{"480p", "720p"}, QualityScore: 50, CreditsPerSecond: 1,
			IsAvailable: true, IsPreviewModel: true,
		},
	}
}

// NewDefault builds the registry from the compiled-in table
func NewDefault() (*Registry, error) {
	return New(Defaults(), Options{DefaultModel: DefaultModelID, PreviewModel: PreviewModelID})
}
