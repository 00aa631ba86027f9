package capability

import (
	"errors"
	"fmt"
	"sort"

	"github.com/reelforge/api/internal/model"
)

var ErrNoPreviewModel = errors.New("registry has no available preview model")

// Options selects the fixed default and preview models; empty picks the best available
type Options struct {
	DefaultModel string
	PreviewModel string
}

// Registry is the read-only table of generation backends. It is built once and
// shared without locking.
type Registry struct {
	models    map[string]model.ModelCapability
	ordered   []model.ModelCapability
	defaultID string
	previewID string
}

func New(caps []model.ModelCapability, opts Options) (*Registry, error) {
	if len(caps) == 0 {
		return nil, errors.New("registry needs at least one model")
	}

	r := &Registry{models: make(map[string]model.ModelCapability, len(caps))}
	for _, c := range caps {
		if c.ID == "" {
			return nil, errors.New("model capability without id")
		}
		if _, dup := r.models[c.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", c.ID)
		}
		if c.MinDuration <= 0 || c.MinDuration > c.MaxDuration {
			return nil, fmt.Errorf("model %q: invalid duration bounds %.1f-%.1f", c.ID, c.MinDuration, c.MaxDuration)
		}
		c.Resolutions = append([]string(nil), c.Resolutions...)
		r.models[c.ID] = c
		r.ordered = append(r.ordered, c)
	}
	sortByQuality(r.ordered)

	defaultID := opts.DefaultModel
	if defaultID == "" {
		for _, c := range r.ordered {
			if c.IsAvailable && !c.IsPreviewModel {
				defaultID = c.ID
				break
			}
		}
	}
	def, ok := r.models[defaultID]
	if !ok || !def.IsAvailable {
		return nil, fmt.Errorf("default model %q is not an available registry entry", defaultID)
	}
	r.defaultID = defaultID

	previewID := opts.PreviewModel
	if previewID == "" {
		if previews := r.ListPreview(); len(previews) > 0 {
			previewID = previews[0].ID
		}
	}
	if previewID == "" {
		return nil, ErrNoPreviewModel
	}
	if _, ok := r.models[previewID]; !ok {
		return nil, fmt.Errorf("preview model %q is not a registry entry", previewID)
	}
	r.previewID = previewID

	return r, nil
}

// Lookup resolves a model id. A miss is expected for retired models.
func (r *Registry) Lookup(id string) (model.ModelCapability, bool) {
	c, ok := r.models[id]
	if !ok {
		return model.ModelCapability{}, false
	}
	return clone(c), true
}

// All returns every entry ordered by quality, then id
func (r *Registry) All() []model.ModelCapability {
	return r.filter(func(model.ModelCapability) bool { return true })
}

func (r *Registry) ListAvailable() []model.ModelCapability {
	return r.filter(func(c model.ModelCapability) bool { return c.IsAvailable })
}

func (r *Registry) ListPreview() []model.ModelCapability {
	return r.filter(func(c model.ModelCapability) bool { return c.IsAvailable && c.IsPreviewModel })
}

// ListHighQuality returns available models scoring at least threshold
func (r *Registry) ListHighQuality(threshold int) []model.ModelCapability {
	return r.filter(func(c model.ModelCapability) bool { return c.IsAvailable && c.QualityScore >= threshold })
}

// DefaultModel is the safe fallback used for unknown model ids
func (r *Registry) DefaultModel() model.ModelCapability {
	return clone(r.models[r.defaultID])
}

// PreviewModel is the fast, low-fidelity backend used by preview runs
func (r *Registry) PreviewModel() model.ModelCapability {
	return clone(r.models[r.previewID])
}

func (r *Registry) filter(keep func(model.ModelCapability) bool) []model.ModelCapability {
	out := make([]model.ModelCapability, 0, len(r.ordered))
	for _, c := range r.ordered {
		if keep(c) {
			out = append(out, clone(c))
		}
	}
	return out
}

func sortByQuality(caps []model.ModelCapability) {
	sort.SliceStable(caps, func(i, j int) bool {
		if caps[i].QualityScore != caps[j].QualityScore {
			return caps[i].QualityScore > caps[j].QualityScore
		}
		return caps[i].ID < caps[j].ID
	})
}

func clone(c model.ModelCapability) model.ModelCapability {
	c.Resolutions = append([]string(nil), c.Resolutions...)
	return c
}
