package capability

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/reelforge/api/internal/model"
)

// LoadFile reads a registry table from a YAML/JSON/TOML file once at start-up.
// Options override the file's default_model and preview_model keys.
func LoadFile(path string, opts Options) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var caps []model.ModelCapability
	if err := v.UnmarshalKey("models", &caps); err != nil {
		return nil, fmt.Errorf("failed to decode registry models: %w", err)
	}

	if opts.DefaultModel == "" {
		opts.DefaultModel = v.GetString("default_model")
	}
	if opts.PreviewModel == "" {
		opts.PreviewModel = v.GetString("preview_model")
	}

	reg, err := New(caps, opts)
	if err != nil {
		return nil, fmt.Errorf("invalid registry file %s: %w", path, err)
	}
	return reg, nil
}
