package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"producer/internal/media"
)

// ProductionSettings bounds the per-item production sub-pipeline.
// DisableFallback keeps the zero value meaning "fallback on", matching the
// default resiliency policy.
type ProductionSettings struct {
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	MinDurationSeconds  int    `yaml:"min_duration_seconds"`
	MaxDurationSeconds  int    `yaml:"max_duration_seconds"`
	DisableFallback     bool   `yaml:"disable_fallback"`
	FallbackAssetURL    string `yaml:"fallback_asset_url"`
}

// ApplyDefaults fills zero-valued settings with the provider's hard bounds
// and the standard polling profile.
func (s *ProductionSettings) ApplyDefaults() {
	if s.PollIntervalSeconds <= 0 {
		s.PollIntervalSeconds = 10
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = 180
	}
	if s.MinDurationSeconds <= 0 {
		s.MinDurationSeconds = 5
	}
	if s.MaxDurationSeconds <= 0 {
		s.MaxDurationSeconds = 8
	}
	if s.FallbackAssetURL == "" {
		s.FallbackAssetURL = "https://storage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4"
	}
}

// Settings is the persisted pipeline configuration file.
type Settings struct {
	Production ProductionSettings    `yaml:"production"`
	Encoder    media.EncoderSettings `yaml:"encoder"`
}

// LoadSettings reads the YAML settings file at path. An empty path yields the
// defaults so the service runs without a config file.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read settings file: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse settings file: %w", err)
		}
	}
	s.Production.ApplyDefaults()
	s.Encoder.ApplyDefaults()
	return s, nil
}
