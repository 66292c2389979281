package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings returned error: %v", err)
	}
	if s.Production.PollIntervalSeconds != 10 || s.Production.TimeoutSeconds != 180 {
		t.Fatalf("polling defaults mismatch: %+v", s.Production)
	}
	if s.Production.MinDurationSeconds != 5 || s.Production.MaxDurationSeconds != 8 {
		t.Fatalf("duration bounds mismatch: %+v", s.Production)
	}
	if s.Production.DisableFallback {
		t.Fatal("fallback must default to enabled")
	}
	if s.Production.FallbackAssetURL == "" {
		t.Fatal("fallback asset url must default")
	}
	if s.Encoder.Width != 1080 || s.Encoder.Height != 1920 {
		t.Fatalf("encoder frame mismatch: %+v", s.Encoder)
	}
}

func TestLoadSettingsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	content := `production:
  poll_interval_seconds: 5
  timeout_seconds: 60
  disable_fallback: true
encoder:
  font_file: /usr/share/fonts/truetype/dejavu/DejaVuSans.ttf
  preset: veryfast
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings returned error: %v", err)
	}
	if s.Production.PollIntervalSeconds != 5 || s.Production.TimeoutSeconds != 60 {
		t.Fatalf("polling overrides ignored: %+v", s.Production)
	}
	if !s.Production.DisableFallback {
		t.Fatal("disable_fallback override ignored")
	}
	if s.Production.MinDurationSeconds != 5 {
		t.Fatal("unspecified fields must keep defaults")
	}
	if s.Encoder.Preset != "veryfast" || s.Encoder.FontFile == "" {
		t.Fatalf("encoder overrides ignored: %+v", s.Encoder)
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing settings file")
	}
}
