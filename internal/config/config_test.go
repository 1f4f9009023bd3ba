// File: internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
database:
  url: postgres://localhost:5432/pipeline
redis:
  url: localhost:6379
`

func TestLoadConfig(t *testing.T) {
	t.Run("minimal config gets full defaults", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, minimalYAML), false)
		if err != nil {
			t.Fatalf("load: %v", err)
		}

		if cfg.Pipeline.DailyTokenLimit != 1_500_000 {
			t.Errorf("daily token limit default: got %d", cfg.Pipeline.DailyTokenLimit)
		}
		if cfg.Pipeline.Tier3QualityFloor != 0.70 {
			t.Errorf("tier3 quality floor default: got %f", cfg.Pipeline.Tier3QualityFloor)
		}
		if cfg.Pipeline.Tier1Window.Start != "01:00" {
			t.Errorf("tier1 window default: got %s", cfg.Pipeline.Tier1Window.Start)
		}
		if cfg.AI.StandardModel == "" || cfg.AI.PremiumModel == "" || cfg.AI.EconomyModel == "" {
			t.Error("model tier defaults missing")
		}
		if cfg.AI.RequestTimeout != 30*time.Second {
			t.Errorf("request timeout default: got %v", cfg.AI.RequestTimeout)
		}
		if cfg.Web.Port != 8087 {
			t.Errorf("web port default: got %d", cfg.Web.Port)
		}
	})

	t.Run("missing database url fails", func(t *testing.T) {
		if _, err := LoadConfig(writeConfig(t, "redis:\n  url: localhost:6379\n"), false); err == nil {
			t.Error("expected error for missing database.url")
		}
	})

	t.Run("malformed window fails validation", func(t *testing.T) {
		yaml := minimalYAML + `
pipeline:
  tier2_window:
    start: "3am"
    end: "05:00"
`
		if _, err := LoadConfig(writeConfig(t, yaml), false); err == nil {
			t.Error("expected error for malformed window")
		}
	})
}

func TestParseWindow(t *testing.T) {
	t.Run("valid window", func(t *testing.T) {
		w, err := ParseWindow(WindowConfig{Start: "01:30", End: "03:15"})
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if w.Start != 90 || w.End != 195 {
			t.Errorf("unexpected minutes: %+v", w)
		}
	})

	t.Run("equal start and end rejected", func(t *testing.T) {
		if _, err := ParseWindow(WindowConfig{Start: "02:00", End: "02:00"}); err == nil {
			t.Error("expected error for zero-length window")
		}
	})

	t.Run("bad clock rejected", func(t *testing.T) {
		if _, err := ParseWindow(WindowConfig{Start: "25:00", End: "03:00"}); err == nil {
			t.Error("expected error for hour 25")
		}
	})
}

func TestWindowContains(t *testing.T) {
	at := func(hour, min int) time.Time {
		return time.Date(2026, 8, 28, hour, min, 0, 0, time.UTC)
	}

	t.Run("plain window", func(t *testing.T) {
		w := Window{Start: 60, End: 180} // 01:00-03:00
		if !w.Contains(at(1, 0)) {
			t.Error("start minute should be inside")
		}
		if !w.Contains(at(2, 59)) {
			t.Error("last minute should be inside")
		}
		if w.Contains(at(3, 0)) {
			t.Error("end minute is exclusive")
		}
		if w.Contains(at(0, 59)) {
			t.Error("minute before start should be outside")
		}
	})

	t.Run("window wrapping midnight", func(t *testing.T) {
		w := Window{Start: 23 * 60, End: 60} // 23:00-01:00
		if !w.Contains(at(23, 30)) {
			t.Error("pre-midnight minute should be inside")
		}
		if !w.Contains(at(0, 30)) {
			t.Error("post-midnight minute should be inside")
		}
		if w.Contains(at(1, 0)) {
			t.Error("end minute is exclusive")
		}
		if w.Contains(at(12, 0)) {
			t.Error("midday should be outside")
		}
	})
}
