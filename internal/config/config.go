// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	OpenAIKey       string        `yaml:"openai_key"`
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiURL       string        `yaml:"gemini_url"`
	StandardModel   string        `yaml:"standard_model"`  // tier-1 default
	PremiumModel    string        `yaml:"premium_model"`   // tier-2/3 default
	EconomyModel    string        `yaml:"economy_model"`   // budget-pressure fallback
	ConcurrentLimit int           `yaml:"concurrent_limit"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

// WindowConfig is a daily wall-clock window in "HH:MM" form.
type WindowConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type PipelineConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`

	Tier1Window WindowConfig `yaml:"tier1_window"`
	Tier2Window WindowConfig `yaml:"tier2_window"`
	Tier3Window WindowConfig `yaml:"tier3_window"`

	DailyTokenLimit         int64   `yaml:"daily_token_limit"`
	BudgetPressureThreshold float64 `yaml:"budget_pressure_threshold"` // fraction of daily limit
	SafetyMargin            float64 `yaml:"safety_margin"`             // output-token headroom
	TruncationThreshold     float64 `yaml:"truncation_threshold"`      // clamp loss fraction before advising smaller batches
	OutputCeiling           int     `yaml:"output_ceiling"`            // hard per-call output token cap

	// Quality feedback loop for the model selector.
	QualityUpgradeBelow   float64 `yaml:"quality_upgrade_below"`
	QualityDowngradeAbove float64 `yaml:"quality_downgrade_above"`
	QualityStreak         int     `yaml:"quality_streak"`
	Tier3QualityFloor     float64 `yaml:"tier3_quality_floor"`

	RequestsPerMinute int    `yaml:"requests_per_minute"`
	QualityPriority   string `yaml:"quality_priority"` // speed|balanced|quality
}

type WebConfig struct {
	Port      int           `yaml:"port"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type AuditConfig struct {
	FilePath string `yaml:"file_path"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Web      WebConfig      `yaml:"web"`
	Audit    AuditConfig    `yaml:"audit"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if _, err := ParseWindow(cfg.Pipeline.Tier1Window); err != nil {
		return nil, fmt.Errorf("pipeline.tier1_window: %w", err)
	}
	if _, err := ParseWindow(cfg.Pipeline.Tier2Window); err != nil {
		return nil, fmt.Errorf("pipeline.tier2_window: %w", err)
	}
	if _, err := ParseWindow(cfg.Pipeline.Tier3Window); err != nil {
		return nil, fmt.Errorf("pipeline.tier3_window: %w", err)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.AI.StandardModel == "" {
		cfg.AI.StandardModel = "gpt-4o-mini"
	}
	if cfg.AI.PremiumModel == "" {
		cfg.AI.PremiumModel = "gpt-4o"
	}
	if cfg.AI.EconomyModel == "" {
		cfg.AI.EconomyModel = "gemini-2.0-flash"
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 4
	}
	if cfg.AI.RequestTimeout <= 0 {
		cfg.AI.RequestTimeout = 30 * time.Second
	}

	p := &cfg.Pipeline
	if p.PollInterval <= 0 {
		p.PollInterval = 5 * time.Minute
	}
	if p.Tier1Window == (WindowConfig{}) {
		p.Tier1Window = WindowConfig{Start: "01:00", End: "03:00"}
	}
	if p.Tier2Window == (WindowConfig{}) {
		p.Tier2Window = WindowConfig{Start: "03:00", End: "05:00"}
	}
	if p.Tier3Window == (WindowConfig{}) {
		p.Tier3Window = WindowConfig{Start: "05:00", End: "07:00"}
	}
	if p.DailyTokenLimit <= 0 {
		p.DailyTokenLimit = 1_500_000
	}
	if p.BudgetPressureThreshold <= 0 {
		p.BudgetPressureThreshold = 0.90
	}
	if p.SafetyMargin <= 0 {
		p.SafetyMargin = 0.18
	}
	if p.TruncationThreshold <= 0 {
		p.TruncationThreshold = 0.25
	}
	if p.OutputCeiling <= 0 {
		p.OutputCeiling = 8192
	}
	if p.QualityUpgradeBelow <= 0 {
		p.QualityUpgradeBelow = 0.60
	}
	if p.QualityDowngradeAbove <= 0 {
		p.QualityDowngradeAbove = 0.85
	}
	if p.QualityStreak <= 0 {
		p.QualityStreak = 3
	}
	if p.Tier3QualityFloor <= 0 {
		// Hard floor: the selector never goes below this capability score for
		// tier-3 work, even under budget pressure.
		p.Tier3QualityFloor = 0.70
	}
	if p.RequestsPerMinute <= 0 {
		p.RequestsPerMinute = 6
	}
	if p.QualityPriority == "" {
		p.QualityPriority = "balanced"
	}

	if cfg.Web.Port <= 0 {
		cfg.Web.Port = 8087
	}
	if cfg.Web.TokenTTL <= 0 {
		cfg.Web.TokenTTL = 30 * time.Minute
	}
	if cfg.Audit.FilePath == "" {
		cfg.Audit.FilePath = "security_audit.log"
	}
}

// Window is a parsed daily window as minutes since midnight. End is
// exclusive. Windows that cross midnight (Start > End) wrap.
type Window struct {
	Start int
	End   int
}

func ParseWindow(wc WindowConfig) (Window, error) {
	s, err := parseClock(wc.Start)
	if err != nil {
		return Window{}, fmt.Errorf("start: %w", err)
	}
	e, err := parseClock(wc.End)
	if err != nil {
		return Window{}, fmt.Errorf("end: %w", err)
	}
	if s == e {
		return Window{}, errors.New("window start and end are equal")
	}
	return Window{Start: s, End: e}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether the wall-clock instant falls inside the window.
func (w Window) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	if w.Start < w.End {
		return m >= w.Start && m < w.End
	}
	return m >= w.Start || m < w.End
}
