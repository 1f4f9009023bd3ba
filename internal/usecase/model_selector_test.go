// File: internal/usecase/model_selector_test.go
package usecase

import (
	"strings"
	"testing"

	"job-analysis-pipeline/internal/domain/model"
)

func TestModelSelector_Select(t *testing.T) {
	newSelector := func() *ModelSelector {
		return NewModelSelector(testAIConfig(), testPipelineConfig(), newTestLogger())
	}

	t.Run("tier 1 defaults to the standard model", func(t *testing.T) {
		choice := newSelector().Select(SelectInput{Tier: model.Tier1, BatchSize: 10, DailyTokenLimit: 1_500_000})
		if choice.ModelID != "gpt-4o-mini" {
			t.Errorf("expected gpt-4o-mini for tier 1, got %s", choice.ModelID)
		}
	})

	t.Run("tiers 2 and 3 default to the premium model", func(t *testing.T) {
		s := newSelector()
		for _, tier := range []model.TierID{model.Tier2, model.Tier3} {
			choice := s.Select(SelectInput{Tier: tier, BatchSize: 5, DailyTokenLimit: 1_500_000})
			if choice.ModelID != "gpt-4o" {
				t.Errorf("expected gpt-4o for %s, got %s", tier, choice.ModelID)
			}
		}
	})

	t.Run("budget pressure downgrades tier 2 to economy", func(t *testing.T) {
		choice := newSelector().Select(SelectInput{
			Tier:            model.Tier2,
			BatchSize:       5,
			DailyTokensUsed: 1_450_000,
			DailyTokenLimit: 1_500_000,
		})
		if choice.ModelID != "gemini-2.0-flash" {
			t.Errorf("expected economy model under budget pressure, got %s", choice.ModelID)
		}
		if !strings.Contains(choice.Reason, "%") {
			t.Errorf("reason should cite consumption percentage, got %q", choice.Reason)
		}
	})

	t.Run("tier 3 floor overrides the budget downgrade", func(t *testing.T) {
		// gemini-2.0-flash scores 0.72 which clears the 0.70 floor, so push the
		// floor above it to force the override path.
		cfg := testPipelineConfig()
		cfg.Tier3QualityFloor = 0.75
		s := NewModelSelector(testAIConfig(), cfg, newTestLogger())

		choice := s.Select(SelectInput{
			Tier:            model.Tier3,
			BatchSize:       3,
			DailyTokensUsed: 1_450_000,
			DailyTokenLimit: 1_500_000,
		})
		if LookupModel(choice.ModelID).Quality < 0.75 {
			t.Errorf("tier-3 floor was crossed: got %s (quality %.2f)",
				choice.ModelID, LookupModel(choice.ModelID).Quality)
		}
	})

	t.Run("low quality score upgrades to premium", func(t *testing.T) {
		choice := newSelector().Select(SelectInput{
			Tier:               model.Tier1,
			BatchSize:          10,
			DailyTokenLimit:    1_500_000,
			RecentQualityScore: 0.40,
		})
		if choice.ModelID != "gpt-4o" {
			t.Errorf("expected upgrade to premium on low quality, got %s", choice.ModelID)
		}
	})

	t.Run("sustained high quality steps premium tiers down after a streak", func(t *testing.T) {
		s := newSelector()
		in := SelectInput{
			Tier:               model.Tier2,
			BatchSize:          5,
			DailyTokenLimit:    1_500_000,
			RecentQualityScore: 0.92,
		}
		var last model.ModelChoice
		for i := 0; i < 3; i++ {
			last = s.Select(in)
		}
		if last.ModelID != "gpt-4o-mini" {
			t.Errorf("expected standard model after a 3-call quality streak, got %s", last.ModelID)
		}
	})
}
