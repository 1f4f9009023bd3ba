// File: internal/usecase/model_selector.go
package usecase

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"job-analysis-pipeline/internal/config"
	"job-analysis-pipeline/internal/domain/model"
)

// SelectInput carries everything the selector weighs for one call.
type SelectInput struct {
	Tier            model.TierID
	BatchSize       int
	DailyTokensUsed int64
	DailyTokenLimit int64

	// RecentQualityScore is the observed quality of recent output for this
	// tier (the analyzers feed back the schema-valid fraction of the previous
	// batch), 0..1; zero means "no signal".
	RecentQualityScore float64
	TimeSensitive      bool
}

// ModelSelector picks a model per tier. The preference is inverted from naive
// intuition: tier 1 is extractive and a standard model handles it fine, while
// tiers 2 and 3 are inferential/strategic and gain disproportionately from a
// higher-capability model.
type ModelSelector struct {
	standard string
	premium  string
	economy  string

	pressureThreshold float64
	upgradeBelow      float64
	downgradeAbove    float64
	streakLength      int
	tier3Floor        float64

	mu         sync.Mutex
	goodStreak map[model.TierID]int

	log *zerolog.Logger
}

func NewModelSelector(aiCfg config.AIConfig, pipeCfg config.PipelineConfig, logger *zerolog.Logger) *ModelSelector {
	l := logger.With().Str("component", "ModelSelector").Logger()
	return &ModelSelector{
		standard:          aiCfg.StandardModel,
		premium:           aiCfg.PremiumModel,
		economy:           aiCfg.EconomyModel,
		pressureThreshold: pipeCfg.BudgetPressureThreshold,
		upgradeBelow:      pipeCfg.QualityUpgradeBelow,
		downgradeAbove:    pipeCfg.QualityDowngradeAbove,
		streakLength:      pipeCfg.QualityStreak,
		tier3Floor:        pipeCfg.Tier3QualityFloor,
		goodStreak:        make(map[model.TierID]int),
		log:               &l,
	}
}

func (s *ModelSelector) Select(in SelectInput) model.ModelChoice {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Tier preference first.
	preferred := s.standard
	if in.Tier >= model.Tier2 {
		preferred = s.premium
	}
	reason := fmt.Sprintf("tier %d default", int(in.Tier))
	confidence := 0.8

	// Quality feedback loop.
	if in.RecentQualityScore > 0 {
		switch {
		case in.RecentQualityScore < s.upgradeBelow:
			s.goodStreak[in.Tier] = 0
			preferred = s.premium
			reason = fmt.Sprintf("recent quality %.2f below %.2f; upgraded", in.RecentQualityScore, s.upgradeBelow)
			confidence = 0.9
		case in.RecentQualityScore > s.downgradeAbove:
			s.goodStreak[in.Tier]++
			if s.goodStreak[in.Tier] >= s.streakLength && preferred == s.premium {
				preferred = s.standard
				reason = fmt.Sprintf("quality above %.2f for %d calls; trying cheaper model", s.downgradeAbove, s.streakLength)
				confidence = 0.6
			}
		default:
			s.goodStreak[in.Tier] = 0
		}
	}

	// Budget pressure overrides tier preference.
	if in.DailyTokenLimit > 0 {
		ratio := float64(in.DailyTokensUsed) / float64(in.DailyTokenLimit)
		if ratio > s.pressureThreshold {
			preferred = s.economy
			reason = fmt.Sprintf("daily token budget %.1f%% consumed (threshold %.0f%%); downgraded to cheapest viable model",
				ratio*100, s.pressureThreshold*100)
			confidence = 0.95
		}
	}

	// Tier-3 hard floor: never below the configured capability score, even
	// under budget pressure.
	if in.Tier == model.Tier3 && LookupModel(preferred).Quality < s.tier3Floor {
		floored := s.cheapestAboveFloor()
		s.log.Warn().
			Str("rejected", preferred).
			Str("selected", floored).
			Float64("floor", s.tier3Floor).
			Msg("tier-3 quality floor overrode model choice")
		reason += fmt.Sprintf("; raised to %s to respect tier-3 quality floor %.2f", floored, s.tier3Floor)
		preferred = floored
	}

	return model.ModelChoice{
		ModelID:          preferred,
		Reason:           reason,
		Confidence:       confidence,
		EstimatedQuality: LookupModel(preferred).Quality,
	}
}

// cheapestAboveFloor scans the candidate set for the cheapest model that
// still clears the tier-3 floor.
func (s *ModelSelector) cheapestAboveFloor() string {
	best := s.premium
	bestPrice := LookupModel(best).OutputPricePerKMicros
	for _, id := range []string{s.economy, s.standard, s.premium} {
		spec := LookupModel(id)
		if spec.Quality >= s.tier3Floor && spec.OutputPricePerKMicros < bestPrice {
			best = id
			bestPrice = spec.OutputPricePerKMicros
		}
	}
	return best
}
