// File: internal/usecase/token_budget.go
package usecase

import (
	"math"

	"job-analysis-pipeline/internal/config"
	"job-analysis-pipeline/internal/domain/model"
)

// Per-job output baselines. Tier 1 is highest: it emits the full structured
// extraction. Tiers 2 and 3 are incremental over prior context.
var tierPerJobBaseline = map[model.TierID]int{
	model.Tier1: 700,
	model.Tier2: 450,
	model.Tier3: 500,
}

// TokenBudgetEstimator computes per-batch output-token allocations.
type TokenBudgetEstimator struct {
	safetyMargin        float64
	outputCeiling       int
	truncationThreshold float64
}

func NewTokenBudgetEstimator(cfg config.PipelineConfig) *TokenBudgetEstimator {
	return &TokenBudgetEstimator{
		safetyMargin:        cfg.SafetyMargin,
		outputCeiling:       cfg.OutputCeiling,
		truncationThreshold: cfg.TruncationThreshold,
	}
}

// Estimate returns the output-token budget for a batch of jobCount jobs.
// Never returns a non-positive budget: job counts below 1 are floored to the
// single-job baseline.
func (e *TokenBudgetEstimator) Estimate(jobCount int, tier model.TierID) model.TokenBudget {
	perJob := tierPerJobBaseline[tier]
	if perJob == 0 {
		perJob = tierPerJobBaseline[model.Tier1]
	}
	if jobCount < 1 {
		jobCount = 1
	}

	raw := perJob * jobCount
	withMargin := int(math.Ceil(float64(raw) * (1 + e.safetyMargin)))

	budget := model.TokenBudget{
		MaxOutputTokens:     withMargin,
		PerJobEstimate:      perJob,
		SafetyMarginApplied: e.safetyMargin,
	}
	if withMargin > e.outputCeiling {
		// Clamping would eat into expected output; if the loss exceeds the
		// threshold fraction, say so instead of silently truncating.
		loss := float64(withMargin-e.outputCeiling) / float64(withMargin)
		budget.MaxOutputTokens = e.outputCeiling
		budget.RecommendSmallerBatch = loss > e.truncationThreshold
	}
	return budget
}
