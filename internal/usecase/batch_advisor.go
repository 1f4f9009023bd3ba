// File: internal/usecase/batch_advisor.go
package usecase

import (
	"fmt"
	"sync"
	"time"

	"job-analysis-pipeline/internal/config"
	"job-analysis-pipeline/internal/domain/model"
)

// Per-tier caps on jobs per call. Bounds the blast radius of a single failed
// call: a truncated tier-3 batch throws away more expensive reasoning than a
// truncated tier-1 batch, so deeper tiers get smaller caps.
var tierMaxJobsPerCall = map[model.TierID]int{
	model.Tier1: 10,
	model.Tier2: 8,
	model.Tier3: 5,
}

// BatchSizeAdvisor computes how many jobs to put in one API call.
type BatchSizeAdvisor struct {
	estimator         *TokenBudgetEstimator
	requestsPerMinute int

	mu        sync.Mutex
	truncated map[model.TierID]bool // last batch for the tier came back short
}

func NewBatchSizeAdvisor(estimator *TokenBudgetEstimator, cfg config.PipelineConfig) *BatchSizeAdvisor {
	return &BatchSizeAdvisor{
		estimator:         estimator,
		requestsPerMinute: cfg.RequestsPerMinute,
		truncated:         make(map[model.TierID]bool),
	}
}

func (a *BatchSizeAdvisor) Recommend(totalJobs int, tier model.TierID, qualityPriority string) model.BatchAdvice {
	if totalJobs <= 0 {
		return model.BatchAdvice{OptimalBatchSize: 0, Reason: "no jobs pending"}
	}

	size := tierMaxJobsPerCall[tier]
	if size == 0 {
		size = 5
	}
	reason := fmt.Sprintf("tier %d cap", int(tier))

	// Shrink until the token budget stops flagging truncation risk.
	for size > 1 {
		if !a.estimator.Estimate(size, tier).RecommendSmallerBatch {
			break
		}
		size--
		reason = "reduced to fit output-token ceiling"
	}

	switch qualityPriority {
	case "quality":
		if size > 1 {
			size = (size + 1) / 2
			reason += "; halved for quality priority"
		}
	case "speed":
		// keep the computed maximum
	default: // balanced
	}

	a.mu.Lock()
	if a.truncated[tier] && size > 1 {
		size--
		reason += "; shaved after truncated batch"
	}
	a.mu.Unlock()

	if size > totalJobs {
		size = totalJobs
	}

	batches := (totalJobs + size - 1) / size
	budget := a.estimator.Estimate(size, tier)

	// One call plus rate-limit pacing per batch.
	perBatch := 20*time.Second + time.Minute/time.Duration(max(a.requestsPerMinute, 1))

	return model.BatchAdvice{
		OptimalBatchSize:   size,
		BatchesNeeded:      batches,
		EstimatedTotalTime: time.Duration(batches) * perBatch,
		TokenEfficiency:    float64(budget.PerJobEstimate*size) / float64(budget.MaxOutputTokens),
		Reason:             reason,
	}
}

// NoteTruncation records that the tier's last batch came back short; the next
// recommendation for that tier is shaved by one job.
func (a *BatchSizeAdvisor) NoteTruncation(tier model.TierID) {
	a.mu.Lock()
	a.truncated[tier] = true
	a.mu.Unlock()
}

// NoteClean clears the truncation hint after a fully covered batch.
func (a *BatchSizeAdvisor) NoteClean(tier model.TierID) {
	a.mu.Lock()
	a.truncated[tier] = false
	a.mu.Unlock()
}
