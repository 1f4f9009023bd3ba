package repository

import (
	"context"
	"time"

	"job-analysis-pipeline/internal/domain/model"
)

// TierStats aggregates persisted results for the operator stats endpoint.
type TierStats struct {
	Tier         model.TierID
	Completed    int
	Failed       int
	InputTokens  int64
	OutputTokens int64
	AvgLatencyMs float64
	LastRunAt    *time.Time
}

// TierResultRepository persists per-tier analysis results. Results are
// immutable; Save must fail with domain.ErrAlreadyExists on a duplicate valid
// (job_id, tier) pair rather than overwrite.
type TierResultRepository interface {
	Save(ctx context.Context, qx Tx, res *model.TierResult) error
	FindByJobAndTier(ctx context.Context, qx Tx, jobID string, tier model.TierID) (*model.TierResult, error)

	// FindPriorResults loads the given tier's results for a set of jobs in one
	// round trip; the analyzer uses it to assemble tier-2/3 context.
	FindPriorResults(ctx context.Context, tier model.TierID, jobIDs []string) (map[string]*model.TierResult, error)

	Stats(ctx context.Context, tier model.TierID) (*TierStats, error)
}
