package repository

import (
	"context"

	"job-analysis-pipeline/internal/domain/model"
)

// JobRepository reads job postings owned by the ingestion service.
type JobRepository interface {
	FindByID(ctx context.Context, qx Tx, id string) (*model.JobRecord, error)

	// ListPendingForTier returns jobs lacking a result for `tier` but, for
	// tiers 2 and 3, already possessing the tier-(N-1) result. This query is
	// what enforces the tier ordering invariant; there is no locking.
	ListPendingForTier(ctx context.Context, tier model.TierID, limit int) ([]*model.JobRecord, error)

	// CountPendingForTier is ListPendingForTier's counting twin, used by the
	// status endpoint.
	CountPendingForTier(ctx context.Context, tier model.TierID) (int, error)

	Save(ctx context.Context, qx Tx, job *model.JobRecord) error
}
