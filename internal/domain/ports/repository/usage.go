package repository

import (
	"context"

	"job-analysis-pipeline/internal/domain/model"
)

// TokenUsageTracker accumulates token spend for the current day so the model
// selector can apply budget pressure. Backed by Redis with a TTL that expires
// at the daily rollover.
type TokenUsageTracker interface {
	Add(ctx context.Context, tier model.TierID, tokens int) error
	UsedToday(ctx context.Context) (int64, error)
}
