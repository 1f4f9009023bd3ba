package repository

import (
	"context"

	"job-analysis-pipeline/internal/domain/model"
)

// AuditLog is the durable, append-only security trail. Implementations must
// not drop records on partial failure: if the database write fails the
// incident still has to reach the structured log sink.
type AuditLog interface {
	Record(ctx context.Context, inc *model.SecurityIncident) error
	ListRecent(ctx context.Context, limit int) ([]*model.SecurityIncident, error)
}
