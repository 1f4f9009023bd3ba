package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"job-analysis-pipeline/internal/domain/model"
	"job-analysis-pipeline/internal/domain/ports/repository"
)

var _ repository.AuditLog = (*auditLogRepo)(nil)

// auditLogRepo is the database half of the audit trail. The usecase layer
// pairs it with the file sink so a database outage cannot swallow incidents.
type auditLogRepo struct {
	pool *pgxpool.Pool
}

func NewAuditLogRepo(pool *pgxpool.Pool) *auditLogRepo {
	return &auditLogRepo{pool: pool}
}

func (r *auditLogRepo) Record(ctx context.Context, inc *model.SecurityIncident) error {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	if inc.OccurredAt.IsZero() {
		inc.OccurredAt = time.Now()
	}
	const q = `
INSERT INTO security_audit_log (id, kind, tier, batch_id, expected, observed, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	_, err := execSQL(ctx, r.pool, nil, q,
		inc.ID, string(inc.Kind), int(inc.Tier), inc.BatchID, inc.Expected, inc.Observed, inc.OccurredAt)
	return translateErr(err)
}

func (r *auditLogRepo) ListRecent(ctx context.Context, limit int) ([]*model.SecurityIncident, error) {
	const q = `
SELECT id, kind, tier, batch_id, expected, observed, occurred_at
FROM security_audit_log
ORDER BY occurred_at DESC
LIMIT $1;`

	rows, err := pickRows(ctx, r.pool, nil, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SecurityIncident
	for rows.Next() {
		var inc model.SecurityIncident
		var kind string
		var tier int
		if err := rows.Scan(&inc.ID, &kind, &tier, &inc.BatchID, &inc.Expected, &inc.Observed, &inc.OccurredAt); err != nil {
			return nil, translateErr(err)
		}
		inc.Kind = model.IncidentKind(kind)
		inc.Tier = model.TierID(tier)
		out = append(out, &inc)
	}
	return out, rows.Err()
}
