package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"job-analysis-pipeline/internal/domain/model"
	"job-analysis-pipeline/internal/domain/ports/repository"
)

var _ repository.TierResultRepository = (*tierResultRepo)(nil)

type tierResultRepo struct {
	pool *pgxpool.Pool
}

func NewTierResultRepo(pool *pgxpool.Pool) *tierResultRepo {
	return &tierResultRepo{pool: pool}
}

// Save inserts a new result row. There is deliberately no ON CONFLICT clause:
// results are immutable and a duplicate (job_id, tier) surfaces as
// domain.ErrAlreadyExists via the unique constraint.
func (r *tierResultRepo) Save(ctx context.Context, tx repository.Tx, res *model.TierResult) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.CompletedAt.IsZero() {
		res.CompletedAt = time.Now()
	}
	const q = `
INSERT INTO tier_results (id, job_id, tier, payload, model, batch_id, input_tokens, output_tokens, latency_ms, validation, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`

	_, err := execSQL(ctx, r.pool, tx, q,
		res.ID, res.JobID, int(res.Tier), res.Payload, res.Model, res.BatchID,
		res.InputTokens, res.OutputTokens, res.LatencyMs, string(res.Validation), res.CompletedAt)
	return translateErr(err)
}

func (r *tierResultRepo) FindByJobAndTier(ctx context.Context, tx repository.Tx, jobID string, tier model.TierID) (*model.TierResult, error) {
	const q = `
SELECT id, job_id, tier, payload, model, batch_id, input_tokens, output_tokens, latency_ms, validation, completed_at
FROM tier_results
WHERE job_id = $1 AND tier = $2 AND validation = 'valid';`

	row, err := pickRow(ctx, r.pool, tx, q, jobID, int(tier))
	if err != nil {
		return nil, err
	}
	return scanResult(row)
}

func (r *tierResultRepo) FindPriorResults(ctx context.Context, tier model.TierID, jobIDs []string) (map[string]*model.TierResult, error) {
	const q = `
SELECT id, job_id, tier, payload, model, batch_id, input_tokens, output_tokens, latency_ms, validation, completed_at
FROM tier_results
WHERE tier = $1 AND validation = 'valid' AND job_id = ANY($2);`

	rows, err := pickRows(ctx, r.pool, nil, q, int(tier), jobIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*model.TierResult, len(jobIDs))
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out[res.JobID] = res
	}
	return out, rows.Err()
}

func (r *tierResultRepo) Stats(ctx context.Context, tier model.TierID) (*repository.TierStats, error) {
	const q = `
SELECT
  COUNT(*) FILTER (WHERE validation = 'valid'),
  COUNT(*) FILTER (WHERE validation <> 'valid'),
  COALESCE(SUM(input_tokens), 0),
  COALESCE(SUM(output_tokens), 0),
  COALESCE(AVG(latency_ms), 0),
  MAX(completed_at)
FROM tier_results
WHERE tier = $1;`

	row, err := pickRow(ctx, r.pool, nil, q, int(tier))
	if err != nil {
		return nil, err
	}
	st := repository.TierStats{Tier: tier}
	if err := row.Scan(&st.Completed, &st.Failed, &st.InputTokens, &st.OutputTokens, &st.AvgLatencyMs, &st.LastRunAt); err != nil {
		return nil, translateErr(err)
	}
	return &st, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(row rowScanner) (*model.TierResult, error) {
	var res model.TierResult
	var tier int
	var validation string
	err := row.Scan(
		&res.ID, &res.JobID, &tier, &res.Payload, &res.Model, &res.BatchID,
		&res.InputTokens, &res.OutputTokens, &res.LatencyMs, &validation, &res.CompletedAt,
	)
	if err != nil {
		return nil, translateErr(err)
	}
	res.Tier = model.TierID(tier)
	res.Validation = model.ValidationStatus(validation)
	return &res, nil
}
