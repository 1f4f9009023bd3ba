package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"job-analysis-pipeline/internal/domain/model"
	"job-analysis-pipeline/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.JobRecord) error {
	if job.ScrapedAt.IsZero() {
		job.ScrapedAt = time.Now()
	}
	const q = `
INSERT INTO jobs (id, title, company, description, source_url, source_name, scraped_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  company = EXCLUDED.company,
  description = EXCLUDED.description;`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.Title, job.Company, job.Description, job.SourceURL, job.SourceName, job.ScrapedAt)
	return translateErr(err)
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.JobRecord, error) {
	const q = `
SELECT id, title, company, description, source_url, source_name, scraped_at
FROM jobs WHERE id = $1;`

	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var j model.JobRecord
	if err := row.Scan(&j.ID, &j.Title, &j.Company, &j.Description, &j.SourceURL, &j.SourceName, &j.ScrapedAt); err != nil {
		return nil, translateErr(err)
	}
	return &j, nil
}

// ListPendingForTier is the ordering guarantee: for tiers 2 and 3 a job only
// qualifies once the prior tier's result row exists, so a tier-N batch can
// never be scheduled ahead of its dependency.
func (r *jobRepo) ListPendingForTier(ctx context.Context, tier model.TierID, limit int) ([]*model.JobRecord, error) {
	rows, err := pickRows(ctx, r.pool, nil, pendingQuery(tier, false), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.JobRecord
	for rows.Next() {
		var j model.JobRecord
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.Description, &j.SourceURL, &j.SourceName, &j.ScrapedAt); err != nil {
			return nil, translateErr(err)
		}
		out = append(out, &j)
	}
	return out, rows.Err()
}

func (r *jobRepo) CountPendingForTier(ctx context.Context, tier model.TierID) (int, error) {
	row, err := pickRow(ctx, r.pool, nil, pendingQuery(tier, true))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, translateErr(err)
	}
	return n, nil
}

func pendingQuery(tier model.TierID, count bool) string {
	sel := `SELECT j.id, j.title, j.company, j.description, j.source_url, j.source_name, j.scraped_at`
	if count {
		sel = `SELECT COUNT(*)`
	}
	q := sel + `
FROM jobs j
WHERE NOT EXISTS (
  SELECT 1 FROM tier_results r
  WHERE r.job_id = j.id AND r.tier = ` + tierLiteral(tier) + ` AND r.validation = 'valid'
)`
	if tier > model.Tier1 {
		q += `
AND EXISTS (
  SELECT 1 FROM tier_results p
  WHERE p.job_id = j.id AND p.tier = ` + tierLiteral(tier.Prior()) + ` AND p.validation = 'valid'
)`
	}
	if !count {
		q += `
ORDER BY j.scraped_at
LIMIT $1`
	}
	return q + ";"
}

func tierLiteral(t model.TierID) string {
	// TierID is validated at the boundary; values are only ever 1..3.
	return [4]string{"0", "1", "2", "3"}[int(t)]
}
