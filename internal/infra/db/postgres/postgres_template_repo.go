package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"job-analysis-pipeline/internal/domain/model"
	"job-analysis-pipeline/internal/domain/ports/repository"
)

var _ repository.TemplateStore = (*templateRepo)(nil)

type templateRepo struct {
	pool *pgxpool.Pool
}

func NewTemplateRepo(pool *pgxpool.Pool) *templateRepo {
	return &templateRepo{pool: pool}
}

func (r *templateRepo) Upsert(ctx context.Context, tpl *model.PromptTemplate) error {
	if tpl.RegisteredAt.IsZero() {
		tpl.RegisteredAt = time.Now()
	}
	const q = `
INSERT INTO prompt_templates (tier, template_text, canonical_hash, registered_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tier) DO UPDATE SET
  template_text = EXCLUDED.template_text,
  canonical_hash = EXCLUDED.canonical_hash,
  registered_at = EXCLUDED.registered_at;`

	_, err := execSQL(ctx, r.pool, nil, q, int(tpl.Tier), tpl.Text, tpl.CanonicalHash, tpl.RegisteredAt)
	return translateErr(err)
}

func (r *templateRepo) FindByTier(ctx context.Context, tier model.TierID) (*model.PromptTemplate, error) {
	const q = `
SELECT tier, template_text, canonical_hash, registered_at
FROM prompt_templates WHERE tier = $1;`

	row, err := pickRow(ctx, r.pool, nil, q, int(tier))
	if err != nil {
		return nil, err
	}
	var tpl model.PromptTemplate
	var t int
	if err := row.Scan(&t, &tpl.Text, &tpl.CanonicalHash, &tpl.RegisteredAt); err != nil {
		return nil, translateErr(err)
	}
	tpl.Tier = model.TierID(t)
	return &tpl, nil
}
