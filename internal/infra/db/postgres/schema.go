package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Schema is applied by cmd/seed. The jobs table is owned by the ingestion
// service; it is created here only so a fresh environment can run end to end.
const Schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    company      TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL,
    source_url   TEXT NOT NULL DEFAULT '',
    source_name  TEXT NOT NULL DEFAULT '',
    scraped_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tier_results (
    id            TEXT PRIMARY KEY,
    job_id        TEXT NOT NULL REFERENCES jobs(id),
    tier          INT  NOT NULL CHECK (tier IN (1, 2, 3)),
    payload       JSONB NOT NULL,
    model         TEXT NOT NULL,
    batch_id      TEXT NOT NULL,
    input_tokens  INT  NOT NULL DEFAULT 0,
    output_tokens INT  NOT NULL DEFAULT 0,
    latency_ms    INT  NOT NULL DEFAULT 0,
    validation    TEXT NOT NULL DEFAULT 'valid',
    completed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- Only one VALID result per (job, tier); security-failed marker rows may
-- accumulate without blocking reprocessing.
CREATE UNIQUE INDEX IF NOT EXISTS idx_tier_results_job_tier_valid
    ON tier_results(job_id, tier) WHERE validation = 'valid';

CREATE INDEX IF NOT EXISTS idx_tier_results_tier ON tier_results(tier);

CREATE TABLE IF NOT EXISTS prompt_templates (
    tier           INT PRIMARY KEY CHECK (tier IN (1, 2, 3)),
    template_text  TEXT NOT NULL,
    canonical_hash TEXT NOT NULL,
    registered_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS security_audit_log (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    tier        INT  NOT NULL DEFAULT 0,
    batch_id    TEXT NOT NULL DEFAULT '',
    expected    TEXT NOT NULL DEFAULT '',
    observed    TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audit_occurred_at ON security_audit_log(occurred_at);
`

// EnsureSchema applies the DDL. Statements are idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}
