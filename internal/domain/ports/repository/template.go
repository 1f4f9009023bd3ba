package repository

import (
	"context"

	"job-analysis-pipeline/internal/domain/model"
)

// TemplateStore persists canonical prompt-template hashes keyed by tier.
// Mutated only by the explicit registration path (cmd/seed), never by the
// scheduler.
type TemplateStore interface {
	Upsert(ctx context.Context, tpl *model.PromptTemplate) error
	FindByTier(ctx context.Context, tier model.TierID) (*model.PromptTemplate, error)
}
