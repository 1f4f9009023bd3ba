// File: internal/usecase/template_registry.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"job-analysis-pipeline/internal/domain"
	"job-analysis-pipeline/internal/domain/model"
	"job-analysis-pipeline/internal/domain/ports/repository"
	"job-analysis-pipeline/internal/infra/security"
)

// PromptTemplateRegistry holds the in-memory canonical templates and guards
// every runtime template load against tampering. The in-memory copy,
// populated once at startup from the embedded files, is the trust anchor;
// the database row is treated as untrusted input.
type PromptTemplateRegistry struct {
	mu        sync.RWMutex
	canonical map[model.TierID]*model.PromptTemplate

	store repository.TemplateStore
	audit *AuditTrail
	log   *zerolog.Logger

	now func() time.Time
}

func NewPromptTemplateRegistry(store repository.TemplateStore, audit *AuditTrail, logger *zerolog.Logger) *PromptTemplateRegistry {
	l := logger.With().Str("component", "PromptTemplateRegistry").Logger()
	return &PromptTemplateRegistry{
		canonical: make(map[model.TierID]*model.PromptTemplate),
		store:     store,
		audit:     audit,
		log:       &l,
		now:       time.Now,
	}
}

// Register records text as the canonical template for tier and persists it.
// Re-registering identical text is a no-op; registering different text moves
// the trust anchor, which is the one legitimate way to change a prompt.
func (r *PromptTemplateRegistry) Register(ctx context.Context, tier model.TierID, text string) error {
	if !tier.Valid() {
		return fmt.Errorf("%w: tier %d", domain.ErrInvalidArgument, int(tier))
	}
	if !strings.Contains(text, TokenPlaceholder) {
		return fmt.Errorf("%w: tier %d template lacks %s placeholder", domain.ErrInvalidArgument, int(tier), TokenPlaceholder)
	}

	tpl := &model.PromptTemplate{
		Tier:          tier,
		Text:          text,
		CanonicalHash: security.CanonicalHash(text),
		RegisteredAt:  r.now().UTC(),
	}

	r.mu.Lock()
	prev := r.canonical[tier]
	r.canonical[tier] = tpl
	r.mu.Unlock()

	if prev != nil && prev.CanonicalHash == tpl.CanonicalHash {
		return nil
	}
	if prev != nil {
		r.log.Info().
			Str("tier", tier.String()).
			Str("old_hash", prev.CanonicalHash).
			Str("new_hash", tpl.CanonicalHash).
			Msg("canonical template replaced")
	}
	return r.store.Upsert(ctx, tpl)
}

// ValidateAndGetCanonical checks currentText against the registered canonical
// for tier. A hash mismatch is recorded as a tampering incident and the
// canonical text is returned, so callers always run with trusted prompts.
func (r *PromptTemplateRegistry) ValidateAndGetCanonical(ctx context.Context, tier model.TierID, currentText string) (text string, tampered bool, err error) {
	r.mu.RLock()
	tpl := r.canonical[tier]
	r.mu.RUnlock()

	if tpl == nil {
		return "", false, fmt.Errorf("%w: tier %d", domain.ErrUnregisteredTemplate, int(tier))
	}

	observed := security.CanonicalHash(currentText)
	if observed == tpl.CanonicalHash {
		return tpl.Text, false, nil
	}

	r.log.Warn().
		Str("tier", tier.String()).
		Str("expected", tpl.CanonicalHash).
		Str("observed", observed).
		Msg("prompt template hash mismatch; reverting to canonical")

	if aerr := r.audit.Record(ctx, model.IncidentTemplateTampered, tier, "", tpl.CanonicalHash, observed); aerr != nil {
		r.log.Error().Err(aerr).Str("tier", tier.String()).Msg("failed to persist tamper incident")
	}
	return tpl.Text, true, nil
}

// LoadValidated reads the tier's template from the store and validates it.
// A missing store row is not an error: the canonical copy serves directly.
func (r *PromptTemplateRegistry) LoadValidated(ctx context.Context, tier model.TierID) (string, bool, error) {
	stored, err := r.store.FindByTier(ctx, tier)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.mu.RLock()
			tpl := r.canonical[tier]
			r.mu.RUnlock()
			if tpl == nil {
				return "", false, fmt.Errorf("%w: tier %d", domain.ErrUnregisteredTemplate, int(tier))
			}
			return tpl.Text, false, nil
		}
		return "", false, err
	}
	return r.ValidateAndGetCanonical(ctx, tier, stored.Text)
}

// CanonicalHashFor exposes the trusted hash for status reporting.
func (r *PromptTemplateRegistry) CanonicalHashFor(tier model.TierID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.canonical[tier]
	if !ok {
		return "", false
	}
	return tpl.CanonicalHash, true
}
