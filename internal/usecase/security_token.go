// File: internal/usecase/security_token.go
package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"job-analysis-pipeline/internal/domain/model"
	"job-analysis-pipeline/internal/infra/security"
)

// TokenPlaceholder is the literal each prompt template carries where the
// per-call token is substituted in.
const TokenPlaceholder = "{{SECURITY_TOKEN}}"

// SecurityTokenValidator issues a fresh random token per batch and verifies it
// came back verbatim in the model's response envelope. A missing or altered
// token means the instructions the model followed were not ours.
type SecurityTokenValidator struct {
	nonces *security.NonceSource
	audit  *AuditTrail
	log    *zerolog.Logger
}

func NewSecurityTokenValidator(nonces *security.NonceSource, audit *AuditTrail, logger *zerolog.Logger) *SecurityTokenValidator {
	l := logger.With().Str("component", "SecurityTokenValidator").Logger()
	return &SecurityTokenValidator{nonces: nonces, audit: audit, log: &l}
}

// Issue mints the token for one batch.
func (v *SecurityTokenValidator) Issue() (string, error) {
	return v.nonces.Next()
}

// Embed substitutes the token into the template text. Templates without the
// placeholder pass through unchanged; registration is where that is caught.
func (v *SecurityTokenValidator) Embed(templateText, token string) string {
	return strings.ReplaceAll(templateText, TokenPlaceholder, token)
}

// Verify checks the echoed token against the issued one. On mismatch it
// records an injection incident and returns false; the caller must discard
// the whole response.
func (v *SecurityTokenValidator) Verify(ctx context.Context, got, issued string, tier model.TierID, batchID, payloadExcerpt string) bool {
	if got == issued && issued != "" {
		return true
	}

	v.log.Warn().
		Str("batch_id", batchID).
		Str("tier", tier.String()).
		Msg("security token mismatch; discarding response")

	if err := v.audit.Record(ctx, model.IncidentTokenMismatch, tier, batchID, issued, excerpt(payloadExcerpt, 512)); err != nil {
		v.log.Error().Err(err).Str("batch_id", batchID).Msg("failed to persist token-mismatch incident")
	}
	return false
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
