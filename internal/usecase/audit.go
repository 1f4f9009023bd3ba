// File: internal/usecase/audit.go
package usecase

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"job-analysis-pipeline/internal/domain/model"
	"job-analysis-pipeline/internal/domain/ports/repository"
	"job-analysis-pipeline/internal/infra/metrics"
)

// AuditTrail fans every security incident out to two sinks: an append-only
// structured log file and the database audit table. The file write happens
// first so an incident survives even when the database is the thing failing.
type AuditTrail struct {
	store repository.AuditLog
	file  zerolog.Logger
	log   *zerolog.Logger

	now func() time.Time
}

func NewAuditTrail(store repository.AuditLog, fileSink io.Writer, logger *zerolog.Logger) *AuditTrail {
	l := logger.With().Str("component", "AuditTrail").Logger()
	return &AuditTrail{
		store: store,
		file:  zerolog.New(fileSink).With().Timestamp().Logger(),
		log:   &l,
		now:   time.Now,
	}
}

// Record persists one incident. The returned error reflects the database
// write only; the file entry is already on disk by then.
func (a *AuditTrail) Record(ctx context.Context, kind model.IncidentKind, tier model.TierID, batchID, expected, observed string) error {
	inc := &model.SecurityIncident{
		ID:         uuid.NewString(),
		Kind:       kind,
		Tier:       tier,
		BatchID:    batchID,
		Expected:   expected,
		Observed:   observed,
		OccurredAt: a.now().UTC(),
	}

	a.file.Warn().
		Str("incident_id", inc.ID).
		Str("kind", string(inc.Kind)).
		Str("tier", inc.Tier.String()).
		Str("batch_id", inc.BatchID).
		Str("expected", inc.Expected).
		Str("observed", inc.Observed).
		Msg("security incident")

	metrics.IncSecurityIncident(string(kind))

	if err := a.store.Record(ctx, inc); err != nil {
		a.log.Error().Err(err).Str("incident_id", inc.ID).Msg("audit database write failed; file entry retained")
		return err
	}
	return nil
}

func (a *AuditTrail) Recent(ctx context.Context, limit int) ([]*model.SecurityIncident, error) {
	if limit <= 0 {
		limit = 50
	}
	return a.store.ListRecent(ctx, limit)
}
