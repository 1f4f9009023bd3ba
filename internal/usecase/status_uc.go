// File: internal/usecase/status_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"job-analysis-pipeline/internal/domain/model"
	"job-analysis-pipeline/internal/domain/ports/repository"
)

// SchedulerStateSource decouples status reporting from the scheduler; the
// scheduler lives in infra and imports this package, not the other way round.
type SchedulerStateSource interface {
	State() string
	LastRun(tier model.TierID) *time.Time
}

// TierStatus is one tier's slice of the pipeline snapshot.
type TierStatus struct {
	Tier          int        `json:"tier"`
	Pending       int        `json:"pending"`
	Completed     int        `json:"completed"`
	Failed        int        `json:"failed"`
	InputTokens   int64      `json:"input_tokens"`
	OutputTokens  int64      `json:"output_tokens"`
	AvgLatencyMs  float64    `json:"avg_latency_ms"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	TemplateHash  string     `json:"template_hash"`
	WindowStarted *time.Time `json:"window_started_at,omitempty"`
}

// PipelineStatus is the operator-facing snapshot behind GET /pipeline/status.
type PipelineStatus struct {
	SchedulerState  string       `json:"scheduler_state"`
	DailyTokensUsed int64        `json:"daily_tokens_used"`
	DailyTokenLimit int64        `json:"daily_token_limit"`
	Tiers           []TierStatus `json:"tiers"`
	GeneratedAt     time.Time    `json:"generated_at"`
}

type StatusUseCase struct {
	jobs     repository.JobRepository
	results  repository.TierResultRepository
	usage    repository.TokenUsageTracker
	registry *PromptTemplateRegistry
	sched    SchedulerStateSource

	dailyLimit int64
	log        *zerolog.Logger
}

func NewStatusUseCase(
	jobs repository.JobRepository,
	results repository.TierResultRepository,
	usage repository.TokenUsageTracker,
	registry *PromptTemplateRegistry,
	sched SchedulerStateSource,
	dailyLimit int64,
	logger *zerolog.Logger,
) *StatusUseCase {
	l := logger.With().Str("component", "StatusUseCase").Logger()
	return &StatusUseCase{
		jobs:       jobs,
		results:    results,
		usage:      usage,
		registry:   registry,
		sched:      sched,
		dailyLimit: dailyLimit,
		log:        &l,
	}
}

// Snapshot assembles the full pipeline view. Individual lookups degrade
// gracefully: a failing counter zeroes its field rather than failing the
// whole endpoint.
func (s *StatusUseCase) Snapshot(ctx context.Context) (*PipelineStatus, error) {
	st := &PipelineStatus{
		SchedulerState:  s.sched.State(),
		DailyTokenLimit: s.dailyLimit,
		GeneratedAt:     time.Now().UTC(),
	}

	used, err := s.usage.UsedToday(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("usage lookup failed for status snapshot")
	}
	st.DailyTokensUsed = used

	for _, tier := range []model.TierID{model.Tier1, model.Tier2, model.Tier3} {
		ts, err := s.TierSnapshot(ctx, tier)
		if err != nil {
			return nil, err
		}
		st.Tiers = append(st.Tiers, *ts)
	}
	return st, nil
}

// TierSnapshot serves GET /pipeline/tiers/{tier}/stats.
func (s *StatusUseCase) TierSnapshot(ctx context.Context, tier model.TierID) (*TierStatus, error) {
	ts := &TierStatus{Tier: int(tier)}

	pending, err := s.jobs.CountPendingForTier(ctx, tier)
	if err != nil {
		s.log.Warn().Err(err).Str("tier", tier.String()).Msg("pending count failed")
	}
	ts.Pending = pending

	stats, err := s.results.Stats(ctx, tier)
	if err != nil {
		return nil, err
	}
	ts.Completed = stats.Completed
	ts.Failed = stats.Failed
	ts.InputTokens = stats.InputTokens
	ts.OutputTokens = stats.OutputTokens
	ts.AvgLatencyMs = stats.AvgLatencyMs
	ts.LastRunAt = stats.LastRunAt

	if hash, ok := s.registry.CanonicalHashFor(tier); ok {
		ts.TemplateHash = hash
	}
	ts.WindowStarted = s.sched.LastRun(tier)
	return ts, nil
}
