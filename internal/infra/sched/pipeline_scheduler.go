// File: internal/infra/sched/pipeline_scheduler.go
package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"job-analysis-pipeline/internal/config"
	"job-analysis-pipeline/internal/domain"
	"job-analysis-pipeline/internal/domain/model"
	"job-analysis-pipeline/internal/domain/ports/repository"
	"job-analysis-pipeline/internal/infra/metrics"
	"job-analysis-pipeline/internal/usecase"
)

// Scheduler states. Exactly one tier runs at a time; the whole pipeline is
// deliberately single-threaded.
const (
	StateIdle           = "IDLE"
	StateAwaitingWindow = "AWAITING_WINDOW"
	StateRunningTier1   = "RUNNING_TIER1"
	StateRunningTier2   = "RUNNING_TIER2"
	StateRunningTier3   = "RUNNING_TIER3"
)

var stateGauge = map[string]int{
	StateIdle:           0,
	StateAwaitingWindow: 1,
	StateRunningTier1:   2,
	StateRunningTier2:   3,
	StateRunningTier3:   4,
}

// PipelineScheduler drives the three tiers through their nightly windows.
// Each tier runs at most once per window instance; a window instance is keyed
// by the wall-clock date its start falls on.
type PipelineScheduler struct {
	interval  time.Duration
	windows   map[model.TierID]config.Window
	analyzers map[model.TierID]usecase.TierAnalyzer
	jobs      repository.JobRepository
	advisor   *usecase.BatchSizeAdvisor
	audit     *usecase.AuditTrail
	priority  string

	mu      sync.Mutex
	running bool
	state   string
	lastRun map[model.TierID]*time.Time

	log *zerolog.Logger
	now func() time.Time
}

func NewPipelineScheduler(
	cfg config.PipelineConfig,
	analyzers []usecase.TierAnalyzer,
	jobs repository.JobRepository,
	advisor *usecase.BatchSizeAdvisor,
	audit *usecase.AuditTrail,
	logger *zerolog.Logger,
) (*PipelineScheduler, error) {
	windows := make(map[model.TierID]config.Window, 3)
	for tier, wc := range map[model.TierID]config.WindowConfig{
		model.Tier1: cfg.Tier1Window,
		model.Tier2: cfg.Tier2Window,
		model.Tier3: cfg.Tier3Window,
	} {
		w, err := config.ParseWindow(wc)
		if err != nil {
			return nil, fmt.Errorf("%s window: %w", tier, err)
		}
		windows[tier] = w
	}

	byTier := make(map[model.TierID]usecase.TierAnalyzer, len(analyzers))
	for _, a := range analyzers {
		byTier[a.Tier()] = a
	}
	for _, tier := range []model.TierID{model.Tier1, model.Tier2, model.Tier3} {
		if byTier[tier] == nil {
			return nil, fmt.Errorf("no analyzer wired for %s", tier)
		}
	}

	schedLog := logger.With().Str("component", "PipelineScheduler").Logger()
	return &PipelineScheduler{
		interval:  cfg.PollInterval,
		windows:   windows,
		analyzers: byTier,
		jobs:      jobs,
		advisor:   advisor,
		audit:     audit,
		priority:  cfg.QualityPriority,
		state:     StateIdle,
		lastRun:   make(map[model.TierID]*time.Time),
		log:       &schedLog,
		now:       time.Now,
	}, nil
}

func (s *PipelineScheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("poll_interval", s.interval).Msg("Starting pipeline scheduler")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Stopping pipeline scheduler")
			return ctx.Err()
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

// pollOnce checks each tier's window in order and runs the first tier that is
// inside its window and has not yet run for this window instance.
func (s *PipelineScheduler) pollOnce(ctx context.Context) {
	now := s.now()

	for _, tier := range []model.TierID{model.Tier1, model.Tier2, model.Tier3} {
		w := s.windows[tier]
		if !w.Contains(now) {
			continue
		}
		if s.ranThisWindow(tier, w, now) {
			s.setState(StateAwaitingWindow)
			return
		}
		if err := s.runTier(ctx, tier); err != nil {
			s.log.Error().Err(err).Str("tier", tier.String()).Msg("tier run failed")
		}
		return
	}
	s.setState(StateIdle)
}

// ForceRun executes one tier immediately, bypassing its window. Manual
// overrides leave an audit record; a pipeline that can be run off-schedule
// silently is a pipeline whose history cannot be trusted.
func (s *PipelineScheduler) ForceRun(ctx context.Context, tier model.TierID, operator string) error {
	if !tier.Valid() {
		return fmt.Errorf("%w: tier %d", domain.ErrInvalidArgument, int(tier))
	}
	s.log.Warn().Str("tier", tier.String()).Str("operator", operator).Msg("manual tier run requested")
	if err := s.audit.Record(ctx, model.IncidentManualOverride, tier, "", "scheduled window", "forced by "+operator); err != nil {
		return err
	}
	return s.runTier(ctx, tier)
}

func (s *PipelineScheduler) runTier(ctx context.Context, tier model.TierID) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("a tier run is already in progress")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.setState(StateIdle)
	}()

	s.setState(runningState(tier))
	started := s.now()
	log := s.log.With().Str("tier", tier.String()).Logger()

	total, err := s.jobs.CountPendingForTier(ctx, tier)
	if err != nil {
		return fmt.Errorf("count pending: %w", err)
	}
	advice := s.advisor.Recommend(total, tier, s.priority)
	log.Info().
		Int("pending", total).
		Int("batch_size", advice.OptimalBatchSize).
		Int("batches", advice.BatchesNeeded).
		Str("reason", advice.Reason).
		Msg("tier window opened")

	if total == 0 {
		s.markRun(tier, started)
		return nil
	}

	analyzer := s.analyzers[tier]
	analyzed, failures := 0, 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		batch, err := s.jobs.ListPendingForTier(ctx, tier, advice.OptimalBatchSize)
		if err != nil {
			return fmt.Errorf("list pending: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		outcome, err := analyzer.AnalyzeBatch(ctx, batch)
		if err != nil {
			// One bad batch must not sink the window; setup failures are the
			// exception since every later batch would hit the same wall.
			var terr *domain.TierError
			if errors.As(err, &terr) && terr.Kind == domain.TierErrorSetup {
				return err
			}
			failures++
			log.Error().Err(err).Msg("batch failed; continuing with next batch")
			if failures >= 3 {
				log.Error().Msg("too many consecutive batch failures; closing window early")
				break
			}
			continue
		}
		failures = 0
		analyzed += outcome.Analyzed

		// Everything still pending was either requeued by this batch or never
		// selected; when a full pass persists nothing we are done for tonight.
		if outcome.Analyzed == 0 {
			break
		}
	}

	s.markRun(tier, started)
	log.Info().Int("jobs_analyzed", analyzed).Dur("took", s.now().Sub(started)).Msg("tier window closed")
	return nil
}

func (s *PipelineScheduler) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	metrics.SetSchedulerState(stateGauge[state])
}

// State implements usecase.SchedulerStateSource.
func (s *PipelineScheduler) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastRun implements usecase.SchedulerStateSource.
func (s *PipelineScheduler) LastRun(tier model.TierID) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun[tier]
}

func (s *PipelineScheduler) markRun(tier model.TierID, at time.Time) {
	s.mu.Lock()
	t := at
	s.lastRun[tier] = &t
	s.mu.Unlock()
}

// ranThisWindow reports whether the tier already ran inside the current
// window instance. Windows wrapping midnight belong to the date the window
// started on.
func (s *PipelineScheduler) ranThisWindow(tier model.TierID, w config.Window, now time.Time) bool {
	s.mu.Lock()
	last := s.lastRun[tier]
	s.mu.Unlock()
	if last == nil {
		return false
	}
	return !last.Before(windowStart(w, now))
}

func windowStart(w config.Window, now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := day.Add(time.Duration(w.Start) * time.Minute)
	minutes := now.Hour()*60 + now.Minute()
	if w.Start > w.End && minutes < w.End {
		// inside the post-midnight tail of a wrapped window
		start = start.AddDate(0, 0, -1)
	}
	return start
}

func runningState(tier model.TierID) string {
	switch tier {
	case model.Tier1:
		return StateRunningTier1
	case model.Tier2:
		return StateRunningTier2
	default:
		return StateRunningTier3
	}
}

var _ usecase.SchedulerStateSource = (*PipelineScheduler)(nil)
