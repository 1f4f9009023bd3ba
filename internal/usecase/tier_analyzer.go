// File: internal/usecase/tier_analyzer.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"job-analysis-pipeline/internal/config"
	"job-analysis-pipeline/internal/domain"
	"job-analysis-pipeline/internal/domain/model"
	"job-analysis-pipeline/internal/domain/ports/adapter"
	"job-analysis-pipeline/internal/domain/ports/repository"
	"job-analysis-pipeline/internal/infra/metrics"
	"job-analysis-pipeline/internal/infra/redis"
)

// TierAnalyzer runs one analysis pass over a batch of jobs.
type TierAnalyzer interface {
	Tier() model.TierID
	AnalyzeBatch(ctx context.Context, jobs []*model.JobRecord) (*model.TierBatchOutcome, error)
}

// responseEnvelope is the contract every tier's response must honor.
type responseEnvelope struct {
	SecurityToken string            `json:"security_token"`
	Results       []json.RawMessage `json:"results"`
}

// itemCheck validates one results[] entry against the tier schema and returns
// the job id it claims to be for.
type itemCheck func(raw json.RawMessage) (jobID string, err error)

// tierEngine is the shared machinery behind the three analyzers. The tiers
// differ only in schema validation, prior-context needs and token baselines.
type tierEngine struct {
	tier    model.TierID
	check   itemCheck
	results repository.TierResultRepository
	txer    repository.TransactionManager

	registry  *PromptTemplateRegistry
	estimator *TokenBudgetEstimator
	selector  *ModelSelector
	advisor   *BatchSizeAdvisor
	tokens    *SecurityTokenValidator
	usage     repository.TokenUsageTracker
	limiter   *redis.RateLimiter
	ai        adapter.AIServiceAdapter

	requestTimeout    time.Duration
	requestsPerMinute int
	dailyLimit        int64

	// lastQuality is the schema-valid fraction of the previous batch's
	// response items; zero until a batch has produced items.
	qualityMu   sync.Mutex
	lastQuality float64

	log *zerolog.Logger
	now func() time.Time
}

// AnalyzerDeps groups the collaborators shared by all three tiers.
type AnalyzerDeps struct {
	Results   repository.TierResultRepository
	Txer      repository.TransactionManager
	Registry  *PromptTemplateRegistry
	Estimator *TokenBudgetEstimator
	Selector  *ModelSelector
	Advisor   *BatchSizeAdvisor
	Tokens    *SecurityTokenValidator
	Usage     repository.TokenUsageTracker
	Limiter   *redis.RateLimiter
	AI        adapter.AIServiceAdapter
	Logger    *zerolog.Logger
}

func newTierEngine(tier model.TierID, check itemCheck, deps AnalyzerDeps, aiCfg config.AIConfig, pipeCfg config.PipelineConfig) *tierEngine {
	l := deps.Logger.With().Str("component", "TierAnalyzer").Str("tier", tier.String()).Logger()
	return &tierEngine{
		tier:              tier,
		check:             check,
		results:           deps.Results,
		txer:              deps.Txer,
		registry:          deps.Registry,
		estimator:         deps.Estimator,
		selector:          deps.Selector,
		advisor:           deps.Advisor,
		tokens:            deps.Tokens,
		usage:             deps.Usage,
		limiter:           deps.Limiter,
		ai:                deps.AI,
		requestTimeout:    aiCfg.RequestTimeout,
		requestsPerMinute: pipeCfg.RequestsPerMinute,
		dailyLimit:        pipeCfg.DailyTokenLimit,
		log:               &l,
		now:               time.Now,
	}
}

func NewTier1Analyzer(deps AnalyzerDeps, aiCfg config.AIConfig, pipeCfg config.PipelineConfig) TierAnalyzer {
	return newTierEngine(model.Tier1, checkTier1Item, deps, aiCfg, pipeCfg)
}

func NewTier2Analyzer(deps AnalyzerDeps, aiCfg config.AIConfig, pipeCfg config.PipelineConfig) TierAnalyzer {
	return newTierEngine(model.Tier2, checkTier2Item, deps, aiCfg, pipeCfg)
}

func NewTier3Analyzer(deps AnalyzerDeps, aiCfg config.AIConfig, pipeCfg config.PipelineConfig) TierAnalyzer {
	return newTierEngine(model.Tier3, checkTier3Item, deps, aiCfg, pipeCfg)
}

func (e *tierEngine) Tier() model.TierID { return e.tier }

// AnalyzeBatch runs one LLM call over the batch and persists whatever
// validates. The outcome accounts for every input job: Analyzed + Failed +
// PendingRetry == len(jobs).
func (e *tierEngine) AnalyzeBatch(ctx context.Context, jobs []*model.JobRecord) (*model.TierBatchOutcome, error) {
	outcome := &model.TierBatchOutcome{Tier: e.tier, BatchID: ulid.Make().String()}
	if len(jobs) == 0 {
		return outcome, nil
	}
	log := e.log.With().Str("batch_id", outcome.BatchID).Logger()

	eligible, prior, skipped := e.loadPriorContext(ctx, jobs, &log)
	outcome.PendingRetry += skipped
	if len(eligible) == 0 {
		return outcome, nil
	}

	templateText, tampered, err := e.registry.LoadValidated(ctx, e.tier)
	if err != nil {
		if errors.Is(err, domain.ErrUnregisteredTemplate) {
			return nil, domain.NewTierError(domain.TierErrorSetup, int(e.tier), err)
		}
		return nil, domain.NewTierError(domain.TierErrorDependency, int(e.tier), err)
	}
	if tampered {
		log.Warn().Msg("ran with reverted canonical template after tamper detection")
	}

	token, err := e.tokens.Issue()
	if err != nil {
		return nil, domain.NewTierError(domain.TierErrorDependency, int(e.tier), err)
	}

	budget := e.estimator.Estimate(len(eligible), e.tier)
	used, err := e.usage.UsedToday(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("usage tracker unavailable; assuming zero spend")
		used = 0
	}
	choice := e.selector.Select(SelectInput{
		Tier:               e.tier,
		BatchSize:          len(eligible),
		DailyTokensUsed:    used,
		DailyTokenLimit:    e.dailyLimit,
		RecentQualityScore: e.recentQuality(),
	})
	log.Info().
		Str("model", choice.ModelID).
		Str("reason", choice.Reason).
		Int("jobs", len(eligible)).
		Int("max_output_tokens", budget.MaxOutputTokens).
		Msg("batch planned")

	messages := []adapter.Message{
		{Role: "system", Content: e.tokens.Embed(templateText, token)},
		{Role: "user", Content: buildBatchPrompt(eligible, prior)},
	}

	if err := e.waitForRateSlot(ctx); err != nil {
		return nil, domain.NewTierError(domain.TierErrorDependency, int(e.tier), err)
	}

	text, usage, latency, callErr := e.completeWithRetry(ctx, adapter.CompletionParams{
		Model:           choice.ModelID,
		Messages:        messages,
		MaxOutputTokens: budget.MaxOutputTokens,
		Temperature:     0.2,
	}, &log)
	outcome.Latency = latency
	outcome.InputTokens = usage.PromptTokens
	outcome.OutputTokens = usage.CompletionTokens
	if callErr != nil {
		outcome.PendingRetry += len(eligible)
		e.observeCall(choice.ModelID, usage, latency, false)
		metrics.IncBatch(e.tier.String(), "failed")
		metrics.AddJobsRequeued(e.tier.String(), len(eligible))
		return outcome, callErr
	}

	envelope, perr := parseEnvelope(text)
	if perr != nil {
		outcome.Failed += len(eligible)
		e.observeCall(choice.ModelID, usage, latency, false)
		metrics.IncBatch(e.tier.String(), "failed")
		log.Error().Err(perr).Msg("unparseable response; nothing persisted")
		return outcome, domain.NewTierError(domain.TierErrorContent, int(e.tier),
			fmt.Errorf("%w: %v", domain.ErrInvalidResponseFormat, perr))
	}

	if !e.tokens.Verify(ctx, envelope.SecurityToken, token, e.tier, outcome.BatchID, text) {
		e.persistSecurityFailures(ctx, eligible, outcome, choice.ModelID, usage, latency)
		e.observeCall(choice.ModelID, usage, latency, false)
		metrics.IncBatch(e.tier.String(), "failed")
		return outcome, domain.NewTierError(domain.TierErrorSecurity, int(e.tier), domain.ErrSecurityTokenMismatch)
	}

	e.persistResults(ctx, eligible, envelope.Results, outcome, choice.ModelID, usage, latency, &log)

	if err := e.usage.Add(ctx, e.tier, usage.TotalTokens); err != nil {
		log.Warn().Err(err).Msg("failed to record token usage")
	}
	e.observeCall(choice.ModelID, usage, latency, true)
	metrics.AddJobsAnalyzed(e.tier.String(), outcome.Analyzed)
	if outcome.PendingRetry > 0 {
		metrics.AddJobsRequeued(e.tier.String(), outcome.PendingRetry)
	}
	switch {
	case outcome.Analyzed == len(jobs):
		metrics.IncBatch(e.tier.String(), "completed")
	case outcome.Analyzed > 0:
		metrics.IncBatch(e.tier.String(), "partial")
	default:
		metrics.IncBatch(e.tier.String(), "failed")
	}

	if outcome.Truncated {
		e.advisor.NoteTruncation(e.tier)
	} else {
		e.advisor.NoteClean(e.tier)
	}

	log.Info().
		Int("analyzed", outcome.Analyzed).
		Int("failed", outcome.Failed).
		Int("pending_retry", outcome.PendingRetry).
		Bool("truncated", outcome.Truncated).
		Dur("latency", outcome.Latency).
		Msg("batch done")
	return outcome, nil
}

// loadPriorContext fetches earlier-tier payloads for tiers 2 and 3. Jobs whose
// required prior result is missing are skipped this cycle; the pending query
// should not have produced them, but the check costs one round trip and the
// alternative is analyzing without the context the tier is defined by.
func (e *tierEngine) loadPriorContext(ctx context.Context, jobs []*model.JobRecord, log *zerolog.Logger) ([]*model.JobRecord, map[string]priorContext, int) {
	if e.tier == model.Tier1 {
		return jobs, nil, 0
	}

	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}

	required, err := e.results.FindPriorResults(ctx, e.tier.Prior(), ids)
	if err != nil {
		log.Error().Err(err).Msg("prior-result lookup failed; skipping batch")
		return nil, nil, len(jobs)
	}

	prior := make(map[string]priorContext, len(jobs))
	var eligible []*model.JobRecord
	skipped := 0
	for _, j := range jobs {
		res, ok := required[j.ID]
		if !ok {
			skipped++
			log.Warn().Str("job_id", j.ID).Err(domain.ErrMissingPriorTier).Msg("job skipped this cycle")
			continue
		}
		prior[j.ID] = priorContext{e.tier.Prior(): string(res.Payload)}
		eligible = append(eligible, j)
	}

	// Tier 3 also gets the tier-1 extraction when available; missing is fine.
	if e.tier == model.Tier3 && len(eligible) > 0 {
		if extra, err := e.results.FindPriorResults(ctx, model.Tier1, ids); err == nil {
			for _, j := range eligible {
				if res, ok := extra[j.ID]; ok {
					prior[j.ID][model.Tier1] = string(res.Payload)
				}
			}
		}
	}
	return eligible, prior, skipped
}

// waitForRateSlot blocks until the fixed-window limiter admits a call.
func (e *tierEngine) waitForRateSlot(ctx context.Context) error {
	for {
		ok, err := e.limiter.Allow(ctx, redis.ProviderCallKey(int(e.tier)), e.requestsPerMinute, time.Minute)
		if err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		if ok {
			return nil
		}
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// completeWithRetry performs the provider call with the configured timeout and
// exactly one retry, permitted only for transient failures.
func (e *tierEngine) completeWithRetry(ctx context.Context, params adapter.CompletionParams, log *zerolog.Logger) (string, adapter.Usage, time.Duration, error) {
	attempt := func() (string, adapter.Usage, time.Duration, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.requestTimeout)
		defer cancel()
		start := e.now()
		text, usage, err := e.ai.Complete(callCtx, params)
		return text, usage, e.now().Sub(start), err
	}

	text, usage, latency, err := attempt()
	if err == nil {
		return text, usage, latency, nil
	}

	terr := e.classifyProviderErr(err)
	if !terr.Retryable() {
		return "", usage, latency, terr
	}

	log.Warn().Err(err).Msg("transient provider failure; retrying once")
	text, usage, retryLatency, err := attempt()
	latency += retryLatency
	if err != nil {
		return "", usage, latency, e.classifyProviderErr(err)
	}
	return text, usage, latency, nil
}

// classifyProviderErr maps a provider failure onto the error taxonomy.
// Timeouts and network errors are transient; everything else (auth, bad
// request, quota exhaustion) will not be fixed by calling again.
func (e *tierEngine) classifyProviderErr(err error) *domain.TierError {
	var netErr net.Error
	transient := errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &netErr) ||
		strings.Contains(err.Error(), "429") ||
		strings.Contains(err.Error(), "503")
	if transient {
		return domain.NewTierError(domain.TierErrorTransient, int(e.tier),
			fmt.Errorf("%w: %v", domain.ErrTransientProvider, err))
	}
	return domain.NewTierError(domain.TierErrorDependency, int(e.tier), err)
}

func parseEnvelope(text string) (*responseEnvelope, error) {
	// Some models wrap JSON in a markdown fence despite instructions.
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	var env responseEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// persistResults validates each results[] item and writes the ones that pass.
// Items for unknown jobs and schema violations are dropped; jobs the response
// never covered go back to pending.
func (e *tierEngine) persistResults(ctx context.Context, eligible []*model.JobRecord, items []json.RawMessage, outcome *model.TierBatchOutcome, modelID string, usage adapter.Usage, latency time.Duration, log *zerolog.Logger) {
	requested := make(map[string]bool, len(eligible))
	for _, j := range eligible {
		requested[j.ID] = true
	}

	perJobIn := usage.PromptTokens / len(eligible)
	perJobOut := usage.CompletionTokens / len(eligible)
	covered := make(map[string]bool, len(items))

	// Dropped items are not counted here: the job they belonged to (if any)
	// stays uncovered and is requeued below, so counting the drop as a
	// failure too would put one job in two outcome buckets.
	for _, raw := range items {
		jobID, err := e.check(raw)
		if err != nil {
			log.Warn().Err(err).Msg("result item failed schema validation; dropped")
			continue
		}
		if !requested[jobID] || covered[jobID] {
			log.Warn().Str("job_id", jobID).Msg("result for unrequested or duplicate job; dropped")
			continue
		}

		res := &model.TierResult{
			ID:           ulid.Make().String(),
			JobID:        jobID,
			Tier:         e.tier,
			Payload:      raw,
			Model:        modelID,
			BatchID:      outcome.BatchID,
			InputTokens:  perJobIn,
			OutputTokens: perJobOut,
			LatencyMs:    int(latency.Milliseconds()),
			Validation:   model.ValidationOK,
			CompletedAt:  e.now().UTC(),
		}
		if err := e.results.Save(ctx, nil, res); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				log.Debug().Str("job_id", jobID).Msg("result already persisted; keeping original")
				covered[jobID] = true
				outcome.Analyzed++
				continue
			}
			log.Error().Err(err).Str("job_id", jobID).Msg("result persist failed")
			continue
		}
		covered[jobID] = true
		outcome.Analyzed++
	}

	for id := range requested {
		if !covered[id] {
			outcome.PendingRetry++
		}
	}
	outcome.Truncated = len(covered) < len(eligible)

	if len(items) > 0 {
		e.noteQuality(float64(outcome.Analyzed) / float64(len(items)))
	}
}

// noteQuality records the schema-valid fraction of the last response so the
// next model selection can react to degrading or consistently clean output.
func (e *tierEngine) noteQuality(score float64) {
	e.qualityMu.Lock()
	e.lastQuality = score
	e.qualityMu.Unlock()
}

func (e *tierEngine) recentQuality() float64 {
	e.qualityMu.Lock()
	defer e.qualityMu.Unlock()
	return e.lastQuality
}

// persistSecurityFailures writes marker rows so the injection attempt is
// visible per job; the partial unique index keeps them from blocking a later
// clean analysis. The markers for one batch land atomically: a half-recorded
// incident is worse forensically than none.
func (e *tierEngine) persistSecurityFailures(ctx context.Context, eligible []*model.JobRecord, outcome *model.TierBatchOutcome, modelID string, usage adapter.Usage, latency time.Duration) {
	err := e.txer.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, j := range eligible {
			res := &model.TierResult{
				ID:           ulid.Make().String(),
				JobID:        j.ID,
				Tier:         e.tier,
				Payload:      json.RawMessage(`{}`),
				Model:        modelID,
				BatchID:      outcome.BatchID,
				InputTokens:  usage.PromptTokens / len(eligible),
				OutputTokens: usage.CompletionTokens / len(eligible),
				LatencyMs:    int(latency.Milliseconds()),
				Validation:   model.ValidationSecurityFailed,
				CompletedAt:  e.now().UTC(),
			}
			if err := e.results.Save(ctx, tx, res); err != nil {
				return fmt.Errorf("marker for job %s: %w", j.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		e.log.Error().Err(err).Msg("failed to persist security-failure markers")
	}
	outcome.Failed += len(eligible)
}

func (e *tierEngine) observeCall(modelID string, usage adapter.Usage, latency time.Duration, success bool) {
	cost := EstimateCostMicro(modelID, usage.PromptTokens, usage.CompletionTokens)
	metrics.ObserveAnalysisCall(modelID, e.tier.String(), usage.PromptTokens, usage.CompletionTokens, cost, int(latency.Milliseconds()), success)
}

func checkTier1Item(raw json.RawMessage) (string, error) {
	var a model.Tier1Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return "", err
	}
	if a.JobID == "" {
		return "", errors.New("missing job_id")
	}
	if a.Skills == nil {
		return "", errors.New("skills must be present (may be empty)")
	}
	if a.SeniorityLevel == "" {
		return "", errors.New("missing seniority_level")
	}
	return a.JobID, nil
}

func checkTier2Item(raw json.RawMessage) (string, error) {
	var a model.Tier2Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return "", err
	}
	if a.JobID == "" {
		return "", errors.New("missing job_id")
	}
	switch a.StressLevel {
	case "low", "moderate", "high":
	default:
		return "", fmt.Errorf("stress_level %q outside low|moderate|high", a.StressLevel)
	}
	return a.JobID, nil
}

func checkTier3Item(raw json.RawMessage) (string, error) {
	var a model.Tier3Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return "", err
	}
	if a.JobID == "" {
		return "", errors.New("missing job_id")
	}
	if a.PrestigeScore < 0 || a.PrestigeScore > 10 {
		return "", fmt.Errorf("prestige_score %.1f outside 0..10", a.PrestigeScore)
	}
	if a.PositioningStrategy == "" {
		return "", errors.New("missing positioning_strategy")
	}
	return a.JobID, nil
}
