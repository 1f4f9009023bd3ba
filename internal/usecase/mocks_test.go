// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"job-analysis-pipeline/internal/config"
	"job-analysis-pipeline/internal/domain"
	"job-analysis-pipeline/internal/domain/model"
	"job-analysis-pipeline/internal/domain/ports/adapter"
	"job-analysis-pipeline/internal/domain/ports/repository"
)

// testPipelineConfig mirrors the production defaults.
func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		DailyTokenLimit:         1_500_000,
		BudgetPressureThreshold: 0.90,
		SafetyMargin:            0.18,
		TruncationThreshold:     0.25,
		OutputCeiling:           8192,
		QualityUpgradeBelow:     0.60,
		QualityDowngradeAbove:   0.85,
		QualityStreak:           3,
		Tier3QualityFloor:       0.70,
		RequestsPerMinute:       100,
		QualityPriority:         "balanced",
	}
}

func testAIConfig() config.AIConfig {
	return config.AIConfig{
		StandardModel:  "gpt-4o-mini",
		PremiumModel:   "gpt-4o",
		EconomyModel:   "gemini-2.0-flash",
		RequestTimeout: 5 * time.Second,
	}
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memTemplateStore is a small in-memory TemplateStore used by unit tests.
type memTemplateStore struct {
	mu    sync.RWMutex
	store map[model.TierID]*model.PromptTemplate

	findErr error
}

func newMemTemplateStore() *memTemplateStore {
	return &memTemplateStore{store: make(map[model.TierID]*model.PromptTemplate)}
}

func (m *memTemplateStore) Upsert(ctx context.Context, tpl *model.PromptTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tpl
	m.store[tpl.Tier] = &cp
	return nil
}

func (m *memTemplateStore) FindByTier(ctx context.Context, tier model.TierID) (*model.PromptTemplate, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tpl, ok := m.store[tier]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *tpl
	return &cp, nil
}

// memAuditRepo records incidents in memory.
type memAuditRepo struct {
	mu        sync.Mutex
	incidents []*model.SecurityIncident
	recordErr error
}

func newMemAuditRepo() *memAuditRepo { return &memAuditRepo{} }

func (m *memAuditRepo) Record(ctx context.Context, inc *model.SecurityIncident) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inc
	m.incidents = append(m.incidents, &cp)
	return nil
}

func (m *memAuditRepo) ListRecent(ctx context.Context, limit int) ([]*model.SecurityIncident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.SecurityIncident, 0, limit)
	for i := len(m.incidents) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *m.incidents[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memAuditRepo) count(kind model.IncidentKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, inc := range m.incidents {
		if inc.Kind == kind {
			n++
		}
	}
	return n
}

// memTierResultRepo stores results keyed by (job, tier). Only one valid row
// per pair, matching the partial unique index in the real schema.
type memTierResultRepo struct {
	mu      sync.RWMutex
	results map[string]*model.TierResult // key jobID|tier, valid rows only
	markers []*model.TierResult          // security-failed rows

	saveErr  error
	priorErr error
}

func newMemTierResultRepo() *memTierResultRepo {
	return &memTierResultRepo{results: make(map[string]*model.TierResult)}
}

func resultKey(jobID string, tier model.TierID) string {
	return jobID + "|" + tier.String()
}

func (m *memTierResultRepo) Save(ctx context.Context, qx repository.Tx, res *model.TierResult) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *res
	if res.Validation != model.ValidationOK {
		m.markers = append(m.markers, &cp)
		return nil
	}
	key := resultKey(res.JobID, res.Tier)
	if _, ok := m.results[key]; ok {
		return domain.ErrAlreadyExists
	}
	m.results[key] = &cp
	return nil
}

func (m *memTierResultRepo) FindByJobAndTier(ctx context.Context, qx repository.Tx, jobID string, tier model.TierID) (*model.TierResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[resultKey(jobID, tier)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (m *memTierResultRepo) FindPriorResults(ctx context.Context, tier model.TierID, jobIDs []string) (map[string]*model.TierResult, error) {
	if m.priorErr != nil {
		return nil, m.priorErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*model.TierResult)
	for _, id := range jobIDs {
		if res, ok := m.results[resultKey(id, tier)]; ok {
			cp := *res
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *memTierResultRepo) Stats(ctx context.Context, tier model.TierID) (*repository.TierStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := &repository.TierStats{Tier: tier}
	for _, res := range m.results {
		if res.Tier == tier {
			st.Completed++
			st.InputTokens += int64(res.InputTokens)
			st.OutputTokens += int64(res.OutputTokens)
		}
	}
	for _, res := range m.markers {
		if res.Tier == tier {
			st.Failed++
		}
	}
	return st, nil
}

func (m *memTierResultRepo) countValid(tier model.TierID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, res := range m.results {
		if res.Tier == tier {
			n++
		}
	}
	return n
}

// memTxManager runs the callback directly; it counts invocations so tests can
// assert a write went through the transactional path.
type memTxManager struct {
	mu    sync.Mutex
	calls int
}

func (m *memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return fn(ctx, nil)
}

func (m *memTxManager) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// memUsageTracker is an in-memory TokenUsageTracker.
type memUsageTracker struct {
	mu    sync.Mutex
	total int64
}

func (m *memUsageTracker) Add(ctx context.Context, tier model.TierID, tokens int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total += int64(tokens)
	return nil
}

func (m *memUsageTracker) UsedToday(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total, nil
}

// memRedis backs the rate limiter in tests.
type memRedis struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newMemRedis() *memRedis { return &memRedis{counters: make(map[string]int64)} }

func (m *memRedis) Ping(ctx context.Context) error { return nil }
func (m *memRedis) Set(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	return nil
}
func (m *memRedis) Get(ctx context.Context, key string) (string, error) {
	return "", domain.ErrNotFound
}
func (m *memRedis) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key] += n
	return m.counters[key], nil
}
func (m *memRedis) Expire(ctx context.Context, key string, exp time.Duration) error { return nil }
func (m *memRedis) Del(ctx context.Context, keys ...string) error                   { return nil }
func (m *memRedis) Close() error                                                    { return nil }

// fakeAI lets each test script the provider's behavior.
type fakeAI struct {
	mu           sync.Mutex
	calls        int
	lastParams   adapter.CompletionParams
	CompleteFunc func(call int, params adapter.CompletionParams) (string, adapter.Usage, error)
}

func (f *fakeAI) ListModels(ctx context.Context) ([]string, error) { return []string{"fake"}, nil }

func (f *fakeAI) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{Name: model, MaxTokens: 8192}, nil
}

func (f *fakeAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(m.Content) / 4
	}
	return n, nil
}

func (f *fakeAI) Complete(ctx context.Context, params adapter.CompletionParams) (string, adapter.Usage, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.lastParams = params
	fn := f.CompleteFunc
	f.mu.Unlock()
	if fn == nil {
		return "{}", adapter.Usage{}, nil
	}
	return fn(call, params)
}

func (f *fakeAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
