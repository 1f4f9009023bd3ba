// File: internal/infra/web/server_test.go
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"job-analysis-pipeline/internal/config"
	"job-analysis-pipeline/internal/domain"
	"job-analysis-pipeline/internal/domain/model"
	"job-analysis-pipeline/internal/domain/ports/repository"
	"job-analysis-pipeline/internal/usecase"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ---- fakes ----

type fakeJobRepo struct{ pending map[model.TierID]int }

func (f *fakeJobRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.JobRecord, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeJobRepo) ListPendingForTier(ctx context.Context, tier model.TierID, limit int) ([]*model.JobRecord, error) {
	return nil, nil
}
func (f *fakeJobRepo) CountPendingForTier(ctx context.Context, tier model.TierID) (int, error) {
	return f.pending[tier], nil
}
func (f *fakeJobRepo) Save(ctx context.Context, qx repository.Tx, job *model.JobRecord) error {
	return nil
}

type fakeResultRepo struct{}

func (f *fakeResultRepo) Save(ctx context.Context, qx repository.Tx, res *model.TierResult) error {
	return nil
}
func (f *fakeResultRepo) FindByJobAndTier(ctx context.Context, qx repository.Tx, jobID string, tier model.TierID) (*model.TierResult, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeResultRepo) FindPriorResults(ctx context.Context, tier model.TierID, jobIDs []string) (map[string]*model.TierResult, error) {
	return map[string]*model.TierResult{}, nil
}
func (f *fakeResultRepo) Stats(ctx context.Context, tier model.TierID) (*repository.TierStats, error) {
	return &repository.TierStats{Tier: tier, Completed: 7}, nil
}

type fakeUsage struct{ used int64 }

func (f *fakeUsage) Add(ctx context.Context, tier model.TierID, tokens int) error { return nil }
func (f *fakeUsage) UsedToday(ctx context.Context) (int64, error)                 { return f.used, nil }

type fakeTemplateStore struct{}

func (f *fakeTemplateStore) Upsert(ctx context.Context, tpl *model.PromptTemplate) error { return nil }
func (f *fakeTemplateStore) FindByTier(ctx context.Context, tier model.TierID) (*model.PromptTemplate, error) {
	return nil, domain.ErrNotFound
}

type fakeAuditRepo struct {
	mu        sync.Mutex
	incidents []*model.SecurityIncident
}

func (f *fakeAuditRepo) Record(ctx context.Context, inc *model.SecurityIncident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incidents = append(f.incidents, inc)
	return nil
}
func (f *fakeAuditRepo) ListRecent(ctx context.Context, limit int) ([]*model.SecurityIncident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.SecurityIncident(nil), f.incidents...), nil
}

type fakeScheduler struct {
	mu       sync.Mutex
	forced   []model.TierID
	forceErr error
}

func (f *fakeScheduler) State() string                      { return "IDLE" }
func (f *fakeScheduler) LastRun(model.TierID) *time.Time    { return nil }
func (f *fakeScheduler) ForceRun(ctx context.Context, tier model.TierID, operator string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forceErr != nil {
		return f.forceErr
	}
	f.forced = append(f.forced, tier)
	return nil
}

// ---- harness ----

const testSecret = "test-secret"

type webHarness struct {
	server *Server
	sched  *fakeScheduler
	audit  *fakeAuditRepo
}

func newWebHarness(t *testing.T) *webHarness {
	t.Helper()
	auditRepo := &fakeAuditRepo{}
	trail := usecase.NewAuditTrail(auditRepo, io.Discard, testLogger())
	registry := usecase.NewPromptTemplateRegistry(&fakeTemplateStore{}, trail, testLogger())
	schedFake := &fakeScheduler{}

	statusUC := usecase.NewStatusUseCase(
		&fakeJobRepo{pending: map[model.TierID]int{model.Tier1: 12}},
		&fakeResultRepo{},
		&fakeUsage{used: 250_000},
		registry,
		schedFake,
		1_500_000,
		testLogger(),
	)

	server := NewServer(
		config.WebConfig{Port: 0, JWTSecret: testSecret, TokenTTL: 10 * time.Minute},
		statusUC,
		trail,
		schedFake,
		testLogger(),
	)
	return &webHarness{server: server, sched: schedFake, audit: auditRepo}
}

func (h *webHarness) token(t *testing.T) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"secret": testSecret, "operator": "alex"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("mint token: status %d", rec.Code)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return resp.Token
}

func (h *webHarness) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, req)
	return rec
}

// ---- tests ----

func TestServer_Auth(t *testing.T) {
	t.Run("health needs no auth", func(t *testing.T) {
		h := newWebHarness(t)
		if rec := h.do(t, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
			t.Errorf("health: status %d", rec.Code)
		}
	})

	t.Run("protected routes reject missing token", func(t *testing.T) {
		h := newWebHarness(t)
		if rec := h.do(t, http.MethodGet, "/api/v1/pipeline/status", ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("wrong secret cannot mint", func(t *testing.T) {
		h := newWebHarness(t)
		body, _ := json.Marshal(map[string]string{"secret": "wrong"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		h.server.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("minted token opens protected routes", func(t *testing.T) {
		h := newWebHarness(t)
		rec := h.do(t, http.MethodGet, "/api/v1/pipeline/status", h.token(t))
		if rec.Code != http.StatusOK {
			t.Fatalf("status: %d", rec.Code)
		}

		var status usecase.PipelineStatus
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if status.SchedulerState != "IDLE" {
			t.Errorf("scheduler state: %s", status.SchedulerState)
		}
		if status.DailyTokensUsed != 250_000 {
			t.Errorf("daily tokens: %d", status.DailyTokensUsed)
		}
		if len(status.Tiers) != 3 {
			t.Errorf("expected 3 tier entries, got %d", len(status.Tiers))
		}
	})
}

func TestServer_TierRoutes(t *testing.T) {
	t.Run("tier stats", func(t *testing.T) {
		h := newWebHarness(t)
		rec := h.do(t, http.MethodGet, "/api/v1/pipeline/tiers/1/stats", h.token(t))
		if rec.Code != http.StatusOK {
			t.Fatalf("stats: %d", rec.Code)
		}
		var ts usecase.TierStatus
		if err := json.Unmarshal(rec.Body.Bytes(), &ts); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ts.Tier != 1 || ts.Pending != 12 || ts.Completed != 7 {
			t.Errorf("unexpected tier stats: %+v", ts)
		}
	})

	t.Run("invalid tier number is a 400", func(t *testing.T) {
		h := newWebHarness(t)
		for _, path := range []string{
			"/api/v1/pipeline/tiers/4/stats",
			"/api/v1/pipeline/tiers/zero/stats",
		} {
			if rec := h.do(t, http.MethodGet, path, h.token(t)); rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", path, rec.Code)
			}
		}
	})

	t.Run("manual run reaches the scheduler", func(t *testing.T) {
		h := newWebHarness(t)
		rec := h.do(t, http.MethodPost, "/api/v1/pipeline/tiers/2/run", h.token(t))
		if rec.Code != http.StatusOK {
			t.Fatalf("run: %d", rec.Code)
		}
		if len(h.sched.forced) != 1 || h.sched.forced[0] != model.Tier2 {
			t.Errorf("unexpected forced runs: %v", h.sched.forced)
		}
	})
}

func TestServer_Incidents(t *testing.T) {
	h := newWebHarness(t)
	h.audit.incidents = append(h.audit.incidents, &model.SecurityIncident{
		ID:   "inc-1",
		Kind: model.IncidentTokenMismatch,
		Tier: model.Tier2,
	})

	rec := h.do(t, http.MethodGet, "/api/v1/pipeline/incidents", h.token(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("incidents: %d", rec.Code)
	}
	var resp struct {
		Data []*model.SecurityIncident `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Kind != model.IncidentTokenMismatch {
		t.Errorf("unexpected incidents: %+v", resp.Data)
	}
}
