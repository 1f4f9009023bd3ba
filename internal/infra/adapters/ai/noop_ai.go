package ai

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"job-analysis-pipeline/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements adapter.AIServiceAdapter for local/dev runs. It
// scans the outgoing prompt for the security token and job ids and fabricates
// a schema-valid response, so the whole pipeline can be exercised without a
// provider key.
type NoopAIAdapter struct{}

func NewNoopAIAdapter() *NoopAIAdapter { return &NoopAIAdapter{} }

var (
	noopTokenRe = regexp.MustCompile(`SECURITY_TOKEN:\s*(\S+)`)
	noopJobRe   = regexp.MustCompile(`JOB_ID:\s*(\S+)`)
)

func (a *NoopAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{"noop-model"}, nil
}

func (a *NoopAIAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{
		Name:        "noop-model",
		Description: "Fabricated responses for local development",
		MaxTokens:   8192,
		Supports:    []string{"text"},
	}, nil
}

func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(m.Content) / 4
	}
	return n, nil
}

func (a *NoopAIAdapter) Complete(ctx context.Context, params adapter.CompletionParams) (string, adapter.Usage, error) {
	// Simulate slight processing time and respect ctx.
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return "", adapter.Usage{}, ctx.Err()
	}

	var prompt string
	for _, m := range params.Messages {
		prompt += m.Content + "\n"
	}
	token := ""
	if m := noopTokenRe.FindStringSubmatch(prompt); m != nil {
		token = m[1]
	}

	type item map[string]interface{}
	var results []item
	for _, m := range noopJobRe.FindAllStringSubmatch(prompt, -1) {
		// Union of all tier schemas, so any tier validates the payload.
		results = append(results, item{
			"job_id":                m[1],
			"skills":                []string{"go", "sql"},
			"compensation":          "not stated",
			"seniority_level":       "mid",
			"remote_policy":         "hybrid",
			"application_steps":     []string{"apply online"},
			"stress_level":          "moderate",
			"stress_indicators":     []string{},
			"red_flags":             []string{},
			"implicit_requirements": []string{},
			"prestige_score":        5.0,
			"prestige_factors":      map[string]int{"brand": 5},
			"positioning_strategy":  "lead with shipped systems",
			"cover_letter_angles":   []string{"reliability"},
		})
	}

	body, _ := json.Marshal(map[string]interface{}{
		"security_token": token,
		"results":        results,
	})
	used := len(body) / 4
	return string(body), adapter.Usage{PromptTokens: len(prompt) / 4, CompletionTokens: used, TotalTokens: len(prompt)/4 + used}, nil
}
