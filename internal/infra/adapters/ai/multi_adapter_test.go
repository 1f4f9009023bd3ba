package ai

import (
	"context"
	"strings"
	"testing"

	"job-analysis-pipeline/internal/domain/ports/adapter"
)

type stubAdapter struct {
	name  string
	calls int
}

func (s *stubAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{s.name + "-model"}, nil
}

func (s *stubAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{Name: model, MaxTokens: 8192}, nil
}

func (s *stubAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return 0, nil
}

func (s *stubAdapter) Complete(ctx context.Context, params adapter.CompletionParams) (string, adapter.Usage, error) {
	s.calls++
	return s.name, adapter.Usage{}, nil
}

func TestMultiAIAdapter_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("routes by model prefix", func(t *testing.T) {
		openai := &stubAdapter{name: "openai"}
		gemini := &stubAdapter{name: "gemini"}
		m := NewMultiAIAdapter("openai", map[string]adapter.AIServiceAdapter{
			"openai": openai,
			"gemini": gemini,
		}, nil)

		if got, _, _ := m.Complete(ctx, adapter.CompletionParams{Model: "gemini-2.0-flash"}); got != "gemini" {
			t.Errorf("gemini model routed to %q", got)
		}
		if got, _, _ := m.Complete(ctx, adapter.CompletionParams{Model: "gpt-4o"}); got != "openai" {
			t.Errorf("gpt model routed to %q", got)
		}
	})

	t.Run("explicit mapping wins over prefix", func(t *testing.T) {
		openai := &stubAdapter{name: "openai"}
		gemini := &stubAdapter{name: "gemini"}
		m := NewMultiAIAdapter("openai", map[string]adapter.AIServiceAdapter{
			"openai": openai,
			"gemini": gemini,
		}, map[string]string{"gpt-4o": "gemini"})

		if got, _, _ := m.Complete(ctx, adapter.CompletionParams{Model: "gpt-4o"}); got != "gemini" {
			t.Errorf("mapped model routed to %q", got)
		}
	})

	t.Run("no resolvable provider is an error", func(t *testing.T) {
		m := NewMultiAIAdapter("openai", map[string]adapter.AIServiceAdapter{}, nil)

		_, _, err := m.Complete(ctx, adapter.CompletionParams{Model: "gpt-4o"})
		if err == nil {
			t.Fatal("expected an error when no provider is configured")
		}
		if !strings.Contains(err.Error(), "gpt-4o") {
			t.Errorf("error should name the model: %v", err)
		}
	})
}
