// File: internal/infra/adapters/ai/openai_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"job-analysis-pipeline/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements adapter.AIServiceAdapter with the official SDK.
type OpenAIAdapter struct {
	client       openai.Client
	defaultModel string
}

func NewOpenAIAdapter(apiKey, defaultModel string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &OpenAIAdapter{
		client:       openai.NewClient(option.WithAPIKey(apiKey)),
		defaultModel: defaultModel,
	}, nil
}

func (o *OpenAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	page, err := o.client.Models.List(ctx)
	if err != nil {
		return []string{o.defaultModel}, nil
	}
	out := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		out = append(out, m.ID)
	}
	return out, nil
}

func (o *OpenAIAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	if model == "" {
		model = o.defaultModel
	}
	return adapter.ModelInfo{
		Name:        model,
		Description: "OpenAI chat completions model",
		Supports:    []string{"text"},
	}, nil
}

// CountTokens counts locally with tiktoken; the provider does not expose a
// counting endpoint for chat completions.
func (o *OpenAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	if model == "" {
		model = o.defaultModel
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Unknown model id; fall back to the encoding current GPT-4o uses.
		enc, err = tiktoken.GetEncoding("o200k_base")
		if err != nil {
			return 0, fmt.Errorf("tiktoken: %w", err)
		}
	}
	total := 0
	for _, m := range messages {
		// ~4 tokens of per-message chat framing, per OpenAI's guidance.
		total += 4 + len(enc.Encode(m.Content, nil, nil))
	}
	return total, nil
}

func (o *OpenAIAdapter) Complete(ctx context.Context, params adapter.CompletionParams) (string, adapter.Usage, error) {
	model := params.Model
	if model == "" {
		model = o.defaultModel
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(params.Messages))
	for _, m := range params.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	req := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if params.MaxOutputTokens > 0 {
		req.MaxTokens = openai.Int(int64(params.MaxOutputTokens))
	}
	req.Temperature = openai.Float(params.Temperature)

	resp, err := o.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", adapter.Usage{}, errors.New("no choice content")
	}
	usage := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return resp.Choices[0].Message.Content, usage, nil
}
