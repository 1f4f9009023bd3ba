package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ModelInfo describes a model.
type ModelInfo struct {
	Name        string
	Description string
	MaxTokens   int
	Supports    []string
}

// Usage for a single completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionParams is the single request contract the pipeline relies on:
// one synchronous call, no streaming, no function calling.
type CompletionParams struct {
	Model           string
	Messages        []Message
	MaxOutputTokens int
	Temperature     float64
}

// AIServiceAdapter is the port for the external LLM provider.
type AIServiceAdapter interface {
	ListModels(ctx context.Context) ([]string, error)
	GetModelInfo(model string) (ModelInfo, error)

	// CountTokens must return prompt tokens for the provided messages
	// (provider-specific counting; best-effort when exact isn't available).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)

	// Complete returns the assistant text plus usage as reported by the
	// provider. The pipeline always sets MaxOutputTokens and a low temperature.
	Complete(ctx context.Context, params CompletionParams) (string, Usage, error)
}
