// Package advisor wraps the model providers that back the
// model-assisted triage strategy. Providers return one structured
// verdict per request; there is no conversation state.
package advisor

import (
	"context"
	"fmt"
)

// Provider is a model backend able to judge a finding.
type Provider interface {
	// Verdict sends one triage prompt and returns the model's raw
	// response text, expected to be a JSON verdict.
	Verdict(ctx context.Context, prompt string) (string, error)
	ListModels(ctx context.Context) ([]string, error)
	Close() error
}

// NewProvider builds the configured backend.
func NewProvider(ctx context.Context, providerName, apiKey, modelName string) (Provider, error) {
	switch providerName {
	case "gemini":
		return NewGeminiProvider(ctx, apiKey, modelName)
	case "openai":
		return NewOpenAIProvider(apiKey, modelName), nil
	case "anthropic":
		return NewAnthropicProvider(apiKey, modelName), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}
}
