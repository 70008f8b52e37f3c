// Package llm abstracts the external analysis capability behind a provider
// interface so the pipeline can run against OpenAI or Gemini.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMissingAPIKey indicates no credential is configured for the selected
// provider. Callers treat this as a hard failure: no request can succeed, so
// the whole run aborts.
var ErrMissingAPIKey = errors.New("missing API key")

// Provider is the contract with the external reasoning capability.
type Provider interface {
	// Complete sends a system and user message and returns free-form text.
	Complete(ctx context.Context, system, user string) (string, error)

	// CompleteJSON is like Complete but requests a strictly-structured JSON
	// response from the model.
	CompleteJSON(ctx context.Context, system, user string) (string, error)

	// ListModels returns the model names the provider offers.
	ListModels(ctx context.Context) ([]string, error)

	Close() error
}

// New selects and constructs a provider. A missing key is reported as
// ErrMissingAPIKey regardless of provider.
func New(ctx context.Context, providerName, apiKey, modelName string, timeout time.Duration) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("provider %s: %w", providerName, ErrMissingAPIKey)
	}
	switch providerName {
	case "openai":
		return NewOpenAIProvider(apiKey, modelName, timeout), nil
	case "gemini":
		return NewGeminiProvider(ctx, apiKey, modelName)
	default:
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}
}
