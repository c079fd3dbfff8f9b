// Package llm abstracts chat-completion providers behind a single
// Client interface. Callers select a backend with a "provider/model"
// string and never touch the vendor SDKs directly.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Chat roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Supported provider names, the left half of a model spec.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string
	Content string
}

// Client produces a completion for an ordered list of messages.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL string
}

// WithBaseURL points the client at an alternate API endpoint, mainly
// for tests against a local server.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// ParseModel splits a "provider/model_name" spec into its halves.
func ParseModel(model string) (provider, modelName string, err error) {
	provider, modelName, ok := strings.Cut(model, "/")
	if !ok || provider == "" || modelName == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return provider, modelName, nil
}

// NewClient builds a client for the named provider. The api key comes
// from the caller so each provider can be configured independently.
func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case ProviderOpenAI:
		return newOpenAIClient(apiKey, model, o)
	case ProviderAnthropic:
		return newAnthropicClient(apiKey, model, o)
	case ProviderGemini:
		return newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, anthropic, gemini", provider)
	}
}
