package llmclient

import (
	"context"
	"fmt"

	"github.com/teilomillet/gollm"
)

// GollmAdapter reaches hosted LLM providers through the gollm library.
// One adapter instance is bound to one provider and model.
type GollmAdapter struct {
	provider string
	model    string
	llm      gollm.LLM
}

// GollmOption configures a GollmAdapter.
type GollmOption func(*gollmConfig)

type gollmConfig struct {
	model       string
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

// WithModel sets the model identifier (e.g. "gpt-4o-mini").
func WithModel(model string) GollmOption {
	return func(c *gollmConfig) {
		c.model = model
	}
}

// WithMaxTokens sets the response token budget.
func WithMaxTokens(n int) GollmOption {
	return func(c *gollmConfig) {
		c.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GollmOption {
	return func(c *gollmConfig) {
		c.temperature = t
	}
}

// WithGollmOptions appends raw gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmOption {
	return func(c *gollmConfig) {
		c.extraOpts = append(c.extraOpts, opts...)
	}
}

// defaultModels maps providers to a reasonable default model when the caller
// does not name one.
var defaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-sonnet-4-5-20250514",
	"ollama":    "llama3",
}

// NewGollmAdapter creates an adapter for the given provider. If apiKey is
// empty, gollm reads it from the provider's environment variable.
func NewGollmAdapter(provider, apiKey string, opts ...GollmOption) (*GollmAdapter, error) {
	cfg := &gollmConfig{
		maxTokens:   1024,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		model = defaultModels[provider]
		if model == "" {
			return nil, &ConfigurationError{ClientError: ClientError{
				Message: fmt.Sprintf("no default model known for provider %q; set one explicitly", provider),
			}}
		}
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // the Client retry policy owns retries
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, &ConfigurationError{ClientError: ClientError{
			Message: fmt.Sprintf("failed to create %s client", provider),
			Cause:   err,
		}}
	}

	return &GollmAdapter{
		provider: provider,
		model:    model,
		llm:      llm,
	}, nil
}

// NewGollmAdapterFromLLM wraps an existing gollm.LLM instance.
func NewGollmAdapterFromLLM(provider string, llm gollm.LLM) *GollmAdapter {
	return &GollmAdapter{provider: provider, llm: llm}
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// ModelID returns the configured model identifier.
func (a *GollmAdapter) ModelID() string {
	return a.model
}

// Ask sends the prompt and returns the raw response text. Errors are mapped
// onto the typed hierarchy so the retry policy can tell transient failures
// from permanent ones.
func (a *GollmAdapter) Ask(ctx context.Context, prompt string) (string, error) {
	text, err := a.llm.Generate(ctx, gollm.NewPrompt(prompt))
	if err != nil {
		return "", classifyError(a.provider, err)
	}
	return text, nil
}
