package llmclient

import (
	"context"
	"log/slog"
	"time"
)

// Model is the narrow interface the agent loop depends on. Ask may block and
// may fail; callers are expected to treat any error as a degenerate response.
type Model interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// ProviderAdapter is the interface every concrete backend implements.
type ProviderAdapter interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic", "mock").
	Name() string

	// Ask sends one prompt and returns the raw model text.
	Ask(ctx context.Context, prompt string) (string, error)
}

// Closer is implemented by adapters that hold resources.
type Closer interface {
	Close() error
}

// Client wraps a single ProviderAdapter with a retry policy. It implements
// Model and is the type the agent loop is normally constructed with.
type Client struct {
	adapter ProviderAdapter
	retry   RetryPolicy
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

// WithLogger sets the logger used for retry reporting.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client over the given adapter. The adapter is chosen by
// the caller; the client never inspects provider types at runtime.
func NewClient(adapter ProviderAdapter, opts ...ClientOption) *Client {
	c := &Client{
		adapter: adapter,
		retry:   DefaultRetryPolicy(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = func(err error, attempt int, delay time.Duration) {
			c.logger.Warn("model call failed, retrying",
				"provider", c.adapter.Name(),
				"attempt", attempt,
				"delay", delay,
				"error", err)
		}
	}
	return c
}

// Provider returns the underlying adapter's provider identifier.
func (c *Client) Provider() string {
	return c.adapter.Name()
}

// Ask sends the prompt through the adapter, retrying transient failures per
// the retry policy.
func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	return retryAsk(ctx, c.retry, func(ctx context.Context) (string, error) {
		return c.adapter.Ask(ctx, prompt)
	})
}

// Close releases resources held by the adapter, if any.
func (c *Client) Close() error {
	if closer, ok := c.adapter.(Closer); ok {
		return closer.Close()
	}
	return nil
}
