// Package llmclient provides the model interface the agent loop talks to.
//
// The loop depends on a single method — Ask(ctx, prompt) — and never on a
// concrete provider. Concrete adapters implement ProviderAdapter:
//
//   - GollmAdapter reaches hosted providers (OpenAI, Anthropic, Ollama, ...)
//     through the gollm library.
//   - ScriptedAdapter returns canned replies for tests and offline runs.
//
// The adapter is chosen explicitly at construction time; there is no runtime
// provider sniffing. Client wraps an adapter with a retry policy so transient
// provider failures (rate limits, 5xx) are retried with exponential backoff
// before the loop ever sees an error.
package llmclient
