package llmclient

import (
	"context"
	"testing"
)

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:        maxRetries,
		BaseDelay:         0.001,
		MaxDelay:          0.001,
		BackoffMultiplier: 1,
	}
}

func TestClientAsk(t *testing.T) {
	adapter := NewScriptedAdapter("first reply", "second reply")
	client := NewClient(adapter, WithRetryPolicy(fastPolicy(0)))

	got, err := client.Ask(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "first reply" {
		t.Errorf("expected %q, got %q", "first reply", got)
	}

	got, _ = client.Ask(context.Background(), "again")
	if got != "second reply" {
		t.Errorf("expected %q, got %q", "second reply", got)
	}
}

func TestClientAskExhaustedScriptRepeatsLast(t *testing.T) {
	adapter := NewScriptedAdapter("only")
	client := NewClient(adapter, WithRetryPolicy(fastPolicy(0)))

	for i := 0; i < 3; i++ {
		got, err := client.Ask(context.Background(), "x")
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if got != "only" {
			t.Errorf("call %d: expected %q, got %q", i, "only", got)
		}
	}
}

func TestClientRetriesTransientErrors(t *testing.T) {
	serverErr := &ServerError{ProviderError: ProviderError{
		ClientError: ClientError{Message: "internal server error"},
		Retryable:   true,
	}}
	adapter := NewScriptedAdapter("recovered").FailWith(serverErr, serverErr)
	client := NewClient(adapter, WithRetryPolicy(fastPolicy(3)))

	got, err := client.Ask(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if got != "recovered" {
		t.Errorf("expected %q, got %q", "recovered", got)
	}
	if adapter.Calls() != 3 {
		t.Errorf("expected 3 calls (1 initial + 2 retries), got %d", adapter.Calls())
	}
}

func TestClientDoesNotRetryPermanentErrors(t *testing.T) {
	authErr := &AuthenticationError{ProviderError: ProviderError{
		ClientError: ClientError{Message: "invalid api key"},
	}}
	adapter := NewScriptedAdapter("never seen").FailWith(authErr)
	client := NewClient(adapter, WithRetryPolicy(fastPolicy(5)))

	_, err := client.Ask(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if adapter.Calls() != 1 {
		t.Errorf("expected 1 call (no retries), got %d", adapter.Calls())
	}
}

func TestClientRetriesExhausted(t *testing.T) {
	serverErr := &ServerError{ProviderError: ProviderError{
		ClientError: ClientError{Message: "still broken"},
		Retryable:   true,
	}}
	adapter := NewScriptedAdapter().FailWith(serverErr, serverErr, serverErr, serverErr)
	client := NewClient(adapter, WithRetryPolicy(fastPolicy(2)))

	_, err := client.Ask(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if adapter.Calls() != 3 { // 1 initial + 2 retries
		t.Errorf("expected 3 calls, got %d", adapter.Calls())
	}
}

func TestClientProvider(t *testing.T) {
	client := NewClient(NewScriptedAdapter())
	if client.Provider() != "mock" {
		t.Errorf("expected provider %q, got %q", "mock", client.Provider())
	}
}
