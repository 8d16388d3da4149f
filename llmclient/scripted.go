package llmclient

import (
	"context"
	"sync"
)

// ScriptedAdapter replays a fixed sequence of replies. It backs the "mock"
// provider for offline runs and is the standard test double for the loop.
type ScriptedAdapter struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
	next    int
}

// NewScriptedAdapter creates an adapter that returns the given replies in
// order. Once the script is exhausted, the last reply repeats.
func NewScriptedAdapter(replies ...string) *ScriptedAdapter {
	return &ScriptedAdapter{replies: replies}
}

// FailWith queues errors to be returned before any replies. Each queued error
// is consumed by one Ask call.
func (a *ScriptedAdapter) FailWith(errs ...error) *ScriptedAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs = append(a.errs, errs...)
	return a
}

// Name returns "mock".
func (a *ScriptedAdapter) Name() string { return "mock" }

// Calls returns how many times Ask has been invoked.
func (a *ScriptedAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Ask returns the next scripted reply or queued error.
func (a *ScriptedAdapter) Ask(ctx context.Context, prompt string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++

	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]
		return "", err
	}

	if len(a.replies) == 0 {
		return "", nil
	}
	idx := a.next
	if idx >= len(a.replies) {
		idx = len(a.replies) - 1
	}
	a.next++
	return a.replies[idx], nil
}
