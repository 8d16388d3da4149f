package agent

import "strings"

// TerminalAction is the reserved action name that ends a run successfully.
// It is never registered as a tool.
const TerminalAction = "finish"

// NoThoughtFound is the placeholder thought used when no rationale could be
// recovered from the model reply.
const NoThoughtFound = "no clear thought found"

// Action is the structured instruction decoded from one model turn.
// The wire shape is a JSON object with keys "thought", "action", and "args".
type Action struct {
	Thought string         `json:"thought"`
	Tool    string         `json:"action"`
	Args    map[string]any `json:"args"`
}

// IsTerminal reports whether the action ends the run.
func (a Action) IsTerminal() bool {
	return strings.EqualFold(strings.TrimSpace(a.Tool), TerminalAction)
}

// terminalAction returns a synthetic finish action, used when failing open.
func terminalAction(thought string) Action {
	return Action{
		Thought: thought,
		Tool:    TerminalAction,
		Args:    map[string]any{},
	}
}
