package agent

import "unicode/utf8"

const (
	// DefaultResultBudget caps tool results before they enter memory.
	DefaultResultBudget = 500

	// DefaultMemoryEntryBudget caps each memory line rendered into a prompt.
	DefaultMemoryEntryBudget = 200
)

const truncationMarker = "..."

// truncate cuts s to at most budget characters, appending a marker when
// anything was dropped. The cut never splits a UTF-8 sequence.
func truncate(s string, budget int) string {
	if budget <= 0 || len(s) <= budget {
		return s
	}
	cut := budget - len(truncationMarker)
	if cut <= 0 {
		return truncationMarker[:budget]
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}
