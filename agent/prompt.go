package agent

import (
	"fmt"
	"sort"
	"strings"
)

// PromptInput is everything BuildPrompt needs to render one model turn.
type PromptInput struct {
	Objective string
	Tools     []Descriptor
	Recent    []StepRecord
	Context   map[string]string

	// MemoryEntryBudget caps each rendered memory line; zero means
	// DefaultMemoryEntryBudget.
	MemoryEntryBudget int
}

// BuildPrompt renders the next prompt from the objective, the tool catalog,
// recent memory, and optional context. It is a pure function of its input:
// the same PromptInput always yields the same string.
//
// Tools render grouped by category in first-appearance order, memory renders
// most recent last so the freshest step sits closest to the reply, and absent
// context keys produce no output at all.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString("You are an autonomous agent working toward an objective.\n\n")
	fmt.Fprintf(&b, "Objective: %s\n", in.Objective)

	if len(in.Context) > 0 {
		b.WriteString("\nContext:\n")
		keys := make([]string, 0, len(in.Context))
		for k := range in.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, in.Context[k])
		}
	}

	b.WriteString("\nAvailable tools:\n")
	writeToolCatalog(&b, in.Tools)
	fmt.Fprintf(&b, "- %s: end the run when the objective is complete or cannot proceed\n", TerminalAction)

	if len(in.Recent) > 0 {
		budget := in.MemoryEntryBudget
		if budget <= 0 {
			budget = DefaultMemoryEntryBudget
		}
		b.WriteString("\nRecent steps (oldest first):\n")
		for _, rec := range in.Recent {
			fmt.Fprintf(&b, "%d. %s -> %s\n", rec.Step, rec.Action, truncate(rec.Result, budget))
		}
	}

	b.WriteString("\nReply with a single JSON object:\n")
	b.WriteString(`{"thought": "<your reasoning>", "action": "<tool name>", "args": {<tool arguments>}}`)
	b.WriteString("\n")
	return b.String()
}

// writeToolCatalog renders descriptors grouped by category. Categories appear
// in first-appearance order; tools keep registration order within a category.
func writeToolCatalog(b *strings.Builder, tools []Descriptor) {
	var categories []string
	grouped := make(map[string][]Descriptor)
	for _, d := range tools {
		cat := d.Category
		if cat == "" {
			cat = "General"
		}
		if _, seen := grouped[cat]; !seen {
			categories = append(categories, cat)
		}
		grouped[cat] = append(grouped[cat], d)
	}

	for _, cat := range categories {
		fmt.Fprintf(b, "\n%s:\n", cat)
		for _, d := range grouped[cat] {
			fmt.Fprintf(b, "- %s: %s\n", d.Name, d.Description)
			for _, p := range d.Params {
				req := "optional"
				if p.Required {
					req = "required"
				}
				fmt.Fprintf(b, "    %s (%s, %s): %s\n", p.Name, p.Type, req, p.Description)
			}
		}
	}
}
