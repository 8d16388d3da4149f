package agent

import (
	"strings"
	"testing"
)

func promptTools() []Descriptor {
	return []Descriptor{
		{Name: "run_command", Description: "run a shell command", Category: "System",
			Params: []Param{{Name: "command", Type: "string", Description: "command line", Required: true}}},
		{Name: "read_file", Description: "read a file", Category: "Files",
			Params: []Param{{Name: "path", Type: "string", Description: "file path", Required: true}}},
		{Name: "get_system_info", Description: "report host facts", Category: "System"},
	}
}

func TestBuildPromptBasics(t *testing.T) {
	out := BuildPrompt(PromptInput{Objective: "count the files", Tools: promptTools()})

	if !strings.Contains(out, "Objective: count the files") {
		t.Error("objective missing")
	}
	for _, want := range []string{"run_command", "read_file", "get_system_info", TerminalAction} {
		if !strings.Contains(out, want) {
			t.Errorf("tool %q missing from prompt", want)
		}
	}
	if !strings.Contains(out, `"thought"`) || !strings.Contains(out, `"action"`) || !strings.Contains(out, `"args"`) {
		t.Error("reply shape instructions missing")
	}
}

func TestBuildPromptCategoryGrouping(t *testing.T) {
	out := BuildPrompt(PromptInput{Objective: "o", Tools: promptTools()})

	sys := strings.Index(out, "System:")
	files := strings.Index(out, "Files:")
	if sys < 0 || files < 0 {
		t.Fatal("category headings missing")
	}
	// First-appearance order: System before Files.
	if sys > files {
		t.Error("categories out of first-appearance order")
	}
	// Both System tools must sit under the System heading, before Files.
	info := strings.Index(out, "get_system_info")
	if info < sys || info > files {
		t.Error("tool not grouped under its category")
	}
}

func TestBuildPromptMemoryMostRecentLast(t *testing.T) {
	recent := []StepRecord{
		{Step: 4, Action: "read_file", Result: "older"},
		{Step: 5, Action: "run_command", Result: "newest"},
	}
	out := BuildPrompt(PromptInput{Objective: "o", Tools: promptTools(), Recent: recent})

	older := strings.Index(out, "4. read_file -> older")
	newest := strings.Index(out, "5. run_command -> newest")
	if older < 0 || newest < 0 {
		t.Fatalf("memory lines missing:\n%s", out)
	}
	if older > newest {
		t.Error("memory should render most recent last")
	}
}

func TestBuildPromptMemoryTruncation(t *testing.T) {
	long := strings.Repeat("x", 1000)
	recent := []StepRecord{{Step: 1, Action: "read_file", Result: long}}
	out := BuildPrompt(PromptInput{Objective: "o", Tools: promptTools(), Recent: recent})

	if strings.Contains(out, long) {
		t.Error("memory entry not truncated")
	}
	if !strings.Contains(out, "xxx...") {
		t.Error("truncation marker missing")
	}
}

func TestBuildPromptContextRendering(t *testing.T) {
	withCtx := BuildPrompt(PromptInput{
		Objective: "o",
		Tools:     promptTools(),
		Context:   map[string]string{"workdir": "/srv/app", "branch": "main"},
	})
	if !strings.Contains(withCtx, "- workdir: /srv/app") || !strings.Contains(withCtx, "- branch: main") {
		t.Error("context entries missing")
	}

	without := BuildPrompt(PromptInput{Objective: "o", Tools: promptTools()})
	if strings.Contains(without, "Context:") {
		t.Error("empty context must render nothing")
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	in := PromptInput{
		Objective: "o",
		Tools:     promptTools(),
		Recent:    []StepRecord{{Step: 1, Action: "x", Result: "r"}},
		Context:   map[string]string{"b": "2", "a": "1", "c": "3"},
	}
	first := BuildPrompt(in)
	for i := 0; i < 5; i++ {
		if got := BuildPrompt(in); got != first {
			t.Fatal("prompt not deterministic across calls")
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		budget int
		want   string
	}{
		{"short", 500, "short"},
		{"exactly", 7, "exactly"},
		{"abcdefghij", 8, "abcde..."},
		{"unchanged", 0, "unchanged"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.budget); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.budget, got, tt.want)
		}
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	// 10 three-byte runes; a naive byte cut at 20 would split one.
	in := strings.Repeat("日", 10)
	got := truncate(in, 20)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("marker missing: %q", got)
	}
	for _, r := range got {
		if r == '�' {
			t.Fatalf("truncation split a rune: %q", got)
		}
	}
}
