package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), &stdout, &stderr, args)
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(stdout, "taskagent") {
		t.Errorf("unexpected output: %q", stdout)
	}

	stdout, _, err = runCLI(t, "-o", "json", "version")
	if err != nil {
		t.Fatalf("json version failed: %v", err)
	}
	if !strings.Contains(stdout, `"version"`) {
		t.Errorf("unexpected json output: %q", stdout)
	}
}

func TestToolsCommand(t *testing.T) {
	stdout, _, err := runCLI(t, "tools")
	if err != nil {
		t.Fatalf("tools failed: %v", err)
	}
	for _, want := range []string{"run_command", "read_file", "http_request", "git_operations"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("tool %q missing from listing", want)
		}
	}
}

func TestUsageWhenNoCommand(t *testing.T) {
	stdout, _, err := runCLI(t)
	if err != nil {
		t.Fatalf("bare invocation failed: %v", err)
	}
	if !strings.Contains(stdout, "Usage:") {
		t.Errorf("usage missing: %q", stdout)
	}
}

func TestUnknownCommand(t *testing.T) {
	if _, _, err := runCLI(t, "launch"); err == nil {
		t.Error("unknown command should fail")
	}
}

func TestUnknownFlag(t *testing.T) {
	if _, _, err := runCLI(t, "-frobnicate"); err == nil {
		t.Error("unknown flag should fail")
	}
}

func TestRunRequiresObjective(t *testing.T) {
	if _, _, err := runCLI(t, "run"); err == nil {
		t.Error("run without an objective should fail")
	}
}

func TestMissingExplicitConfig(t *testing.T) {
	if _, _, err := runCLI(t, "-config", "/nonexistent/taskagent.yaml", "tools"); err == nil {
		t.Error("missing explicit config should fail")
	}
}

func TestInvalidMaxSteps(t *testing.T) {
	if _, _, err := runCLI(t, "-max-steps", "lots", "run", "x"); err == nil {
		t.Error("non-numeric -max-steps should fail")
	}
}
