package agent

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreAddStepIndices(t *testing.T) {
	s := NewStore(10)

	for i := 1; i <= 3; i++ {
		idx := s.AddStep("t", "run_command", nil, "ok")
		if idx != i {
			t.Errorf("expected index %d, got %d", i, idx)
		}
	}
	if s.Len() != 3 {
		t.Errorf("expected 3 records, got %d", s.Len())
	}
	if s.StepCount() != 3 {
		t.Errorf("expected step count 3, got %d", s.StepCount())
	}
}

func TestStoreFIFOEviction(t *testing.T) {
	s := NewStore(3)

	for i := 0; i < 5; i++ {
		s.AddStep(fmt.Sprintf("thought %d", i+1), "x", nil, "r")
	}

	if s.Len() != 3 {
		t.Fatalf("expected 3 records after eviction, got %d", s.Len())
	}
	recent := s.Recent(3)
	// Oldest two evicted; indices keep growing.
	if recent[0].Step != 3 || recent[2].Step != 5 {
		t.Errorf("wrong window: first=%d last=%d", recent[0].Step, recent[2].Step)
	}
	if s.StepCount() != 5 {
		t.Errorf("expected lifetime count 5, got %d", s.StepCount())
	}
}

func TestStoreRecent(t *testing.T) {
	s := NewStore(10)
	for i := 0; i < 4; i++ {
		s.AddStep(fmt.Sprintf("t%d", i+1), "x", nil, "r")
	}

	recent := s.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].Step != 3 || recent[1].Step != 4 {
		t.Errorf("expected steps 3,4 oldest first, got %d,%d", recent[0].Step, recent[1].Step)
	}

	if got := s.Recent(100); len(got) != 4 {
		t.Errorf("oversized window should clamp, got %d", len(got))
	}
	if got := s.Recent(0); got != nil {
		t.Errorf("zero window should be nil, got %v", got)
	}
}

func TestStoreSearch(t *testing.T) {
	s := NewStore(10)
	s.AddStep("list the repo", "list_directory", nil, "a.go b.go")
	s.AddStep("read A", "read_file", nil, "package main")
	s.AddStep("run build", "run_command", nil, "BUILD OK")

	if got := s.Search("build"); len(got) != 2 {
		t.Errorf("case-insensitive search expected 2 hits, got %d", len(got))
	}
	if got := s.Search("read_file"); len(got) != 1 || got[0].Step != 2 {
		t.Errorf("action search failed: %v", got)
	}
	if got := s.Search("nothing"); len(got) != 0 {
		t.Errorf("expected no hits, got %v", got)
	}
}

func TestStoreUsageAndErrors(t *testing.T) {
	s := NewStore(10)
	s.AddStep("t", "read_file", nil, "r")
	s.AddStep("t", "read_file", nil, "r")
	s.AddStep("t", "run_command", nil, "r")
	s.AddError(2, "step 2 went sideways")

	usage := s.UsageCounts()
	if usage["read_file"] != 2 || usage["run_command"] != 1 {
		t.Errorf("wrong usage counts: %v", usage)
	}
	if errs := s.Errors(); len(errs) != 1 || errs[0].Message != "step 2 went sideways" || errs[0].Step != 2 {
		t.Errorf("wrong errors: %v", errs)
	}
}

func TestStoreAllAndClear(t *testing.T) {
	s := NewStore(10)
	s.AddStep("a", "x", nil, "r")
	s.AddStep("b", "y", nil, "r")
	s.AddError(1, "hiccup")
	s.SetContext("k", "v")

	all := s.All()
	if len(all) != 2 || all[0].Thought != "a" || all[1].Thought != "b" {
		t.Errorf("wrong records: %v", all)
	}
	all[0].Thought = "mutated"
	if s.Recent(2)[0].Thought != "a" {
		t.Error("All must return a copy")
	}

	s.Clear()
	if s.Len() != 0 || s.StepCount() != 0 || len(s.Errors()) != 0 {
		t.Error("clear left state behind")
	}
	if _, ok := s.GetContext("k"); ok {
		t.Error("clear left context behind")
	}
	if idx := s.AddStep("fresh", "x", nil, "r"); idx != 1 {
		t.Errorf("indices should restart at 1, got %d", idx)
	}
}

func TestStoreExportImportRoundTrip(t *testing.T) {
	s := NewStore(10)
	s.AddStep("first", "read_file", map[string]any{"path": "a"}, "data")
	s.AddStep("second", "run_command", nil, "ok")
	s.AddError(2, "oops")
	s.SetContext("cwd", "/tmp")

	snap := s.Export()

	restored := NewStore(10)
	if err := restored.Import(snap); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if restored.Len() != 2 {
		t.Errorf("expected 2 records, got %d", restored.Len())
	}
	if v, ok := restored.GetContext("cwd"); !ok || v != "/tmp" {
		t.Errorf("context cache lost: %q %v", v, ok)
	}
	// Indices resume past the highest imported one.
	if idx := restored.AddStep("third", "x", nil, "r"); idx != 3 {
		t.Errorf("expected resumed index 3, got %d", idx)
	}
}

func TestStoreImportAtomicOnFailure(t *testing.T) {
	s := NewStore(10)
	s.AddStep("keep me", "x", nil, "r")

	bad := Snapshot{Steps: []StepRecord{{Step: 2}, {Step: 1}}}
	if err := s.Import(bad); err == nil {
		t.Fatal("non-increasing indices should be rejected")
	}

	if s.Len() != 1 || s.Recent(1)[0].Thought != "keep me" {
		t.Error("failed import must leave the store untouched")
	}
}

func TestStoreImportTrimsToCapacity(t *testing.T) {
	snap := Snapshot{}
	for i := 1; i <= 5; i++ {
		snap.Steps = append(snap.Steps, StepRecord{Step: i, Action: "x"})
	}

	s := NewStore(3)
	if err := s.Import(snap); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	recent := s.Recent(3)
	if len(recent) != 3 || recent[0].Step != 3 {
		t.Errorf("expected trimmed window starting at 3, got %v", recent)
	}
}

func TestStoreSnapshotJSONKeys(t *testing.T) {
	s := NewStore(10)
	s.AddStep("t", "x", map[string]any{"k": "v"}, "r")

	data, err := json.Marshal(s.Export())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, key := range []string{`"steps"`, `"errors"`, `"tools_usage"`, `"context_cache"`, `"step"`, `"thought"`, `"action"`, `"args"`, `"result"`, `"timestamp"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("snapshot missing key %s: %s", key, data)
		}
	}
}

func TestStoreSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")

	s := NewStore(10)
	s.AddStep("persisted", "read_file", map[string]any{"path": "a"}, "data")
	s.SetContext("objective", "demo")
	if err := s.SaveFile(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded := NewStore(10)
	if err := loaded.LoadFile(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Len() != 1 || loaded.Recent(1)[0].Thought != "persisted" {
		t.Errorf("round trip lost steps: %v", loaded.Recent(1))
	}
	if v, _ := loaded.GetContext("objective"); v != "demo" {
		t.Errorf("round trip lost context: %q", v)
	}
}

func TestStoreLoadFileMissing(t *testing.T) {
	s := NewStore(10)
	if err := s.LoadFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
