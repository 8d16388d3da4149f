package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultMemoryCapacity bounds the step history kept in a Store.
const DefaultMemoryCapacity = 50

// StepRecord is one completed step as kept in memory and in exports.
type StepRecord struct {
	Step      int            `json:"step"`
	Thought   string         `json:"thought"`
	Action    string         `json:"action"`
	Args      map[string]any `json:"args"`
	Result    string         `json:"result"`
	Timestamp time.Time      `json:"timestamp"`
}

// ErrorRecord is one failure note, kept outside the bounded step window.
type ErrorRecord struct {
	Step      int       `json:"step"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the serialized form of a Store, used for export and import.
type Snapshot struct {
	Steps        []StepRecord      `json:"steps"`
	Errors       []ErrorRecord     `json:"errors"`
	ToolsUsage   map[string]int    `json:"tools_usage"`
	ContextCache map[string]string `json:"context_cache"`
}

// Store is the bounded run memory: a FIFO window of step records plus error
// notes, per-tool usage counters, and a free-form context cache. It is owned
// by a single Loop and is not safe for concurrent use.
type Store struct {
	capacity     int
	steps        []StepRecord
	errors       []ErrorRecord
	toolsUsage   map[string]int
	contextCache map[string]string
	nextIndex    int
}

// NewStore creates a Store holding at most capacity step records. A
// non-positive capacity falls back to DefaultMemoryCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &Store{
		capacity:     capacity,
		toolsUsage:   make(map[string]int),
		contextCache: make(map[string]string),
		nextIndex:    1,
	}
}

// AddStep records a completed step and returns its index. Indices grow
// monotonically from 1 and are never reused, even after eviction. When the
// store is full the oldest record is dropped.
func (s *Store) AddStep(thought string, action string, args map[string]any, result string) int {
	if args == nil {
		args = map[string]any{}
	}
	rec := StepRecord{
		Step:      s.nextIndex,
		Thought:   thought,
		Action:    action,
		Args:      args,
		Result:    result,
		Timestamp: time.Now().UTC(),
	}
	s.nextIndex++

	s.steps = append(s.steps, rec)
	if len(s.steps) > s.capacity {
		s.steps = s.steps[1:]
	}
	s.toolsUsage[action]++
	return rec.Step
}

// AddError records a failure note outside the step window. Errors are not
// bounded by the step capacity; runs are bounded by the step budget anyway.
func (s *Store) AddError(step int, msg string) {
	s.errors = append(s.errors, ErrorRecord{
		Step:      step,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	})
}

// SetContext stores a free-form key/value pair that survives step eviction.
func (s *Store) SetContext(key, value string) {
	s.contextCache[key] = value
}

// GetContext returns a cached context value.
func (s *Store) GetContext(key string) (string, bool) {
	v, ok := s.contextCache[key]
	return v, ok
}

// ContextValues returns a copy of the context cache.
func (s *Store) ContextValues() map[string]string {
	out := make(map[string]string, len(s.contextCache))
	for k, v := range s.contextCache {
		out[k] = v
	}
	return out
}

// Len returns the number of step records currently held.
func (s *Store) Len() int {
	return len(s.steps)
}

// StepCount returns how many steps have ever been recorded, including
// evicted ones.
func (s *Store) StepCount() int {
	return s.nextIndex - 1
}

// Recent returns up to k most recent step records, oldest first. It copies,
// so callers cannot mutate the store through the result.
func (s *Store) Recent(k int) []StepRecord {
	if k <= 0 || len(s.steps) == 0 {
		return nil
	}
	if k > len(s.steps) {
		k = len(s.steps)
	}
	out := make([]StepRecord, k)
	copy(out, s.steps[len(s.steps)-k:])
	return out
}

// Search returns records whose thought, action, or result contains the query,
// case-insensitively, oldest first.
func (s *Store) Search(query string) []StepRecord {
	q := strings.ToLower(query)
	var out []StepRecord
	for _, rec := range s.steps {
		if strings.Contains(strings.ToLower(rec.Thought), q) ||
			strings.Contains(strings.ToLower(rec.Action), q) ||
			strings.Contains(strings.ToLower(rec.Result), q) {
			out = append(out, rec)
		}
	}
	return out
}

// UsageCounts returns a copy of the per-tool usage counters.
func (s *Store) UsageCounts() map[string]int {
	out := make(map[string]int, len(s.toolsUsage))
	for k, v := range s.toolsUsage {
		out[k] = v
	}
	return out
}

// Errors returns a copy of the recorded error notes.
func (s *Store) Errors() []ErrorRecord {
	out := make([]ErrorRecord, len(s.errors))
	copy(out, s.errors)
	return out
}

// All returns a copy of every step record currently held, oldest first.
func (s *Store) All() []StepRecord {
	out := make([]StepRecord, len(s.steps))
	copy(out, s.steps)
	return out
}

// Clear resets the store to its empty state, including the usage counters
// and the index counter.
func (s *Store) Clear() {
	s.steps = nil
	s.errors = nil
	s.toolsUsage = make(map[string]int)
	s.contextCache = make(map[string]string)
	s.nextIndex = 1
}

// Export serializes the full store state.
func (s *Store) Export() Snapshot {
	snap := Snapshot{
		Steps:        make([]StepRecord, len(s.steps)),
		Errors:       make([]ErrorRecord, len(s.errors)),
		ToolsUsage:   make(map[string]int, len(s.toolsUsage)),
		ContextCache: make(map[string]string, len(s.contextCache)),
	}
	copy(snap.Steps, s.steps)
	copy(snap.Errors, s.errors)
	for k, v := range s.toolsUsage {
		snap.ToolsUsage[k] = v
	}
	for k, v := range s.contextCache {
		snap.ContextCache[k] = v
	}
	return snap
}

// Import replaces the store state with a snapshot. The replacement is atomic:
// on any validation failure the store is left untouched. Imported steps beyond
// the capacity are trimmed to the most recent ones, and the index counter
// resumes past the highest imported index.
func (s *Store) Import(snap Snapshot) error {
	highest := 0
	for _, rec := range snap.Steps {
		if rec.Step <= 0 {
			return fmt.Errorf("import: step index %d must be positive", rec.Step)
		}
		if rec.Step <= highest {
			return fmt.Errorf("import: step indices must be strictly increasing at %d", rec.Step)
		}
		highest = rec.Step
	}

	steps := make([]StepRecord, len(snap.Steps))
	copy(steps, snap.Steps)
	if len(steps) > s.capacity {
		steps = steps[len(steps)-s.capacity:]
	}
	for i := range steps {
		if steps[i].Args == nil {
			steps[i].Args = map[string]any{}
		}
	}

	s.steps = steps
	s.errors = make([]ErrorRecord, len(snap.Errors))
	copy(s.errors, snap.Errors)
	s.toolsUsage = make(map[string]int, len(snap.ToolsUsage))
	for k, v := range snap.ToolsUsage {
		s.toolsUsage[k] = v
	}
	s.contextCache = make(map[string]string, len(snap.ContextCache))
	for k, v := range snap.ContextCache {
		s.contextCache[k] = v
	}
	s.nextIndex = highest + 1
	return nil
}

// SaveFile writes the exported snapshot as indented JSON.
func (s *Store) SaveFile(path string) error {
	data, err := json.MarshalIndent(s.Export(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	return nil
}

// LoadFile reads a snapshot file and imports it atomically.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read memory file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode memory file: %w", err)
	}
	return s.Import(snap)
}
