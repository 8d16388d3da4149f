package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle phase of a Loop.
type State string

const (
	StateInit        State = "init"
	StateStepping    State = "stepping"
	StateTerminated  State = "terminated"
	StateStepLimit   State = "step_limit_reached"
	StateInterrupted State = "interrupted"
	StateFatal       State = "fatal"
)

// Model is the slice of the LLM client the loop needs. llmclient.Client
// satisfies it.
type Model interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Config tunes a Loop. The zero value for any field falls back to its
// default, except StepPause where zero means no pause.
type Config struct {
	// MaxSteps bounds the run; default 15.
	MaxSteps int

	// MemoryWindow is how many recent steps render into each prompt;
	// default 3.
	MemoryWindow int

	// ResultBudget caps tool results before they enter memory; default 500.
	ResultBudget int

	// StepPause is the delay between consecutive steps.
	StepPause time.Duration

	// LoopDetectWindow is how many trailing steps are scanned for repeating
	// action patterns; default 6, negative disables detection.
	LoopDetectWindow int

	// Context is static key/value context rendered into every prompt.
	// Values cached in the memory store during the run shadow these.
	Context map[string]string

	// EventBuffer sizes the event channel; default 256.
	EventBuffer int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the stock configuration, including the half-second
// pause between steps.
func DefaultConfig() *Config {
	return &Config{
		MaxSteps:     15,
		MemoryWindow: 3,
		ResultBudget: DefaultResultBudget,
		StepPause:    500 * time.Millisecond,
	}
}

func (c *Config) normalize() {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 15
	}
	if c.MemoryWindow <= 0 {
		c.MemoryWindow = 3
	}
	if c.ResultBudget <= 0 {
		c.ResultBudget = DefaultResultBudget
	}
	if c.StepPause < 0 {
		c.StepPause = 0
	}
	if c.LoopDetectWindow == 0 {
		c.LoopDetectWindow = 6
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Summary is the final report of a run.
type Summary struct {
	RunID        string         `json:"run_id"`
	Objective    string         `json:"objective"`
	State        State          `json:"state"`
	Steps        int            `json:"steps"`
	DurationMs   int64          `json:"duration_ms"`
	FinalThought string         `json:"final_thought,omitempty"`
	ToolsUsage   map[string]int `json:"tools_usage"`
	Errors       []ErrorRecord  `json:"errors,omitempty"`
}

// Loop drives one run: prompt, ask, extract, validate, dispatch, record,
// until a terminal action, the step budget, or cancellation. A Loop is
// single-use; create a new one per run.
type Loop struct {
	objective string
	model     Model
	registry  *Registry
	store     *Store
	cfg       *Config
	logger    *slog.Logger
	emitter   *EventEmitter
	runID     string
	state     State
	ran       bool
}

// NewLoop creates a run over the given objective. A nil store gets a fresh
// Store with the default capacity, and a nil cfg means DefaultConfig.
func NewLoop(objective string, model Model, registry *Registry, store *Store, cfg *Config) *Loop {
	if store == nil {
		store = NewStore(DefaultMemoryCapacity)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.normalize()

	runID := uuid.NewString()
	return &Loop{
		objective: objective,
		model:     model,
		registry:  registry,
		store:     store,
		cfg:       cfg,
		logger:    cfg.Logger.With("run_id", runID),
		emitter:   NewEventEmitter(runID, cfg.EventBuffer),
		runID:     runID,
		state:     StateInit,
	}
}

// RunID returns the unique identifier of this run.
func (l *Loop) RunID() string { return l.runID }

// State returns the current lifecycle phase.
func (l *Loop) State() State { return l.state }

// Store returns the memory store backing this run.
func (l *Loop) Store() *Store { return l.store }

// Events returns the run event channel. It is closed when Run returns.
func (l *Loop) Events() <-chan RunEvent { return l.emitter.Events() }

// Run executes the loop until a terminal action, the step budget, or
// cancellation. It always returns a Summary; the error is non-nil only for
// cancellation or a fatal internal failure. Model errors do not fail the
// run: the loop fails open by recording a synthetic terminal action.
func (l *Loop) Run(ctx context.Context) (summary *Summary, err error) {
	if l.ran {
		return nil, errors.New("loop already ran")
	}
	l.ran = true

	started := time.Now()
	l.state = StateStepping
	l.logger.Info("run started", "objective", l.objective, "max_steps", l.cfg.MaxSteps)
	l.emitter.Emit(EventRunStart, 0, map[string]any{"objective": l.objective})

	defer func() {
		summary = l.buildSummary(started)
		l.logger.Info("run ended", "state", string(l.state), "steps", summary.Steps)
		l.emitter.Emit(EventRunEnd, summary.Steps, map[string]any{"state": string(l.state)})
		l.emitter.Close()
	}()

	for step := 1; step <= l.cfg.MaxSteps; step++ {
		// Cancellation is checked between steps only; a step in flight
		// completes before the run winds down.
		if ctx.Err() != nil {
			l.state = StateInterrupted
			return nil, ctx.Err()
		}
		if step > 1 && l.cfg.StepPause > 0 {
			if !l.pause(ctx) {
				l.state = StateInterrupted
				return nil, ctx.Err()
			}
		}

		done, stepErr := l.runStep(ctx, step)
		if stepErr != nil {
			if ctx.Err() != nil {
				l.state = StateInterrupted
				return nil, ctx.Err()
			}
			l.state = StateFatal
			return nil, stepErr
		}
		if done {
			l.state = StateTerminated
			return nil, nil
		}
	}

	l.state = StateStepLimit
	l.logger.Warn("step budget exhausted", "max_steps", l.cfg.MaxSteps)
	return nil, nil
}

func (l *Loop) pause(ctx context.Context) bool {
	timer := time.NewTimer(l.cfg.StepPause)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// runStep performs one full iteration. It reports done=true when the run
// should end gracefully and returns an error only for fatal failures.
func (l *Loop) runStep(ctx context.Context, step int) (bool, error) {
	prompt := BuildPrompt(PromptInput{
		Objective:         l.objective,
		Tools:             l.registry.DescribeAll(),
		Recent:            l.store.Recent(l.cfg.MemoryWindow),
		Context:           l.promptContext(),
		MemoryEntryBudget: DefaultMemoryEntryBudget,
	})
	l.emitter.Emit(EventStepStart, step, nil)
	l.logger.Debug("prompting model", "step", step, "prompt_chars", len(prompt))

	reply, askErr := l.model.Ask(ctx, prompt)
	if askErr != nil {
		if ctx.Err() != nil {
			return false, askErr
		}
		// Fail open: a dead model ends the run, it does not crash it.
		l.logger.Error("model request failed", "step", step, "error", askErr)
		l.store.AddError(step, askErr.Error())
		l.emitter.Emit(EventError, step, map[string]any{"error": askErr.Error()})
		act := terminalAction("model request failed: " + askErr.Error())
		l.store.AddStep(act.Thought, act.Tool, act.Args, "run ended after model failure")
		return true, nil
	}
	l.logger.Debug("model replied", "step", step, "reply", reply)
	l.emitter.Emit(EventModelResponse, step, map[string]any{"chars": len(reply)})

	done, perr := l.processReply(step, reply, false)
	if perr != nil {
		// One degraded retry per step, then give up on the run.
		l.logger.Warn("step processing failed, retrying with degraded extraction", "step", step, "error", perr)
		l.store.AddError(step, perr.Error())
		done, perr = l.processReply(step, reply, true)
		if perr != nil {
			return false, fmt.Errorf("step %d failed twice: %w", step, perr)
		}
	}
	return done, nil
}

// processReply extracts and handles one model reply, converting panics into
// errors so the caller can retry once with the degraded extractor.
func (l *Loop) processReply(step int, reply string, degraded bool) (done bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reply processing panicked: %v", rec)
		}
	}()

	var ex Extraction
	if degraded {
		ex = Extraction{Action: regexExtract(reply), Stage: StageRegex, Degraded: true}
	} else {
		ex = Extract(reply)
	}
	return l.handleAction(step, ex), nil
}

// handleAction validates, dispatches, and records one extracted action.
// It reports whether the run should end.
func (l *Loop) handleAction(step int, ex Extraction) bool {
	act := ex.Action

	if ex.Stage != StageStrict || ex.Cleaned || ex.ToolDefaulted {
		l.logger.Warn("reply needed lenient parsing",
			"step", step, "stage", string(ex.Stage),
			"cleaned", ex.Cleaned, "tool_defaulted", ex.ToolDefaulted)
		l.emitter.Emit(EventParseFallback, step, map[string]any{
			"stage":          string(ex.Stage),
			"cleaned":        ex.Cleaned,
			"tool_defaulted": ex.ToolDefaulted,
		})
	}

	l.logger.Info("action planned", "step", step, "action", act.Tool, "thought", act.Thought)
	l.emitter.Emit(EventActionPlanned, step, map[string]any{"action": act.Tool, "stage": string(ex.Stage)})

	if act.IsTerminal() {
		l.store.AddStep(act.Thought, TerminalAction, act.Args, "run complete")
		return true
	}

	var result string
	if verr := l.registry.Validate(act.Tool, act.Args); verr != nil {
		l.store.AddError(step, verr.Error())
		l.emitter.Emit(EventError, step, map[string]any{"error": verr.Error()})
		if errors.Is(verr, ErrUnknownTool) {
			// Invoke produces the "Unknown tool" listing fed back to the model.
			result = l.registry.Invoke(act.Tool, act.Args)
		} else {
			result = "Invalid arguments: " + verr.Error()
		}
	} else {
		result = l.registry.Invoke(act.Tool, act.Args)
	}

	result = truncate(result, l.cfg.ResultBudget)
	idx := l.store.AddStep(act.Thought, act.Tool, act.Args, result)
	l.logger.Info("tool result", "step", idx, "action", act.Tool, "result_chars", len(result))
	l.emitter.Emit(EventToolResult, idx, map[string]any{"action": act.Tool, "result": result})

	if w := l.cfg.LoopDetectWindow; w > 0 && DetectLoop(l.store.Recent(w), w) {
		l.logger.Warn("repeating action pattern detected", "step", idx, "window", w)
		l.emitter.Emit(EventLoopDetected, idx, map[string]any{"window": w})
		l.store.SetContext("loop_warning",
			"recent actions are repeating without progress; change approach or finish")
	}
	return false
}

// promptContext merges static config context with values cached in memory
// during the run; cached values win.
func (l *Loop) promptContext() map[string]string {
	cached := l.store.ContextValues()
	if len(l.cfg.Context) == 0 {
		return cached
	}
	merged := make(map[string]string, len(l.cfg.Context)+len(cached))
	for k, v := range l.cfg.Context {
		merged[k] = v
	}
	for k, v := range cached {
		merged[k] = v
	}
	return merged
}

func (l *Loop) buildSummary(started time.Time) *Summary {
	s := &Summary{
		RunID:      l.runID,
		Objective:  l.objective,
		State:      l.state,
		Steps:      l.store.StepCount(),
		DurationMs: time.Since(started).Milliseconds(),
		ToolsUsage: l.store.UsageCounts(),
		Errors:     l.store.Errors(),
	}
	if recent := l.store.Recent(1); len(recent) == 1 {
		s.FinalThought = recent[0].Thought
	}
	return s
}
