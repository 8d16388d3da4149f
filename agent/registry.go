package agent

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ErrDuplicateTool is returned when registering a name that is already taken.
// Duplicate registration is rejected rather than silently overwritten.
var ErrDuplicateTool = errors.New("tool already registered")

// ErrUnknownTool is returned when looking up or validating a name that has
// no registered descriptor.
var ErrUnknownTool = errors.New("unknown tool")

// MissingParameterError reports a required parameter absent from an argument
// mapping.
type MissingParameterError struct {
	Tool  string
	Param string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("tool %q: missing required parameter %q", e.Tool, e.Param)
}

// Param describes one tool parameter. Params are ordered, so descriptors keep
// them as a slice rather than a map.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "string", "integer", "boolean", "object"
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}

// Descriptor is the serializable metadata for one tool. It is immutable once
// registered and owned exclusively by the Registry.
type Descriptor struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category,omitempty"`
	Params      []Param `json:"parameters"`
}

// Handler executes a tool. Arguments come from model-parsed text and are not
// guaranteed type-correct; handlers must validate internally.
type Handler interface {
	Execute(args map[string]any) (string, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(args map[string]any) (string, error)

func (f HandlerFunc) Execute(args map[string]any) (string, error) {
	return f(args)
}

type registeredTool struct {
	descriptor Descriptor
	handler    Handler
}

// Registry holds named tool descriptors and their handlers. Descriptors are
// registered once at construction and never mutated afterwards; lookups are
// safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	tools  map[string]*registeredTool
	logger *slog.Logger
}

// NewRegistry creates an empty Registry. A nil logger means slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*registeredTool),
		logger: logger,
	}
}

// Register adds a tool. The terminal keyword is reserved, and duplicate names
// are rejected with ErrDuplicateTool.
func (r *Registry) Register(d Descriptor, h Handler) error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("tool name must not be empty")
	}
	if strings.EqualFold(d.Name, TerminalAction) {
		return fmt.Errorf("tool name %q is reserved", TerminalAction)
	}
	if h == nil {
		return fmt.Errorf("tool %q: handler must not be nil", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, d.Name)
	}
	r.order = append(r.order, d.Name)
	r.tools[d.Name] = &registeredTool{descriptor: d, handler: h}
	return nil
}

// Lookup returns the handler for a name, or false if not registered.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return t.handler, true
}

// Describe returns the descriptor for a name.
func (r *Registry) Describe(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return Descriptor{}, false
	}
	return t.descriptor, true
}

// DescribeAll returns all descriptors in registration order, for prompt
// rendering and tool listings.
func (r *Registry) DescribeAll() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		descs = append(descs, r.tools[name].descriptor)
	}
	return descs
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Validate checks an argument mapping against a tool's descriptor. Every
// required parameter must be present; value types are checked only
// advisorily (mismatches are logged, not rejected) since the arguments come
// from free-text model output.
func (r *Registry) Validate(name string, args map[string]any) error {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	for _, p := range t.descriptor.Params {
		v, present := args[p.Name]
		if !present {
			if p.Required {
				return &MissingParameterError{Tool: name, Param: p.Name}
			}
			continue
		}
		if !typeMatches(p.Type, v) {
			r.logger.Debug("tool argument type mismatch",
				"tool", name,
				"param", p.Name,
				"expected", p.Type,
				"got", fmt.Sprintf("%T", v))
		}
	}
	return nil
}

// typeMatches is a best-effort check of a JSON value against a type tag.
func typeMatches(typeTag string, v any) bool {
	switch typeTag {
	case "string":
		_, ok := v.(string)
		return ok
	case "integer", "number":
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}

// Invoke executes the named handler and always returns a result string.
// Handler errors and panics are converted into failure-prefixed strings so
// they can be fed back to the model as step results; nothing propagates to
// the caller.
func (r *Registry) Invoke(name string, args map[string]any) (result string) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		available := r.Names()
		sort.Strings(available)
		return fmt.Sprintf("Unknown tool: %s. Available tools: %s", name, strings.Join(available, ", "))
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool handler panicked", "tool", name, "panic", rec)
			result = fmt.Sprintf("Error executing %s: panic: %v", name, rec)
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	out, err := t.handler.Execute(args)
	if err != nil {
		return fmt.Sprintf("Error executing %s: %v", name, err)
	}
	return out
}
