package hooks

import "time"

// Origin identifies who owns a hook definition.
type Origin string

// Hook origins. Builtin and plugin hooks can only be enabled or
// disabled by the user; custom hooks are fully mutable.
const (
	OriginBuiltin Origin = "builtin"
	OriginCustom  Origin = "custom"
	OriginPlugin  Origin = "plugin"
)

// Interpreter hints for inline scripts.
const (
	InterpreterShell  = "sh"
	InterpreterBash   = "bash"
	InterpreterPython = "python"
	InterpreterNode   = "node"
)

// DefaultTimeout bounds a single hook script invocation.
const DefaultTimeout = 5 * time.Second

// ScriptRef references executable hook content: either a script file on
// disk or inline source with an interpreter hint. Builtin hooks carry
// no script at all; they run in-process.
type ScriptRef struct {
	// Path to a script file. Takes precedence over Inline when set.
	Path string `json:"path,omitempty"`
	// Inline script source, written to a temp file before execution.
	Inline string `json:"inline,omitempty"`
	// Interpreter hint for inline scripts (sh, bash, python, node).
	Interpreter string `json:"interpreter,omitempty"`
}

// IsZero reports whether the ref carries no script.
func (s ScriptRef) IsZero() bool {
	return s.Path == "" && s.Inline == ""
}

// HookDefinition is one event-bound rule in the store.
type HookDefinition struct {
	// ID is stable and unique within the store.
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Event       LifecycleEvent `json:"event"`
	Enabled     bool           `json:"enabled"`
	Script      ScriptRef      `json:"script"`
	Origin      Origin         `json:"origin"`
	// PluginID names the owning plugin for plugin-origin hooks.
	PluginID string `json:"plugin_id,omitempty"`
	// Timeout bounds one invocation; zero means DefaultTimeout.
	Timeout time.Duration `json:"timeout,omitempty"`
	// CreatedAt fixes creation order across sessions.
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Mutable reports whether the user may update or delete this hook.
func (h *HookDefinition) Mutable() bool {
	return h.Origin == OriginCustom
}

// EffectiveTimeout returns the invocation timeout for this hook.
func (h *HookDefinition) EffectiveTimeout() time.Duration {
	if h.Timeout > 0 {
		return h.Timeout
	}
	return DefaultTimeout
}

// HookPatch carries the updatable fields of a custom hook. Nil fields
// are left unchanged.
type HookPatch struct {
	Name        *string
	Description *string
	Event       *LifecycleEvent
	Script      *ScriptRef
	Timeout     *time.Duration
}
