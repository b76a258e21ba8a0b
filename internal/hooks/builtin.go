package hooks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yurucode/hookguard/internal/guard"
)

// Builtin hook ids.
const (
	BuiltinCommandShieldID = "builtin.command-shield"
	BuiltinPathShieldID    = "builtin.path-shield"
)

// BuiltinDefinitions returns the builtin hook definitions materialized
// at store initialization, all enabled by default.
func BuiltinDefinitions() []HookDefinition {
	return []HookDefinition{
		{
			ID:          BuiltinCommandShieldID,
			Name:        "Command Shield",
			Description: "Blocks shell commands matching the dangerous-command ruleset",
			Event:       EventPreToolUse,
			Enabled:     true,
			Origin:      OriginBuiltin,
		},
		{
			ID:          BuiltinPathShieldID,
			Name:        "Path Shield",
			Description: "Blocks file operations on protected or traversal paths",
			Event:       EventPreToolUse,
			Enabled:     true,
			Origin:      OriginBuiltin,
		},
	}
}

// builtinInvoker evaluates the builtin guard hooks in-process against
// the pattern classifier and path guard. No subprocess is involved, but
// the contract is the same as for script hooks: a Decision out, and any
// internal failure resolved to Block by the dispatcher.
type builtinInvoker struct {
	ruleset *guard.Ruleset
}

// NewBuiltinInvoker creates the in-process invoker for builtin hooks.
func NewBuiltinInvoker(ruleset *guard.Ruleset) Invoker {
	return &builtinInvoker{ruleset: ruleset}
}

// Invoke evaluates one builtin hook.
func (b *builtinInvoker) Invoke(_ context.Context, def HookDefinition, env *Envelope) (*Decision, error) {
	payload, err := parseEnvelopePayload(env)
	if err != nil {
		return nil, err
	}

	switch def.ID {
	case BuiltinCommandShieldID:
		return b.evaluateCommand(def, payload), nil
	case BuiltinPathShieldID:
		return b.evaluatePath(def, payload), nil
	default:
		return nil, fmt.Errorf("no builtin implementation for hook %s", def.ID)
	}
}

func parseEnvelopePayload(env *Envelope) (*ToolInvocationPayload, error) {
	var payload ToolInvocationPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode tool payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	if len(payload.Input) > 0 {
		if err := json.Unmarshal(payload.Input, &payload.parsed); err != nil {
			return nil, fmt.Errorf("failed to parse tool input: %w", err)
		}
	}
	return &payload, nil
}

// evaluateCommand classifies Bash command text. Other tool kinds pass
// through.
func (b *builtinInvoker) evaluateCommand(def HookDefinition, payload *ToolInvocationPayload) *Decision {
	commandLine, ok := payload.Command()
	if !ok {
		return ContinueDecision("")
	}

	if category, matched := b.ruleset.Classify(commandLine); matched {
		return BlockDecision(def.ID, fmt.Sprintf("dangerous command blocked (%s)", category))
	}
	return ContinueDecision("")
}

// evaluatePath checks write-capable file operations against the path
// guard. Read-only tools pass through.
func (b *builtinInvoker) evaluatePath(def HookDefinition, payload *ToolInvocationPayload) *Decision {
	switch payload.Tool {
	case ToolWrite, ToolEdit, ToolMultiEdit, ToolNotebookEdit:
	default:
		return ContinueDecision("")
	}

	filePath, ok := payload.FilePath()
	if !ok {
		return ContinueDecision("")
	}

	if b.ruleset.IsProtectedPath(filePath) {
		return BlockDecision(def.ID, fmt.Sprintf("write to protected path blocked: %s", filePath))
	}
	return ContinueDecision("")
}
