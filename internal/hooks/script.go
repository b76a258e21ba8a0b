package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/yurucode/hookguard/internal/command"
	"github.com/yurucode/hookguard/internal/logger"
)

// RawRun captures the unparsed outcome of one script invocation, for
// the test-hook surface.
type RawRun struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ScriptInvoker implements the execution protocol for script-backed
// hooks: the envelope is serialized to the script's stdin, the script
// runs under a bounded timeout, and its stdout plus exit status are
// interpreted as a decision envelope. Exit 0 with action "continue" and
// exit 2 with action "block" are the only valid combinations; anything
// else is an invocation failure the dispatcher resolves to Block.
type ScriptInvoker struct {
	runner command.Runner
}

// NewScriptInvoker creates a script invoker on the given process
// runner.
func NewScriptInvoker(runner command.Runner) *ScriptInvoker {
	return &ScriptInvoker{runner: runner}
}

// Invoke runs the hook's script and parses its decision.
func (si *ScriptInvoker) Invoke(ctx context.Context, def HookDefinition, env *Envelope) (*Decision, error) {
	decision, _, err := si.run(ctx, def, env)
	return decision, err
}

// InvokeRaw runs the script and returns both the parsed decision and
// the raw process outcome. The decision is nil when the run was not a
// valid protocol exchange; err says why.
func (si *ScriptInvoker) InvokeRaw(ctx context.Context, def HookDefinition, env *Envelope) (*Decision, *RawRun, error) {
	return si.run(ctx, def, env)
}

func (si *ScriptInvoker) run(ctx context.Context, def HookDefinition, env *Envelope) (*Decision, *RawRun, error) {
	if def.Script.IsZero() {
		return nil, nil, fmt.Errorf("hook %s has no script", def.ID)
	}

	input, err := json.Marshal(env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize envelope: %w", err)
	}

	scriptPath := def.Script.Path
	if scriptPath == "" {
		tmpPath, cleanup, err := writeInlineScript(def)
		if err != nil {
			return nil, nil, err
		}
		defer cleanup()
		scriptPath = tmpPath
	}

	name, args := interpreterFor(def.Script, scriptPath)
	args = append(args, scriptPath)

	runCtx, cancel := context.WithTimeout(ctx, def.EffectiveTimeout())
	defer cancel()

	start := time.Now()
	result, err := si.runner.RunWithInput(runCtx, string(input), name, args...)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, nil, fmt.Errorf("hook %s timed out after %s", def.ID, def.EffectiveTimeout())
		}
		return nil, nil, fmt.Errorf("hook %s failed to run: %w", def.ID, err)
	}
	logger.Debug("hook script finished",
		"hook", def.ID,
		"exit_code", result.ExitCode,
		"duration", time.Since(start),
	)

	raw := &RawRun{ExitCode: result.ExitCode, Stdout: result.Stdout, Stderr: result.Stderr}

	decision, err := parseDecisionEnvelope(strings.TrimSpace(result.Stdout), result.ExitCode)
	if err != nil {
		return nil, raw, fmt.Errorf("hook %s: %w", def.ID, err)
	}
	decision.HookID = def.ID
	return decision, raw, nil
}

// writeInlineScript materializes inline script content as a temp file.
func writeInlineScript(def HookDefinition) (string, func(), error) {
	ext := extensionFor(def.Script.Interpreter)
	f, err := os.CreateTemp("", "hookguard-"+sanitizeID(def.ID)+"-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp script: %w", err)
	}
	path := f.Name()
	cleanup := func() { os.Remove(path) }

	if _, err := f.WriteString(def.Script.Inline); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp script: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp script: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(path, 0o700); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("failed to chmod temp script: %w", err)
		}
	}
	return path, cleanup, nil
}

func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, id)
}

func extensionFor(interpreter string) string {
	switch interpreter {
	case InterpreterPython:
		return ".py"
	case InterpreterNode:
		return ".js"
	default:
		return ".sh"
	}
}

// interpreterFor picks the interpreter: explicit hint first, then the
// script file extension, then a platform shell.
func interpreterFor(ref ScriptRef, scriptPath string) (string, []string) {
	switch ref.Interpreter {
	case InterpreterPython:
		return "python3", nil
	case InterpreterNode:
		return "node", nil
	case InterpreterBash:
		return "bash", nil
	case InterpreterShell:
		return "sh", nil
	}

	switch filepath.Ext(scriptPath) {
	case ".py":
		return "python3", nil
	case ".js":
		return "node", nil
	case ".ps1":
		return "powershell", []string{"-ExecutionPolicy", "Bypass", "-File"}
	}

	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", nil
}
