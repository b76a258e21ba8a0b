package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/yurucode/hookguard/internal/command"
)

func scriptHook(ref ScriptRef) HookDefinition {
	return HookDefinition{
		ID:      "custom.check",
		Name:    "check",
		Event:   EventPreToolUse,
		Enabled: true,
		Script:  ref,
		Origin:  OriginCustom,
	}
}

func TestScriptInvoker_Invoke(t *testing.T) {
	env := NewEventEnvelope(EventPreToolUse, "sess-1", SampleData(EventPreToolUse))

	tests := []struct {
		name        string
		result      *command.Result
		runErr      error
		wantErr     string
		wantBlocked bool
		wantMessage string
	}{
		{
			name:        "exit 0 continue",
			result:      &command.Result{Stdout: `{"action":"continue","message":"all good"}`, ExitCode: 0},
			wantMessage: "all good",
		},
		{
			name:        "exit 2 block",
			result:      &command.Result{Stdout: `{"action":"block","message":"policy violation"}`, ExitCode: 2},
			wantBlocked: true,
			wantMessage: "policy violation",
		},
		{
			name:        "trailing whitespace tolerated",
			result:      &command.Result{Stdout: "  {\"action\":\"continue\"}\n", ExitCode: 0},
			wantMessage: "",
		},
		{
			name:    "exit 0 with block action is malformed",
			result:  &command.Result{Stdout: `{"action":"block"}`, ExitCode: 0},
			wantErr: "not a valid decision",
		},
		{
			name:    "exit 1 is malformed",
			result:  &command.Result{Stdout: `{"action":"continue"}`, ExitCode: 1},
			wantErr: "not a valid decision",
		},
		{
			name:    "non-JSON stdout is malformed",
			result:  &command.Result{Stdout: "Segmentation fault", ExitCode: 0},
			wantErr: "malformed decision envelope",
		},
		{
			name:    "launch failure",
			runErr:  errors.New("exec: \"python3\": executable file not found"),
			wantErr: "failed to run",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runner := command.NewMockRunner(ctrl)
			runner.EXPECT().
				RunWithInput(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Return(tt.result, tt.runErr)

			invoker := NewScriptInvoker(runner)
			decision, err := invoker.Invoke(context.Background(), scriptHook(ScriptRef{Path: "/opt/hooks/check.sh"}), env)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorContains(t, err, tt.wantErr)
				assert.Nil(t, decision)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBlocked, decision.Blocked())
			assert.Equal(t, tt.wantMessage, decision.Message)
			assert.Equal(t, "custom.check", decision.HookID)
		})
	}
}

func TestScriptInvoker_SendsEnvelopeOnStdin(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := command.NewMockRunner(ctrl)

	var captured string
	runner.EXPECT().
		RunWithInput(gomock.Any(), gomock.Any(), "sh", "/opt/hooks/check.sh").
		DoAndReturn(func(_ context.Context, stdin, _ string, _ ...string) (*command.Result, error) {
			captured = stdin
			return &command.Result{Stdout: `{"action":"continue"}`, ExitCode: 0}, nil
		})

	invoker := NewScriptInvoker(runner)
	payload := NewBashPayload("ls -la")
	env, err := NewToolEnvelope(EventPreToolUse, "sess-1", payload)
	require.NoError(t, err)

	_, err = invoker.Invoke(context.Background(), scriptHook(ScriptRef{Path: "/opt/hooks/check.sh", Interpreter: InterpreterShell}), env)
	require.NoError(t, err)

	var sent Envelope
	require.NoError(t, json.Unmarshal([]byte(captured), &sent))
	assert.Equal(t, EventPreToolUse, sent.Event)
	assert.Equal(t, "sess-1", sent.SessionID)
	assert.NotZero(t, sent.Timestamp)
	assert.Contains(t, string(sent.Data), `"ls -la"`)
}

func TestScriptInvoker_InlineScript(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := command.NewMockRunner(ctrl)

	var scriptPath string
	runner.EXPECT().
		RunWithInput(gomock.Any(), gomock.Any(), "sh", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, args ...string) (*command.Result, error) {
			require.Len(t, args, 1)
			scriptPath = args[0]
			return &command.Result{Stdout: `{"action":"continue"}`, ExitCode: 0}, nil
		})

	invoker := NewScriptInvoker(runner)
	env := NewEventEnvelope(EventPreToolUse, "", SampleData(EventPreToolUse))
	def := scriptHook(ScriptRef{Inline: "cat > /dev/null; echo '{\"action\":\"continue\"}'", Interpreter: InterpreterShell})

	_, err := invoker.Invoke(context.Background(), def, env)
	require.NoError(t, err)

	// Inline content is materialized as a temp file with an extension
	// matching the interpreter, and removed after the run.
	assert.True(t, strings.HasSuffix(scriptPath, ".sh"), "got %s", scriptPath)
	assert.Contains(t, scriptPath, "hookguard-")
}

func TestScriptInvoker_NoScript(t *testing.T) {
	ctrl := gomock.NewController(t)
	invoker := NewScriptInvoker(command.NewMockRunner(ctrl))

	env := NewEventEnvelope(EventPreToolUse, "", nil)
	_, err := invoker.Invoke(context.Background(), scriptHook(ScriptRef{}), env)
	assert.ErrorContains(t, err, "no script")
}

func TestScriptInvoker_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := command.NewMockRunner(ctrl)
	runner.EXPECT().
		RunWithInput(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _ string, _ ...string) (*command.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	invoker := NewScriptInvoker(runner)
	def := scriptHook(ScriptRef{Path: "/opt/hooks/slow.sh"})
	def.Timeout = 10 * time.Millisecond
	env := NewEventEnvelope(EventPreToolUse, "", nil)

	_, err := invoker.Invoke(context.Background(), def, env)
	require.Error(t, err)
	assert.ErrorContains(t, err, "timed out")
}

func TestScriptInvoker_InvokeRaw(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := command.NewMockRunner(ctrl)
	runner.EXPECT().
		RunWithInput(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&command.Result{Stdout: "oops", Stderr: "traceback", ExitCode: 1}, nil)

	invoker := NewScriptInvoker(runner)
	env := NewEventEnvelope(EventPreToolUse, "", nil)

	decision, run, err := invoker.InvokeRaw(context.Background(), scriptHook(ScriptRef{Path: "/opt/hooks/check.sh"}), env)
	require.Error(t, err)
	assert.Nil(t, decision)
	require.NotNil(t, run)
	assert.Equal(t, 1, run.ExitCode)
	assert.Equal(t, "oops", run.Stdout)
	assert.Equal(t, "traceback", run.Stderr)
}

func TestInterpreterFor(t *testing.T) {
	tests := []struct {
		name     string
		ref      ScriptRef
		path     string
		wantName string
		wantArgs []string
	}{
		{name: "explicit python", ref: ScriptRef{Interpreter: InterpreterPython}, path: "check", wantName: "python3"},
		{name: "explicit node", ref: ScriptRef{Interpreter: InterpreterNode}, path: "check", wantName: "node"},
		{name: "explicit bash", ref: ScriptRef{Interpreter: InterpreterBash}, path: "check", wantName: "bash"},
		{name: "py extension", ref: ScriptRef{}, path: "check.py", wantName: "python3"},
		{name: "js extension", ref: ScriptRef{}, path: "check.js", wantName: "node"},
		{name: "ps1 extension", ref: ScriptRef{}, path: "check.ps1", wantName: "powershell", wantArgs: []string{"-ExecutionPolicy", "Bypass", "-File"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args := interpreterFor(tt.ref, tt.path)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".py", extensionFor(InterpreterPython))
	assert.Equal(t, ".js", extensionFor(InterpreterNode))
	assert.Equal(t, ".sh", extensionFor(InterpreterBash))
	assert.Equal(t, ".sh", extensionFor(""))
}
