package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurucode/hookguard/internal/hooks"
)

// runCommand executes the CLI against an isolated state directory.
func runCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--no-audit"))

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestNewRootCmd(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "hookguard", root.Use)

	names := make([]string, 0)
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "dispatch")
	assert.Contains(t, names, "hooks")
	assert.Contains(t, names, "events")
}

func TestEventsCommand(t *testing.T) {
	t.Setenv("HOOKGUARD_HOME", t.TempDir())

	stdout, _, err := runCommand(t, "", "events")
	require.NoError(t, err)
	for _, info := range hooks.Events() {
		assert.Contains(t, stdout, string(info.Event))
	}
}

func TestHooksListCommand(t *testing.T) {
	t.Setenv("HOOKGUARD_HOME", t.TempDir())

	stdout, _, err := runCommand(t, "", "hooks", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, hooks.BuiltinCommandShieldID)
	assert.Contains(t, stdout, hooks.BuiltinPathShieldID)
	assert.Contains(t, stdout, "enabled")
}

func TestHooksCreateAndManage(t *testing.T) {
	t.Setenv("HOOKGUARD_HOME", t.TempDir())

	stdout, _, err := runCommand(t, "",
		"hooks", "create",
		"--id", "custom.lint",
		"--name", "lint gate",
		"--event", "pre_tool_use",
		"--inline", `echo '{"action":"continue"}'`,
		"--interpreter", "sh",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created hook custom.lint")

	stdout, _, err = runCommand(t, "", "hooks", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "custom.lint")

	_, _, err = runCommand(t, "", "hooks", "disable", "custom.lint")
	require.NoError(t, err)
	stdout, _, err = runCommand(t, "", "hooks", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "disabled")

	_, _, err = runCommand(t, "", "hooks", "delete", "custom.lint")
	require.NoError(t, err)
	stdout, _, err = runCommand(t, "", "hooks", "list")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "custom.lint")
}

func TestHooksCreate_RejectsBadInput(t *testing.T) {
	t.Setenv("HOOKGUARD_HOME", t.TempDir())

	_, _, err := runCommand(t, "",
		"hooks", "create",
		"--id", "custom.bad",
		"--event", "not_an_event",
		"--inline", "exit 0",
	)
	assert.Error(t, err)

	_, _, err = runCommand(t, "", "hooks", "delete", hooks.BuiltinCommandShieldID)
	assert.ErrorIs(t, err, hooks.ErrImmutableHook)
}

func TestDispatchCommand_Continue(t *testing.T) {
	t.Setenv("HOOKGUARD_HOME", t.TempDir())

	// Safe tool input passes both builtin shields. The blocked path
	// exits the process and is covered by the dispatcher tests.
	payload := `{"tool":"Bash","input":{"command":"ls -la"}}`
	stdout, stderr, err := runCommand(t, payload, "dispatch", "pre_tool_use")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	var decision hooks.Decision
	require.NoError(t, json.Unmarshal([]byte(stdout), &decision))
	assert.Equal(t, hooks.ActionContinue, decision.Action)
}

func TestDispatchCommand_NonToolEvent(t *testing.T) {
	t.Setenv("HOOKGUARD_HOME", t.TempDir())

	stdout, _, err := runCommand(t, `{"reason":"startup"}`, "dispatch", "session_start")
	require.NoError(t, err)

	var decision hooks.Decision
	require.NoError(t, json.Unmarshal([]byte(stdout), &decision))
	assert.Equal(t, hooks.ActionContinue, decision.Action)
	assert.Empty(t, decision.Message)
}

func TestDispatchCommand_Errors(t *testing.T) {
	t.Setenv("HOOKGUARD_HOME", t.TempDir())

	_, _, err := runCommand(t, "{}", "dispatch", "no_such_event")
	assert.ErrorIs(t, err, hooks.ErrUnknownEvent)

	_, _, err = runCommand(t, `{"tool":"Teleport","input":{}}`, "dispatch", "pre_tool_use")
	assert.ErrorIs(t, err, hooks.ErrUnknownTool)
}

func TestHooksTestCommand(t *testing.T) {
	t.Setenv("HOOKGUARD_HOME", t.TempDir())

	stdout, _, err := runCommand(t, "", "hooks", "test", hooks.BuiltinCommandShieldID, "pre_tool_use")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Action:")

	_, _, err = runCommand(t, "", "hooks", "test", "missing", "pre_tool_use")
	assert.ErrorIs(t, err, hooks.ErrHookNotFound)
}
