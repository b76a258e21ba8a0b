package hooks

import (
	"encoding/json"
	"fmt"
)

// Action is the terminal outcome of a hook invocation.
type Action string

// The only two terminal outcomes. Any Block overrides all Continues.
const (
	ActionContinue Action = "continue"
	ActionBlock    Action = "block"
)

// GuardErrorMessage is the generic message attached to decisions that
// result from a broken hook rather than a policy rule.
const GuardErrorMessage = "guard error - operation blocked for safety"

// Decision is the result of one hook invocation, or of a whole
// dispatch.
type Decision struct {
	// Action is continue or block.
	Action Action `json:"action"`

	// Message explains the decision. For blocked results it says why;
	// for continue results it is optional information.
	Message string `json:"message,omitempty"`

	// HookID identifies which hook produced this decision. Empty for
	// the implicit continue when no hooks are bound.
	HookID string `json:"-"`

	// ExecutionFailure marks a Block that came from a broken hook
	// (launch failure, timeout, malformed output) rather than a policy
	// rule. Operators use this to tell "blocked by design" from
	// "blocked because something is broken".
	ExecutionFailure bool `json:"-"`
}

// ContinueDecision creates a decision that lets the action proceed.
func ContinueDecision(message string) *Decision {
	return &Decision{Action: ActionContinue, Message: message}
}

// BlockDecision creates a decision that blocks the action.
func BlockDecision(hookID, message string) *Decision {
	return &Decision{Action: ActionBlock, Message: message, HookID: hookID}
}

// GuardErrorDecision creates the fail-closed decision for a hook whose
// invocation itself failed.
func GuardErrorDecision(hookID string) *Decision {
	return &Decision{
		Action:           ActionBlock,
		Message:          GuardErrorMessage,
		HookID:           hookID,
		ExecutionFailure: true,
	}
}

// Blocked reports whether the decision blocks the pending action.
func (d *Decision) Blocked() bool {
	return d.Action == ActionBlock
}

// decisionEnvelope is the wire form a hook script emits on stdout.
type decisionEnvelope struct {
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
}

// parseDecisionEnvelope parses a script's stdout combined with its exit
// status. The exit-status semantics are load-bearing: exit 0 with
// action "continue" is the only combination that continues, exit 2 with
// action "block" blocks, and every other combination is malformed and
// must be treated as a failure by the caller.
func parseDecisionEnvelope(stdout string, exitCode int) (*Decision, error) {
	var env decisionEnvelope
	if err := json.Unmarshal([]byte(stdout), &env); err != nil {
		return nil, fmt.Errorf("malformed decision envelope: %w", err)
	}

	switch {
	case exitCode == 0 && env.Action == string(ActionContinue):
		return ContinueDecision(env.Message), nil
	case exitCode == 2 && env.Action == string(ActionBlock):
		return &Decision{Action: ActionBlock, Message: env.Message}, nil
	default:
		return nil, fmt.Errorf("exit code %d with action %q is not a valid decision", exitCode, env.Action)
	}
}
