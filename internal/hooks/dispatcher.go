package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yurucode/hookguard/internal/audit"
	"github.com/yurucode/hookguard/internal/logger"
)

// Dispatcher selects the enabled hooks bound to a lifecycle event and
// runs them, in order, through the execution protocol, aggregating
// their results into a single decision.
type Dispatcher struct {
	store     *Store
	script    Invoker
	builtin   Invoker
	sessionID string
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSessionID attaches a session id to outgoing envelopes.
func WithSessionID(id string) DispatcherOption {
	return func(d *Dispatcher) { d.sessionID = id }
}

// WithScriptInvoker overrides the invoker used for script-backed hooks.
// Tests use this with StubInvoker.
func WithScriptInvoker(inv Invoker) DispatcherOption {
	return func(d *Dispatcher) { d.script = inv }
}

// WithBuiltinInvoker overrides the invoker used for builtin hooks.
func WithBuiltinInvoker(inv Invoker) DispatcherOption {
	return func(d *Dispatcher) { d.builtin = inv }
}

// NewDispatcher creates a dispatcher over the given store. The script
// and builtin invokers must be supplied via options or the defaults
// from NewScriptInvoker/NewBuiltinInvoker.
func NewDispatcher(store *Store, script Invoker, builtin Invoker, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:   store,
		script:  script,
		builtin: builtin,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs all enabled hooks bound to a tool-gating event against
// the payload and returns the aggregate decision. The payload is
// validated first: unknown tool kinds are rejected before any hook
// runs. The call blocks until a decision is reached; cancelling ctx
// terminates in-flight scripts.
func (d *Dispatcher) Dispatch(ctx context.Context, event LifecycleEvent, payload *ToolInvocationPayload) (*Decision, error) {
	if _, err := ParseEvent(string(event)); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("payload cannot be nil")
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	env, err := NewToolEnvelope(event, d.sessionID, payload)
	if err != nil {
		return nil, err
	}
	return d.run(ctx, event, string(payload.Tool), env), nil
}

// DispatchEvent runs the hooks bound to a non-tool event (session
// lifecycle, context warnings, compaction) with event-specific data.
func (d *Dispatcher) DispatchEvent(ctx context.Context, event LifecycleEvent, data json.RawMessage) (*Decision, error) {
	if _, err := ParseEvent(string(event)); err != nil {
		return nil, err
	}
	env := NewEventEnvelope(event, d.sessionID, data)
	return d.run(ctx, event, "", env), nil
}

// run executes the dispatch state machine: snapshot, sequential invoke,
// short-circuit on block, concatenate continue messages.
func (d *Dispatcher) run(ctx context.Context, event LifecycleEvent, tool string, env *Envelope) *Decision {
	start := time.Now()

	// Snapshot once so a concurrent enable/disable never changes
	// behavior mid-dispatch.
	selected := d.store.EnabledForEvent(event)
	if len(selected) == 0 {
		return ContinueDecision("")
	}

	var messages []string
	for _, def := range selected {
		decision := d.invokeOne(ctx, def, env)

		if decision.Blocked() {
			d.record(event, tool, decision, start)
			return decision
		}
		if decision.Message != "" {
			messages = append(messages, decision.Message)
		}
	}

	final := ContinueDecision(strings.Join(messages, "\n"))
	d.record(event, tool, final, start)
	return final
}

// invokeOne runs a single hook fail-closed: any invocation error
// becomes a Block with the generic guard-error message. A broken,
// crashing, or tampered hook script must never silently permit the
// action it was meant to gate.
func (d *Dispatcher) invokeOne(ctx context.Context, def HookDefinition, env *Envelope) *Decision {
	invoker := d.script
	if def.Origin == OriginBuiltin {
		invoker = d.builtin
	}
	if invoker == nil {
		logger.Error("no invoker for hook", "hook", def.ID, "origin", def.Origin)
		return GuardErrorDecision(def.ID)
	}

	decision, err := invoker.Invoke(ctx, def, env)
	if err != nil {
		logger.Error("hook invocation failed", "hook", def.ID, "error", err)
		return GuardErrorDecision(def.ID)
	}
	if decision == nil {
		logger.Error("hook returned no decision", "hook", def.ID)
		return GuardErrorDecision(def.ID)
	}
	decision.HookID = def.ID
	return decision
}

// record writes the terminal decision to the audit log, distinguishing
// policy blocks from execution failures.
func (d *Dispatcher) record(event LifecycleEvent, tool string, decision *Decision, start time.Time) {
	_ = audit.Log(audit.Entry{
		SessionID:        d.sessionID,
		Event:            string(event),
		Tool:             tool,
		HookID:           decision.HookID,
		Action:           string(decision.Action),
		Message:          decision.Message,
		ExecutionFailure: decision.ExecutionFailure,
		DurationMs:       time.Since(start).Milliseconds(),
	})
}

// TestReport is the raw outcome of a one-off hook test run.
type TestReport struct {
	Decision *Decision
	Run      *RawRun
	Err      string
}

// TestHook runs a single hook once through the execution protocol with
// sample event data, outside normal dispatch, and surfaces the raw
// outcome for inspection. Failures are reported, not converted to
// Block: this surface exists to debug hooks, not to gate actions.
func (d *Dispatcher) TestHook(ctx context.Context, id string, event LifecycleEvent) (*TestReport, error) {
	def, err := d.store.Get(id)
	if err != nil {
		return nil, err
	}
	if _, err := ParseEvent(string(event)); err != nil {
		return nil, err
	}

	env := NewEventEnvelope(event, d.sessionID, SampleData(event))

	if def.Origin == OriginBuiltin {
		decision, err := d.builtin.Invoke(ctx, def, env)
		report := &TestReport{Decision: decision}
		if err != nil {
			report.Err = err.Error()
		}
		return report, nil
	}

	si, ok := d.script.(*ScriptInvoker)
	if !ok {
		decision, err := d.script.Invoke(ctx, def, env)
		report := &TestReport{Decision: decision}
		if err != nil {
			report.Err = err.Error()
		}
		return report, nil
	}

	decision, run, err := si.InvokeRaw(ctx, def, env)
	report := &TestReport{Decision: decision, Run: run}
	if err != nil {
		report.Err = err.Error()
	}
	return report, nil
}
