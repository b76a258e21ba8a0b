package hooks

import "context"

// Invoker runs a single hook against an event envelope and returns its
// decision. Concrete implementations run an external process (the
// script execution protocol) or evaluate in-process (builtin hooks,
// test stubs). An error return means the invocation itself failed; the
// dispatcher resolves that to Block, never to Continue.
type Invoker interface {
	Invoke(ctx context.Context, def HookDefinition, env *Envelope) (*Decision, error)
}

// StubInvoker is an in-memory Invoker returning a fixed decision. Used
// in tests so the dispatcher can be exercised without spawning
// processes.
type StubInvoker struct {
	Decision *Decision
	Err      error
	Calls    int
}

// Invoke returns the configured decision or error.
func (s *StubInvoker) Invoke(_ context.Context, _ HookDefinition, _ *Envelope) (*Decision, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Decision, nil
}
