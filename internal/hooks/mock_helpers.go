package hooks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockInvoker is a mock implementation of Invoker for testing.
type MockInvoker struct {
	mock.Mock
}

// Invoke is a mock implementation of Invoker.Invoke.
func (m *MockInvoker) Invoke(ctx context.Context, def HookDefinition, env *Envelope) (*Decision, error) {
	args := m.Called(ctx, def, env)
	decision, _ := args.Get(0).(*Decision)
	return decision, args.Error(1)
}
