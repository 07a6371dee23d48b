package scheduler

import "context"

// AgentExecutor is the capability the scheduler calls to actually perform
// one task. Implementations must be safe for concurrent use; the scheduler
// makes one call per task attempt, possibly from many goroutines at once.
//
// Execute should honor ctx, but the scheduler does not rely on it: a call
// that outlives its class timeout is reclaimed, not cancelled.
type AgentExecutor interface {
	Execute(ctx context.Context, task Task) (Result, error)
}

// ExecutorFunc adapts a function to the AgentExecutor interface.
type ExecutorFunc func(ctx context.Context, task Task) (Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, task Task) (Result, error) {
	return f(ctx, task)
}
