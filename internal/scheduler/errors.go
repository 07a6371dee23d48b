package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DuplicateTaskError is returned by AddTask when a task ID is already registered.
type DuplicateTaskError struct {
	ID string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task with ID %q already exists", e.ID)
}

// UnknownDependencyError is returned by Run when a task depends on an ID that
// was never registered. Dispatch has not started when this is returned.
type UnknownDependencyError struct {
	TaskID       string
	DependencyID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.TaskID, e.DependencyID)
}

// CycleDetectedError is returned by Run when the ready set is empty while
// unfinished tasks remain and nothing is running. Stuck lists the task IDs
// that can never become ready.
type CycleDetectedError struct {
	Stuck []string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("dependency cycle detected, stuck tasks: %s", strings.Join(e.Stuck, ", "))
}

// AgentUnavailableError indicates that no executor is registered for a task's
// worker class. It is treated as an execution failure and is retryable.
type AgentUnavailableError struct {
	WorkerClass string
}

func (e *AgentUnavailableError) Error() string {
	return fmt.Sprintf("no executor registered for worker class %q", e.WorkerClass)
}

// AgentExecutionError wraps an error returned by an executor's Execute call.
type AgentExecutionError struct {
	TaskID string
	Err    error
}

func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("task %q execution failed: %v", e.TaskID, e.Err)
}

func (e *AgentExecutionError) Unwrap() error { return e.Err }

// TimeoutError indicates a running task exceeded its worker class timeout and
// was reclaimed. The underlying executor call is not cancelled; its late
// result, if any, is discarded.
type TimeoutError struct {
	TaskID  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %q exceeded timeout of %s", e.TaskID, e.Timeout)
}

// MaxRetriesExceededError marks a task as permanently failed after its
// retry budget is exhausted. Err is the error from the final attempt.
type MaxRetriesExceededError struct {
	TaskID   string
	Attempts int
	Err      error
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("task %q failed permanently after %d attempts: %v", e.TaskID, e.Attempts, e.Err)
}

func (e *MaxRetriesExceededError) Unwrap() error { return e.Err }

// UpstreamFailureError marks a task that was never attempted because a task
// it (transitively) depends on failed permanently. Only produced in
// continue mode.
type UpstreamFailureError struct {
	TaskID     string
	UpstreamID string
}

func (e *UpstreamFailureError) Error() string {
	return fmt.Sprintf("task %q not attempted: upstream task %q failed permanently", e.TaskID, e.UpstreamID)
}

// RunError aggregates every permanently failed task of one Run. Run returns
// it alongside whatever partial results were produced; partial results are
// never discarded.
type RunError struct {
	Failures map[string]error // task ID -> terminal error
}

func (e *RunError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "%d task(s) failed permanently:", len(ids))
	for _, id := range ids {
		fmt.Fprintf(&b, " %s (%v);", id, e.Failures[id])
	}
	return strings.TrimSuffix(b.String(), ";")
}

// Unwrap exposes the per-task terminal errors to errors.Is/errors.As.
func (e *RunError) Unwrap() []error {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	errs := make([]error, 0, len(ids))
	for _, id := range ids {
		errs = append(errs, e.Failures[id])
	}
	return errs
}
