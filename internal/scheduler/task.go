package scheduler

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus int

const (
	TaskPending   TaskStatus = iota // Waiting for dependencies
	TaskReady                       // All dependencies completed, waiting for a slot
	TaskRunning                     // Currently executing
	TaskCompleted                   // Finished successfully
	TaskFailed                      // Finished with error (may re-enter TaskReady on retry)
)

// String returns the lowercase status name.
func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	}
	return "unknown"
}

// Task represents a unit of work in the graph.
//
// The scheduler owns every Task record for the duration of one Run. ID,
// Description, WorkerClass, Priority and DependsOn are set by the caller and
// never mutated; Status, Attempts, StartedAt, Result and LastError are
// mutated only by the scheduler. Accessors hand out clones, so a Task held
// by a caller is always a snapshot.
type Task struct {
	ID          string     // Unique identifier, assigned by caller
	Description string     // Opaque payload passed through to the executor
	WorkerClass string     // Key into concurrency limits and timeouts (e.g. "backend")
	Priority    int        // Lower value = dispatched earlier among ready tasks
	DependsOn   []string   // Task IDs that must complete before this task runs
	Status      TaskStatus
	Attempts    int        // Execution attempts made so far
	StartedAt   time.Time  // Start of the current/most recent attempt
	Result      Result     // Populated on completion
	LastError   error      // Populated on failure
}

// Result is the outcome of a successfully executed task.
// Output comes from the executor; Attempts and Duration are filled in by the
// scheduler when the task completes.
type Result struct {
	Output   string
	Attempts int
	Duration time.Duration
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.DependsOn != nil {
		cp.DependsOn = append([]string(nil), task.DependsOn...)
	}
	return &cp
}
