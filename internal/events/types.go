package events

import (
	"time"
)

// Event is the base interface for all scheduler events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask = "task"
	TopicRun  = "run"
)

// Event type constants
const (
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskFailed    = "task.failed"
	EventTypeTaskRetrying  = "task.retrying"
	EventTypeTaskTimedOut  = "task.timeout"
	EventTypeTaskSkipped   = "task.skipped"
	EventTypeRunProgress   = "run.progress"
)

// TaskStartedEvent is published when an attempt of a task begins executing.
type TaskStartedEvent struct {
	ID          string
	Description string
	WorkerClass string
	Attempt     int
	Timestamp   time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task completes successfully.
type TaskCompletedEvent struct {
	ID        string
	Output    string
	Attempts  int
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task fails permanently.
type TaskFailedEvent struct {
	ID        string
	Err       error
	Attempts  int
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskRetryingEvent is published when a failed attempt is scheduled for
// retry after a backoff delay.
type TaskRetryingEvent struct {
	ID        string
	Attempt   int // attempts made so far
	Delay     time.Duration
	Err       error
	Timestamp time.Time
}

func (e TaskRetryingEvent) EventType() string { return EventTypeTaskRetrying }
func (e TaskRetryingEvent) TaskID() string    { return e.ID }

// TaskTimedOutEvent is published when a running task is reclaimed for
// exceeding its worker class timeout.
type TaskTimedOutEvent struct {
	ID        string
	After     time.Duration
	Timestamp time.Time
}

func (e TaskTimedOutEvent) EventType() string { return EventTypeTaskTimedOut }
func (e TaskTimedOutEvent) TaskID() string    { return e.ID }

// TaskSkippedEvent is published when a task is marked failed without being
// attempted because an upstream dependency failed permanently.
type TaskSkippedEvent struct {
	ID         string
	UpstreamID string
	Timestamp  time.Time
}

func (e TaskSkippedEvent) EventType() string { return EventTypeTaskSkipped }
func (e TaskSkippedEvent) TaskID() string    { return e.ID }

// RunProgressEvent is published whenever the run's status counts change.
type RunProgressEvent struct {
	RunID     string
	Total     int
	Pending   int
	Ready     int
	Running   int
	Completed int
	Failed    int
	Timestamp time.Time
}

func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) TaskID() string    { return "" }
