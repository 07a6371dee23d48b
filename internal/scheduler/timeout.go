package scheduler

import "time"

// TimeoutMonitor detects running tasks that have exceeded their worker
// class's timeout. Reclaiming a task is not a cancellation: the underlying
// executor call may still complete in the background, and its late result is
// discarded by the scheduler.
type TimeoutMonitor struct {
	timeouts map[string]time.Duration // workerClass -> timeout; absent = none
}

// NewTimeoutMonitor creates a monitor from per-class timeouts. Entries <= 0
// are ignored.
func NewTimeoutMonitor(classTimeouts map[string]time.Duration) *TimeoutMonitor {
	timeouts := make(map[string]time.Duration, len(classTimeouts))
	for class, d := range classTimeouts {
		if d > 0 {
			timeouts[class] = d
		}
	}
	return &TimeoutMonitor{timeouts: timeouts}
}

// TimeoutFor returns the timeout configured for a worker class.
func (m *TimeoutMonitor) TimeoutFor(workerClass string) (time.Duration, bool) {
	d, ok := m.timeouts[workerClass]
	return d, ok
}

// Overdue returns the running tasks whose current attempt has been executing
// longer than their class timeout as of now.
func (m *TimeoutMonitor) Overdue(tasks []*Task, now time.Time) []*Task {
	var overdue []*Task
	for _, task := range tasks {
		if task.Status != TaskRunning {
			continue
		}
		timeout, ok := m.timeouts[task.WorkerClass]
		if !ok {
			continue
		}
		if now.Sub(task.StartedAt) > timeout {
			overdue = append(overdue, task)
		}
	}
	return overdue
}

// NextDeadline returns the earliest instant at which some running task will
// become overdue. ok is false when no running task has a timeout.
func (m *TimeoutMonitor) NextDeadline(tasks []*Task) (time.Time, bool) {
	var next time.Time
	found := false
	for _, task := range tasks {
		if task.Status != TaskRunning {
			continue
		}
		timeout, ok := m.timeouts[task.WorkerClass]
		if !ok {
			continue
		}
		deadline := task.StartedAt.Add(timeout)
		if !found || deadline.Before(next) {
			next = deadline
			found = true
		}
	}
	return next, found
}
