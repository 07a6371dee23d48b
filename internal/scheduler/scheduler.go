package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/dispatch/internal/events"
)

// FailurePolicy controls how a permanent task failure affects the rest of
// the run.
type FailurePolicy int

const (
	// FailFast stops dispatching new tasks after the first permanent
	// failure and lets in-flight tasks drain.
	FailFast FailurePolicy = iota
	// ContinueOnFailure keeps running every task whose dependencies are
	// still satisfiable and poisons the transitive dependents of a
	// permanently failed task instead of attempting them.
	ContinueOnFailure
)

// String returns the config-file spelling of the policy.
func (p FailurePolicy) String() string {
	if p == ContinueOnFailure {
		return "continue"
	}
	return "fail-fast"
}

// ParseFailurePolicy converts a config-file spelling into a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "fail-fast":
		return FailFast, nil
	case "continue":
		return ContinueOnFailure, nil
	default:
		return FailFast, fmt.Errorf("unknown failure policy %q", s)
	}
}

// Config configures a Scheduler. The zero value is usable: 5 global slots,
// unbounded classes, no timeouts, 3 attempts with 1s base backoff,
// fail-fast, no preflight validation, breakers off.
type Config struct {
	GlobalMaxConcurrent int                      // Max running tasks overall (default 5)
	ClassLimits         map[string]int           // workerClass -> max concurrent (default unbounded)
	ClassTimeouts       map[string]time.Duration // workerClass -> attempt timeout (default none)
	Retry               RetryPolicy
	FailurePolicy       FailurePolicy
	PreflightValidate   bool // Run an eager cycle check before dispatching
	BreakerEnabled      bool // Per-class circuit breakers around Execute

	Bus    *events.EventBus // Optional; nil disables event publishing
	Logger *slog.Logger     // Optional; defaults to slog.Default()
	Clock  Clock            // Optional; defaults to SystemClock()
}

// Scheduler drives the task state machine: it selects ready tasks, respects
// concurrency limits, dispatches to executors, applies retry and timeout
// policy, and aggregates results. A Scheduler runs exactly once.
type Scheduler struct {
	cfg      Config
	graph    *TaskGraph
	limiter  *ConcurrencyLimiter
	timeouts *TimeoutMonitor
	breakers *BreakerRegistry
	clock    Clock
	logger   *slog.Logger

	mu        sync.Mutex
	executors map[string]AgentExecutor
	started   bool
}

// New creates a Scheduler with an empty task graph.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}

	s := &Scheduler{
		cfg:       cfg,
		graph:     NewTaskGraph(),
		limiter:   NewConcurrencyLimiter(cfg.GlobalMaxConcurrent, cfg.ClassLimits),
		timeouts:  NewTimeoutMonitor(cfg.ClassTimeouts),
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		executors: make(map[string]AgentExecutor),
	}
	if cfg.BreakerEnabled {
		s.breakers = NewBreakerRegistry(cfg.Logger)
	}
	return s
}

// AddTask registers a task. All tasks and their dependencies must be added
// before Run is called.
func (s *Scheduler) AddTask(task *Task) error {
	return s.graph.AddTask(task)
}

// RegisterExecutor maps a worker class to the executor that performs its
// tasks. A class without an executor fails with AgentUnavailableError at
// dispatch time, subject to the retry policy.
func (s *Scheduler) RegisterExecutor(workerClass string, ex AgentExecutor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executors[workerClass] = ex
}

// Tasks returns snapshots of all registered tasks.
func (s *Scheduler) Tasks() []*Task {
	return s.graph.Tasks()
}

// completion is what a dispatch goroutine reports back to the loop.
type completion struct {
	id      string
	attempt int
	result  Result
	err     error
	started time.Time
}

// inflightAttempt ties a running attempt to its concurrency slot so that
// late results from reclaimed attempts can be told apart from current ones.
type inflightAttempt struct {
	attempt int
	token   *SlotToken
}

// Run executes the graph until every task is completed, a structural error
// aborts the run, or the failure policy halts it. It always returns the
// partial result map accumulated so far; the error is nil only on full
// success. Cancelling ctx stops dispatching new tasks and drains in-flight
// ones.
func (s *Scheduler) Run(ctx context.Context) (map[string]Result, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil, fmt.Errorf("scheduler has already run")
	}
	s.started = true
	s.mu.Unlock()

	results := make(map[string]Result)
	if s.graph.Len() == 0 {
		return results, nil
	}

	if err := s.graph.CheckDependencies(); err != nil {
		return results, err
	}
	if s.cfg.PreflightValidate {
		if _, err := s.graph.Validate(); err != nil {
			return results, err
		}
	}

	runID := uuid.NewString()
	s.logger.Info("run started",
		"runID", runID,
		"tasks", s.graph.Len(),
		"failurePolicy", s.cfg.FailurePolicy.String())

	maxAttempts := s.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	// Sized so every attempt that will ever be dispatched can report back
	// without blocking, even after the loop has moved on.
	completions := make(chan completion, s.graph.Len()*maxAttempts)

	var (
		waiting      = &retryQueue{}
		inflight     = make(map[string]inflightAttempt)
		failures     = make(map[string]error)
		running      = 0
		halted       = false
		canceled     = false
		lastProgress StatusCounts
		progressInit = false
	)
	heap.Init(waiting)
	ctxDone := ctx.Done()

	// abandonWaiting drops every queued retry; the tasks keep the error of
	// their last attempt as their terminal error.
	abandonWaiting := func() {
		for waiting.Len() > 0 {
			entry := heap.Pop(waiting).(*retryEntry)
			if task, ok := s.graph.Get(entry.id); ok {
				failures[entry.id] = task.LastError
				s.publishTask(events.TaskFailedEvent{
					ID: entry.id, Err: task.LastError, Attempts: task.Attempts, Timestamp: s.clock.Now(),
				})
			}
		}
	}

	// fail routes one failed attempt through the retry policy and, on a
	// permanent failure, applies the failure policy.
	fail := func(task *Task, cause error) {
		now := s.clock.Now()
		retry, delay := s.cfg.Retry.ShouldRetry(task.Attempts)
		if retry && !halted && !canceled {
			_ = s.graph.MarkFailed(task.ID, cause)
			heap.Push(waiting, &retryEntry{id: task.ID, readyAt: now.Add(delay)})
			s.logger.Info("task will retry",
				"runID", runID, "task", task.ID, "attempt", task.Attempts, "delay", delay, "error", cause)
			s.publishTask(events.TaskRetryingEvent{
				ID: task.ID, Attempt: task.Attempts, Delay: delay, Err: cause, Timestamp: now,
			})
			return
		}

		terminal := cause
		if !retry {
			terminal = &MaxRetriesExceededError{TaskID: task.ID, Attempts: task.Attempts, Err: cause}
		}
		_ = s.graph.MarkFailed(task.ID, terminal)
		failures[task.ID] = terminal
		s.logger.Error("task failed permanently",
			"runID", runID, "task", task.ID, "attempts", task.Attempts, "error", terminal)
		s.publishTask(events.TaskFailedEvent{
			ID: task.ID, Err: terminal, Attempts: task.Attempts, Timestamp: now,
		})

		switch s.cfg.FailurePolicy {
		case FailFast:
			if !halted {
				halted = true
				s.logger.Warn("halting dispatch, draining in-flight tasks", "runID", runID)
				abandonWaiting()
			}
		case ContinueOnFailure:
			for _, depID := range s.graph.TransitiveDependents(task.ID) {
				dep, ok := s.graph.Get(depID)
				if !ok || dep.Status != TaskPending {
					continue
				}
				upstreamErr := &UpstreamFailureError{TaskID: depID, UpstreamID: task.ID}
				_ = s.graph.MarkFailed(depID, upstreamErr)
				failures[depID] = upstreamErr
				s.logger.Warn("skipping dependent of failed task",
					"runID", runID, "task", depID, "upstream", task.ID)
				s.publishTask(events.TaskSkippedEvent{
					ID: depID, UpstreamID: task.ID, Timestamp: now,
				})
			}
		}
	}

	for {
		now := s.clock.Now()

		// 1. Reclaim running tasks that exceeded their class timeout.
		for _, task := range s.timeouts.Overdue(s.graph.Tasks(), now) {
			info, ok := inflight[task.ID]
			if !ok {
				continue
			}
			delete(inflight, task.ID)
			s.limiter.Release(info.token)
			running--

			timeout, _ := s.timeouts.TimeoutFor(task.WorkerClass)
			s.logger.Warn("task reclaimed after timeout",
				"runID", runID, "task", task.ID, "timeout", timeout)
			s.publishTask(events.TaskTimedOutEvent{ID: task.ID, After: timeout, Timestamp: now})
			fail(task, &TimeoutError{TaskID: task.ID, Timeout: timeout})
		}

		// 2. Promote retries whose backoff has elapsed.
		for waiting.Len() > 0 && !(*waiting)[0].readyAt.After(now) {
			entry := heap.Pop(waiting).(*retryEntry)
			_ = s.graph.MarkReady(entry.id)
		}

		// 3. Dispatch ready tasks while slots allow.
		if !halted && !canceled {
			for _, task := range s.graph.ReadySet() {
				token, ok := s.limiter.TryAcquire(task.WorkerClass)
				if !ok {
					continue
				}
				if err := s.graph.MarkRunning(task.ID, now); err != nil {
					s.limiter.Release(token)
					continue
				}
				current, _ := s.graph.Get(task.ID)
				inflight[task.ID] = inflightAttempt{attempt: current.Attempts, token: token}
				running++

				s.logger.Info("task dispatched",
					"runID", runID, "task", task.ID, "workerClass", task.WorkerClass, "attempt", current.Attempts)
				s.publishTask(events.TaskStartedEvent{
					ID: current.ID, Description: current.Description, WorkerClass: current.WorkerClass,
					Attempt: current.Attempts, Timestamp: now,
				})
				go s.execute(ctx, *current, current.Attempts, completions)
			}
		}

		// 4. Progress + terminal checks.
		counts := s.graph.Counts()
		if !progressInit || counts != lastProgress {
			progressInit = true
			lastProgress = counts
			s.publishProgress(runID, counts)
		}

		if running == 0 && waiting.Len() == 0 {
			if halted || canceled {
				break
			}
			remaining := counts.Pending + counts.Ready
			if remaining == 0 {
				break
			}
			if counts.Ready == 0 {
				// Nothing running, nothing ready, nothing waiting on a
				// retry timer, yet tasks remain pending: the live graph
				// cannot make progress.
				stuck := s.graph.PendingIDs()
				s.logger.Error("run stalled on unsatisfiable dependencies",
					"runID", runID, "stuck", stuck)
				collectResults(s.graph, results)
				return results, &CycleDetectedError{Stuck: stuck}
			}
			// Ready tasks exist; loop around and dispatch them.
			continue
		}

		// 5. Sleep until the next event: a completion, a retry coming due,
		// a timeout deadline, or cancellation.
		var timer <-chan time.Time
		if wake, ok := s.nextWake(waiting); ok {
			d := wake.Sub(s.clock.Now())
			if d < 0 {
				d = 0
			}
			timer = s.clock.After(d)
		}

		select {
		case c := <-completions:
			info, ok := inflight[c.id]
			if !ok || info.attempt != c.attempt {
				// Result of a reclaimed attempt arriving late; slot was
				// already released.
				s.logger.Debug("discarding late result", "runID", runID, "task", c.id, "attempt", c.attempt)
				continue
			}
			delete(inflight, c.id)
			s.limiter.Release(info.token)
			running--

			task, _ := s.graph.Get(c.id)
			if c.err == nil {
				res := c.result
				res.Attempts = task.Attempts
				res.Duration = s.clock.Now().Sub(c.started)
				_ = s.graph.MarkCompleted(c.id, res)
				results[c.id] = res
				s.logger.Info("task completed",
					"runID", runID, "task", c.id, "attempts", res.Attempts, "duration", res.Duration)
				s.publishTask(events.TaskCompletedEvent{
					ID: c.id, Output: res.Output, Attempts: res.Attempts,
					Duration: res.Duration, Timestamp: s.clock.Now(),
				})
			} else {
				s.logger.Warn("task attempt failed",
					"runID", runID, "task", c.id, "attempt", task.Attempts, "error", c.err)
				fail(task, c.err)
			}

		case <-timer:
			// Re-run the tick: a retry came due or a timeout expired.

		case <-ctxDone:
			canceled = true
			ctxDone = nil
			s.logger.Warn("run canceled, draining in-flight tasks", "runID", runID, "error", ctx.Err())
			abandonWaiting()
		}
	}

	s.publishProgress(runID, s.graph.Counts())
	collectResults(s.graph, results)

	if len(failures) > 0 {
		s.logger.Error("run finished with failures", "runID", runID, "failed", len(failures), "completed", len(results))
		return results, &RunError{Failures: failures}
	}
	if canceled {
		return results, ctx.Err()
	}
	s.logger.Info("run finished", "runID", runID, "completed", len(results))
	return results, nil
}

// execute performs one attempt of one task and reports the outcome. It runs
// in its own goroutine; the out channel is buffered for every attempt the
// run can make, so a late send never blocks.
func (s *Scheduler) execute(ctx context.Context, task Task, attempt int, out chan<- completion) {
	started := s.clock.Now()

	s.mu.Lock()
	ex, ok := s.executors[task.WorkerClass]
	s.mu.Unlock()
	if !ok {
		out <- completion{
			id: task.ID, attempt: attempt, started: started,
			err: &AgentUnavailableError{WorkerClass: task.WorkerClass},
		}
		return
	}

	var (
		res Result
		err error
	)
	if s.breakers != nil {
		var v interface{}
		v, err = s.breakers.Get(task.WorkerClass).Execute(func() (interface{}, error) {
			return ex.Execute(ctx, task)
		})
		if err == nil {
			res = v.(Result)
		}
	} else {
		res, err = ex.Execute(ctx, task)
	}

	if err != nil {
		err = &AgentExecutionError{TaskID: task.ID, Err: err}
	}
	out <- completion{id: task.ID, attempt: attempt, result: res, err: err, started: started}
}

// nextWake returns the earliest instant the loop must wake at without an
// external event: the next retry coming due or the next timeout deadline.
func (s *Scheduler) nextWake(waiting *retryQueue) (time.Time, bool) {
	var wake time.Time
	found := false

	if waiting.Len() > 0 {
		wake = (*waiting)[0].readyAt
		found = true
	}
	if deadline, ok := s.timeouts.NextDeadline(s.graph.Tasks()); ok {
		if !found || deadline.Before(wake) {
			wake = deadline
			found = true
		}
	}
	return wake, found
}

func (s *Scheduler) publishTask(ev events.Event) {
	s.cfg.Bus.Publish(events.TopicTask, ev)
}

func (s *Scheduler) publishProgress(runID string, counts StatusCounts) {
	s.cfg.Bus.Publish(events.TopicRun, events.RunProgressEvent{
		RunID:     runID,
		Total:     s.graph.Len(),
		Pending:   counts.Pending,
		Ready:     counts.Ready,
		Running:   counts.Running,
		Completed: counts.Completed,
		Failed:    counts.Failed,
		Timestamp: s.clock.Now(),
	})
}

// collectResults copies every completed task's result into out. Results of
// tasks that completed before a halt or cancellation are never discarded.
func collectResults(g *TaskGraph, out map[string]Result) {
	for _, task := range g.Tasks() {
		if task.Status == TaskCompleted {
			out[task.ID] = task.Result
		}
	}
}

// retryEntry is one delayed requeue: the task re-enters the ready set once
// readyAt has passed.
type retryEntry struct {
	id      string
	readyAt time.Time
}

// retryQueue is a min-heap of retryEntry ordered by readyAt, so backoff is
// data polled by the loop rather than a spawned timer per retry.
type retryQueue []*retryEntry

func (q retryQueue) Len() int            { return len(q) }
func (q retryQueue) Less(i, j int) bool  { return q[i].readyAt.Before(q[j].readyAt) }
func (q retryQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *retryQueue) Push(x interface{}) { *q = append(*q, x.(*retryEntry)) }
func (q *retryQueue) Pop() interface{} {
	old := *q
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return entry
}
