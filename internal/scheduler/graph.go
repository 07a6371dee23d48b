package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gammazero/toposort"
)

// TaskGraph owns the set of tasks and their declared dependencies.
//
// The graph does not reject cycles at insertion time; cycles are observed
// dynamically by the scheduler when the ready set runs dry, or eagerly via
// Validate if the caller asks for a preflight check.
type TaskGraph struct {
	mu         sync.RWMutex
	tasks      map[string]*Task    // All tasks indexed by ID
	dependents map[string][]string // Maps taskID -> list of tasks that depend on it
}

// NewTaskGraph creates an empty TaskGraph.
func NewTaskGraph() *TaskGraph {
	return &TaskGraph{
		tasks:      make(map[string]*Task),
		dependents: make(map[string][]string),
	}
}

// AddTask adds a task to the graph. Returns DuplicateTaskError if the ID is
// already registered and rejects tasks that list themselves as a dependency.
// The task is cloned; the caller's copy is never mutated.
func (g *TaskGraph) AddTask(task *Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if task.ID == "" {
		return fmt.Errorf("task ID must not be empty")
	}
	if _, exists := g.tasks[task.ID]; exists {
		return &DuplicateTaskError{ID: task.ID}
	}
	for _, depID := range task.DependsOn {
		if depID == task.ID {
			return fmt.Errorf("task %q must not depend on itself", task.ID)
		}
	}

	cp := cloneTask(task)
	cp.Status = TaskPending
	cp.Attempts = 0
	g.tasks[cp.ID] = cp

	// Build dependents map for efficient downstream lookup
	for _, depID := range cp.DependsOn {
		g.dependents[depID] = append(g.dependents[depID], cp.ID)
	}

	return nil
}

// CheckDependencies verifies every declared dependency is registered.
// Returns UnknownDependencyError for the first missing one (lowest task ID
// first, so the error is deterministic).
func (g *TaskGraph) CheckDependencies() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := g.sortedIDs()
	for _, id := range ids {
		for _, depID := range g.tasks[id].DependsOn {
			if _, exists := g.tasks[depID]; !exists {
				return &UnknownDependencyError{TaskID: id, DependencyID: depID}
			}
		}
	}
	return nil
}

// Validate runs a topological sort over the whole graph. Returns the sorted
// task IDs, or CycleDetectedError naming the tasks stuck on a cycle.
// Dependencies must already be registered (see CheckDependencies).
func (g *TaskGraph) Validate() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var edges []toposort.Edge
	for taskID, task := range g.tasks {
		if len(task.DependsOn) == 0 {
			// Edge from nil ensures isolated tasks appear in the result
			edges = append(edges, toposort.Edge{nil, taskID})
		} else {
			for _, depID := range task.DependsOn {
				// Edge (depID, taskID): depID must come before taskID
				edges = append(edges, toposort.Edge{depID, taskID})
			}
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, &CycleDetectedError{Stuck: g.unreachableLocked()}
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order, nil
}

// unreachableLocked returns, sorted, the IDs of tasks that can never start:
// a Kahn-style peel removes every task whose dependencies can all complete,
// and whatever remains is stuck on a cycle. Caller must hold g.mu.
func (g *TaskGraph) unreachableLocked() []string {
	resolved := make(map[string]bool, len(g.tasks))
	for {
		progressed := false
		for id, task := range g.tasks {
			if resolved[id] {
				continue
			}
			ok := true
			for _, depID := range task.DependsOn {
				if dep, exists := g.tasks[depID]; !exists || !resolved[dep.ID] {
					ok = false
					break
				}
			}
			if ok {
				resolved[id] = true
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	var stuck []string
	for id := range g.tasks {
		if !resolved[id] {
			stuck = append(stuck, id)
		}
	}
	sort.Strings(stuck)
	return stuck
}

// ReadySet promotes every pending task whose dependencies have all completed
// to TaskReady, then returns the ready tasks ordered by (priority ascending,
// ID ascending). Returned tasks are clones.
func (g *TaskGraph) ReadySet() []*Task {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, task := range g.tasks {
		if task.Status != TaskPending {
			continue
		}

		allCompleted := true
		for _, depID := range task.DependsOn {
			dep, exists := g.tasks[depID]
			if !exists || dep.Status != TaskCompleted {
				allCompleted = false
				break
			}
		}
		if allCompleted {
			task.Status = TaskReady
		}
	}

	ready := []*Task{}
	for _, task := range g.tasks {
		if task.Status == TaskReady {
			ready = append(ready, cloneTask(task))
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority < ready[j].Priority
		}
		return ready[i].ID < ready[j].ID
	})

	return ready
}

// MarkRunning transitions a ready task to TaskRunning, recording the attempt
// start time and incrementing the attempt counter.
func (g *TaskGraph) MarkRunning(taskID string, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	if task.Status != TaskReady {
		return fmt.Errorf("task %q is not ready (status: %s)", taskID, task.Status)
	}

	task.Status = TaskRunning
	task.StartedAt = now
	task.Attempts++
	return nil
}

// MarkReady transitions a failed task back to TaskReady after its retry
// delay has elapsed.
func (g *TaskGraph) MarkReady(taskID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	if task.Status != TaskFailed {
		return fmt.Errorf("task %q is not failed (status: %s)", taskID, task.Status)
	}

	task.Status = TaskReady
	return nil
}

// MarkCompleted transitions a task to TaskCompleted and stores its result.
func (g *TaskGraph) MarkCompleted(taskID string, result Result) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}

	task.Status = TaskCompleted
	task.Result = result
	task.LastError = nil
	return nil
}

// MarkFailed transitions a task to TaskFailed and stores the error.
func (g *TaskGraph) MarkFailed(taskID string, err error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}

	task.Status = TaskFailed
	task.LastError = err
	return nil
}

// Get returns a clone of the task with the given ID.
func (g *TaskGraph) Get(taskID string) (*Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Tasks returns clones of all tasks.
func (g *TaskGraph) Tasks() []*Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tasks := make([]*Task, 0, len(g.tasks))
	for _, task := range g.tasks {
		tasks = append(tasks, cloneTask(task))
	}
	return tasks
}

// Len returns the number of registered tasks.
func (g *TaskGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}

// StatusCounts reports how many tasks are in each state.
type StatusCounts struct {
	Pending   int
	Ready     int
	Running   int
	Completed int
	Failed    int
}

// Counts tallies task statuses for progress reporting.
func (g *TaskGraph) Counts() StatusCounts {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var c StatusCounts
	for _, task := range g.tasks {
		switch task.Status {
		case TaskPending:
			c.Pending++
		case TaskReady:
			c.Ready++
		case TaskRunning:
			c.Running++
		case TaskCompleted:
			c.Completed++
		case TaskFailed:
			c.Failed++
		}
	}
	return c
}

// TransitiveDependents returns, sorted, every task that directly or
// indirectly depends on the given task.
func (g *TaskGraph) TransitiveDependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	queue := append([]string(nil), g.dependents[taskID]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		queue = append(queue, g.dependents[id]...)
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PendingIDs returns, sorted, the IDs of tasks still waiting on their
// dependencies. When the scheduler stalls these are the stuck tasks.
func (g *TaskGraph) PendingIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ids []string
	for id, task := range g.tasks {
		if task.Status == TaskPending {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// sortedIDs returns all task IDs in ascending order. Caller must hold g.mu.
func (g *TaskGraph) sortedIDs() []string {
	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
