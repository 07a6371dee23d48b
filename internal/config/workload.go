package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// WorkloadTask describes one task in a workload file.
type WorkloadTask struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	WorkerClass string   `json:"worker_class"`
	Priority    int      `json:"priority,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
}

// Workload is a set of tasks with inter-task dependencies, loaded from a
// JSON file and handed to the scheduler as one run.
type Workload struct {
	Name  string         `json:"name,omitempty"`
	Tasks []WorkloadTask `json:"tasks"`
}

// LoadWorkload reads and validates a workload file. Validation here is
// shallow: IDs and worker classes must be present and IDs unique. Dependency
// resolution and cycle detection belong to the scheduler.
func LoadWorkload(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload %s: %w", path, err)
	}

	var w Workload
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing workload %s: %w", path, err)
	}

	if len(w.Tasks) == 0 {
		return nil, fmt.Errorf("workload %s contains no tasks", path)
	}

	seen := make(map[string]bool, len(w.Tasks))
	for i, task := range w.Tasks {
		if task.ID == "" {
			return nil, fmt.Errorf("workload %s: task %d has no id", path, i)
		}
		if task.WorkerClass == "" {
			return nil, fmt.Errorf("workload %s: task %q has no worker_class", path, task.ID)
		}
		if seen[task.ID] {
			return nil, fmt.Errorf("workload %s: duplicate task id %q", path, task.ID)
		}
		seen[task.ID] = true
	}

	return &w, nil
}
