package config

import "time"

// DefaultConfig returns the default configuration: a conservative scheduler
// and a command executor per built-in worker class.
func DefaultConfig() *DispatchConfig {
	return &DispatchConfig{
		Scheduler: SchedulerSettings{
			GlobalMaxConcurrent: 5,
			MaxAttempts:         3,
			BackoffBase:         Duration(1 * time.Second),
			FailurePolicy:       "fail-fast",
			ClassTimeouts: map[string]Duration{
				"backend":  Duration(5 * time.Minute),
				"database": Duration(5 * time.Minute),
				"frontend": Duration(5 * time.Minute),
				"testing":  Duration(10 * time.Minute),
				"devops":   Duration(10 * time.Minute),
			},
		},
		Executors: map[string]ExecutorConfig{
			"backend": {
				Type:    "command",
				Command: "dispatch-worker",
				Args:    []string{"--class", "backend"},
			},
			"database": {
				Type:    "command",
				Command: "dispatch-worker",
				Args:    []string{"--class", "database"},
			},
			"frontend": {
				Type:    "command",
				Command: "dispatch-worker",
				Args:    []string{"--class", "frontend"},
			},
			"testing": {
				Type:    "command",
				Command: "dispatch-worker",
				Args:    []string{"--class", "testing"},
			},
			"devops": {
				Type:    "command",
				Command: "dispatch-worker",
				Args:    []string{"--class", "devops"},
			},
		},
	}
}
