package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that marshals as a Go duration string
// ("30s", "2m") and also accepts plain nanosecond numbers.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalJSON encodes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes either a duration string or a nanosecond number.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration value %v", v)
	}
}

// SchedulerSettings configures the scheduling core.
type SchedulerSettings struct {
	GlobalMaxConcurrent int                 `json:"global_max_concurrent"`          // default 5
	ClassLimits         map[string]int      `json:"class_limits,omitempty"`         // workerClass -> max concurrent
	ClassTimeouts       map[string]Duration `json:"class_timeouts,omitempty"`       // workerClass -> attempt timeout
	MaxAttempts         int                 `json:"max_attempts"`                   // default 3
	BackoffBase         Duration            `json:"backoff_base"`                   // default 1s
	BackoffJitter       bool                `json:"backoff_jitter,omitempty"`       // default off
	FailurePolicy       string              `json:"failure_policy"`                 // "fail-fast" (default) or "continue"
	PreflightValidate   bool                `json:"preflight_validate,omitempty"`   // eager cycle check before dispatch
	CircuitBreaker      bool                `json:"circuit_breaker,omitempty"`      // per-class breakers around executors
}

// ExecutorConfig defines how tasks of one worker class are executed.
type ExecutorConfig struct {
	Type     string   `json:"type"`               // "command" or "http"
	Command  string   `json:"command,omitempty"`  // Binary invoked with the task description appended
	Args     []string `json:"args,omitempty"`     // Default args prepended before the description
	WorkDir  string   `json:"work_dir,omitempty"` // Working directory for command executors
	Endpoint string   `json:"endpoint,omitempty"` // URL the task is POSTed to for http executors
}

// DispatchConfig is the top-level configuration.
type DispatchConfig struct {
	Scheduler SchedulerSettings         `json:"scheduler"`
	Executors map[string]ExecutorConfig `json:"executors"` // workerClass -> executor
}
