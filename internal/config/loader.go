package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config,
// defaults. Missing files are not errors; malformed JSON is.
func Load(globalPath, projectPath string) (*DispatchConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.dispatch/config.json
// Project: .dispatch/config.json (relative to cwd)
func LoadDefault() (*DispatchConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".dispatch", "config.json")
	projectPath := filepath.Join(".dispatch", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into the base
// config. Missing files are silently skipped.
func mergeConfigFile(base *DispatchConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded DispatchConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	mergeScheduler(&base.Scheduler, loaded.Scheduler)
	for class, executor := range loaded.Executors {
		base.Executors[class] = executor
	}

	return nil
}

// mergeScheduler overlays non-zero fields of src onto dst. Maps are merged
// per key so a project file can override one class without restating all.
func mergeScheduler(dst *SchedulerSettings, src SchedulerSettings) {
	if src.GlobalMaxConcurrent > 0 {
		dst.GlobalMaxConcurrent = src.GlobalMaxConcurrent
	}
	if src.MaxAttempts > 0 {
		dst.MaxAttempts = src.MaxAttempts
	}
	if src.BackoffBase > 0 {
		dst.BackoffBase = src.BackoffBase
	}
	if src.BackoffJitter {
		dst.BackoffJitter = true
	}
	if src.FailurePolicy != "" {
		dst.FailurePolicy = src.FailurePolicy
	}
	if src.PreflightValidate {
		dst.PreflightValidate = true
	}
	if src.CircuitBreaker {
		dst.CircuitBreaker = true
	}
	for class, limit := range src.ClassLimits {
		if dst.ClassLimits == nil {
			dst.ClassLimits = make(map[string]int)
		}
		dst.ClassLimits[class] = limit
	}
	for class, timeout := range src.ClassTimeouts {
		if dst.ClassTimeouts == nil {
			dst.ClassTimeouts = make(map[string]Duration)
		}
		dst.ClassTimeouts[class] = timeout
	}
}
