package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, name string, cfg *DispatchConfig) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		globalConfig  *DispatchConfig
		projectConfig *DispatchConfig
		check         func(t *testing.T, cfg *DispatchConfig)
	}{
		{
			name: "no config files returns defaults",
			check: func(t *testing.T, cfg *DispatchConfig) {
				if cfg.Scheduler.GlobalMaxConcurrent != 5 {
					t.Errorf("expected default global limit 5, got %d", cfg.Scheduler.GlobalMaxConcurrent)
				}
				if cfg.Scheduler.MaxAttempts != 3 {
					t.Errorf("expected default max attempts 3, got %d", cfg.Scheduler.MaxAttempts)
				}
				if cfg.Scheduler.FailurePolicy != "fail-fast" {
					t.Errorf("expected fail-fast default, got %q", cfg.Scheduler.FailurePolicy)
				}
				if _, ok := cfg.Executors["backend"]; !ok {
					t.Error("expected a default backend executor")
				}
			},
		},
		{
			name: "global only overrides scalar settings",
			globalConfig: &DispatchConfig{
				Scheduler: SchedulerSettings{
					GlobalMaxConcurrent: 8,
					BackoffBase:         Duration(250 * time.Millisecond),
				},
			},
			check: func(t *testing.T, cfg *DispatchConfig) {
				if cfg.Scheduler.GlobalMaxConcurrent != 8 {
					t.Errorf("expected global limit 8, got %d", cfg.Scheduler.GlobalMaxConcurrent)
				}
				if cfg.Scheduler.BackoffBase.Std() != 250*time.Millisecond {
					t.Errorf("expected backoff 250ms, got %v", cfg.Scheduler.BackoffBase.Std())
				}
				// Untouched settings keep their defaults.
				if cfg.Scheduler.MaxAttempts != 3 {
					t.Errorf("expected default max attempts, got %d", cfg.Scheduler.MaxAttempts)
				}
			},
		},
		{
			name: "project overrides global",
			globalConfig: &DispatchConfig{
				Scheduler: SchedulerSettings{FailurePolicy: "continue", MaxAttempts: 5},
			},
			projectConfig: &DispatchConfig{
				Scheduler: SchedulerSettings{MaxAttempts: 2},
			},
			check: func(t *testing.T, cfg *DispatchConfig) {
				if cfg.Scheduler.MaxAttempts != 2 {
					t.Errorf("project should win: expected 2 attempts, got %d", cfg.Scheduler.MaxAttempts)
				}
				if cfg.Scheduler.FailurePolicy != "continue" {
					t.Errorf("global setting lost: expected continue, got %q", cfg.Scheduler.FailurePolicy)
				}
			},
		},
		{
			name: "maps merge per key",
			globalConfig: &DispatchConfig{
				Scheduler: SchedulerSettings{
					ClassLimits: map[string]int{"backend": 2, "database": 1},
				},
			},
			projectConfig: &DispatchConfig{
				Scheduler: SchedulerSettings{
					ClassLimits:   map[string]int{"backend": 4},
					ClassTimeouts: map[string]Duration{"frontend": Duration(time.Minute)},
				},
				Executors: map[string]ExecutorConfig{
					"ml": {Type: "http", Endpoint: "http://localhost:9090/run"},
				},
			},
			check: func(t *testing.T, cfg *DispatchConfig) {
				if cfg.Scheduler.ClassLimits["backend"] != 4 {
					t.Errorf("expected backend limit 4, got %d", cfg.Scheduler.ClassLimits["backend"])
				}
				if cfg.Scheduler.ClassLimits["database"] != 1 {
					t.Error("global database limit lost in merge")
				}
				if cfg.Scheduler.ClassTimeouts["frontend"].Std() != time.Minute {
					t.Error("project frontend timeout not applied")
				}
				// Default timeouts survive alongside merged ones.
				if cfg.Scheduler.ClassTimeouts["testing"].Std() != 10*time.Minute {
					t.Error("default testing timeout lost in merge")
				}
				if cfg.Executors["ml"].Endpoint != "http://localhost:9090/run" {
					t.Error("project executor not merged")
				}
				if _, ok := cfg.Executors["backend"]; !ok {
					t.Error("default executor lost in merge")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			globalPath := filepath.Join(dir, "global.json")
			projectPath := filepath.Join(dir, "project.json")

			if tt.globalConfig != nil {
				writeConfig(t, dir, "global.json", tt.globalConfig)
			}
			if tt.projectConfig != nil {
				writeConfig(t, dir, "project.json", tt.projectConfig)
			}

			cfg, err := Load(globalPath, projectPath)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path, ""); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestDurationJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{name: "duration string", in: `"90s"`, want: 90 * time.Second},
		{name: "compound string", in: `"1h30m"`, want: 90 * time.Minute},
		{name: "nanosecond number", in: `1000000000`, want: time.Second},
		{name: "garbage string", in: `"soon"`, wantErr: true},
		{name: "wrong type", in: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if d.Std() != tt.want {
				t.Errorf("expected %v, got %v", tt.want, d.Std())
			}
		})
	}

	// Round trip through the string form.
	out, err := json.Marshal(Duration(5 * time.Minute))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != `"5m0s"` {
		t.Errorf("expected \"5m0s\", got %s", out)
	}
}
