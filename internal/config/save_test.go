package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Scheduler.GlobalMaxConcurrent = 7
	cfg.Scheduler.ClassTimeouts["ml"] = Duration(20 * time.Minute)
	cfg.Executors["ml"] = ExecutorConfig{Type: "http", Endpoint: "http://localhost:9090/run"}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Scheduler.GlobalMaxConcurrent != 7 {
		t.Errorf("expected global limit 7, got %d", loaded.Scheduler.GlobalMaxConcurrent)
	}
	if loaded.Scheduler.ClassTimeouts["ml"].Std() != 20*time.Minute {
		t.Errorf("expected ml timeout 20m, got %v", loaded.Scheduler.ClassTimeouts["ml"].Std())
	}
	if loaded.Executors["ml"].Endpoint != "http://localhost:9090/run" {
		t.Errorf("unexpected ml executor: %+v", loaded.Executors["ml"])
	}
}
