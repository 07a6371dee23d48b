package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeWorkload(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workload.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write workload: %v", err)
	}
	return path
}

func TestLoadWorkload(t *testing.T) {
	path := writeWorkload(t, `{
		"name": "release",
		"tasks": [
			{"id": "build", "description": "compile the service", "worker_class": "backend"},
			{"id": "migrate", "description": "apply schema changes", "worker_class": "database", "priority": 1},
			{"id": "test", "description": "run the suite", "worker_class": "testing", "depends_on": ["build", "migrate"]}
		]
	}`)

	w, err := LoadWorkload(path)
	if err != nil {
		t.Fatalf("LoadWorkload failed: %v", err)
	}

	if w.Name != "release" {
		t.Errorf("expected name release, got %q", w.Name)
	}
	if len(w.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(w.Tasks))
	}
	if w.Tasks[1].Priority != 1 {
		t.Errorf("expected migrate priority 1, got %d", w.Tasks[1].Priority)
	}
	if len(w.Tasks[2].DependsOn) != 2 {
		t.Errorf("expected test to depend on 2 tasks, got %v", w.Tasks[2].DependsOn)
	}
}

func TestLoadWorkloadValidation(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		errContains string
	}{
		{
			name:        "missing file",
			content:     "",
			errContains: "reading workload",
		},
		{
			name:        "malformed JSON",
			content:     `{tasks:}`,
			errContains: "parsing workload",
		},
		{
			name:        "no tasks",
			content:     `{"tasks": []}`,
			errContains: "no tasks",
		},
		{
			name:        "missing id",
			content:     `{"tasks": [{"worker_class": "backend"}]}`,
			errContains: "has no id",
		},
		{
			name:        "missing worker class",
			content:     `{"tasks": [{"id": "a"}]}`,
			errContains: "has no worker_class",
		},
		{
			name: "duplicate id",
			content: `{"tasks": [
				{"id": "a", "worker_class": "backend"},
				{"id": "a", "worker_class": "frontend"}
			]}`,
			errContains: "duplicate task id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path string
			if tt.content == "" {
				path = filepath.Join(t.TempDir(), "nope.json")
			} else {
				path = writeWorkload(t, tt.content)
			}

			_, err := LoadWorkload(path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.errContains)
			}
		})
	}
}
