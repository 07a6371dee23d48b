package agent

import (
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/aristath/dispatch/internal/config"
	"github.com/aristath/dispatch/internal/scheduler"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestCommandExecutorCapturesOutput(t *testing.T) {
	skipWithoutShell(t)

	ex, err := NewCommandExecutor("echo", []string{"-n", "worker:"}, "")
	if err != nil {
		t.Fatalf("NewCommandExecutor failed: %v", err)
	}

	res, err := ex.Execute(context.Background(), scheduler.Task{
		ID:          "t1",
		Description: "build the thing",
		WorkerClass: "backend",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Output != "worker: build the thing" {
		t.Errorf("unexpected output %q", res.Output)
	}
}

func TestCommandExecutorFailure(t *testing.T) {
	skipWithoutShell(t)

	ex, err := NewCommandExecutor("sh", []string{"-c", "echo diagnostics >&2; exit 3", "--"}, "")
	if err != nil {
		t.Fatalf("NewCommandExecutor failed: %v", err)
	}

	_, err = ex.Execute(context.Background(), scheduler.Task{ID: "t1", Description: "ignored"})
	if err == nil {
		t.Fatal("expected an error for a nonzero exit")
	}
	if !strings.Contains(err.Error(), "diagnostics") {
		t.Errorf("error should carry captured output, got %v", err)
	}
}

func TestCommandExecutorHonorsContext(t *testing.T) {
	skipWithoutShell(t)

	ex, err := NewCommandExecutor("sleep", []string{"10"}, "")
	if err != nil {
		t.Fatalf("NewCommandExecutor failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ex.Execute(ctx, scheduler.Task{ID: "t1"}); err == nil {
		t.Fatal("expected an error with a cancelled context")
	}
}

func TestCommandExecutorRequiresCommand(t *testing.T) {
	if _, err := NewCommandExecutor("", nil, ""); err == nil {
		t.Fatal("expected an error for an empty command")
	}
}

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ExecutorConfig
		wantErr bool
	}{
		{
			name: "command executor",
			cfg:  config.ExecutorConfig{Type: "command", Command: "echo"},
		},
		{
			name: "http executor",
			cfg:  config.ExecutorConfig{Type: "http", Endpoint: "http://localhost:8080/run"},
		},
		{
			name:    "command without binary",
			cfg:     config.ExecutorConfig{Type: "command"},
			wantErr: true,
		},
		{
			name:    "http without endpoint",
			cfg:     config.ExecutorConfig{Type: "http"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			cfg:     config.ExecutorConfig{Type: "carrier-pigeon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if ex == nil {
				t.Fatal("expected an executor")
			}
		})
	}
}
