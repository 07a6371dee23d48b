package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/aristath/dispatch/internal/scheduler"
)

// CommandExecutor performs a task by invoking a worker binary with the task
// description appended as the final argument, the way an agent CLI is
// driven. Standard output and standard error are captured as the result.
//
// Each Execute call spawns its own process, so one CommandExecutor is safe
// to share across concurrent attempts.
type CommandExecutor struct {
	command string
	args    []string
	workDir string
}

// NewCommandExecutor creates a command executor. command must not be empty.
func NewCommandExecutor(command string, args []string, workDir string) (*CommandExecutor, error) {
	if command == "" {
		return nil, fmt.Errorf("command executor requires a command")
	}
	return &CommandExecutor{
		command: command,
		args:    append([]string(nil), args...),
		workDir: workDir,
	}, nil
}

// Execute runs the configured command for one task attempt.
func (e *CommandExecutor) Execute(ctx context.Context, task scheduler.Task) (scheduler.Result, error) {
	args := append(append([]string(nil), e.args...), task.Description)
	cmd := exec.CommandContext(ctx, e.command, args...)
	if e.workDir != "" {
		cmd.Dir = e.workDir
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return scheduler.Result{}, fmt.Errorf("%s: %w (output: %s)",
			e.command, err, strings.TrimSpace(out.String()))
	}

	return scheduler.Result{Output: strings.TrimSpace(out.String())}, nil
}
