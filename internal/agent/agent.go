package agent

import (
	"fmt"

	"github.com/aristath/dispatch/internal/config"
	"github.com/aristath/dispatch/internal/scheduler"
)

// New creates an executor from configuration. This factory switches on
// cfg.Type and returns the appropriate implementation.
func New(cfg config.ExecutorConfig) (scheduler.AgentExecutor, error) {
	switch cfg.Type {
	case "command":
		return NewCommandExecutor(cfg.Command, cfg.Args, cfg.WorkDir)
	case "http":
		return NewHTTPExecutor(cfg.Endpoint)
	default:
		return nil, fmt.Errorf("unknown executor type: %s", cfg.Type)
	}
}
