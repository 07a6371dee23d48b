package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aristath/dispatch/internal/scheduler"
)

// taskRequest is the JSON body POSTed to an agent service endpoint.
type taskRequest struct {
	TaskID      string `json:"task_id"`
	Description string `json:"description"`
	WorkerClass string `json:"worker_class"`
	Attempt     int    `json:"attempt"`
}

// HTTPExecutor performs a task by POSTing it to an agent service endpoint
// and returning the response body as the result. Non-2xx responses are
// execution failures, so the scheduler's retry policy applies to them.
type HTTPExecutor struct {
	endpoint string
	client   *http.Client
}

// NewHTTPExecutor creates an HTTP executor for the given endpoint.
func NewHTTPExecutor(endpoint string) (*HTTPExecutor, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("http executor requires an endpoint")
	}
	return &HTTPExecutor{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Minute},
	}, nil
}

// Execute POSTs one task attempt to the endpoint.
func (e *HTTPExecutor) Execute(ctx context.Context, task scheduler.Task) (scheduler.Result, error) {
	body, err := json.Marshal(taskRequest{
		TaskID:      task.ID,
		Description: task.Description,
		WorkerClass: task.WorkerClass,
		Attempt:     task.Attempts,
	})
	if err != nil {
		return scheduler.Result{}, fmt.Errorf("encoding task %q: %w", task.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return scheduler.Result{}, fmt.Errorf("building request for task %q: %w", task.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return scheduler.Result{}, fmt.Errorf("calling %s: %w", e.endpoint, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return scheduler.Result{}, fmt.Errorf("reading response for task %q: %w", task.ID, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return scheduler.Result{}, fmt.Errorf("%s returned %s: %s", e.endpoint, resp.Status, string(out))
	}

	return scheduler.Result{Output: string(out)}, nil
}
