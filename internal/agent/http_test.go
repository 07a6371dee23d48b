package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/dispatch/internal/scheduler"
)

func TestHTTPExecutorSuccess(t *testing.T) {
	var got taskRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte("all green"))
	}))
	defer srv.Close()

	ex, err := NewHTTPExecutor(srv.URL)
	if err != nil {
		t.Fatalf("NewHTTPExecutor failed: %v", err)
	}

	res, err := ex.Execute(context.Background(), scheduler.Task{
		ID:          "t1",
		Description: "run integration suite",
		WorkerClass: "testing",
		Attempts:    2,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if res.Output != "all green" {
		t.Errorf("unexpected output %q", res.Output)
	}
	if got.TaskID != "t1" || got.WorkerClass != "testing" || got.Attempt != 2 {
		t.Errorf("unexpected request payload: %+v", got)
	}
}

func TestHTTPExecutorNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "worker crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ex, err := NewHTTPExecutor(srv.URL)
	if err != nil {
		t.Fatalf("NewHTTPExecutor failed: %v", err)
	}

	if _, err := ex.Execute(context.Background(), scheduler.Task{ID: "t1"}); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestHTTPExecutorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	ex, err := NewHTTPExecutor(srv.URL)
	if err != nil {
		t.Fatalf("NewHTTPExecutor failed: %v", err)
	}

	if _, err := ex.Execute(context.Background(), scheduler.Task{ID: "t1"}); err == nil {
		t.Fatal("expected a transport error")
	}
}

func TestHTTPExecutorRequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPExecutor(""); err == nil {
		t.Fatal("expected an error for an empty endpoint")
	}
}
