// Package journal records what happened during scheduler runs in a local
// SQLite database for post-run inspection. It is a write-only observer fed
// from the event bus; the scheduler never reads it back, so scheduling
// itself stays stateless across runs.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aristath/dispatch/internal/events"
)

// Store is a SQLite-backed run journal.
type Store struct {
	db *sql.DB
}

// Open creates or opens a journal database at the given path.
// Creates parent directories if needed. Enables WAL mode and a busy timeout.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Required for modernc.org/sqlite; the connection string form is ignored
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// OpenMemory creates an in-memory journal for testing.
func OpenMemory(ctx context.Context) (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, runID)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// FinishRun records the end of a run and its aggregate error, if any.
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error) error {
	errStr := ""
	if runErr != nil {
		errStr = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = CURRENT_TIMESTAMP, error = ? WHERE id = ?`, errStr, runID)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// RecordEvent appends one task lifecycle event to the journal.
func (s *Store) RecordEvent(ctx context.Context, runID, taskID, event string, attempt int, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_events (run_id, task_id, event, attempt, detail)
		VALUES (?, ?, ?, ?, ?)
	`, runID, taskID, event, attempt, detail)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// Record translates a bus event into a journal row. Events that carry no
// task (run progress) are skipped.
func (s *Store) Record(ctx context.Context, runID string, ev events.Event) error {
	switch e := ev.(type) {
	case events.TaskStartedEvent:
		return s.RecordEvent(ctx, runID, e.ID, e.EventType(), e.Attempt, e.Description)
	case events.TaskCompletedEvent:
		return s.RecordEvent(ctx, runID, e.ID, e.EventType(), e.Attempts, e.Output)
	case events.TaskFailedEvent:
		detail := ""
		if e.Err != nil {
			detail = e.Err.Error()
		}
		return s.RecordEvent(ctx, runID, e.ID, e.EventType(), e.Attempts, detail)
	case events.TaskRetryingEvent:
		detail := fmt.Sprintf("retry in %s", e.Delay)
		if e.Err != nil {
			detail = fmt.Sprintf("%s: %v", detail, e.Err)
		}
		return s.RecordEvent(ctx, runID, e.ID, e.EventType(), e.Attempt, detail)
	case events.TaskTimedOutEvent:
		return s.RecordEvent(ctx, runID, e.ID, e.EventType(), 0, fmt.Sprintf("exceeded %s", e.After))
	case events.TaskSkippedEvent:
		return s.RecordEvent(ctx, runID, e.ID, e.EventType(), 0, fmt.Sprintf("upstream %s failed", e.UpstreamID))
	default:
		return nil
	}
}

// TaskEvent is one journal row.
type TaskEvent struct {
	TaskID    string
	Event     string
	Attempt   int
	Detail    string
	CreatedAt time.Time
}

// TaskEvents returns the recorded events of a run in insertion order.
func (s *Store) TaskEvents(ctx context.Context, runID string) ([]TaskEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, event, attempt, COALESCE(detail, ''), created_at
		FROM task_events WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []TaskEvent
	for rows.Next() {
		var ev TaskEvent
		if err := rows.Scan(&ev.TaskID, &ev.Event, &ev.Attempt, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
