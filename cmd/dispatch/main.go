package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/dispatch/internal/agent"
	"github.com/aristath/dispatch/internal/config"
	"github.com/aristath/dispatch/internal/events"
	"github.com/aristath/dispatch/internal/journal"
	"github.com/aristath/dispatch/internal/scheduler"
	"github.com/aristath/dispatch/internal/tui"
)

func main() {
	workloadPath := flag.String("workload", "", "path to a workload JSON file")
	useTUI := flag.Bool("tui", false, "show the interactive run monitor")
	journalPath := flag.String("journal", "", "path to a SQLite run journal (optional)")
	flag.Parse()

	if *workloadPath == "" {
		fmt.Fprintln(os.Stderr, "usage: dispatch -workload <file> [-tui] [-journal <file>]")
		os.Exit(2)
	}

	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The TUI owns the terminal, so logs go nowhere while it is up.
	logOut := io.Writer(os.Stderr)
	if *useTUI {
		logOut = io.Discard
	}
	logger := slog.New(slog.NewTextHandler(logOut, nil))

	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	workload, err := config.LoadWorkload(*workloadPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading workload: %v\n", err)
		os.Exit(1)
	}

	policy, err := scheduler.ParseFailurePolicy(cfg.Scheduler.FailurePolicy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in config: %v\n", err)
		os.Exit(1)
	}

	classTimeouts := make(map[string]time.Duration, len(cfg.Scheduler.ClassTimeouts))
	for class, d := range cfg.Scheduler.ClassTimeouts {
		classTimeouts[class] = d.Std()
	}

	bus := events.NewEventBus()

	sched := scheduler.New(scheduler.Config{
		GlobalMaxConcurrent: cfg.Scheduler.GlobalMaxConcurrent,
		ClassLimits:         cfg.Scheduler.ClassLimits,
		ClassTimeouts:       classTimeouts,
		Retry: scheduler.RetryPolicy{
			MaxAttempts: cfg.Scheduler.MaxAttempts,
			BackoffBase: cfg.Scheduler.BackoffBase.Std(),
			Jitter:      cfg.Scheduler.BackoffJitter,
		},
		FailurePolicy:     policy,
		PreflightValidate: cfg.Scheduler.PreflightValidate,
		BreakerEnabled:    cfg.Scheduler.CircuitBreaker,
		Bus:               bus,
		Logger:            logger,
	})

	for class, exCfg := range cfg.Executors {
		ex, err := agent.New(exCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error configuring executor for %s: %v\n", class, err)
			os.Exit(1)
		}
		sched.RegisterExecutor(class, ex)
	}

	for _, t := range workload.Tasks {
		task := &scheduler.Task{
			ID:          t.ID,
			Description: t.Description,
			WorkerClass: t.WorkerClass,
			Priority:    t.Priority,
			DependsOn:   t.DependsOn,
		}
		if err := sched.AddTask(task); err != nil {
			fmt.Fprintf(os.Stderr, "Error adding task %s: %v\n", t.ID, err)
			os.Exit(1)
		}
	}

	// The journal tails the bus and is flushed after the run finishes.
	var (
		store       *journal.Store
		journalRun  string
		journalDone chan struct{}
	)
	if *journalPath != "" {
		store, err = journal.Open(ctx, *journalPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		journalRun = uuid.NewString()
		if err := store.BeginRun(ctx, journalRun); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting journal run: %v\n", err)
			os.Exit(1)
		}

		sub := bus.SubscribeAll(events.DefaultBufSize)
		journalDone = make(chan struct{})
		go func() {
			defer close(journalDone)
			for ev := range sub {
				if err := store.Record(context.Background(), journalRun, ev); err != nil {
					logger.Warn("journal write failed", "error", err)
				}
			}
		}()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		results map[string]scheduler.Result
		runErr  error
	)
	if *useTUI {
		p := tea.NewProgram(tui.New(bus), tea.WithAltScreen())
		g := new(errgroup.Group)
		g.Go(func() error {
			_, err := p.Run()
			// TUI gone; stop dispatching and let in-flight tasks drain.
			cancel()
			return err
		})
		g.Go(func() error {
			results, runErr = sched.Run(runCtx)
			return nil
		})
		if err := g.Wait(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	} else {
		results, runErr = sched.Run(runCtx)
	}

	if store != nil {
		if err := store.FinishRun(context.Background(), journalRun, runErr); err != nil {
			logger.Warn("journal finish failed", "error", err)
		}
	}
	bus.Close()
	if journalDone != nil {
		<-journalDone
	}

	printSummary(results, runErr)
	if runErr != nil {
		os.Exit(1)
	}
}

// printSummary writes a plain-text run summary to stdout.
func printSummary(results map[string]scheduler.Result, runErr error) {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("Completed: %d\n", len(results))
	for _, id := range ids {
		res := results[id]
		fmt.Printf("  %-20s %d attempt(s)  %v\n", id, res.Attempts, res.Duration)
	}

	var run *scheduler.RunError
	if errors.As(runErr, &run) {
		failed := make([]string, 0, len(run.Failures))
		for id := range run.Failures {
			failed = append(failed, id)
		}
		sort.Strings(failed)

		fmt.Printf("Failed: %d\n", len(failed))
		for _, id := range failed {
			fmt.Printf("  %-20s %v\n", id, run.Failures[id])
		}
	} else if runErr != nil {
		fmt.Printf("Run aborted: %v\n", runErr)
	}
}
