package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type funcRunner func(ctx context.Context) error

func (f funcRunner) Run(ctx context.Context) error { return f(ctx) }

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestOrchestratorCleanShutdown(t *testing.T) {
	o := NewOrchestrator(discardLogger())

	var started atomic.Int32
	blockUntilCancel := funcRunner(func(ctx context.Context) error {
		started.Add(1)
		<-ctx.Done()
		return ctx.Err()
	})
	o.Add("a", blockUntilCancel)
	o.Add("b", blockUntilCancel)
	o.Add("skipped", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for started.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("jobs did not start")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v on clean shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestOrchestratorJobFailureCancelsSiblings(t *testing.T) {
	o := NewOrchestrator(discardLogger())

	jobErr := errors.New("feed died")
	o.Add("failing", funcRunner(func(ctx context.Context) error {
		return jobErr
	}))

	siblingStopped := make(chan struct{})
	o.Add("sibling", funcRunner(func(ctx context.Context) error {
		<-ctx.Done()
		close(siblingStopped)
		return ctx.Err()
	}))

	err := o.Run(context.Background())
	if err == nil || !errors.Is(err, jobErr) {
		t.Fatalf("Run = %v, want the job error", err)
	}

	select {
	case <-siblingStopped:
	case <-time.After(2 * time.Second):
		t.Fatal("sibling was not cancelled after job failure")
	}
}

func TestOrchestratorNoJobsWaitsForContext(t *testing.T) {
	o := NewOrchestrator(discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestOrchestratorJobFinishingCleanlyKeepsSiblingsRunning(t *testing.T) {
	o := NewOrchestrator(discardLogger())

	o.Add("oneshot", funcRunner(func(context.Context) error {
		return nil
	}))
	var siblingCancelled atomic.Bool
	o.Add("sibling", funcRunner(func(ctx context.Context) error {
		<-ctx.Done()
		siblingCancelled.Store(true)
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	// The one-shot job returning nil must not tear the group down.
	time.Sleep(50 * time.Millisecond)
	if siblingCancelled.Load() {
		t.Fatal("sibling was cancelled by a job that finished cleanly")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want clean shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
