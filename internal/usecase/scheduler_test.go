package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/teamwarden/teamwarden/internal/domain/runstatus"
	"github.com/teamwarden/teamwarden/internal/platform/logging"
)

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	done    chan error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
		done:    make(chan error, 1),
	}
}

func (r *blockingRunner) Run(ctx context.Context) error {
	close(r.started)
	select {
	case <-r.release:
		r.done <- nil
		return nil
	case <-ctx.Done():
		r.done <- ctx.Err()
		return ctx.Err()
	}
}

func TestScheduler_SecondTriggerRejectedWhileRunning(t *testing.T) {
	t.Parallel()

	runner := newBlockingRunner()
	scheduler, err := NewRunScheduler(runner, &stubRunStatusRepo{}, time.Minute, logging.NewNop())
	if err != nil {
		t.Fatalf("NewRunScheduler error: %v", err)
	}
	defer scheduler.Close()

	if err := scheduler.Trigger(context.Background()); err != nil {
		t.Fatalf("first Trigger error: %v", err)
	}
	<-runner.started

	if err := scheduler.Trigger(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("second Trigger error = %v, want ErrRunInProgress", err)
	}

	close(runner.release)
	<-runner.done
}

func TestScheduler_SlotFreesAfterCompletion(t *testing.T) {
	t.Parallel()

	first := newBlockingRunner()
	scheduler, err := NewRunScheduler(first, &stubRunStatusRepo{}, time.Minute, logging.NewNop())
	if err != nil {
		t.Fatalf("NewRunScheduler error: %v", err)
	}
	defer scheduler.Close()

	if err := scheduler.Trigger(context.Background()); err != nil {
		t.Fatalf("first Trigger error: %v", err)
	}
	<-first.started
	close(first.release)
	<-first.done

	deadline := time.After(2 * time.Second)
	for {
		err := scheduler.Trigger(context.Background())
		if err == nil {
			break
		}
		if !errors.Is(err, ErrRunInProgress) {
			t.Fatalf("Trigger error = %v", err)
		}
		select {
		case <-deadline:
			t.Fatal("run slot never freed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScheduler_AbortCancelsInFlightRun(t *testing.T) {
	t.Parallel()

	runner := newBlockingRunner()
	scheduler, err := NewRunScheduler(runner, &stubRunStatusRepo{}, time.Minute, logging.NewNop())
	if err != nil {
		t.Fatalf("NewRunScheduler error: %v", err)
	}
	defer scheduler.Close()

	if err := scheduler.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger error: %v", err)
	}
	<-runner.started

	if !scheduler.Abort() {
		t.Fatal("Abort should report a signalled run")
	}

	select {
	case runErr := <-runner.done:
		if !errors.Is(runErr, context.Canceled) {
			t.Fatalf("run error = %v, want context.Canceled", runErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("aborted run never observed cancellation")
	}
}

func TestScheduler_CompletedRunLeavesNothingToAbort(t *testing.T) {
	t.Parallel()

	runner := newBlockingRunner()
	close(runner.release)

	scheduler, err := NewRunScheduler(runner, &stubRunStatusRepo{}, time.Minute, logging.NewNop())
	if err != nil {
		t.Fatalf("NewRunScheduler error: %v", err)
	}
	defer scheduler.Close()

	if err := scheduler.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger error: %v", err)
	}
	<-runner.done

	deadline := time.After(2 * time.Second)
	for scheduler.Abort() {
		select {
		case <-deadline:
			t.Fatal("Abort still reports a run after it completed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScheduler_AbortWithoutRunReportsFalse(t *testing.T) {
	t.Parallel()

	scheduler, err := NewRunScheduler(newBlockingRunner(), &stubRunStatusRepo{}, time.Minute, logging.NewNop())
	if err != nil {
		t.Fatalf("NewRunScheduler error: %v", err)
	}
	defer scheduler.Close()

	if scheduler.Abort() {
		t.Fatal("Abort with no run in flight should report false")
	}
}

type panickyRunner struct{}

func (panickyRunner) Run(ctx context.Context) error {
	panic("roster exploded")
}

func TestScheduler_PanicIsNormalizedIntoRunStatus(t *testing.T) {
	t.Parallel()

	runs := &stubRunStatusRepo{}
	scheduler, err := NewRunScheduler(panickyRunner{}, runs, time.Minute, logging.NewNop())
	if err != nil {
		t.Fatalf("NewRunScheduler error: %v", err)
	}
	defer scheduler.Close()

	if err := scheduler.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger error: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if runs.finalPhase() == runstatus.PhaseError {
			break
		}
		select {
		case <-deadline:
			t.Fatal("panic never recorded in run status")
		case <-time.After(10 * time.Millisecond):
		}
	}

	runs.mu.Lock()
	lastError := runs.lastError
	runs.mu.Unlock()
	if !strings.Contains(lastError, "roster exploded") {
		t.Fatalf("last error = %q, want panic message", lastError)
	}
}
