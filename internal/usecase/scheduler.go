package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc/panics"

	"github.com/teamwarden/teamwarden/internal/domain/runstatus"
	"github.com/teamwarden/teamwarden/internal/platform/logging"
)

// Runner executes one check run.
type Runner interface {
	Run(ctx context.Context) error
}

// RunScheduler dispatches check runs to a single background worker.
// The pool holds exactly one worker and rejects instead of queueing,
// which enforces the single-flight rule: a trigger while a run is in
// flight returns ErrRunInProgress rather than interleaving writers.
type RunScheduler struct {
	pool       *ants.Pool
	runner     Runner
	runs       runstatus.Repository
	runTimeout time.Duration
	logger     *logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewRunScheduler(runner Runner, runs runstatus.Repository, runTimeout time.Duration, logger *logging.Logger) (*RunScheduler, error) {
	if runner == nil || runs == nil {
		return nil, fmt.Errorf("%w: runner and run status repository are required", ErrInvalidInput)
	}
	if runTimeout <= 0 {
		return nil, fmt.Errorf("%w: run timeout must be positive", ErrInvalidInput)
	}
	if logger == nil {
		logger = logging.Default()
	}

	pool, err := ants.NewPool(1, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create run worker pool: %w", err)
	}

	return &RunScheduler{
		pool:       pool,
		runner:     runner,
		runs:       runs,
		runTimeout: runTimeout,
		logger:     logger,
	}, nil
}

// Trigger dispatches a run and returns immediately. The run itself
// executes on a context detached from the request, bounded only by the
// overall run timeout, so a closed HTTP connection cannot orphan a
// half-committed check.
func (s *RunScheduler) Trigger(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.runTimeout)

	// The worker clears the stored cancel when the run finishes, so it
	// must be stored before the run can start; otherwise a fast run
	// leaves a stale cancel behind and Abort reports true while idle.
	s.mu.Lock()
	prev := s.cancel
	s.cancel = cancel
	err := s.pool.Submit(func() {
		defer cancel()
		defer s.clearCancel()
		s.execute(runCtx)
	})
	if err != nil {
		s.cancel = prev
		s.mu.Unlock()
		cancel()
		if errors.Is(err, ants.ErrPoolOverload) {
			return ErrRunInProgress
		}
		return fmt.Errorf("%w: dispatch run: %v", ErrDependencyUnavailable, err)
	}
	s.mu.Unlock()

	return nil
}

// Abort signals the in-flight run to stop at its next phase boundary.
// It reports whether a run was signalled.
func (s *RunScheduler) Abort() bool {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Close releases the worker pool. In-flight runs finish first.
func (s *RunScheduler) Close() {
	s.pool.Release()
}

func (s *RunScheduler) execute(ctx context.Context) {
	var caught panics.Catcher
	var runErr error
	caught.Try(func() {
		runErr = s.runner.Run(ctx)
	})

	if recovered := caught.Recovered(); recovered != nil {
		// The run panicked past its own failure handling; normalize it
		// into run status so operators still see a cause.
		cleanup := context.WithoutCancel(ctx)
		s.logger.ErrorContext(cleanup, "check run panicked", "panic", recovered.String())
		if err := s.runs.SetError(cleanup, fmt.Sprintf("run panicked: %v", recovered.Value)); err != nil {
			s.logger.WarnContext(cleanup, "recording panic", "error", err)
		}
		if err := s.runs.SetPhase(cleanup, runstatus.PhaseError); err != nil {
			s.logger.WarnContext(cleanup, "recording panic phase", "error", err)
		}
		return
	}

	if runErr != nil {
		s.logger.Warn("check run finished with error", "error", runErr)
	}
}

func (s *RunScheduler) clearCancel() {
	s.mu.Lock()
	s.cancel = nil
	s.mu.Unlock()
}
