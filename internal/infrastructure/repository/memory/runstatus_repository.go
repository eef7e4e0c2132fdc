package memory

import (
	"context"
	"sync"
	"time"

	"github.com/teamwarden/teamwarden/internal/domain/runstatus"
)

type RunStatusRepository struct {
	mu     sync.RWMutex
	status runstatus.Status
}

func NewRunStatusRepository() *RunStatusRepository {
	return &RunStatusRepository{status: runstatus.Status{Phase: runstatus.PhaseIdle}}
}

func (r *RunStatusRepository) SetPhase(ctx context.Context, phase runstatus.Phase) error {
	if err := phase.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.status.Phase = phase
	r.mu.Unlock()
	return nil
}

func (r *RunStatusRepository) SetError(ctx context.Context, message string) error {
	r.mu.Lock()
	r.status.LastError = message
	r.mu.Unlock()
	return nil
}

func (r *RunStatusRepository) SetLastCheck(ctx context.Context, attemptAt time.Time, succeeded bool, rowsSkipped int) error {
	r.mu.Lock()
	at := attemptAt
	r.status.LastAttemptAt = &at
	if succeeded {
		r.status.LastSuccessAt = &at
	}
	r.status.RowsSkipped = rowsSkipped
	r.mu.Unlock()
	return nil
}

func (r *RunStatusRepository) Snapshot(ctx context.Context) (runstatus.Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status, nil
}
