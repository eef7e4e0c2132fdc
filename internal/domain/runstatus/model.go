package runstatus

import (
	"fmt"
	"time"
)

// Phase is the coarse state of the most recent check run.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseRunning         Phase = "running"
	PhaseLoginFailed     Phase = "login_failed"
	PhaseDataFetchFailed Phase = "data_fetch_failed"
	PhaseSuccess         Phase = "success"
	PhaseError           Phase = "error"
)

func (p Phase) Validate() error {
	switch p {
	case PhaseIdle, PhaseRunning, PhaseLoginFailed, PhaseDataFetchFailed, PhaseSuccess, PhaseError:
		return nil
	default:
		return fmt.Errorf("invalid run phase %q", p)
	}
}

// Status is the queryable snapshot exposed to the dashboard and
// monitoring. It persists across runs.
type Status struct {
	Phase         Phase
	LastAttemptAt *time.Time
	LastSuccessAt *time.Time
	LastError     string
	RowsSkipped   int
}
