package runstatus

import (
	"context"
	"time"
)

// Repository stores run state as key/value rows. SetPhase, SetError
// and SetLastCheck are the only mutators; Snapshot must return the
// most recently committed values without blocking on an in-flight run.
type Repository interface {
	SetPhase(ctx context.Context, phase Phase) error
	SetError(ctx context.Context, message string) error
	SetLastCheck(ctx context.Context, attemptAt time.Time, succeeded bool, rowsSkipped int) error
	Snapshot(ctx context.Context) (Status, error)
}
