package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/teamwarden/teamwarden/internal/domain/runstatus"
	qb "github.com/teamwarden/teamwarden/internal/platform/querybuilder"
)

const (
	keyPhase         = "phase"
	keyLastError     = "last_error"
	keyLastAttemptAt = "last_attempt_at"
	keyLastSuccessAt = "last_success_at"
	keyRowsSkipped   = "rows_skipped"
)

// RunStatusRepository stores run state as key/value rows so reads
// never contend with an in-flight run's table writes.
type RunStatusRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewRunStatusRepository(db *sqlx.DB) *RunStatusRepository {
	return &RunStatusRepository{db: db, now: time.Now}
}

func (r *RunStatusRepository) SetPhase(ctx context.Context, phase runstatus.Phase) error {
	if err := phase.Validate(); err != nil {
		return err
	}
	return r.setValues(ctx, map[string]string{keyPhase: string(phase)})
}

func (r *RunStatusRepository) SetError(ctx context.Context, message string) error {
	return r.setValues(ctx, map[string]string{keyLastError: message})
}

func (r *RunStatusRepository) SetLastCheck(ctx context.Context, attemptAt time.Time, succeeded bool, rowsSkipped int) error {
	values := map[string]string{
		keyLastAttemptAt: attemptAt.UTC().Format(time.RFC3339Nano),
		keyRowsSkipped:   strconv.Itoa(rowsSkipped),
	}
	if succeeded {
		values[keyLastSuccessAt] = attemptAt.UTC().Format(time.RFC3339Nano)
	}
	return r.setValues(ctx, values)
}

func (r *RunStatusRepository) Snapshot(ctx context.Context) (runstatus.Status, error) {
	query, args, err := qb.Select("key", "value").From("run_status").ToSQL()
	if err != nil {
		return runstatus.Status{}, fmt.Errorf("build select run status query: %w", err)
	}

	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return runstatus.Status{}, fmt.Errorf("select run status: %w", err)
	}

	status := runstatus.Status{Phase: runstatus.PhaseIdle}
	for _, row := range rows {
		switch row.Key {
		case keyPhase:
			status.Phase = runstatus.Phase(row.Value)
		case keyLastError:
			status.LastError = row.Value
		case keyLastAttemptAt:
			if at, parseErr := time.Parse(time.RFC3339Nano, row.Value); parseErr == nil {
				status.LastAttemptAt = &at
			}
		case keyLastSuccessAt:
			if at, parseErr := time.Parse(time.RFC3339Nano, row.Value); parseErr == nil {
				status.LastSuccessAt = &at
			}
		case keyRowsSkipped:
			if n, parseErr := strconv.Atoi(row.Value); parseErr == nil {
				status.RowsSkipped = n
			}
		}
	}
	return status, nil
}

func (r *RunStatusRepository) setValues(ctx context.Context, values map[string]string) error {
	now := r.now()
	for key, value := range values {
		query, args, err := qb.InsertInto("run_status").
			Columns("key", "value", "updated_at").
			Values(key, value, now).
			Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
			ToSQL()
		if err != nil {
			return fmt.Errorf("build upsert run status query: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert run status %q: %w", key, err)
		}
	}
	return nil
}
