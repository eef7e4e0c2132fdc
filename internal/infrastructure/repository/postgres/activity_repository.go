package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/teamwarden/teamwarden/internal/domain/activity"
	qb "github.com/teamwarden/teamwarden/internal/platform/querybuilder"
)

type activityTableModel struct {
	ID         int64          `db:"id"`
	OccurredAt time.Time      `db:"occurred_at"`
	Kind       string         `db:"kind"`
	Username   sql.NullString `db:"username"`
	Detail     string         `db:"detail"`
}

// ActivityRepository is the append-only ledger table. No update or
// delete statement exists here.
type ActivityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Append(ctx context.Context, entry activity.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid activity entry: %w", err)
	}
	return insertActivity(ctx, r.db, entry)
}

func (r *ActivityRepository) ListRecent(ctx context.Context, limit int) ([]activity.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query, args, err := qb.Select("id", "occurred_at", "kind", "username", "detail").
		From("activity_log").
		OrderBy("occurred_at DESC", "id DESC").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select activity query: %w", err)
	}

	var rows []activityTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select activity: %w", err)
	}

	out := make([]activity.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, activity.Entry{
			OccurredAt: row.OccurredAt,
			Kind:       activity.Kind(row.Kind),
			Username:   row.Username.String,
			Detail:     row.Detail,
		})
	}
	return out, nil
}

func insertActivity(ctx context.Context, execer sqlx.ExtContext, entry activity.Entry) error {
	username := sql.NullString{String: entry.Username, Valid: entry.Username != ""}

	query, args, err := qb.InsertInto("activity_log").
		Columns("occurred_at", "kind", "username", "detail").
		Values(entry.OccurredAt, string(entry.Kind), username, entry.Detail).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert activity query: %w", err)
	}

	if _, err := execer.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}
	return nil
}
