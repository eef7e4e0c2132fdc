package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/teamwarden/teamwarden/internal/domain/member"
	qb "github.com/teamwarden/teamwarden/internal/platform/querybuilder"
	"github.com/teamwarden/teamwarden/internal/usecase"
)

const memberColumns = "username, display_name, races_last_24h, races_this_week, total_races, " +
	"cash_owed, payment_status, minimum_reqs, joined_at, last_seen_at, status, " +
	"rewards_given, reached_milestones, current_milestone, updated_at"

const memberUpsertSuffix = `ON CONFLICT (username) DO UPDATE SET
	display_name = EXCLUDED.display_name,
	races_last_24h = EXCLUDED.races_last_24h,
	races_this_week = EXCLUDED.races_this_week,
	total_races = EXCLUDED.total_races,
	cash_owed = EXCLUDED.cash_owed,
	payment_status = EXCLUDED.payment_status,
	minimum_reqs = EXCLUDED.minimum_reqs,
	last_seen_at = EXCLUDED.last_seen_at,
	status = EXCLUDED.status,
	rewards_given = EXCLUDED.rewards_given,
	reached_milestones = EXCLUDED.reached_milestones,
	current_milestone = EXCLUDED.current_milestone,
	updated_at = EXCLUDED.updated_at`

// MemberRepository persists team members keyed by username. It also
// implements usecase.BatchWriter so one check run commits all member
// mutations and ledger entries in a single transaction.
type MemberRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db, now: time.Now}
}

func (r *MemberRepository) List(ctx context.Context) ([]member.Member, error) {
	query, args, err := qb.Select(memberColumns).
		From("team_members").
		OrderBy("username").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select members query: %w", err)
	}

	var rows []memberTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}

	out := make([]member.Member, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *MemberRepository) GetByUsername(ctx context.Context, username string) (member.Member, bool, error) {
	query, args, err := qb.Select(memberColumns).
		From("team_members").
		Where(qb.Eq("username", username)).
		ToSQL()
	if err != nil {
		return member.Member{}, false, fmt.Errorf("build select member query: %w", err)
	}

	var row memberTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return member.Member{}, false, nil
		}
		return member.Member{}, false, fmt.Errorf("select member %q: %w", username, err)
	}
	return row.toDomain(), true, nil
}

// ApplyBatch commits every member mutation and ledger entry of one
// check run atomically. Any failure rolls the whole batch back.
func (r *MemberRepository) ApplyBatch(ctx context.Context, batch usecase.CheckBatch) error {
	if len(batch.Members) == 0 && len(batch.Entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin check batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := r.now()
	for _, m := range batch.Members {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("invalid member in batch: %w", err)
		}
		if err := upsertMember(ctx, tx, m, now); err != nil {
			return err
		}
	}
	for _, entry := range batch.Entries {
		if err := insertActivity(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit check batch: %w", err)
	}
	return nil
}

func upsertMember(ctx context.Context, tx *sqlx.Tx, m member.Member, now time.Time) error {
	row := toMemberModel(m, now)
	query, args, err := qb.InsertInto("team_members").
		Columns("username", "display_name", "races_last_24h", "races_this_week", "total_races",
			"cash_owed", "payment_status", "minimum_reqs", "joined_at", "last_seen_at", "status",
			"rewards_given", "reached_milestones", "current_milestone", "updated_at").
		Values(row.Username, row.DisplayName, row.RacesLast24h, row.RacesThisWeek, row.TotalRaces,
			row.CashOwed, row.PaymentStatus, row.MinimumReqs, row.JoinedAt, row.LastSeenAt, row.Status,
			row.RewardsGiven, row.ReachedMilestones, row.CurrentMilestone, row.UpdatedAt).
		Suffix(memberUpsertSuffix).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert member query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert member %q: %w", m.Username, err)
	}
	return nil
}
