package postgres

import (
	"time"

	"github.com/lib/pq"

	"github.com/teamwarden/teamwarden/internal/domain/member"
)

type memberTableModel struct {
	Username          string        `db:"username"`
	DisplayName       string        `db:"display_name"`
	RacesLast24h      int           `db:"races_last_24h"`
	RacesThisWeek     int           `db:"races_this_week"`
	TotalRaces        int           `db:"total_races"`
	CashOwed          string        `db:"cash_owed"`
	PaymentStatus     string        `db:"payment_status"`
	MinimumReqs       string        `db:"minimum_reqs"`
	JoinedAt          time.Time     `db:"joined_at"`
	LastSeenAt        time.Time     `db:"last_seen_at"`
	Status            string        `db:"status"`
	RewardsGiven      int           `db:"rewards_given"`
	ReachedMilestones pq.Int64Array `db:"reached_milestones"`
	CurrentMilestone  int           `db:"current_milestone"`
	UpdatedAt         time.Time     `db:"updated_at"`
}

func toMemberModel(m member.Member, now time.Time) memberTableModel {
	reached := make(pq.Int64Array, 0, len(m.ReachedMilestones))
	for _, threshold := range m.ReachedMilestones {
		reached = append(reached, int64(threshold))
	}
	return memberTableModel{
		Username:          m.Username,
		DisplayName:       m.DisplayName,
		RacesLast24h:      m.RacesLast24h,
		RacesThisWeek:     m.RacesThisWeek,
		TotalRaces:        m.TotalRaces,
		CashOwed:          m.CashOwed,
		PaymentStatus:     m.PaymentStatus,
		MinimumReqs:       m.MinimumReqs,
		JoinedAt:          m.JoinedAt,
		LastSeenAt:        m.LastSeenAt,
		Status:            string(m.Status),
		RewardsGiven:      m.RewardsGiven,
		ReachedMilestones: reached,
		CurrentMilestone:  m.CurrentMilestone,
		UpdatedAt:         now,
	}
}

func (row memberTableModel) toDomain() member.Member {
	reached := make([]int, 0, len(row.ReachedMilestones))
	for _, threshold := range row.ReachedMilestones {
		reached = append(reached, int(threshold))
	}
	return member.Member{
		Username:          row.Username,
		DisplayName:       row.DisplayName,
		RacesLast24h:      row.RacesLast24h,
		RacesThisWeek:     row.RacesThisWeek,
		TotalRaces:        row.TotalRaces,
		CashOwed:          row.CashOwed,
		PaymentStatus:     row.PaymentStatus,
		MinimumReqs:       row.MinimumReqs,
		JoinedAt:          row.JoinedAt,
		LastSeenAt:        row.LastSeenAt,
		Status:            member.Status(row.Status),
		RewardsGiven:      row.RewardsGiven,
		ReachedMilestones: reached,
		CurrentMilestone:  row.CurrentMilestone,
	}
}
