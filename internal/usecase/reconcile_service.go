package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/teamwarden/teamwarden/internal/domain/activity"
	"github.com/teamwarden/teamwarden/internal/domain/member"
	"github.com/teamwarden/teamwarden/internal/platform/logging"
)

// ReconcileOutcome buckets every mutated member exactly once. Created
// holds first-time observations, Transitioned holds status changes
// (left, returned, grace promotion), Updated holds everything else
// that stayed. Entries carries the ledger records for the batch.
type ReconcileOutcome struct {
	Created      []member.Member
	Updated      []member.Member
	Transitioned []member.Member
	Entries      []activity.Entry
}

// Members returns every mutated member across the three buckets.
func (o ReconcileOutcome) Members() []member.Member {
	out := make([]member.Member, 0, len(o.Created)+len(o.Updated)+len(o.Transitioned))
	out = append(out, o.Created...)
	out = append(out, o.Updated...)
	out = append(out, o.Transitioned...)
	return out
}

// ReconcileService diffs a fresh roster snapshot against persisted
// member state. It is pure computation over its inputs; the caller
// commits the outcome atomically through a BatchWriter.
type ReconcileService struct {
	gracePeriod time.Duration
	logger      *logging.Logger
	now         func() time.Time
}

func NewReconcileService(gracePeriod time.Duration, logger *logging.Logger) (*ReconcileService, error) {
	if gracePeriod <= 0 {
		return nil, fmt.Errorf("%w: grace period must be positive", ErrInvalidInput)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ReconcileService{
		gracePeriod: gracePeriod,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Reconcile computes the member mutations and ledger entries implied
// by one roster snapshot. Members absent from the snapshot flip to
// left rather than being removed; members already marked left are
// untouched until they reappear.
func (s *ReconcileService) Reconcile(ctx context.Context, persisted []member.Member, snapshot RosterSnapshot) ReconcileOutcome {
	ctx, span := startUsecaseSpan(ctx, "ReconcileService.Reconcile")
	defer span.End()

	now := s.now()

	order := make([]string, 0, len(snapshot.Rows))
	fresh := make(map[string]RosterRow, len(snapshot.Rows))
	for _, row := range snapshot.Rows {
		if _, seen := fresh[row.Username]; !seen {
			order = append(order, row.Username)
		}
		fresh[row.Username] = row
	}

	existing := make(map[string]member.Member, len(persisted))
	for _, m := range persisted {
		existing[m.Username] = m
	}

	var out ReconcileOutcome

	for _, username := range order {
		row := fresh[username]
		old, known := existing[username]
		if !known {
			out.Created = append(out.Created, s.newMember(row, now))
			out.Entries = append(out.Entries, activity.Entry{
				OccurredAt: now,
				Kind:       activity.KindMemberJoined,
				Username:   username,
				Detail:     "joined the team",
			})
			continue
		}

		updated := old
		s.applyRow(&updated, row, now)

		transitioned := false
		if old.Status == member.StatusLeft {
			updated.Status = member.StatusActive
			transitioned = true
			out.Entries = append(out.Entries, activity.Entry{
				OccurredAt: now,
				Kind:       activity.KindMemberReturned,
				Username:   username,
				Detail:     "returned to the team",
			})
		}
		if row.TotalRaces > old.TotalRaces {
			out.Entries = append(out.Entries, activity.Entry{
				OccurredAt: now,
				Kind:       activity.KindRacesUpdated,
				Username:   username,
				Detail:     fmt.Sprintf("total races %d -> %d", old.TotalRaces, row.TotalRaces),
			})
		}
		if s.graceElapsed(&updated, now) {
			transitioned = true
		}

		if transitioned {
			out.Transitioned = append(out.Transitioned, updated)
		} else {
			out.Updated = append(out.Updated, updated)
		}
	}

	for _, old := range persisted {
		if _, present := fresh[old.Username]; present {
			continue
		}
		if old.Status == member.StatusLeft {
			continue
		}

		departed := old
		departed.Status = member.StatusLeft
		departed.LastSeenAt = now
		out.Transitioned = append(out.Transitioned, departed)
		out.Entries = append(out.Entries, activity.Entry{
			OccurredAt: now,
			Kind:       activity.KindMemberLeft,
			Username:   old.Username,
			Detail:     "left the team",
		})
	}

	s.logger.DebugContext(ctx, "roster reconciled",
		"created", len(out.Created),
		"updated", len(out.Updated),
		"transitioned", len(out.Transitioned),
		"rows_skipped", snapshot.RowsSkipped,
	)
	return out
}

func (s *ReconcileService) newMember(row RosterRow, now time.Time) member.Member {
	return member.Member{
		Username:      row.Username,
		DisplayName:   row.DisplayName,
		RacesLast24h:  row.RacesLast24h,
		RacesThisWeek: row.RacesThisWeek,
		TotalRaces:    row.TotalRaces,
		CashOwed:      row.CashOwed,
		PaymentStatus: row.PaymentStatus,
		MinimumReqs:   row.MinimumReqs,
		JoinedAt:      now,
		LastSeenAt:    now,
		Status:        member.StatusNew,
	}
}

func (s *ReconcileService) applyRow(m *member.Member, row RosterRow, now time.Time) {
	m.DisplayName = row.DisplayName
	m.RacesLast24h = row.RacesLast24h
	m.RacesThisWeek = row.RacesThisWeek
	// Unparsable count cells degrade to zero upstream, so a glitched
	// scrape must never walk the stored counter backwards.
	if row.TotalRaces > m.TotalRaces {
		m.TotalRaces = row.TotalRaces
	}
	m.CashOwed = row.CashOwed
	m.PaymentStatus = row.PaymentStatus
	m.MinimumReqs = row.MinimumReqs
	m.LastSeenAt = now
}

// graceElapsed promotes a still-new member to active once the grace
// period has passed since they joined.
func (s *ReconcileService) graceElapsed(m *member.Member, now time.Time) bool {
	if m.Status != member.StatusNew {
		return false
	}
	if now.Sub(m.JoinedAt) < s.gracePeriod {
		return false
	}
	m.Status = member.StatusActive
	return true
}
