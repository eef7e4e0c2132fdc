package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/teamwarden/teamwarden/internal/domain/activity"
	"github.com/teamwarden/teamwarden/internal/domain/member"
)

// MilestoneOutcome lists the members mutated by a reward pass and the
// ledger entries describing each crossed threshold.
type MilestoneOutcome struct {
	Members []member.Member
	Entries []activity.Entry
}

// MilestoneService awards credits for newly crossed race thresholds.
// Each member's reached-set is the sole idempotence gate: a threshold
// already in the set is never rewarded again, regardless of how many
// runs observe the same counters.
type MilestoneService struct {
	ladder  []int
	divisor int
	now     func() time.Time
}

// NewMilestoneService validates and sorts the threshold ladder.
// divisor converts a crossed threshold into reward units (threshold /
// divisor).
func NewMilestoneService(ladder []int, divisor int) (*MilestoneService, error) {
	if len(ladder) == 0 {
		return nil, fmt.Errorf("%w: milestone ladder is empty", ErrInvalidInput)
	}
	if divisor <= 0 {
		return nil, fmt.Errorf("%w: reward divisor must be positive", ErrInvalidInput)
	}

	sorted := make([]int, len(ladder))
	copy(sorted, ladder)
	sort.Ints(sorted)

	for i, threshold := range sorted {
		if threshold <= 0 {
			return nil, fmt.Errorf("%w: milestone threshold must be positive", ErrInvalidInput)
		}
		if i > 0 && sorted[i-1] == threshold {
			return nil, fmt.Errorf("%w: duplicate milestone threshold %d", ErrInvalidInput, threshold)
		}
	}

	return &MilestoneService{ladder: sorted, divisor: divisor, now: time.Now}, nil
}

// Apply scans already-reconciled members for unrewarded thresholds.
// Only active members earn rewards; a returned member picks up where
// their reached-set left off. Members without new thresholds are not
// included in the outcome.
func (s *MilestoneService) Apply(ctx context.Context, members []member.Member) MilestoneOutcome {
	_, span := startUsecaseSpan(ctx, "MilestoneService.Apply")
	defer span.End()

	now := s.now()

	var out MilestoneOutcome
	for _, m := range members {
		if m.Status != member.StatusActive {
			continue
		}

		changed := false
		for _, threshold := range s.ladder {
			if m.TotalRaces < threshold || m.HasReached(threshold) {
				continue
			}

			reward := threshold / s.divisor
			m.MarkReached(threshold)
			m.RewardsGiven += reward
			changed = true

			out.Entries = append(out.Entries, activity.Entry{
				OccurredAt: now,
				Kind:       activity.KindMilestoneReached,
				Username:   m.Username,
				Detail:     fmt.Sprintf("reached %d races, rewarded %d", threshold, reward),
			})
		}

		if changed {
			out.Members = append(out.Members, m)
		}
	}

	return out
}
