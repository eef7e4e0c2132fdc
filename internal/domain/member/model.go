package member

import (
	"fmt"
	"time"
)

// Status tracks where a member sits in the join/leave lifecycle.
type Status string

const (
	// StatusNew marks a member first observed within the grace period.
	StatusNew Status = "new"
	// StatusActive marks a confirmed member of the team.
	StatusActive Status = "active"
	// StatusLeft marks a member absent from the latest roster snapshot.
	// Left members are retained forever for audit and return detection.
	StatusLeft Status = "left"
)

// Member is one tracked team member, keyed by username for the
// lifetime of the system. Members are never deleted; absence from a
// roster snapshot only flips the status to left.
type Member struct {
	Username      string
	DisplayName   string
	RacesLast24h  int
	RacesThisWeek int
	TotalRaces    int
	CashOwed      string
	PaymentStatus string
	MinimumReqs   string
	JoinedAt      time.Time
	LastSeenAt    time.Time
	Status        Status
	RewardsGiven  int
	// ReachedMilestones is the ascending set of ladder thresholds
	// already rewarded. It only ever grows; it is the sole idempotence
	// gate for milestone rewards.
	ReachedMilestones []int
	CurrentMilestone  int
}

func (m Member) Validate() error {
	if m.Username == "" {
		return fmt.Errorf("member username is required")
	}
	switch m.Status {
	case StatusNew, StatusActive, StatusLeft:
	default:
		return fmt.Errorf("invalid member status %q", m.Status)
	}
	if m.TotalRaces < 0 {
		return fmt.Errorf("total races cannot be negative")
	}
	return nil
}

// HasReached reports whether threshold was already rewarded.
func (m Member) HasReached(threshold int) bool {
	for _, reached := range m.ReachedMilestones {
		if reached == threshold {
			return true
		}
	}
	return false
}

// MarkReached appends threshold to the reached set, keeping it
// ascending, and moves the current-milestone marker forward.
func (m *Member) MarkReached(threshold int) {
	if m.HasReached(threshold) {
		return
	}
	inserted := false
	out := make([]int, 0, len(m.ReachedMilestones)+1)
	for _, reached := range m.ReachedMilestones {
		if !inserted && threshold < reached {
			out = append(out, threshold)
			inserted = true
		}
		out = append(out, reached)
	}
	if !inserted {
		out = append(out, threshold)
	}
	m.ReachedMilestones = out
	if threshold > m.CurrentMilestone {
		m.CurrentMilestone = threshold
	}
}
