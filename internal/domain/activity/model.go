package activity

import (
	"fmt"
	"time"
)

// Kind is the action recorded by a ledger entry.
type Kind string

const (
	KindLogin            Kind = "login"
	KindMemberJoined     Kind = "member_joined"
	KindMemberLeft       Kind = "member_left"
	KindMemberReturned   Kind = "member_returned"
	KindRacesUpdated     Kind = "races_updated"
	KindMilestoneReached Kind = "milestone_reached"
	KindError            Kind = "error"
)

// Entry is one immutable activity-ledger record. Entries are created
// exactly once per observed event and never mutated or deleted.
type Entry struct {
	OccurredAt time.Time
	Kind       Kind
	Username   string
	Detail     string
}

func (e Entry) Validate() error {
	switch e.Kind {
	case KindLogin, KindMemberJoined, KindMemberLeft, KindMemberReturned,
		KindRacesUpdated, KindMilestoneReached, KindError:
	default:
		return fmt.Errorf("invalid activity kind %q", e.Kind)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("activity entry timestamp is required")
	}
	return nil
}
