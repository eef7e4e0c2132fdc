package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/teamwarden/teamwarden/internal/domain/activity"
	"github.com/teamwarden/teamwarden/internal/domain/member"
	"github.com/teamwarden/teamwarden/internal/platform/logging"
)

func TestDashboardData_AggregatesStats(t *testing.T) {
	t.Parallel()

	members := &stubMemberRepo{members: []member.Member{
		{Username: "a", Status: member.StatusActive, TotalRaces: 1000, RewardsGiven: 10},
		{Username: "b", Status: member.StatusNew, TotalRaces: 50},
		{Username: "c", Status: member.StatusLeft, TotalRaces: 9000, RewardsGiven: 50},
	}}
	activities := &stubActivityRepo{}
	if err := activities.Append(context.Background(), activity.Entry{
		OccurredAt: time.Now(),
		Kind:       activity.KindLogin,
	}); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	svc, err := NewDashboardService(members, activities, &stubRunStatusRepo{}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewDashboardService error: %v", err)
	}

	data, err := svc.Data(context.Background())
	if err != nil {
		t.Fatalf("Data error: %v", err)
	}

	if data.Stats.TotalMembers != 3 {
		t.Errorf("TotalMembers = %d, want 3", data.Stats.TotalMembers)
	}
	if data.Stats.ActiveMembers != 1 || data.Stats.NewMembers != 1 || data.Stats.LeftMembers != 1 {
		t.Errorf("status counts = %d/%d/%d, want 1/1/1",
			data.Stats.ActiveMembers, data.Stats.NewMembers, data.Stats.LeftMembers)
	}
	// Left members keep their reward history but drop out of the race
	// total.
	if data.Stats.TotalRaces != 1050 {
		t.Errorf("TotalRaces = %d, want 1050", data.Stats.TotalRaces)
	}
	if data.Stats.TotalRewards != 60 {
		t.Errorf("TotalRewards = %d, want 60", data.Stats.TotalRewards)
	}
	if len(data.Activity) != 1 {
		t.Errorf("activity entries = %d, want 1", len(data.Activity))
	}
}

func TestRecentActivity_ClampsLimit(t *testing.T) {
	t.Parallel()

	activities := &stubActivityRepo{}
	svc, err := NewDashboardService(&stubMemberRepo{}, activities, &stubRunStatusRepo{}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewDashboardService error: %v", err)
	}

	if _, err := svc.RecentActivity(context.Background(), -1); err != nil {
		t.Fatalf("RecentActivity error: %v", err)
	}
	if _, err := svc.RecentActivity(context.Background(), 10_000); err != nil {
		t.Fatalf("RecentActivity error: %v", err)
	}
}
