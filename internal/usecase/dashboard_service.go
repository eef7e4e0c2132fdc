package usecase

import (
	"context"
	"fmt"

	"github.com/teamwarden/teamwarden/internal/domain/activity"
	"github.com/teamwarden/teamwarden/internal/domain/member"
	"github.com/teamwarden/teamwarden/internal/domain/runstatus"
	"github.com/teamwarden/teamwarden/internal/platform/logging"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

// TeamStats aggregates the persisted roster for the dashboard header.
type TeamStats struct {
	TotalMembers  int
	ActiveMembers int
	NewMembers    int
	LeftMembers   int
	TotalRaces    int
	TotalRewards  int
}

// DashboardData is the full dashboard read model. It reflects the most
// recently committed run; an in-flight run never blocks these reads.
type DashboardData struct {
	Members  []member.Member
	Stats    TeamStats
	Activity []activity.Entry
	Run      runstatus.Status
}

// DashboardService serves the read side of the system from persisted
// state only.
type DashboardService struct {
	members    member.Repository
	activities activity.Repository
	runs       runstatus.Repository
	logger     *logging.Logger
}

func NewDashboardService(members member.Repository, activities activity.Repository, runs runstatus.Repository, logger *logging.Logger) (*DashboardService, error) {
	if members == nil || activities == nil || runs == nil {
		return nil, fmt.Errorf("%w: repositories are required", ErrInvalidInput)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DashboardService{
		members:    members,
		activities: activities,
		runs:       runs,
		logger:     logger,
	}, nil
}

func (s *DashboardService) Data(ctx context.Context) (DashboardData, error) {
	ctx, span := startUsecaseSpan(ctx, "DashboardService.Data")
	defer span.End()

	members, err := s.members.List(ctx)
	if err != nil {
		return DashboardData{}, fmt.Errorf("%w: list members: %v", ErrDependencyUnavailable, err)
	}

	entries, err := s.activities.ListRecent(ctx, defaultActivityLimit)
	if err != nil {
		return DashboardData{}, fmt.Errorf("%w: list activity: %v", ErrDependencyUnavailable, err)
	}

	status, err := s.runs.Snapshot(ctx)
	if err != nil {
		return DashboardData{}, fmt.Errorf("%w: read run status: %v", ErrDependencyUnavailable, err)
	}

	return DashboardData{
		Members:  members,
		Stats:    aggregateStats(members),
		Activity: entries,
		Run:      status,
	}, nil
}

func (s *DashboardService) RunStatus(ctx context.Context) (runstatus.Status, error) {
	ctx, span := startUsecaseSpan(ctx, "DashboardService.RunStatus")
	defer span.End()

	status, err := s.runs.Snapshot(ctx)
	if err != nil {
		return runstatus.Status{}, fmt.Errorf("%w: read run status: %v", ErrDependencyUnavailable, err)
	}
	return status, nil
}

func (s *DashboardService) RecentActivity(ctx context.Context, limit int) ([]activity.Entry, error) {
	ctx, span := startUsecaseSpan(ctx, "DashboardService.RecentActivity")
	defer span.End()

	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	entries, err := s.activities.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list activity: %v", ErrDependencyUnavailable, err)
	}
	return entries, nil
}

func aggregateStats(members []member.Member) TeamStats {
	stats := TeamStats{TotalMembers: len(members)}
	for _, m := range members {
		switch m.Status {
		case member.StatusActive:
			stats.ActiveMembers++
		case member.StatusNew:
			stats.NewMembers++
		case member.StatusLeft:
			stats.LeftMembers++
		}
		if m.Status != member.StatusLeft {
			stats.TotalRaces += m.TotalRaces
		}
		stats.TotalRewards += m.RewardsGiven
	}
	return stats
}
