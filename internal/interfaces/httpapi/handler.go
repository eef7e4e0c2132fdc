package httpapi

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/teamwarden/teamwarden/internal/domain/activity"
	"github.com/teamwarden/teamwarden/internal/domain/member"
	"github.com/teamwarden/teamwarden/internal/domain/runstatus"
	"github.com/teamwarden/teamwarden/internal/platform/logging"
	"github.com/teamwarden/teamwarden/internal/usecase"
)

// Handler carries the services behind the control surface.
type Handler struct {
	dashboard *usecase.DashboardService
	scheduler *usecase.RunScheduler
	validate  *validator.Validate
	logger    *logging.Logger
}

func NewHandler(dashboard *usecase.DashboardService, scheduler *usecase.RunScheduler, logger *logging.Logger) (*Handler, error) {
	if dashboard == nil || scheduler == nil {
		return nil, fmt.Errorf("dashboard service and run scheduler are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		dashboard: dashboard,
		scheduler: scheduler,
		validate:  validator.New(),
		logger:    logger,
	}, nil
}

type memberDTO struct {
	Username          string    `json:"username"`
	DisplayName       string    `json:"displayName"`
	RacesLast24h      int       `json:"racesLast24h"`
	RacesThisWeek     int       `json:"racesThisWeek"`
	TotalRaces        int       `json:"totalRaces"`
	CashOwed          string    `json:"cashOwed,omitempty"`
	PaymentStatus     string    `json:"paymentStatus,omitempty"`
	MinimumReqs       string    `json:"minimumReqs,omitempty"`
	JoinedAt          time.Time `json:"joinedAt"`
	LastSeenAt        time.Time `json:"lastSeenAt"`
	Status            string    `json:"status"`
	RewardsGiven      int       `json:"rewardsGiven"`
	ReachedMilestones []int     `json:"reachedMilestones,omitempty"`
	CurrentMilestone  int       `json:"currentMilestone,omitempty"`
}

type teamStatsDTO struct {
	TotalMembers  int `json:"totalMembers"`
	ActiveMembers int `json:"activeMembers"`
	NewMembers    int `json:"newMembers"`
	LeftMembers   int `json:"leftMembers"`
	TotalRaces    int `json:"totalRaces"`
	TotalRewards  int `json:"totalRewards"`
}

type activityDTO struct {
	OccurredAt time.Time `json:"occurredAt"`
	Kind       string    `json:"kind"`
	Username   string    `json:"username,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

type runStatusDTO struct {
	Phase         string     `json:"phase"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
	RowsSkipped   int        `json:"rowsSkipped"`
}

type dashboardDTO struct {
	Members  []memberDTO   `json:"members"`
	Stats    teamStatsDTO  `json:"stats"`
	Activity []activityDTO `json:"activity"`
	Run      runStatusDTO  `json:"run"`
}

func toMemberDTO(m member.Member) memberDTO {
	return memberDTO{
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
		ReachedMilestones: m.ReachedMilestones,
		CurrentMilestone:  m.CurrentMilestone,
	}
}

func toActivityDTO(e activity.Entry) activityDTO {
	return activityDTO{
		OccurredAt: e.OccurredAt,
		Kind:       string(e.Kind),
		Username:   e.Username,
		Detail:     e.Detail,
	}
}

func toRunStatusDTO(s runstatus.Status) runStatusDTO {
	return runStatusDTO{
		Phase:         string(s.Phase),
		LastAttemptAt: s.LastAttemptAt,
		LastSuccessAt: s.LastSuccessAt,
		LastError:     s.LastError,
		RowsSkipped:   s.RowsSkipped,
	}
}
