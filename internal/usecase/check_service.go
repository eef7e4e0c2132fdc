package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teamwarden/teamwarden/internal/domain/activity"
	"github.com/teamwarden/teamwarden/internal/domain/member"
	"github.com/teamwarden/teamwarden/internal/domain/runstatus"
	"github.com/teamwarden/teamwarden/internal/platform/id"
	"github.com/teamwarden/teamwarden/internal/platform/logging"
)

// CheckServiceConfig carries the per-run parameters of a team check.
type CheckServiceConfig struct {
	Credentials  Credentials
	TeamURL      string
	FetchTimeout time.Duration
}

func (c CheckServiceConfig) validate() error {
	if c.Credentials.Username == "" || c.Credentials.Password == "" {
		return fmt.Errorf("%w: credentials are required", ErrInvalidInput)
	}
	if c.TeamURL == "" {
		return fmt.Errorf("%w: team url is required", ErrInvalidInput)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("%w: fetch timeout must be positive", ErrInvalidInput)
	}
	return nil
}

// CheckService runs one full team check: acquire a session, fetch the
// roster, reconcile it against persisted state, award milestones and
// commit the whole batch atomically. Every phase boundary checks for
// cancellation, every failure is classified into a run-status phase,
// and the session is released on every exit path.
type CheckService struct {
	sessions   *SessionService
	reconciler *ReconcileService
	milestones *MilestoneService
	members    member.Repository
	activities activity.Repository
	batches    BatchWriter
	runs       runstatus.Repository
	cfg        CheckServiceConfig
	logger     *logging.Logger
	now        func() time.Time
}

func NewCheckService(
	sessions *SessionService,
	reconciler *ReconcileService,
	milestones *MilestoneService,
	members member.Repository,
	activities activity.Repository,
	batches BatchWriter,
	runs runstatus.Repository,
	cfg CheckServiceConfig,
	logger *logging.Logger,
) (*CheckService, error) {
	if sessions == nil || reconciler == nil || milestones == nil {
		return nil, fmt.Errorf("%w: session, reconcile and milestone services are required", ErrInvalidInput)
	}
	if members == nil || activities == nil || batches == nil || runs == nil {
		return nil, fmt.Errorf("%w: repositories and batch writer are required", ErrInvalidInput)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CheckService{
		sessions:   sessions,
		reconciler: reconciler,
		milestones: milestones,
		members:    members,
		activities: activities,
		batches:    batches,
		runs:       runs,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Run executes one check. The caller bounds ctx with the overall run
// timeout; Run itself bounds the individual network phases.
func (s *CheckService) Run(ctx context.Context) error {
	ctx, span := startUsecaseSpan(ctx, "CheckService.Run")
	defer span.End()

	runID := id.NewRunID()
	logger := s.logger.With("run_id", runID)
	attemptAt := s.now()

	// Status and ledger writes must land even after ctx is cancelled
	// or expired, so cleanup runs on a detached context.
	cleanup := context.WithoutCancel(ctx)

	if err := s.runs.SetPhase(ctx, runstatus.PhaseRunning); err != nil {
		return s.fail(cleanup, logger, attemptAt, 0, runstatus.PhaseError,
			fmt.Errorf("%w: mark run started: %v", ErrPersistence, err))
	}

	sess, err := s.sessions.Acquire(ctx, s.cfg.Credentials)
	if err != nil {
		return s.fail(cleanup, logger, attemptAt, 0, runstatus.PhaseLoginFailed,
			fmt.Errorf("acquire session: %w", err))
	}
	defer func() {
		if closeErr := sess.Close(cleanup); closeErr != nil {
			logger.WarnContext(cleanup, "releasing session", "error", closeErr)
		}
	}()

	if err := s.activities.Append(cleanup, activity.Entry{
		OccurredAt: s.now(),
		Kind:       activity.KindLogin,
		Detail:     fmt.Sprintf("logged in (%s)", sess.State()),
	}); err != nil {
		logger.WarnContext(cleanup, "recording login entry", "error", err)
	}
	logger.InfoContext(ctx, "session acquired", "state", string(sess.State()))

	if err := ctx.Err(); err != nil {
		return s.fail(cleanup, logger, attemptAt, 0, runstatus.PhaseError, err)
	}

	snapshot, err := s.fetchRoster(ctx, sess)
	if err != nil {
		return s.fail(cleanup, logger, attemptAt, snapshot.RowsSkipped, runstatus.PhaseDataFetchFailed,
			fmt.Errorf("fetch roster: %w", err))
	}
	logger.InfoContext(ctx, "roster fetched", "rows", len(snapshot.Rows), "rows_skipped", snapshot.RowsSkipped)

	if err := ctx.Err(); err != nil {
		return s.fail(cleanup, logger, attemptAt, snapshot.RowsSkipped, runstatus.PhaseError, err)
	}

	persisted, err := s.members.List(ctx)
	if err != nil {
		return s.fail(cleanup, logger, attemptAt, snapshot.RowsSkipped, runstatus.PhaseError,
			fmt.Errorf("%w: load members: %v", ErrPersistence, err))
	}

	outcome := s.reconciler.Reconcile(ctx, persisted, snapshot)
	rewarded := s.milestones.Apply(ctx, outcome.Members())
	batch := mergeBatch(outcome, rewarded)

	if err := ctx.Err(); err != nil {
		return s.fail(cleanup, logger, attemptAt, snapshot.RowsSkipped, runstatus.PhaseError, err)
	}

	if err := s.batches.ApplyBatch(ctx, batch); err != nil {
		return s.fail(cleanup, logger, attemptAt, snapshot.RowsSkipped, runstatus.PhaseError,
			fmt.Errorf("%w: commit check batch: %v", ErrPersistence, err))
	}

	if err := s.runs.SetLastCheck(cleanup, attemptAt, true, snapshot.RowsSkipped); err != nil {
		logger.WarnContext(cleanup, "recording last check", "error", err)
	}
	if err := s.runs.SetPhase(cleanup, runstatus.PhaseSuccess); err != nil {
		logger.WarnContext(cleanup, "marking run successful", "error", err)
	}

	logger.InfoContext(ctx, "check completed",
		"members", len(batch.Members),
		"entries", len(batch.Entries),
		"rewarded", len(rewarded.Members),
	)
	return nil
}

// fetchRoster pulls the roster table through the session's browser and
// interprets it. An empty interpreted roster means the page no longer
// matches the expected shape.
func (s *CheckService) fetchRoster(ctx context.Context, sess *Session) (RosterSnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	raw, err := sess.Browser().RosterRows(fetchCtx, s.cfg.TeamURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return RosterSnapshot{}, fmt.Errorf("%w: roster fetch timed out", ErrTransientNetwork)
		}
		return RosterSnapshot{}, fmt.Errorf("%w: %v", ErrTransientNetwork, err)
	}

	snapshot := InterpretRows(raw)
	if len(snapshot.Rows) == 0 {
		return snapshot, fmt.Errorf("%w: no interpretable roster rows (skipped %d)", ErrScrapeFormat, snapshot.RowsSkipped)
	}
	return snapshot, nil
}

// fail records a classified failure in run status and the ledger, then
// returns the original error. It never masks err with a status-write
// failure.
func (s *CheckService) fail(ctx context.Context, logger *logging.Logger, attemptAt time.Time, rowsSkipped int, phase runstatus.Phase, err error) error {
	logger.ErrorContext(ctx, "check failed", "phase", string(phase), "error", err)

	if statusErr := s.runs.SetError(ctx, err.Error()); statusErr != nil {
		logger.WarnContext(ctx, "recording run error", "error", statusErr)
	}
	if statusErr := s.runs.SetPhase(ctx, phase); statusErr != nil {
		logger.WarnContext(ctx, "recording run phase", "error", statusErr)
	}
	if statusErr := s.runs.SetLastCheck(ctx, attemptAt, false, rowsSkipped); statusErr != nil {
		logger.WarnContext(ctx, "recording last check", "error", statusErr)
	}
	if ledgerErr := s.activities.Append(ctx, activity.Entry{
		OccurredAt: s.now(),
		Kind:       activity.KindError,
		Detail:     err.Error(),
	}); ledgerErr != nil {
		logger.WarnContext(ctx, "recording error entry", "error", ledgerErr)
	}
	return err
}

// mergeBatch folds milestone mutations over the reconcile outcome so
// each member appears once with both sets of changes applied.
func mergeBatch(outcome ReconcileOutcome, rewarded MilestoneOutcome) CheckBatch {
	members := outcome.Members()

	byUsername := make(map[string]member.Member, len(rewarded.Members))
	for _, m := range rewarded.Members {
		byUsername[m.Username] = m
	}
	for i, m := range members {
		if replacement, ok := byUsername[m.Username]; ok {
			members[i] = replacement
		}
	}

	entries := make([]activity.Entry, 0, len(outcome.Entries)+len(rewarded.Entries))
	entries = append(entries, outcome.Entries...)
	entries = append(entries, rewarded.Entries...)

	return CheckBatch{Members: members, Entries: entries}
}
