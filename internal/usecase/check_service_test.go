package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/teamwarden/teamwarden/internal/domain/activity"
	"github.com/teamwarden/teamwarden/internal/domain/member"
	"github.com/teamwarden/teamwarden/internal/domain/runstatus"
	"github.com/teamwarden/teamwarden/internal/platform/logging"
)

type stubMemberRepo struct {
	members []member.Member
	listErr error
}

func (r *stubMemberRepo) List(ctx context.Context) ([]member.Member, error) {
	return r.members, r.listErr
}

func (r *stubMemberRepo) GetByUsername(ctx context.Context, username string) (member.Member, bool, error) {
	for _, m := range r.members {
		if m.Username == username {
			return m, true, nil
		}
	}
	return member.Member{}, false, nil
}

type stubActivityRepo struct {
	mu      sync.Mutex
	entries []activity.Entry
}

func (r *stubActivityRepo) Append(ctx context.Context, e activity.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *stubActivityRepo) ListRecent(ctx context.Context, limit int) ([]activity.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]activity.Entry, len(r.entries))
	copy(out, r.entries)
	return out, nil
}

func (r *stubActivityRepo) kinds() []activity.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]activity.Kind, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Kind)
	}
	return out
}

type stubRunStatusRepo struct {
	mu        sync.Mutex
	phases    []runstatus.Phase
	lastError string
	attempts  int
	succeeded []bool
	skipped   []int
}

func (r *stubRunStatusRepo) SetPhase(ctx context.Context, phase runstatus.Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, phase)
	return nil
}

func (r *stubRunStatusRepo) SetError(ctx context.Context, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastError = message
	return nil
}

func (r *stubRunStatusRepo) SetLastCheck(ctx context.Context, attemptAt time.Time, succeeded bool, rowsSkipped int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	r.succeeded = append(r.succeeded, succeeded)
	r.skipped = append(r.skipped, rowsSkipped)
	return nil
}

func (r *stubRunStatusRepo) Snapshot(ctx context.Context) (runstatus.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := runstatus.Status{LastError: r.lastError}
	if len(r.phases) > 0 {
		status.Phase = r.phases[len(r.phases)-1]
	}
	return status, nil
}

func (r *stubRunStatusRepo) finalPhase() runstatus.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.phases) == 0 {
		return runstatus.PhaseIdle
	}
	return r.phases[len(r.phases)-1]
}

type stubBatchWriter struct {
	mu      sync.Mutex
	batches []CheckBatch
	err     error
}

func (w *stubBatchWriter) ApplyBatch(ctx context.Context, batch CheckBatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, batch)
	return nil
}

type checkFixture struct {
	service    *CheckService
	auth       *stubAuthClient
	browser    *stubBrowser
	members    *stubMemberRepo
	activities *stubActivityRepo
	runs       *stubRunStatusRepo
	batches    *stubBatchWriter
}

func newCheckFixture(t *testing.T) *checkFixture {
	t.Helper()

	f := &checkFixture{
		auth: &stubAuthClient{result: AuthResult{Cookies: []SessionCookie{{Name: "sid"}}}},
		browser: &stubBrowser{
			locations: []string{testVerifyURL},
			rosterRows: [][]string{
				{"Racer One", "racer1", "5", "30", "1,500"},
			},
		},
		members:    &stubMemberRepo{},
		activities: &stubActivityRepo{},
		runs:       &stubRunStatusRepo{},
		batches:    &stubBatchWriter{},
	}

	sessions := newTestSessionService(t, f.auth, &stubBrowserFactory{browsers: []*stubBrowser{f.browser}})

	reconciler, err := NewReconcileService(24*time.Hour, logging.NewNop())
	if err != nil {
		t.Fatalf("NewReconcileService error: %v", err)
	}
	milestones, err := NewMilestoneService(testLadder, 100)
	if err != nil {
		t.Fatalf("NewMilestoneService error: %v", err)
	}

	f.service, err = NewCheckService(
		sessions, reconciler, milestones,
		f.members, f.activities, f.batches, f.runs,
		CheckServiceConfig{
			Credentials:  testCreds,
			TeamURL:      testVerifyURL,
			FetchTimeout: time.Second,
		},
		logging.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewCheckService error: %v", err)
	}
	return f
}

func TestCheckRun_SuccessCommitsBatchAndReleasesSession(t *testing.T) {
	t.Parallel()

	f := newCheckFixture(t)

	if err := f.service.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got := f.runs.finalPhase(); got != runstatus.PhaseSuccess {
		t.Errorf("final phase = %q, want success", got)
	}
	if !f.browser.closed {
		t.Error("session browser must be released after the run")
	}
	if len(f.batches.batches) != 1 {
		t.Fatalf("batches committed = %d, want 1", len(f.batches.batches))
	}

	batch := f.batches.batches[0]
	if len(batch.Members) != 1 || batch.Members[0].Username != "racer1" {
		t.Fatalf("batch members = %+v, want racer1", batch.Members)
	}
	// 1500 total races crosses the first milestone even for a brand
	// new member only after activation, so no reward yet.
	if batch.Members[0].RewardsGiven != 0 {
		t.Errorf("new member rewards = %d, want 0 before activation", batch.Members[0].RewardsGiven)
	}

	kinds := f.activities.kinds()
	if len(kinds) == 0 || kinds[0] != activity.KindLogin {
		t.Errorf("ledger kinds = %v, want a leading login entry", kinds)
	}
}

func TestCheckRun_MilestonesApplyToActiveMembers(t *testing.T) {
	t.Parallel()

	f := newCheckFixture(t)
	f.members.members = []member.Member{{
		Username:   "racer1",
		Status:     member.StatusActive,
		TotalRaces: 900,
		JoinedAt:   time.Now().Add(-48 * time.Hour),
	}}

	if err := f.service.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	batch := f.batches.batches[0]
	if len(batch.Members) != 1 {
		t.Fatalf("batch members = %+v, want racer1", batch.Members)
	}
	m := batch.Members[0]
	if m.RewardsGiven != 10 {
		t.Errorf("RewardsGiven = %d, want 10 for crossing 1000", m.RewardsGiven)
	}
	if !m.HasReached(1000) {
		t.Error("1000 should be in the reached set")
	}
}

func TestCheckRun_LoginFailureSetsPhaseAndSkipsFetch(t *testing.T) {
	t.Parallel()

	f := newCheckFixture(t)
	f.auth.err = fmt.Errorf("%w: access denied", ErrBlocked)

	err := f.service.Run(context.Background())
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("Run error = %v, want ErrBlocked", err)
	}

	if got := f.runs.finalPhase(); got != runstatus.PhaseLoginFailed {
		t.Errorf("final phase = %q, want login_failed", got)
	}
	if len(f.batches.batches) != 0 {
		t.Errorf("no batch may commit after a login failure")
	}
	if f.runs.lastError == "" {
		t.Error("last error message should be recorded")
	}

	kinds := f.activities.kinds()
	if len(kinds) != 1 || kinds[0] != activity.KindError {
		t.Errorf("ledger kinds = %v, want a single error entry", kinds)
	}
}

func TestCheckRun_UnreadableRosterSetsDataFetchFailed(t *testing.T) {
	t.Parallel()

	f := newCheckFixture(t)
	f.browser.rosterRows = [][]string{{"malformed"}, {"also", "bad"}}

	err := f.service.Run(context.Background())
	if !errors.Is(err, ErrScrapeFormat) {
		t.Fatalf("Run error = %v, want ErrScrapeFormat", err)
	}

	if got := f.runs.finalPhase(); got != runstatus.PhaseDataFetchFailed {
		t.Errorf("final phase = %q, want data_fetch_failed", got)
	}
	if !f.browser.closed {
		t.Error("session must be released after a fetch failure")
	}
	if len(f.runs.skipped) == 0 || f.runs.skipped[len(f.runs.skipped)-1] != 2 {
		t.Errorf("skipped rows = %v, want trailing 2", f.runs.skipped)
	}
}

func TestCheckRun_CommitFailureRollsRunIntoError(t *testing.T) {
	t.Parallel()

	f := newCheckFixture(t)
	f.batches.err = fmt.Errorf("connection reset")

	err := f.service.Run(context.Background())
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Run error = %v, want ErrPersistence", err)
	}

	if got := f.runs.finalPhase(); got != runstatus.PhaseError {
		t.Errorf("final phase = %q, want error", got)
	}
	if !f.browser.closed {
		t.Error("session must be released after a commit failure")
	}
}

func TestCheckRun_CancelledContextStillReleasesSession(t *testing.T) {
	t.Parallel()

	f := newCheckFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	f.browser.rosterErr = context.Canceled
	cancel()

	err := f.service.Run(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled run")
	}
	if !f.browser.closed {
		t.Error("session must be released even when the run is cancelled")
	}
}
