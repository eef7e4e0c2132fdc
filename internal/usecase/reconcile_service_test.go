package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/teamwarden/teamwarden/internal/domain/activity"
	"github.com/teamwarden/teamwarden/internal/domain/member"
	"github.com/teamwarden/teamwarden/internal/platform/logging"
)

func newTestReconciler(t *testing.T, now time.Time) *ReconcileService {
	t.Helper()
	svc, err := NewReconcileService(24*time.Hour, logging.NewNop())
	if err != nil {
		t.Fatalf("NewReconcileService error: %v", err)
	}
	svc.now = func() time.Time { return now }
	return svc
}

func snapshotOf(usernames ...string) RosterSnapshot {
	rows := make([]RosterRow, 0, len(usernames))
	for _, u := range usernames {
		rows = append(rows, RosterRow{Username: u, DisplayName: u, TotalRaces: 100})
	}
	return RosterSnapshot{Rows: rows}
}

func activeMember(username string, totalRaces int) member.Member {
	return member.Member{
		Username:   username,
		TotalRaces: totalRaces,
		Status:     member.StatusActive,
		JoinedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		LastSeenAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func countEntries(entries []activity.Entry, kind activity.Kind) int {
	n := 0
	for _, e := range entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestReconcile_JoinedLeftStayed(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc := newTestReconciler(t, now)

	persisted := []member.Member{
		activeMember("a", 100),
		activeMember("b", 100),
		activeMember("c", 100),
	}

	out := svc.Reconcile(context.Background(), persisted, snapshotOf("b", "c", "d"))

	if len(out.Created) != 1 || out.Created[0].Username != "d" {
		t.Fatalf("Created = %+v, want exactly d", out.Created)
	}
	if out.Created[0].Status != member.StatusNew {
		t.Errorf("joined member status = %q, want new", out.Created[0].Status)
	}
	if len(out.Updated) != 2 {
		t.Fatalf("Updated = %+v, want b and c", out.Updated)
	}
	if len(out.Transitioned) != 1 || out.Transitioned[0].Username != "a" {
		t.Fatalf("Transitioned = %+v, want exactly a", out.Transitioned)
	}
	if out.Transitioned[0].Status != member.StatusLeft {
		t.Errorf("departed member status = %q, want left", out.Transitioned[0].Status)
	}

	if got := countEntries(out.Entries, activity.KindMemberLeft); got != 1 {
		t.Errorf("member_left entries = %d, want 1", got)
	}
	if got := countEntries(out.Entries, activity.KindMemberJoined); got != 1 {
		t.Errorf("member_joined entries = %d, want 1", got)
	}
}

func TestReconcile_ReturnedMemberIsNotRejoined(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc := newTestReconciler(t, now)

	gone := activeMember("ghost", 500)
	gone.Status = member.StatusLeft

	out := svc.Reconcile(context.Background(), []member.Member{gone}, snapshotOf("ghost"))

	if len(out.Transitioned) != 1 {
		t.Fatalf("Transitioned = %+v, want the returned member", out.Transitioned)
	}
	if out.Transitioned[0].Status != member.StatusActive {
		t.Errorf("returned member status = %q, want active", out.Transitioned[0].Status)
	}
	if got := countEntries(out.Entries, activity.KindMemberReturned); got != 1 {
		t.Errorf("member_returned entries = %d, want 1", got)
	}
	if got := countEntries(out.Entries, activity.KindMemberJoined); got != 0 {
		t.Errorf("member_joined entries = %d, want 0 for a return", got)
	}
}

func TestReconcile_RacesUpdatedCarriesOldAndNew(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc := newTestReconciler(t, now)

	persisted := []member.Member{activeMember("racer", 900)}
	snapshot := RosterSnapshot{Rows: []RosterRow{{Username: "racer", TotalRaces: 1200}}}

	out := svc.Reconcile(context.Background(), persisted, snapshot)

	if got := countEntries(out.Entries, activity.KindRacesUpdated); got != 1 {
		t.Fatalf("races_updated entries = %d, want 1", got)
	}
	want := "total races 900 -> 1200"
	for _, e := range out.Entries {
		if e.Kind == activity.KindRacesUpdated && e.Detail != want {
			t.Errorf("detail = %q, want %q", e.Detail, want)
		}
	}
	if len(out.Updated) != 1 || out.Updated[0].TotalRaces != 1200 {
		t.Fatalf("Updated = %+v, want racer at 1200", out.Updated)
	}
}

func TestReconcile_UnchangedRacesEmitNoUpdateEntry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc := newTestReconciler(t, now)

	persisted := []member.Member{activeMember("racer", 100)}

	out := svc.Reconcile(context.Background(), persisted, snapshotOf("racer"))

	if got := countEntries(out.Entries, activity.KindRacesUpdated); got != 0 {
		t.Errorf("races_updated entries = %d, want 0", got)
	}
}

func TestReconcile_GlitchedCountNeverLowersTotalRaces(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc := newTestReconciler(t, now)

	persisted := []member.Member{activeMember("racer", 5200)}
	snapshot := InterpretRows([][]string{
		{"Racer", "racer", "12", "80", "-"},
	})

	out := svc.Reconcile(context.Background(), persisted, snapshot)

	if len(out.Updated) != 1 || out.Updated[0].TotalRaces != 5200 {
		t.Fatalf("Updated = %+v, want racer still at 5200", out.Updated)
	}
	if got := countEntries(out.Entries, activity.KindRacesUpdated); got != 0 {
		t.Errorf("races_updated entries = %d, want 0 for a glitched count", got)
	}

	// The next clean scrape reports the real delta, not a bogus 0 -> N.
	recovered := RosterSnapshot{Rows: []RosterRow{{Username: "racer", TotalRaces: 5300}}}
	out = svc.Reconcile(context.Background(), out.Updated, recovered)
	want := "total races 5200 -> 5300"
	for _, e := range out.Entries {
		if e.Kind == activity.KindRacesUpdated && e.Detail != want {
			t.Errorf("detail = %q, want %q", e.Detail, want)
		}
	}
}

func TestReconcile_GracePeriodPromotesNewMembers(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc := newTestReconciler(t, now)

	aged := member.Member{
		Username: "aged",
		Status:   member.StatusNew,
		JoinedAt: now.Add(-(24*time.Hour + time.Minute)),
	}
	recent := member.Member{
		Username: "recent",
		Status:   member.StatusNew,
		JoinedAt: now.Add(-(23*time.Hour + 59*time.Minute)),
	}

	out := svc.Reconcile(context.Background(), []member.Member{aged, recent}, snapshotOf("aged", "recent"))

	if len(out.Transitioned) != 1 || out.Transitioned[0].Username != "aged" {
		t.Fatalf("Transitioned = %+v, want only aged", out.Transitioned)
	}
	if out.Transitioned[0].Status != member.StatusActive {
		t.Errorf("aged status = %q, want active after grace", out.Transitioned[0].Status)
	}
	if len(out.Updated) != 1 || out.Updated[0].Status != member.StatusNew {
		t.Fatalf("Updated = %+v, want recent still new", out.Updated)
	}
}

func TestReconcile_AlreadyLeftAbsentMembersUntouched(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc := newTestReconciler(t, now)

	gone := activeMember("gone", 10)
	gone.Status = member.StatusLeft

	out := svc.Reconcile(context.Background(), []member.Member{gone}, snapshotOf("other"))

	for _, m := range out.Members() {
		if m.Username == "gone" {
			t.Fatalf("already-left absent member should not be mutated, got %+v", m)
		}
	}
	if got := countEntries(out.Entries, activity.KindMemberLeft); got != 0 {
		t.Errorf("member_left entries = %d, want 0", got)
	}
}
