package usecase

import (
	"context"
	"time"

	"github.com/teamwarden/teamwarden/internal/domain/activity"
	"github.com/teamwarden/teamwarden/internal/domain/member"
)

// Credentials for the remote team service, injected via configuration.
type Credentials struct {
	Username string
	Password string
}

// SessionCookie is one cookie captured from a protocol-level login and
// transplanted into the browser session.
type SessionCookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time
	HTTPOnly bool
	Secure   bool
}

// AuthResult carries the cookie material of a successful direct login.
type AuthResult struct {
	Cookies []SessionCookie
}

// AuthClient performs the protocol-level form login against the remote
// service. Implementations classify failures into ErrAuthentication,
// ErrBlocked and ErrTransientNetwork.
type AuthClient interface {
	Login(ctx context.Context, creds Credentials) (AuthResult, error)
}

// Browser is the automation handle backing one session. The core never
// touches markup; RosterRows returns already-tokenized table cells.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	SetCookies(ctx context.Context, cookies []SessionCookie) error
	FillLoginForm(ctx context.Context, creds Credentials) error
	RosterRows(ctx context.Context, teamURL string) ([][]string, error)
	Close(ctx context.Context) error
}

// BrowserFactory creates a fresh browser per run. Sessions are never
// shared across runs.
type BrowserFactory interface {
	New(ctx context.Context) (Browser, error)
}

// CheckBatch is everything one reconciliation run wants to persist.
// Implementations must commit it atomically: all member mutations and
// ledger entries land together or not at all.
type CheckBatch struct {
	Members []member.Member
	Entries []activity.Entry
}

// BatchWriter commits a check batch.
type BatchWriter interface {
	ApplyBatch(ctx context.Context, batch CheckBatch) error
}
