package usecase

import "context"

// SessionState tracks how far session acquisition has progressed.
type SessionState string

const (
	SessionUnauthenticated      SessionState = "unauthenticated"
	SessionAPIAuthenticated     SessionState = "api_authenticated"
	SessionBrowserAuthenticated SessionState = "browser_authenticated"
	SessionFailed               SessionState = "failed"
)

// Session owns the authenticated browser handle for exactly one run.
// It is never persisted and never shared; the run that acquired it
// must release it on every exit path.
type Session struct {
	state   SessionState
	browser Browser
	closed  bool
}

func (s *Session) State() SessionState {
	if s == nil {
		return SessionUnauthenticated
	}
	return s.state
}

func (s *Session) Browser() Browser {
	if s == nil {
		return nil
	}
	return s.browser
}

// Close releases the browser handle. Safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	if s == nil || s.browser == nil || s.closed {
		return nil
	}
	s.closed = true
	return s.browser.Close(ctx)
}
