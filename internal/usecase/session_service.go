package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/teamwarden/teamwarden/internal/platform/logging"
	"github.com/teamwarden/teamwarden/internal/platform/pacing"
)

const locationPollInterval = 500 * time.Millisecond

// SessionServiceConfig bounds every step of session acquisition.
type SessionServiceConfig struct {
	// LoginURL is the site's login form page.
	LoginURL string
	// VerifyURL is a page that only renders for an authenticated
	// session, reloaded to confirm transplanted cookies took.
	VerifyURL string
	// LoginTimeout caps each individual login step.
	LoginTimeout time.Duration
}

func (c SessionServiceConfig) validate() error {
	if strings.TrimSpace(c.LoginURL) == "" {
		return fmt.Errorf("%w: login url is required", ErrInvalidInput)
	}
	if strings.TrimSpace(c.VerifyURL) == "" {
		return fmt.Errorf("%w: verify url is required", ErrInvalidInput)
	}
	if c.LoginTimeout <= 0 {
		return fmt.Errorf("%w: login timeout must be positive", ErrInvalidInput)
	}
	return nil
}

// SessionService acquires an authenticated session for one run. The
// direct protocol login is attempted first; its cookies are
// transplanted into a browser and verified. Any non-blocked failure
// falls back to driving the login form in the browser. A blocked
// response aborts acquisition outright: retrying the form immediately
// after an explicit denial only raises the automated-traffic profile.
type SessionService struct {
	auth     AuthClient
	browsers BrowserFactory
	pacer    *pacing.Pacer
	cfg      SessionServiceConfig
	logger   *logging.Logger

	mu          sync.Mutex
	lastFailure string
}

func NewSessionService(auth AuthClient, browsers BrowserFactory, pacer *pacing.Pacer, cfg SessionServiceConfig, logger *logging.Logger) (*SessionService, error) {
	if auth == nil || browsers == nil || pacer == nil {
		return nil, fmt.Errorf("%w: auth client, browser factory and pacer are required", ErrInvalidInput)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionService{
		auth:     auth,
		browsers: browsers,
		pacer:    pacer,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// LastFailure returns the human-readable cause of the most recent
// acquisition failure, for surfacing through run status.
func (s *SessionService) LastFailure() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFailure
}

func (s *SessionService) recordFailure(cause string) {
	s.mu.Lock()
	s.lastFailure = cause
	s.mu.Unlock()
}

// Acquire runs the acquisition state machine and returns a session in
// the browser-authenticated state. On every failure path any browser
// opened along the way has already been closed.
func (s *SessionService) Acquire(ctx context.Context, creds Credentials) (*Session, error) {
	ctx, span := startUsecaseSpan(ctx, "SessionService.Acquire")
	defer span.End()

	if creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: credentials are required", ErrInvalidInput)
	}

	sess, err := s.acquireViaAPI(ctx, creds)
	if err == nil {
		s.recordFailure("")
		return sess, nil
	}
	if errors.Is(err, ErrBlocked) {
		s.recordFailure(err.Error())
		s.logger.WarnContext(ctx, "login blocked by remote service, suppressing browser fallback", "error", err)
		return nil, err
	}

	s.logger.WarnContext(ctx, "direct login failed, falling back to browser form", "error", err)
	if waitErr := s.pacer.Wait(ctx); waitErr != nil {
		s.recordFailure(waitErr.Error())
		return nil, waitErr
	}

	sess, err = s.acquireViaForm(ctx, creds)
	if err != nil {
		s.recordFailure(err.Error())
		return nil, err
	}
	s.recordFailure("")
	return sess, nil
}

// acquireViaAPI performs the direct protocol login and transplants the
// captured cookies into a fresh browser.
func (s *SessionService) acquireViaAPI(ctx context.Context, creds Credentials) (*Session, error) {
	loginCtx, cancel := context.WithTimeout(ctx, s.cfg.LoginTimeout)
	defer cancel()

	result, err := s.auth.Login(loginCtx, creds)
	if err != nil {
		return nil, err
	}

	browser, err := s.browsers.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open browser: %v", ErrDependencyUnavailable, err)
	}
	sess := &Session{state: SessionAPIAuthenticated, browser: browser}

	if err := s.verifyTransplant(ctx, sess, result.Cookies); err != nil {
		sess.state = SessionFailed
		if closeErr := sess.Close(ctx); closeErr != nil {
			s.logger.WarnContext(ctx, "closing browser after failed cookie transplant", "error", closeErr)
		}
		return nil, err
	}

	sess.state = SessionBrowserAuthenticated
	return sess, nil
}

func (s *SessionService) verifyTransplant(ctx context.Context, sess *Session, cookies []SessionCookie) error {
	verifyCtx, cancel := context.WithTimeout(ctx, s.cfg.LoginTimeout)
	defer cancel()

	if err := sess.browser.SetCookies(verifyCtx, cookies); err != nil {
		return fmt.Errorf("%w: transplant cookies: %v", ErrDependencyUnavailable, err)
	}
	if err := sess.browser.Navigate(verifyCtx, s.cfg.VerifyURL); err != nil {
		return fmt.Errorf("%w: reload verification page: %v", ErrTransientNetwork, err)
	}

	location, err := sess.browser.Location(verifyCtx)
	if err != nil {
		return fmt.Errorf("%w: read location: %v", ErrDependencyUnavailable, err)
	}
	if s.isLoginPage(location) {
		return fmt.Errorf("%w: transplanted cookies rejected", ErrAuthentication)
	}
	return nil
}

// acquireViaForm drives the site's own login form. Submission counts
// as successful only once the page has left the login URL; no redirect
// within the timeout is a definitive failure.
func (s *SessionService) acquireViaForm(ctx context.Context, creds Credentials) (*Session, error) {
	browser, err := s.browsers.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open browser: %v", ErrDependencyUnavailable, err)
	}
	sess := &Session{state: SessionUnauthenticated, browser: browser}

	fail := func(err error) (*Session, error) {
		sess.state = SessionFailed
		if closeErr := sess.Close(ctx); closeErr != nil {
			s.logger.WarnContext(ctx, "closing browser after failed form login", "error", closeErr)
		}
		return nil, err
	}

	formCtx, cancel := context.WithTimeout(ctx, s.cfg.LoginTimeout)
	defer cancel()

	if err := browser.Navigate(formCtx, s.cfg.LoginURL); err != nil {
		return fail(fmt.Errorf("%w: open login page: %v", ErrTransientNetwork, err))
	}
	if err := browser.FillLoginForm(formCtx, creds); err != nil {
		return fail(fmt.Errorf("%w: submit login form: %v", ErrDependencyUnavailable, err))
	}
	if err := s.awaitRedirect(formCtx, browser); err != nil {
		return fail(err)
	}

	sess.state = SessionBrowserAuthenticated
	return sess, nil
}

// awaitRedirect polls the browser location until it leaves the login
// page or the step timeout expires.
func (s *SessionService) awaitRedirect(ctx context.Context, browser Browser) error {
	ticker := time.NewTicker(locationPollInterval)
	defer ticker.Stop()

	for {
		location, err := browser.Location(ctx)
		if err != nil {
			return fmt.Errorf("%w: read location: %v", ErrDependencyUnavailable, err)
		}
		if !s.isLoginPage(location) {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: page never left the login url", ErrAuthentication)
		case <-ticker.C:
		}
	}
}

func (s *SessionService) isLoginPage(location string) bool {
	return strings.HasPrefix(strings.TrimSpace(location), s.cfg.LoginURL)
}
