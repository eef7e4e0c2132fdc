package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/teamwarden/teamwarden/internal/platform/logging"
	"github.com/teamwarden/teamwarden/internal/usecase"
)

const (
	defaultUsernameSelector = `input[name="username"]`
	defaultPasswordSelector = `input[name="password"]`
	defaultSubmitSelector   = `button[type="submit"]`

	// rosterRowsJS tokenizes the roster table into cell text. The core
	// interprets the cells; this is the only place markup is touched.
	rosterRowsJS = `Array.from(document.querySelectorAll("table tbody tr"))` +
		`.map(row => Array.from(row.querySelectorAll("td")).map(cell => cell.innerText.trim()))`
)

type Config struct {
	Headless bool
	// CookieDomain is applied to transplanted cookies that carry no
	// domain of their own.
	CookieDomain     string
	UserAgent        string
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string
}

func (c Config) withDefaults() Config {
	if c.UsernameSelector == "" {
		c.UsernameSelector = defaultUsernameSelector
	}
	if c.PasswordSelector == "" {
		c.PasswordSelector = defaultPasswordSelector
	}
	if c.SubmitSelector == "" {
		c.SubmitSelector = defaultSubmitSelector
	}
	return c
}

// Factory launches one headless browser per run.
type Factory struct {
	cfg    Config
	logger *logging.Logger
}

func NewFactory(cfg Config, logger *logging.Logger) *Factory {
	if logger == nil {
		logger = logging.Default()
	}
	return &Factory{cfg: cfg.withDefaults(), logger: logger}
}

func (f *Factory) New(ctx context.Context) (usecase.Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
	)
	if f.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.cfg.UserAgent))
	}

	// The browser outlives the trigger request; its lifetime is owned
	// by the run, so the allocator hangs off the background context.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	chrome := &Chrome{
		cfg:    f.cfg,
		ctx:    browserCtx,
		logger: f.logger,
		cancels: []context.CancelFunc{
			browserCancel,
			allocCancel,
		},
	}

	if err := chrome.run(ctx); err != nil {
		chrome.release()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return chrome, nil
}

// Chrome drives one headless browser instance. It implements
// usecase.Browser.
type Chrome struct {
	cfg     Config
	ctx     context.Context
	logger  *logging.Logger
	cancels []context.CancelFunc
}

// run executes actions on the browser context while honoring the
// caller's deadline and cancellation.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := c.ctx
	cancel := context.CancelFunc(func() {})
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(c.ctx, deadline)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (c *Chrome) Location(ctx context.Context) (string, error) {
	var location string
	if err := c.run(ctx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return strings.TrimSpace(location), nil
}

func (c *Chrome) SetCookies(ctx context.Context, cookies []usecase.SessionCookie) error {
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, cookie := range cookies {
			domain := cookie.Domain
			if domain == "" {
				domain = c.cfg.CookieDomain
			}
			path := cookie.Path
			if path == "" {
				path = "/"
			}

			param := network.SetCookie(cookie.Name, cookie.Value).
				WithDomain(domain).
				WithPath(path).
				WithHTTPOnly(cookie.HTTPOnly).
				WithSecure(cookie.Secure)
			if !cookie.Expires.IsZero() {
				expires := cdp.TimeSinceEpoch(cookie.Expires)
				param = param.WithExpires(&expires)
			}

			if err := param.Do(ctx); err != nil {
				return fmt.Errorf("set cookie %q: %w", cookie.Name, err)
			}
		}
		return nil
	}))
}

// FillLoginForm clears both fields before typing so stale autofill
// never mixes into the submitted credentials.
func (c *Chrome) FillLoginForm(ctx context.Context, creds usecase.Credentials) error {
	return c.run(ctx,
		chromedp.WaitVisible(c.cfg.UsernameSelector, chromedp.ByQuery),
		chromedp.Clear(c.cfg.UsernameSelector, chromedp.ByQuery),
		chromedp.SendKeys(c.cfg.UsernameSelector, creds.Username, chromedp.ByQuery),
		chromedp.Clear(c.cfg.PasswordSelector, chromedp.ByQuery),
		chromedp.SendKeys(c.cfg.PasswordSelector, creds.Password, chromedp.ByQuery),
		chromedp.Click(c.cfg.SubmitSelector, chromedp.ByQuery),
	)
}

func (c *Chrome) RosterRows(ctx context.Context, teamURL string) ([][]string, error) {
	var rows [][]string
	err := c.run(ctx,
		chromedp.Navigate(teamURL),
		chromedp.WaitReady("table tbody tr", chromedp.ByQuery),
		chromedp.Evaluate(rosterRowsJS, &rows),
	)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Chrome) Close(ctx context.Context) error {
	err := chromedp.Cancel(c.ctx)
	c.release()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shut down browser: %w", err)
	}
	return nil
}

func (c *Chrome) release() {
	for _, cancel := range c.cancels {
		cancel()
	}
}
