package nitrotype

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/teamwarden/teamwarden/internal/platform/logging"
	"github.com/teamwarden/teamwarden/internal/platform/resilience"
	"github.com/teamwarden/teamwarden/internal/usecase"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultTimezone = "America/New_York"
	maxBodyBytes    = 1 << 20

	statusOK = "OK"

	// blockedSignature in a response body marks an automated-traffic
	// block, regardless of status code.
	blockedSignature = "access denied"
)

var errTransient = crerr.New("nitrotype transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	AuthURL        string
	Timeout        time.Duration
	MaxRetries     int
	Timezone       string
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client performs the protocol-level login against the remote racing
// service. It implements usecase.AuthClient.
type Client struct {
	httpClient *http.Client
	authURL    string
	timezone   string
	maxRetries int
	logger     *logging.Logger
	breaker    *resilience.CircuitBreaker
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = defaultTimeout
	}

	timezone := strings.TrimSpace(cfg.Timezone)
	if timezone == "" {
		timezone = defaultTimezone
	}

	return &Client{
		httpClient: httpClient,
		authURL:    strings.TrimSpace(cfg.AuthURL),
		timezone:   timezone,
		maxRetries: max(cfg.MaxRetries, 0),
		logger:     logger,
		breaker:    resilience.NewCircuitBreaker(cfg.CircuitBreaker),
	}
}

type loginRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captchaToken"`
	TrustDevice  bool   `json:"trustDevice"`
	Timezone     string `json:"tz"`
}

type loginResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Login submits the credentials and captures session cookies. Failures
// are classified: an explicit denial becomes usecase.ErrBlocked, a
// non-OK payload becomes usecase.ErrAuthentication, and network-level
// trouble becomes usecase.ErrTransientNetwork after retries run out.
func (c *Client) Login(ctx context.Context, creds usecase.Credentials) (usecase.AuthResult, error) {
	if !c.breaker.Allow() {
		c.logger.WarnContext(ctx, "login rejected by circuit breaker")
		return usecase.AuthResult{}, fmt.Errorf("%w: login endpoint is temporarily unavailable", usecase.ErrDependencyUnavailable)
	}

	result, err := c.attemptWithRetries(ctx, creds)
	if err != nil {
		if crerr.Is(err, errTransient) {
			c.breaker.ReportFailure()
			return usecase.AuthResult{}, fmt.Errorf("%w: %s", usecase.ErrTransientNetwork, c.redact(err.Error(), creds.Password))
		}
		c.breaker.ReportSuccess()
		return usecase.AuthResult{}, err
	}

	c.breaker.ReportSuccess()
	return result, nil
}

func (c *Client) attemptWithRetries(ctx context.Context, creds usecase.Credentials) (usecase.AuthResult, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		result, err := c.attempt(ctx, creds)
		if err == nil {
			return result, nil
		}
		if !crerr.Is(err, errTransient) {
			return usecase.AuthResult{}, err
		}
		lastErr = err

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return usecase.AuthResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	c.logger.WarnContext(ctx, "login request failed", "url", c.authURL, "error", c.redact(lastErr.Error(), creds.Password))
	return usecase.AuthResult{}, lastErr
}

func (c *Client) attempt(ctx context.Context, creds usecase.Credentials) (usecase.AuthResult, error) {
	body := bytebufferpool.Get()
	defer bytebufferpool.Put(body)

	payload, err := sonic.Marshal(loginRequest{
		Username:    creds.Username,
		Password:    creds.Password,
		TrustDevice: true,
		Timezone:    c.timezone,
	})
	if err != nil {
		return usecase.AuthResult{}, fmt.Errorf("encode login payload: %w", err)
	}
	_, _ = body.Write(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(body.String()))
	if err != nil {
		return usecase.AuthResult{}, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return usecase.AuthResult{}, crerr.Wrapf(errTransient, "send login request: %s", c.redact(err.Error(), creds.Password))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return usecase.AuthResult{}, crerr.Wrapf(errTransient, "read login response: %v", err)
	}

	if blocked(resp.StatusCode, raw) {
		return usecase.AuthResult{}, fmt.Errorf("%w: login denied (status=%d)", usecase.ErrBlocked, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return usecase.AuthResult{}, crerr.Wrapf(errTransient, "login status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
	}
	if resp.StatusCode != http.StatusOK {
		return usecase.AuthResult{}, fmt.Errorf("%w: login status=%d", usecase.ErrAuthentication, resp.StatusCode)
	}

	var decoded loginResponse
	if err := sonic.Unmarshal(raw, &decoded); err != nil {
		return usecase.AuthResult{}, fmt.Errorf("%w: unreadable login payload: %v", usecase.ErrAuthentication, err)
	}
	if decoded.Status != statusOK {
		return usecase.AuthResult{}, fmt.Errorf("%w: login status %q", usecase.ErrAuthentication, decoded.Status)
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return usecase.AuthResult{}, fmt.Errorf("%w: login succeeded without session cookies", usecase.ErrAuthentication)
	}

	result := usecase.AuthResult{Cookies: make([]usecase.SessionCookie, 0, len(cookies))}
	for _, cookie := range cookies {
		result.Cookies = append(result.Cookies, usecase.SessionCookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Domain:   cookie.Domain,
			Path:     cookie.Path,
			Expires:  cookie.Expires,
			HTTPOnly: cookie.HttpOnly,
			Secure:   cookie.Secure,
		})
	}
	return result, nil
}

func blocked(statusCode int, body []byte) bool {
	if statusCode == http.StatusForbidden {
		return true
	}
	return strings.Contains(strings.ToLower(string(body)), blockedSignature)
}

func (c *Client) redact(text, password string) string {
	if password == "" {
		return text
	}
	return strings.ReplaceAll(text, password, "REDACTED")
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
