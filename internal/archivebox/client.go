package archivebox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/linkarchiver/internal/config"
	"github.com/dshills/linkarchiver/pkg/types"
)

// Endpoint paths relative to the configured base URI
const (
	LoginFormPath   = "/admin/login"
	LoginSubmitPath = "/admin/login/"
	AddPath         = "/add/"

	// Form values the add view expects from the bookmarklet flow
	AddParser = "url_list"
	AddTag    = "obsidian"
	AddDepth  = "0"
)

var (
	csrfCookie    = regexp.MustCompile(`^csrftoken=([^;]+);`)
	sessionCookie = regexp.MustCompile(`^sessionid=([^;]+);`)
)

var (
	ErrNoCSRFToken     = errors.New("no csrftoken cookie in login form response")
	ErrNoSessionCookie = errors.New("no sessionid cookie in login response")
)

// StatusError reports a response outside the accepted status range
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
}

// Client performs the login handshake and the add call
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient returns a client that never follows redirects
func NewClient(logger *zap.Logger) *Client {
	return NewClientWithHTTP(&http.Client{}, logger)
}

// NewClientWithHTTP wraps an existing http.Client. Its redirect policy is
// replaced so that Set-Cookie headers on redirects stay visible.
func NewClientWithHTTP(hc *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := *hc
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Client{httpClient: &c, logger: logger}
}

// Login runs the CSRF handshake and returns the session credential.
// Every error wraps types.ErrLoginFailed.
func (c *Client) Login(ctx context.Context, cfg *config.Config) (string, error) {
	token, err := c.fetchCSRFToken(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrLoginFailed, err)
	}

	sessionID, err := c.submitLogin(ctx, cfg, token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrLoginFailed, err)
	}

	c.logger.Debug("obtained ArchiveBox session", zap.String("base", cfg.BaseURL()))
	return sessionID, nil
}

func (c *Client) fetchCSRFToken(ctx context.Context, cfg *config.Config) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.LoginTimeout())
	defer cancel()

	req, err := c.newRequest(ctx, cfg, http.MethodGet, LoginFormPath, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch login form: %w", err)
	}
	defer drain(resp)

	if !accepted(resp.StatusCode) {
		return "", &StatusError{Op: "fetch login form", StatusCode: resp.StatusCode}
	}

	token, ok := findCookie(resp.Header, csrfCookie)
	if !ok {
		return "", ErrNoCSRFToken
	}
	return token, nil
}

func (c *Client) submitLogin(ctx context.Context, cfg *config.Config, token string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.LoginTimeout())
	defer cancel()

	form := url.Values{
		"csrfmiddlewaretoken": {token},
		"username":            {cfg.ArchiveBox.Username},
		"password":            {cfg.ArchiveBox.Password},
		"next":                {"/add"},
	}

	req, err := c.newRequest(ctx, cfg, http.MethodPost, LoginSubmitPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Cookie", "csrftoken="+token+";")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", cfg.BaseURL()+LoginSubmitPath)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit login: %w", err)
	}
	defer drain(resp)

	if !accepted(resp.StatusCode) {
		return "", &StatusError{Op: "submit login", StatusCode: resp.StatusCode}
	}

	sessionID, ok := findCookie(resp.Header, sessionCookie)
	if !ok {
		return "", ErrNoSessionCookie
	}
	return sessionID, nil
}

// Add posts urls to the add view in a single request bounded by the submit
// timeout. A rejected session returns types.ErrSessionExpired; a timeout
// returns an error for which IsTimeout reports true.
func (c *Client) Add(ctx context.Context, cfg *config.Config, sessionID string, urls []string) error {
	if len(urls) == 0 {
		return types.ErrEmptyBatch
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.SubmitTimeout())
	defer cancel()

	form := url.Values{
		"url":    {strings.Join(urls, "\n")},
		"parser": {AddParser},
		"tag":    {AddTag},
		"depth":  {AddDepth},
	}

	req, err := c.newRequest(ctx, cfg, http.MethodPost, AddPath, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	// The add view skips CSRF checks for the bookmarklet; the session is enough
	req.Header.Set("Cookie", "sessionid="+sessionID)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("add urls: %w", err)
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", types.ErrSessionExpired, resp.StatusCode)
	case isLoginRedirect(resp):
		return fmt.Errorf("%w: redirected to %s", types.ErrSessionExpired, resp.Header.Get("Location"))
	case !accepted(resp.StatusCode):
		return &StatusError{Op: "add urls", StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, cfg *config.Config, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, cfg.BaseURL()+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if cfg.BasicAuth.Enabled {
		req.SetBasicAuth(cfg.BasicAuth.Username, cfg.BasicAuth.Password)
	}
	return req, nil
}

// IsTimeout reports whether err came from the request deadline
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func accepted(code int) bool {
	return code >= 200 && code <= 302
}

// isLoginRedirect detects Django bouncing an anonymous request to the login page
func isLoginRedirect(resp *http.Response) bool {
	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return false
	}
	loc := resp.Header.Get("Location")
	return strings.Contains(loc, "/admin/login") || strings.Contains(loc, "/accounts/login")
}

// findCookie returns the first capture of pattern across all Set-Cookie headers
func findCookie(h http.Header, pattern *regexp.Regexp) (string, bool) {
	for _, line := range h.Values("Set-Cookie") {
		if m := pattern.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
