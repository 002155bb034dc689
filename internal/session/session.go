// Package session performs the cookie-based login handshake against the web
// front end and hands out bearer tokens for the GraphQL endpoint.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"dune-client/internal/domain"
	"dune-client/internal/transport"
)

// Cookie names set by the login handshake.
const (
	csrfCookie        = "csrf"
	authRefreshCookie = "auth-refresh"
)

// expirySlack is how long before its exp claim a reused token is refreshed.
const expirySlack = 30 * time.Second

var _ domain.SessionProvider = (*Session)(nil)

// Config configures a Session.
type Config struct {
	Username string
	Password string
	// BaseURL of the web front end (default transport.DefaultBaseURL).
	BaseURL string
	// ReuseToken keeps handing out the last token until shortly before its
	// exp claim instead of refreshing it before every request.
	ReuseToken bool
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Session holds the login cookies of one user.
type Session struct {
	username   string
	password   string
	baseURL    string
	reuseToken bool
	httpClient *http.Client
	logger     *slog.Logger
	group      singleflight.Group

	mu          sync.Mutex
	loggedIn    bool
	token       string
	tokenExpiry time.Time
}

// New creates a Session. No request is made until the first token is needed.
func New(cfg Config) (*Session, error) {
	if cfg.Username == "" {
		return nil, domain.ErrValidation("username is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = transport.DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		clone := *httpClient
		clone.Jar = jar
		httpClient = &clone
	}
	return &Session{
		username:   cfg.Username,
		password:   cfg.Password,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		reuseToken: cfg.ReuseToken,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}, nil
}

// Username returns the account the session logs in as.
func (s *Session) Username() string { return s.username }

// CurrentToken returns a freshly issued token, logging in first if needed.
func (s *Session) CurrentToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	loggedIn := s.loggedIn
	if s.reuseToken && s.token != "" && time.Until(s.tokenExpiry) > expirySlack {
		token := s.token
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	if !loggedIn {
		return s.Reauthenticate(ctx)
	}
	return s.refreshToken(ctx)
}

// Reauthenticate discards the session cookies, logs in again and returns a
// new token. Concurrent callers share one login.
func (s *Session) Reauthenticate(ctx context.Context) (string, error) {
	v, err, _ := s.group.Do("login", func() (any, error) {
		if err := s.login(ctx); err != nil {
			return "", err
		}
		return s.refreshToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Session) login(ctx context.Context) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("reset cookie jar: %w", err)
	}
	s.mu.Lock()
	client := *s.httpClient
	client.Jar = jar
	s.httpClient = &client
	s.loggedIn = false
	s.token = ""
	s.mu.Unlock()

	if _, err := s.do(ctx, http.MethodGet, "/auth/login", nil); err != nil {
		return authErr("fetch login page", err)
	}
	if _, err := s.do(ctx, http.MethodPost, "/api/auth/csrf", nil); err != nil {
		return authErr("fetch csrf token", err)
	}
	csrf := s.cookie(csrfCookie)
	if csrf == "" {
		return &domain.AuthError{Message: "csrf cookie not set"}
	}

	form := url.Values{
		"action":   {"login"},
		"username": {s.username},
		"password": {s.password},
		"csrf":     {csrf},
		"next":     {s.baseURL},
	}
	if _, err := s.do(ctx, http.MethodPost, "/api/auth", form); err != nil {
		return authErr("submit credentials", err)
	}
	if s.cookie(authRefreshCookie) == "" {
		return &domain.AuthError{Message: fmt.Sprintf("login rejected for user %s", s.username)}
	}

	s.mu.Lock()
	s.loggedIn = true
	s.mu.Unlock()
	s.logger.Info("logged in", "user", s.username)
	return nil
}

func (s *Session) refreshToken(ctx context.Context) (string, error) {
	body, err := s.do(ctx, http.MethodPost, "/api/auth/session", nil)
	if err != nil {
		return "", authErr("fetch session token", err)
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", authErr("decode session token", err)
	}
	if payload.Token == "" {
		return "", &domain.AuthError{Message: "session response carried no token"}
	}

	expiry := TokenExpiry(payload.Token)
	s.mu.Lock()
	s.token = payload.Token
	s.tokenExpiry = expiry
	s.mu.Unlock()
	if !expiry.IsZero() {
		s.logger.Debug("session token issued", "expires_in", time.Until(expiry).Round(time.Second))
	}
	return payload.Token, nil
}

func (s *Session) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header = transport.BrowserHeaders(s.baseURL)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	s.mu.Lock()
	client := s.httpClient
	s.mu.Unlock()
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return data, nil
}

func (s *Session) cookie(name string) string {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return ""
	}
	s.mu.Lock()
	jar := s.httpClient.Jar
	s.mu.Unlock()
	for _, c := range jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// TokenExpiry reads the exp claim without verifying the signature; the
// token is only ever forwarded to the service that issued it.
func TokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func authErr(msg string, err error) error {
	return &domain.AuthError{Message: msg, Err: err}
}
