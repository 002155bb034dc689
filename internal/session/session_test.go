package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dune-client/internal/domain"
	"dune-client/internal/testutil"
)

func newTestSession(t *testing.T, fake *testutil.FakeDune, password string, reuse bool) *Session {
	t.Helper()
	s, err := New(Config{
		Username:   fake.Username,
		Password:   password,
		BaseURL:    fake.BaseURL(),
		ReuseToken: reuse,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return s
}

func TestSession_LoginAndToken(t *testing.T) {
	fake := testutil.NewFakeDune(t, "alice", "hunter2")
	s := newTestSession(t, fake, "hunter2", false)

	token, err := s.CurrentToken(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, 1, fake.Logins())

	// Later calls refresh the token without logging in again.
	_, err = s.CurrentToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Logins())
	assert.Equal(t, "alice", s.Username())
}

func TestSession_WrongPassword(t *testing.T) {
	fake := testutil.NewFakeDune(t, "alice", "hunter2")
	s := newTestSession(t, fake, "wrong", false)

	_, err := s.CurrentToken(context.Background())
	require.Error(t, err)
	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, err.Error(), "login rejected")
	assert.Zero(t, fake.Logins())
}

func TestSession_ReauthenticateLogsInAgain(t *testing.T) {
	fake := testutil.NewFakeDune(t, "alice", "hunter2")
	s := newTestSession(t, fake, "hunter2", false)

	_, err := s.CurrentToken(context.Background())
	require.NoError(t, err)
	_, err = s.Reauthenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Logins())
}

func TestSession_ConcurrentReauthenticate(t *testing.T) {
	fake := testutil.NewFakeDune(t, "alice", "hunter2")
	s := newTestSession(t, fake, "hunter2", false)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Reauthenticate(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, fake.Logins(), 1)
	assert.LessOrEqual(t, fake.Logins(), 8)
}

func TestSession_ReuseToken(t *testing.T) {
	fake := testutil.NewFakeDune(t, "alice", "hunter2")
	s := newTestSession(t, fake, "hunter2", true)

	first, err := s.CurrentToken(context.Background())
	require.NoError(t, err)
	second, err := s.CurrentToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSession_ReuseTokenNearExpiry(t *testing.T) {
	fake := testutil.NewFakeDune(t, "alice", "hunter2")
	fake.TokenTTL = 10 * time.Second
	s := newTestSession(t, fake, "hunter2", true)

	_, err := s.CurrentToken(context.Background())
	require.NoError(t, err)
	_, err = s.CurrentToken(context.Background())
	require.NoError(t, err)

	// Expiry is inside the slack window, so the second call hit the session endpoint.
	s.mu.Lock()
	expiry := s.tokenExpiry
	s.mu.Unlock()
	assert.WithinDuration(t, time.Now().Add(10*time.Second), expiry, 2*time.Second)
}

func TestSession_SessionEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/csrf":
			http.SetCookie(w, &http.Cookie{Name: "csrf", Value: "c", Path: "/"})
		case "/api/auth":
			http.SetCookie(w, &http.Cookie{Name: "auth-refresh", Value: "r", Path: "/"})
		case "/api/auth/session":
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	s, err := New(Config{Username: "bob", BaseURL: srv.URL, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	_, err = s.CurrentToken(context.Background())
	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, err.Error(), "fetch session token")
}

func TestNew_RequiresUsername(t *testing.T) {
	_, err := New(Config{})
	var validErr *domain.ValidationError
	assert.ErrorAs(t, err, &validErr)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)
	assert.True(t, exp.Equal(TokenExpiry(signed)))

	assert.True(t, TokenExpiry("not-a-jwt").IsZero())
}

func TestStaticSession(t *testing.T) {
	s := StaticSession("abc")
	tok, err := s.CurrentToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
	tok, err = s.Reauthenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = StaticSession("").CurrentToken(context.Background())
	var authErr *domain.AuthError
	assert.ErrorAs(t, err, &authErr)
}
