// Package testutil provides shared mock implementations of domain interfaces
// and a fake GraphQL service for use in tests across the codebase.
package testutil

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"dune-client/internal/domain"
	"dune-client/internal/request"
)

// === Session Mock ===

// MockSession implements domain.SessionProvider for testing. Without Fn
// overrides it hands out "token-N" where N counts re-authentications.
type MockSession struct {
	CurrentTokenFn   func(ctx context.Context) (string, error)
	ReauthenticateFn func(ctx context.Context) (string, error)

	mu           sync.Mutex
	TokenCalls   int
	ReauthCalls  int
	currentToken string
}

// CurrentToken implements the interface method for testing.
func (m *MockSession) CurrentToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.TokenCalls++
	m.mu.Unlock()
	if m.CurrentTokenFn != nil {
		return m.CurrentTokenFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentToken == "" {
		m.currentToken = "token-0"
	}
	return m.currentToken, nil
}

// Reauthenticate implements the interface method for testing.
func (m *MockSession) Reauthenticate(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.ReauthCalls++
	n := m.ReauthCalls
	m.mu.Unlock()
	if m.ReauthenticateFn != nil {
		return m.ReauthenticateFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentToken = "token-" + strconv.Itoa(n)
	return m.currentToken, nil
}

// Reauths returns the number of Reauthenticate calls so far.
func (m *MockSession) Reauths() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ReauthCalls
}

// === GraphQL Poster Mock ===

// PostCall records one call to MockPoster.Post.
type PostCall struct {
	Token     string
	Operation string
	Variables map[string]any
}

// MockPoster implements domain.GraphQLPoster for testing.
type MockPoster struct {
	PostFn func(ctx context.Context, token string, req request.GraphQLRequest) (*domain.RawResponse, error)

	mu    sync.Mutex
	Calls []PostCall
}

// Post implements the interface method for testing.
func (m *MockPoster) Post(ctx context.Context, token string, payload any) (*domain.RawResponse, error) {
	req, _ := payload.(request.GraphQLRequest)
	m.mu.Lock()
	m.Calls = append(m.Calls, PostCall{Token: token, Operation: req.OperationName, Variables: req.Variables})
	m.mu.Unlock()
	if m.PostFn != nil {
		return m.PostFn(ctx, token, req)
	}
	panic("unexpected call to MockPoster.Post")
}

// Operations returns the operation names posted so far, in order.
func (m *MockPoster) Operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		out = append(out, c.Operation)
	}
	return out
}

// Count returns how many times operation was posted.
func (m *MockPoster) Count(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Operation == operation {
			n++
		}
	}
	return n
}

// OK wraps body in a 200 response.
func OK(body string) *domain.RawResponse {
	return &domain.RawResponse{StatusCode: http.StatusOK, Body: []byte(body)}
}

// Status wraps body in a response with the given status code.
func Status(code int, body string) *domain.RawResponse {
	return &domain.RawResponse{StatusCode: code, Body: []byte(body)}
}

// === Run Recorder / Repository Mocks ===

// MockRunRecorder implements domain.RunRecorder and collects every run.
type MockRunRecorder struct {
	RecordRunFn func(ctx context.Context, run *domain.RunRecord) error

	mu   sync.Mutex
	Runs []domain.RunRecord
}

// RecordRun implements the interface method for testing.
func (m *MockRunRecorder) RecordRun(ctx context.Context, run *domain.RunRecord) error {
	m.mu.Lock()
	m.Runs = append(m.Runs, *run)
	m.mu.Unlock()
	if m.RecordRunFn != nil {
		return m.RecordRunFn(ctx, run)
	}
	return nil
}

// Last returns the most recent recorded run, or nil if none.
func (m *MockRunRecorder) Last() *domain.RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Runs) == 0 {
		return nil
	}
	r := m.Runs[len(m.Runs)-1]
	return &r
}

// MockRunRepo implements domain.RunRepository for testing.
type MockRunRepo struct {
	CreateFn       func(ctx context.Context, run *domain.RunRecord) error
	GetFn          func(ctx context.Context, id string) (*domain.RunRecord, error)
	ListFn         func(ctx context.Context, filter domain.RunFilter) ([]domain.RunRecord, error)
	DeleteBeforeFn func(ctx context.Context, cutoff time.Time) (int64, error)
}

// Create implements the interface method for testing.
func (m *MockRunRepo) Create(ctx context.Context, run *domain.RunRecord) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, run)
	}
	panic("unexpected call to MockRunRepo.Create")
}

// Get implements the interface method for testing.
func (m *MockRunRepo) Get(ctx context.Context, id string) (*domain.RunRecord, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	panic("unexpected call to MockRunRepo.Get")
}

// List implements the interface method for testing.
func (m *MockRunRepo) List(ctx context.Context, filter domain.RunFilter) ([]domain.RunRecord, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	panic("unexpected call to MockRunRepo.List")
}

// DeleteBefore implements the interface method for testing.
func (m *MockRunRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteBeforeFn != nil {
		return m.DeleteBeforeFn(ctx, cutoff)
	}
	panic("unexpected call to MockRunRepo.DeleteBefore")
}
