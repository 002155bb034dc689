package domain

import (
	"context"
	"time"
)

// SessionProvider supplies bearer tokens for the GraphQL endpoint.
// Implemented by session.Session and session.StaticSession.
type SessionProvider interface {
	// CurrentToken returns the token to use for the very next request.
	CurrentToken(ctx context.Context) (string, error)
	// Reauthenticate performs a fresh login and returns the new token.
	Reauthenticate(ctx context.Context) (string, error)
}

// RawResponse is an undecoded HTTP response from the service.
type RawResponse struct {
	StatusCode int
	Body       []byte
	RequestID  string
}

// GraphQLPoster sends one GraphQL-over-HTTP request.
// Implemented by transport.Client.
type GraphQLPoster interface {
	// Post sends payload as the JSON body. Network failures are returned as
	// *ConnectionError; non-200 statuses are returned in RawResponse.
	Post(ctx context.Context, token string, payload any) (*RawResponse, error)
}

// RunRecorder is notified once per finished Fetch.
// Implemented by history.Service.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *RunRecord) error
}

// RunRepository persists run metadata.
// Implemented by repository.RunRepo.
type RunRepository interface {
	Create(ctx context.Context, run *RunRecord) error
	Get(ctx context.Context, id string) (*RunRecord, error)
	List(ctx context.Context, filter RunFilter) ([]RunRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
