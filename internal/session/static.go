package session

import (
	"context"

	"dune-client/internal/domain"
)

var _ domain.SessionProvider = StaticSession("")

// StaticSession always returns the same pre-issued token. Reauthenticate
// cannot obtain a new one and returns the same token again.
type StaticSession string

// CurrentToken implements domain.SessionProvider.
func (s StaticSession) CurrentToken(context.Context) (string, error) {
	if s == "" {
		return "", &domain.AuthError{Message: "no token configured"}
	}
	return string(s), nil
}

// Reauthenticate implements domain.SessionProvider.
func (s StaticSession) Reauthenticate(ctx context.Context) (string, error) {
	return s.CurrentToken(ctx)
}
