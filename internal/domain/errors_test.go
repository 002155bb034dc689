package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"service", &ServiceError{Payload: "boom"}, true},
		{"schema_wrapped", fmt.Errorf("register: %w", ErrSchema("missing data key")), true},
		{"connection", &ConnectionError{Op: "post", Err: errors.New("reset")}, true},
		{"transport", &TransportError{StatusCode: 502}, false},
		{"parse", ErrParse("bad runtime"), false},
		{"timeout", ErrTimeout("poll deadline exceeded"), false},
		{"canceled", context.Canceled, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestErrorCode(t *testing.T) {
	exhausted := &RetriesExhaustedError{Attempts: 3, Last: &ServiceError{Payload: "x"}}
	assert.Equal(t, "RETRIES_EXHAUSTED", ErrorCode(exhausted))
	assert.Equal(t, "TRANSPORT", ErrorCode(fmt.Errorf("fetch: %w", &TransportError{StatusCode: 500})))
	assert.Equal(t, "AUTH", ErrorCode(&AuthError{Message: "bad password"}))
	assert.Equal(t, "INTERNAL", ErrorCode(errors.New("other")))
	assert.Equal(t, "", ErrorCode(nil))
}

func TestRetriesExhaustedUnwrap(t *testing.T) {
	last := &ServiceError{Payload: []any{"x"}}
	err := error(&RetriesExhaustedError{Attempts: 2, Last: last})
	var svcErr *ServiceError
	assert.ErrorAs(t, err, &svcErr)
	assert.Contains(t, err.Error(), "2 attempt(s)")
}
