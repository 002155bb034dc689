package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dune-client/internal/dashboard"
	"dune-client/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (c *countingRefresher) Update(ctx context.Context) ([]dashboard.Refresh, error) {
	c.calls.Add(1)
	return []dashboard.Refresh{{QueryID: 1, JobID: "job"}}, c.err
}

func TestScheduler_Add(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{"five field cron", "*/5 * * * *", false},
		{"every descriptor", "@every 30m", false},
		{"hourly descriptor", "@hourly", false},
		{"seconds field rejected", "*/5 * * * * *", true},
		{"garbage", "whenever", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := New(discardLogger())
			err := s.Add("board", tc.schedule, &countingRefresher{})
			if tc.wantErr {
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Empty(t, s.Entries())
				return
			}
			require.NoError(t, err)
			assert.Len(t, s.Entries(), 1)
		})
	}
}

func TestScheduler_DuplicateAndRemove(t *testing.T) {
	t.Parallel()
	s := New(discardLogger())

	require.NoError(t, s.Add("a", "@hourly", &countingRefresher{}))
	require.NoError(t, s.Add("b", "@daily", &countingRefresher{}))

	var conflict *domain.ConflictError
	require.ErrorAs(t, s.Add("a", "@daily", &countingRefresher{}), &conflict)

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "@daily", entries[1].Schedule)

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.Len(t, s.Entries(), 1)
}

func TestScheduler_RunNow(t *testing.T) {
	t.Parallel()
	s := New(discardLogger())
	ok := &countingRefresher{}
	failing := &countingRefresher{err: errors.New("boom")}
	require.NoError(t, s.Add("ok", "@daily", ok))
	require.NoError(t, s.Add("failing", "@daily", failing))

	require.NoError(t, s.RunNow("ok"))
	assert.Equal(t, int32(1), ok.calls.Load())

	require.EqualError(t, s.RunNow("failing"), "boom")

	var nf *domain.NotFoundError
	require.ErrorAs(t, s.RunNow("missing"), &nf)
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	t.Parallel()
	s := New(discardLogger())
	r := &countingRefresher{}
	require.NoError(t, s.Add("fast", "@every 1s", r))

	s.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
	})

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Next.IsZero())

	require.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
}
