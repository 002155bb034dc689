package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dune-client/internal/db"
	"dune-client/internal/domain"
)

func newRunRepo(t *testing.T) *RunRepo {
	t.Helper()
	store := db.OpenTestStore(t)
	return NewRunRepo(store.Write, store.Read)
}

func ptr[T any](v T) *T { return &v }

var base = time.Date(2022, 3, 10, 12, 0, 0, 0, time.UTC)

func TestRunRepo_CreateGet(t *testing.T) {
	t.Parallel()
	repo := newRunRepo(t)
	ctx := context.Background()

	run := &domain.RunRecord{
		QueryID:    1234,
		QueryName:  "holders",
		Network:    domain.NetworkPolygon,
		Status:     domain.RunStatusSucceeded,
		Attempts:   2,
		JobID:      ptr("job-1"),
		ResultID:   ptr("res-1"),
		RowCount:   3,
		Columns:    []string{"address", "balance"},
		StartedAt:  base,
		FinishedAt: base.Add(1500 * time.Millisecond),
	}
	require.NoError(t, repo.Create(ctx, run))
	require.NotEmpty(t, run.ID)

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), got.QueryID)
	assert.Equal(t, domain.NetworkPolygon, got.Network)
	assert.Equal(t, domain.RunStatusSucceeded, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, "job-1", *got.JobID)
	assert.Equal(t, "res-1", *got.ResultID)
	assert.Nil(t, got.ErrorCode)
	assert.Equal(t, []string{"address", "balance"}, got.Columns)
	assert.True(t, got.StartedAt.Equal(base))
	assert.Equal(t, 1500*time.Millisecond, got.Duration())
}

func TestRunRepo_FailedRunWithoutColumns(t *testing.T) {
	t.Parallel()
	repo := newRunRepo(t)
	ctx := context.Background()

	run := &domain.RunRecord{
		ID:           "fixed-id",
		QueryID:      7,
		Network:      domain.NetworkMainnet,
		Status:       domain.RunStatusFailed,
		Attempts:     3,
		ErrorCode:    ptr("RETRIES_EXHAUSTED"),
		ErrorMessage: ptr("retries exhausted after 3 attempt(s): schema error: missing data key"),
		StartedAt:    base,
		FinishedAt:   base,
	}
	require.NoError(t, repo.Create(ctx, run))

	got, err := repo.Get(ctx, "fixed-id")
	require.NoError(t, err)
	assert.Nil(t, got.JobID)
	assert.Empty(t, got.Columns)
	assert.Equal(t, "RETRIES_EXHAUSTED", *got.ErrorCode)

	// Same id twice is a conflict.
	err = repo.Create(ctx, run)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestRunRepo_GetNotFound(t *testing.T) {
	t.Parallel()
	repo := newRunRepo(t)

	_, err := repo.Get(context.Background(), "missing")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRunRepo_ListFilters(t *testing.T) {
	t.Parallel()
	repo := newRunRepo(t)
	ctx := context.Background()

	for i := range 6 {
		status := domain.RunStatusSucceeded
		if i%3 == 0 {
			status = domain.RunStatusFailed
		}
		require.NoError(t, repo.Create(ctx, &domain.RunRecord{
			ID:         fmt.Sprintf("run-%d", i),
			QueryID:    int64(100 + i%2),
			Network:    domain.NetworkMainnet,
			Status:     status,
			Attempts:   1,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
		}))
	}

	all, err := repo.List(ctx, domain.RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, "run-5", all[0].ID, "newest first")
	assert.Equal(t, "run-0", all[5].ID)

	byQuery, err := repo.List(ctx, domain.RunFilter{QueryID: ptr(int64(100))})
	require.NoError(t, err)
	assert.Len(t, byQuery, 3)
	for _, r := range byQuery {
		assert.Equal(t, int64(100), r.QueryID)
	}

	failed, err := repo.List(ctx, domain.RunFilter{Status: ptr(domain.RunStatusFailed)})
	require.NoError(t, err)
	assert.Len(t, failed, 2)

	recent, err := repo.List(ctx, domain.RunFilter{Since: ptr(base.Add(4 * time.Minute))})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := repo.List(ctx, domain.RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRunRepo_DeleteBefore(t *testing.T) {
	t.Parallel()
	repo := newRunRepo(t)
	ctx := context.Background()

	for i := range 4 {
		require.NoError(t, repo.Create(ctx, &domain.RunRecord{
			QueryID:    1,
			Network:    domain.NetworkSolana,
			Status:     domain.RunStatusSucceeded,
			StartedAt:  base.Add(time.Duration(i) * 24 * time.Hour),
			FinishedAt: base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}

	n, err := repo.DeleteBefore(ctx, base.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := repo.List(ctx, domain.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, left, 2)
}
