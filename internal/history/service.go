// Package history records and lists the metadata of finished fetches.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"dune-client/internal/domain"
)

// Service implements domain.RunRecorder on top of a RunRepository.
type Service struct {
	repo   domain.RunRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a history service.
func NewService(repo domain.RunRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

var _ domain.RunRecorder = (*Service)(nil)

// RecordRun stores run. Runs without a finish time are stamped now.
func (s *Service) RecordRun(ctx context.Context, run *domain.RunRecord) error {
	if run.QueryID <= 0 {
		return domain.ErrValidation("run has no query id")
	}
	if run.Status != domain.RunStatusSucceeded && run.Status != domain.RunStatusFailed {
		return domain.ErrValidation("run status %q is not final", run.Status)
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = s.now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	if err := s.repo.Create(ctx, run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	s.logger.Debug("run recorded",
		"run_id", run.ID, "query_id", run.QueryID, "status", run.Status, "attempts", run.Attempts)
	return nil
}

// Get returns a single run.
func (s *Service) Get(ctx context.Context, id string) (*domain.RunRecord, error) {
	return s.repo.Get(ctx, id)
}

// List returns runs matching filter, newest first.
func (s *Service) List(ctx context.Context, filter domain.RunFilter) ([]domain.RunRecord, error) {
	if filter.QueryID != nil && *filter.QueryID <= 0 {
		return nil, domain.ErrValidation("query id filter must be positive")
	}
	return s.repo.List(ctx, filter)
}

// Prune deletes runs older than maxAge.
func (s *Service) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, domain.ErrValidation("prune age must be positive")
	}
	n, err := s.repo.DeleteBefore(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned run history", "deleted", n, "older_than", maxAge)
	}
	return n, nil
}

// QuerySummary aggregates the runs of one query.
type QuerySummary struct {
	QueryID     int64
	QueryName   string
	Runs        int
	Failures    int
	LastStatus  domain.RunStatus
	LastRunAt   time.Time
	AvgDuration time.Duration
}

// Summarize groups the runs matching filter by query id, ordered by most
// recent activity.
func (s *Service) Summarize(ctx context.Context, filter domain.RunFilter) ([]QuerySummary, error) {
	runs, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*QuerySummary)
	totals := make(map[int64]time.Duration)
	for _, r := range runs {
		sum, ok := byID[r.QueryID]
		if !ok {
			// runs arrive newest first
			sum = &QuerySummary{QueryID: r.QueryID, QueryName: r.QueryName, LastStatus: r.Status, LastRunAt: r.StartedAt}
			byID[r.QueryID] = sum
		}
		sum.Runs++
		if r.Status == domain.RunStatusFailed {
			sum.Failures++
		}
		totals[r.QueryID] += r.Duration()
	}

	out := make([]QuerySummary, 0, len(byID))
	for id, sum := range byID {
		sum.AvgDuration = totals[id] / time.Duration(sum.Runs)
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastRunAt.Equal(out[j].LastRunAt) {
			return out[i].LastRunAt.After(out[j].LastRunAt)
		}
		return out[i].QueryID < out[j].QueryID
	})
	return out, nil
}
