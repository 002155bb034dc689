// Package scheduler refreshes dashboards on cron schedules.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"dune-client/internal/dashboard"
	"dune-client/internal/domain"
)

// Refresher is something that can be refreshed on a schedule.
// Implemented by dashboard.Dashboard.
type Refresher interface {
	Update(ctx context.Context) ([]dashboard.Refresh, error)
}

// Entry describes one scheduled job.
type Entry struct {
	Name     string
	Schedule string
	Next     time.Time
	Prev     time.Time
}

type job struct {
	id       cron.EntryID
	schedule string
	target   Refresher
}

// Scheduler runs dashboard refreshes on cron schedules. A refresh that is
// still running when its next tick arrives is skipped.
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]job
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a stopped scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger:  logger,
		entries: make(map[string]job),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Add schedules target under name. schedule is a five-field cron expression
// or a descriptor such as "@hourly" or "@every 30m".
func (s *Scheduler) Add(name, schedule string, target Refresher) error {
	sched, err := s.parser.Parse(schedule)
	if err != nil {
		return domain.ErrValidation("invalid schedule %q for %s: %v", schedule, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[name]; exists {
		return domain.ErrConflict("%s is already scheduled", name)
	}

	id := s.cron.Schedule(sched, cron.FuncJob(func() { s.run(name, target) }))
	s.entries[name] = job{id: id, schedule: schedule, target: target}
	s.logger.Info("refresh scheduled", "name", name, "schedule", schedule)
	return nil
}

// Remove unschedules name and reports whether it was scheduled.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.entries[name]
	if !ok {
		return false
	}
	s.cron.Remove(j.id)
	delete(s.entries, name)
	return true
}

// RunNow refreshes name immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return domain.ErrNotFound("%s is not scheduled", name)
	}
	return s.run(name, j.target)
}

// Entries lists scheduled jobs ordered by name. Next and Prev are zero until
// the scheduler has started.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for name, j := range s.entries {
		e := s.cron.Entry(j.id)
		out = append(out, Entry{Name: name, Schedule: j.schedule, Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("refresh scheduler started", "jobs", len(s.Entries()))
}

// Stop cancels in-flight refreshes and waits for them to return or for ctx
// to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.logger.Info("refresh scheduler stopped")
}

func (s *Scheduler) run(name string, target Refresher) error {
	start := time.Now()
	refreshes, err := target.Update(s.baseCtx)
	failed := 0
	for _, r := range refreshes {
		if r.Err != nil {
			failed++
		}
	}
	if err != nil {
		s.logger.Warn("scheduled refresh failed", "name", name, "queries", len(refreshes), "failed", failed, "error", err)
		return err
	}
	s.logger.Info("scheduled refresh done", "name", name, "queries", len(refreshes), "duration", time.Since(start))
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
