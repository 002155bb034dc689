// Package orchestrator drives a query through register, execute and
// completion polling against the GraphQL service, restarting the whole
// sequence after re-authentication when an attempt yields no usable data.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dune-client/internal/domain"
	"dune-client/internal/request"
	"dune-client/internal/response"
)

// Defaults applied by the configuration layer.
const (
	DefaultMaxRetries   = 2
	DefaultPollInterval = 5 * time.Second
)

// Options configures an Orchestrator.
type Options struct {
	// MaxRetries is the number of full restarts after the first attempt.
	// Zero means a single attempt; negative values are treated as zero.
	MaxRetries int
	// PollInterval is the pause between status polls (default 5s).
	PollInterval time.Duration
	// PollTimeout bounds the wait for a result. Zero waits until the
	// context ends.
	PollTimeout time.Duration
	Logger      *slog.Logger
	// Recorder, when set, receives the metadata of every finished Fetch.
	Recorder domain.RunRecorder
}

// Orchestrator sequences the query lifecycle. It is safe for concurrent use
// across distinct query ids; concurrent fetches of the same id are rejected.
type Orchestrator struct {
	poster       domain.GraphQLPoster
	session      domain.SessionProvider
	maxRetries   int
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *slog.Logger
	recorder     domain.RunRecorder

	mu       sync.Mutex
	inflight map[int64]struct{}
	states   map[int64]State
}

// New creates an Orchestrator sending requests through poster and taking
// tokens from session.
func New(poster domain.GraphQLPoster, session domain.SessionProvider, opts Options) *Orchestrator {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		poster:       poster,
		session:      session,
		maxRetries:   opts.MaxRetries,
		pollInterval: opts.PollInterval,
		pollTimeout:  opts.PollTimeout,
		logger:       opts.Logger,
		recorder:     opts.Recorder,
		inflight:     make(map[int64]struct{}),
		states:       make(map[int64]State),
	}
}

// State returns the lifecycle state of a query id. Fetch forgets the id once
// it returns, so a finished Fetch reports StateIdle. Ids driven step by step
// through Register, Execute and AwaitCompletion keep their last state.
func (o *Orchestrator) State(queryID int64) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.states[queryID]; ok {
		return s
	}
	return StateIdle
}

func (o *Orchestrator) transition(queryID int64, to State) {
	o.mu.Lock()
	from, ok := o.states[queryID]
	if !ok {
		from = StateIdle
	}
	o.states[queryID] = to
	o.mu.Unlock()
	o.logger.Debug("query state changed", "query_id", queryID, "from", string(from), "to", string(to))
}

// Fetch registers q, executes it, waits for the result and returns it.
// Retryable failures restart the whole sequence from registration after
// re-authenticating, up to MaxRetries times.
func (o *Orchestrator) Fetch(ctx context.Context, q domain.Query) (*domain.ResultSet, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if !o.acquire(q.ID) {
		return nil, domain.ErrConflict("query %d is already being fetched", q.ID)
	}
	defer o.release(q.ID)

	run := &domain.RunRecord{
		ID:        domain.NewID(),
		QueryID:   q.ID,
		QueryName: q.Name,
		Network:   q.Network,
		StartedAt: time.Now().UTC(),
	}
	o.logger.Info("fetching query", "query_id", q.ID, "name", q.Name, "network", q.Network.String())

	rs, err := o.fetchWithRetry(ctx, q, run)
	run.FinishedAt = time.Now().UTC()
	if err != nil {
		o.transition(q.ID, StateFailed)
		o.logger.Error("fetch failed", "query_id", q.ID, "attempts", run.Attempts, "error", err)
	} else {
		o.logger.Info("fetch completed", "query_id", q.ID, "rows", len(rs.Rows), "attempts", run.Attempts,
			"duration", run.Duration())
	}
	o.record(run, rs, err)
	return rs, err
}

func (o *Orchestrator) fetchWithRetry(ctx context.Context, q domain.Query, run *domain.RunRecord) (*domain.ResultSet, error) {
	maxAttempts := o.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		run.Attempts = attempt
		run.JobID, run.ResultID = nil, nil
		if attempt > 1 {
			o.logger.Warn("attempt failed, re-authenticating and restarting",
				"query_id", q.ID, "attempt", attempt, "max_attempts", maxAttempts, "error", lastErr)
			if _, err := o.session.Reauthenticate(ctx); err != nil {
				return nil, asAuthError("re-authenticate", err)
			}
		}

		o.transition(q.ID, StateIdle)
		rs, err := o.runOnce(ctx, q.Clone(), run)
		if err == nil {
			return rs, nil
		}
		lastErr = err

		if ctx.Err() != nil || !domain.IsRetryable(err) {
			return nil, err
		}
	}

	return nil, &domain.RetriesExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

// runOnce performs one full register, execute and await sequence.
func (o *Orchestrator) runOnce(ctx context.Context, q domain.Query, run *domain.RunRecord) (*domain.ResultSet, error) {
	if err := o.Register(ctx, q); err != nil {
		return nil, err
	}
	jobID, err := o.Execute(ctx, q)
	if err != nil {
		return nil, err
	}
	run.JobID = &jobID
	rs, err := o.AwaitCompletion(ctx, q.ID, jobID)
	if err != nil {
		return nil, err
	}
	resultID := rs.Meta.ID
	run.ResultID = &resultID
	return rs, nil
}

// Register upserts the query text, network and parameters.
func (o *Orchestrator) Register(ctx context.Context, q domain.Query) error {
	if _, err := o.postDict(ctx, request.RegisterQuery(q)); err != nil {
		return fmt.Errorf("register query %d: %w", q.ID, err)
	}
	o.transition(q.ID, StateRegistered)
	o.logger.Info("query registered", "query_id", q.ID)
	return nil
}

// Execute starts a job for a registered query and returns its job id.
func (o *Orchestrator) Execute(ctx context.Context, q domain.Query) (string, error) {
	resp, err := o.postDict(ctx, request.ExecuteQuery(q.ID))
	if err != nil {
		return "", fmt.Errorf("execute query %d: %w", q.ID, err)
	}
	jobID, err := response.JobID(resp)
	if err != nil {
		return "", fmt.Errorf("execute query %d: %w", q.ID, err)
	}
	o.transition(q.ID, StateExecuting)
	o.logger.Info("query executing", "query_id", q.ID, "job_id", jobID)
	return jobID, nil
}

// AwaitCompletion polls until the job has a result, then fetches and
// extracts it. "Not ready" is not a failure: polling continues until a
// result appears, the context ends or the optional poll timeout elapses.
func (o *Orchestrator) AwaitCompletion(ctx context.Context, queryID int64, jobID string) (*domain.ResultSet, error) {
	var deadline time.Time
	if o.pollTimeout > 0 {
		deadline = time.Now().Add(o.pollTimeout)
	}

	timer := time.NewTimer(o.pollInterval)
	defer timer.Stop()

	for polls := 1; ; polls++ {
		resp, err := o.postDict(ctx, request.PollStatus(queryID))
		if err != nil {
			return nil, fmt.Errorf("poll query %d: %w", queryID, err)
		}
		status, err := response.Poll(resp)
		if err != nil {
			return nil, fmt.Errorf("poll query %d: %w", queryID, err)
		}

		if !status.Pending() {
			o.transition(queryID, StatePolling)
			o.logger.Debug("result ready", "query_id", queryID, "job_id", jobID, "result_id", status.ResultID, "polls", polls)
			rs, err := o.FetchResults(ctx, status.ResultID)
			if err != nil {
				return nil, fmt.Errorf("fetch results of query %d: %w", queryID, err)
			}
			o.transition(queryID, StateCompleted)
			return rs, nil
		}

		wait := o.pollInterval
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, domain.ErrTimeout("query %d job %s not finished after %s", queryID, jobID, o.pollTimeout)
			}
			wait = min(wait, remaining)
		}
		o.logger.Debug("waiting for result", "query_id", queryID, "job_id", jobID, "polls", polls, "wait", wait)

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for query %d completion: %w", queryID, ctx.Err())
		case <-timer.C:
		}
	}
}

// FetchResults reads the metadata and rows of a finished result.
func (o *Orchestrator) FetchResults(ctx context.Context, resultID string) (*domain.ResultSet, error) {
	d := request.FetchResults(resultID)
	_, list, err := o.post(ctx, d)
	if err != nil {
		return nil, err
	}
	return response.Extract(list)
}

// Lookup sends a read-only list descriptor such as request.FindDashboard or
// request.FindQuery and returns the validated response.
func (o *Orchestrator) Lookup(ctx context.Context, d request.Descriptor) (response.ListResponse, error) {
	if d.Regime != request.RegimeList {
		return nil, domain.ErrValidation("lookup %s: descriptor is not a list lookup", d.Operation())
	}
	_, list, err := o.post(ctx, d)
	return list, err
}

func (o *Orchestrator) postDict(ctx context.Context, d request.Descriptor) (response.DictResponse, error) {
	dict, _, err := o.post(ctx, d)
	return dict, err
}

// post sends one descriptor with a token fetched immediately before the call.
func (o *Orchestrator) post(ctx context.Context, d request.Descriptor) (response.DictResponse, response.ListResponse, error) {
	token, err := o.session.CurrentToken(ctx)
	if err != nil {
		return nil, nil, asAuthError("current token", err)
	}
	raw, err := o.poster.Post(ctx, token, d.Payload)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", d.Operation(), err)
	}
	o.logger.Debug("response received", "operation", d.Operation(), "status", raw.StatusCode, "request_id", raw.RequestID)
	dict, list, err := response.Validate(raw.StatusCode, raw.Body, d)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", d.Operation(), err)
	}
	return dict, list, nil
}

func (o *Orchestrator) acquire(queryID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[queryID]; busy {
		return false
	}
	o.inflight[queryID] = struct{}{}
	return true
}

func (o *Orchestrator) release(queryID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, queryID)
	if o.states[queryID].Terminal() {
		delete(o.states, queryID)
	}
}

func (o *Orchestrator) record(run *domain.RunRecord, rs *domain.ResultSet, err error) {
	if o.recorder == nil {
		return
	}
	if err != nil {
		run.Status = domain.RunStatusFailed
		code, msg := domain.ErrorCode(err), err.Error()
		run.ErrorCode = &code
		run.ErrorMessage = &msg
	} else {
		run.Status = domain.RunStatusSucceeded
		run.RowCount = len(rs.Rows)
		run.Columns = rs.Meta.Columns
	}
	// Recording must not be skipped because the caller's context was canceled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if recErr := o.recorder.RecordRun(ctx, run); recErr != nil {
		o.logger.Warn("failed to record run", "query_id", run.QueryID, "run_id", run.ID, "error", recErr)
	}
}

func asAuthError(op string, err error) error {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &domain.AuthError{Message: op, Err: err}
}
