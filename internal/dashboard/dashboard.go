// Package dashboard loads, refreshes and pulls groups of queries that make
// up a Dune dashboard.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"dune-client/internal/domain"
	"dune-client/internal/request"
	"dune-client/internal/response"
)

// DefaultBaseURL is the web front end dashboards are served from.
const DefaultBaseURL = "https://dune.xyz"

// Runner registers and starts queries. Implemented by orchestrator.Orchestrator.
type Runner interface {
	Register(ctx context.Context, q domain.Query) error
	Execute(ctx context.Context, q domain.Query) (string, error)
	Lookup(ctx context.Context, d request.Descriptor) (response.ListResponse, error)
}

// Options configures a Dashboard.
type Options struct {
	// SessionUser is the logged-in account. Dashboards of other users are rejected.
	SessionUser string
	BaseURL     string
	Logger      *slog.Logger
}

// Dashboard is a named family of queries owned by one user.
type Dashboard struct {
	Name    string
	Slug    string
	User    string
	Queries []domain.Query

	baseURL string
	runner  Runner
	logger  *slog.Logger
}

// New builds a dashboard. It fails when user is not the session user or a
// query is invalid; duplicated (SQL, network) pairs are only logged.
func New(runner Runner, name, slug, user string, queries []domain.Query, opts Options) (*Dashboard, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if user != opts.SessionUser {
		return nil, domain.ErrValidation("attempt to load dashboard queries for invalid user %s != %s", user, opts.SessionUser)
	}
	if slug == "" {
		slug = DefaultSlug(name)
	}
	for _, q := range queries {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("dashboard %q: %w", name, err)
		}
	}

	d := &Dashboard{
		Name:    name,
		Slug:    slug,
		User:    user,
		Queries: append([]domain.Query(nil), queries...),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		runner:  runner,
		logger:  opts.Logger.With("dashboard", slug),
	}
	if dupes := d.Duplicates(); len(dupes) > 0 {
		d.logger.Warn("duplicate query detected", "duplicates", dupes)
	}
	return d, nil
}

// Load reads a dashboard from a JSON or YAML config file.
func Load(runner Runner, path string, opts Options) (*Dashboard, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}
	queries, err := cfg.ReadQueries()
	if err != nil {
		return nil, fmt.Errorf("dashboard %q: %w", cfg.Meta.Name, err)
	}
	return New(runner, cfg.Meta.Name, cfg.Meta.Slug, cfg.Meta.User, queries, opts)
}

// URL is the public address of the dashboard.
func (d *Dashboard) URL() string {
	return d.baseURL + "/" + d.User + "/" + d.Slug
}

// QueryURL is the public address of one query.
func (d *Dashboard) QueryURL(q domain.Query) string {
	return d.baseURL + "/queries/" + q.IDString()
}

// Duplicate is a (SQL, network) pair shared by more than one query.
type Duplicate struct {
	QueryIDs []int64
	Network  domain.Network
	SQL      string
}

func (d Duplicate) String() string {
	return fmt.Sprintf("%v on %s: %q", d.QueryIDs, d.Network, d.SQL)
}

// Duplicates lists the (SQL, network) pairs used by more than one query, in
// order of first appearance.
func (d *Dashboard) Duplicates() []Duplicate {
	type key struct {
		sql     string
		network domain.Network
	}
	ids := make(map[key][]int64)
	var order []key
	for _, q := range d.Queries {
		k := key{q.RawSQL, q.Network}
		if _, seen := ids[k]; !seen {
			order = append(order, k)
		}
		ids[k] = append(ids[k], q.ID)
	}

	var out []Duplicate
	for _, k := range order {
		if len(ids[k]) > 1 {
			out = append(out, Duplicate{QueryIDs: ids[k], Network: k.network, SQL: k.sql})
		}
	}
	return out
}

// Refresh is the outcome of starting one dashboard query.
type Refresh struct {
	QueryID int64
	JobID   string
	Err     error
}

// Update registers and executes every query without waiting for results.
// All queries are attempted; the returned error joins every failure.
func (d *Dashboard) Update(ctx context.Context) ([]Refresh, error) {
	out := make([]Refresh, 0, len(d.Queries))
	var errs []error
	for _, q := range d.Queries {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		r := Refresh{QueryID: q.ID}
		if err := d.runner.Register(ctx, q.Clone()); err != nil {
			r.Err = err
		} else if r.JobID, err = d.runner.Execute(ctx, q.Clone()); err != nil {
			r.Err = err
		}
		if r.Err != nil {
			errs = append(errs, r.Err)
			d.logger.Warn("query refresh failed", "query_id", q.ID, "error", r.Err)
		}
		out = append(out, r)
	}
	d.logger.Info("dashboard updated", "queries", len(out), "failed", len(errs))
	return out, errors.Join(errs...)
}

func (d *Dashboard) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dashboard %q: %s\nQueries:", d.Name, d.URL())
	for _, q := range d.Queries {
		fmt.Fprintf(&b, "\n  %s: %s", q.Name, d.QueryURL(q))
	}
	return b.String()
}
