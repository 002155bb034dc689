package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"dune-client/internal/dashboard"
	"dune-client/internal/scheduler"
)

func newDashboardCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Load, refresh and pull dashboards",
	}
	cmd.AddCommand(newDashboardShowCmd(a))
	cmd.AddCommand(newDashboardUpdateCmd(a))
	cmd.AddCommand(newDashboardPullCmd(a))
	cmd.AddCommand(newDashboardWatchCmd(a))
	return cmd
}

func (a *app) dashboardOptions() (dashboard.Options, error) {
	user, err := a.sessionUser()
	if err != nil {
		return dashboard.Options{}, err
	}
	return dashboard.Options{SessionUser: user, BaseURL: a.cfg.BaseURL, Logger: a.logger}, nil
}

func newDashboardShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <config>",
		Short: "Validate a dashboard config and list its queries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.dashboardOptions()
			if err != nil {
				return err
			}
			d, err := dashboard.Load(nil, args[0], opts)
			if err != nil {
				return err
			}
			return printDashboard(cmd, d)
		},
	}
}

func printDashboard(cmd *cobra.Command, d *dashboard.Dashboard) error {
	if getOutputFormat(cmd) == "table" {
		_, err := fmt.Fprintln(os.Stdout, d.String())
		return err
	}
	type queryJSON struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Network string `json:"network"`
		URL     string `json:"url"`
	}
	rows := make([][]string, 0, len(d.Queries))
	queries := make([]queryJSON, 0, len(d.Queries))
	for _, q := range d.Queries {
		rows = append(rows, []string{q.IDString(), q.Name, q.Network.String(), d.QueryURL(q)})
		queries = append(queries, queryJSON{ID: q.ID, Name: q.Name, Network: q.Network.String(), URL: d.QueryURL(q)})
	}
	return printRows(cmd, os.Stdout, []string{"ID", "NAME", "NETWORK", "URL"}, rows, map[string]any{
		"name":    d.Name,
		"slug":    d.Slug,
		"url":     d.URL(),
		"queries": queries,
	})
}

func newDashboardUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <config>",
		Short: "Refresh every query of a dashboard",
		Long:  "Register and execute every query in the dashboard config without waiting for results.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.dashboardOptions()
			if err != nil {
				return err
			}
			orch, err := a.orchestrator(false)
			if err != nil {
				return err
			}
			d, err := dashboard.Load(orch, args[0], opts)
			if err != nil {
				return err
			}
			refreshes, updateErr := d.Update(cmd.Context())
			if err := printRefreshes(cmd, d, refreshes); err != nil {
				return err
			}
			return updateErr
		},
	}
}

func printRefreshes(cmd *cobra.Command, d *dashboard.Dashboard, refreshes []dashboard.Refresh) error {
	type refreshJSON struct {
		QueryID int64  `json:"query_id"`
		JobID   string `json:"job_id,omitempty"`
		Error   string `json:"error,omitempty"`
	}
	rows := make([][]string, 0, len(refreshes))
	out := make([]refreshJSON, 0, len(refreshes))
	for _, r := range refreshes {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		rows = append(rows, []string{strconv.FormatInt(r.QueryID, 10), r.JobID, errText})
		out = append(out, refreshJSON{QueryID: r.QueryID, JobID: r.JobID, Error: errText})
	}
	return printRows(cmd, os.Stdout, []string{"QUERY_ID", "JOB_ID", "ERROR"}, rows, map[string]any{
		"dashboard": d.URL(),
		"queries":   out,
	})
}

func newDashboardPullCmd(a *app) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "pull <slug>",
		Short: "Download a dashboard into a local config",
		Long: "Read a dashboard and its queries from the service and write _config.json plus\n" +
			"one .sql file per distinct query. Queries owned by other users are skipped.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]
			opts, err := a.dashboardOptions()
			if err != nil {
				return err
			}
			orch, err := a.orchestrator(false)
			if err != nil {
				return err
			}
			d, err := dashboard.Pull(cmd.Context(), orch, slug, opts)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = filepath.Join("out", slug)
			}
			path, err := d.DumpConfig(outDir)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]any{"config": path, "dashboard": d.URL(), "queries": len(d.Queries)})
			}
			_, _ = fmt.Fprintf(os.Stdout, "Pulled %s (%d queries) into %s\n", d.URL(), len(d.Queries), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (default out/<slug>)")
	return cmd
}

func newDashboardWatchCmd(a *app) *cobra.Command {
	var (
		schedule string
		runNow   bool
	)

	cmd := &cobra.Command{
		Use:   "watch <config>...",
		Short: "Refresh dashboards on a schedule until interrupted",
		Example: `  dune dashboard watch board.json --schedule "@every 1h"
  dune dashboard watch a.yaml b.yaml --schedule "0 */6 * * *" --run-now`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.dashboardOptions()
			if err != nil {
				return err
			}
			orch, err := a.orchestrator(false)
			if err != nil {
				return err
			}

			sched := scheduler.New(a.logger)
			for _, path := range args {
				d, err := dashboard.Load(orch, path, opts)
				if err != nil {
					return err
				}
				if err := sched.Add(d.Slug, schedule, d); err != nil {
					return err
				}
			}
			return runScheduler(cmd.Context(), sched, runNow)
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "@every 1h", "Cron expression or descriptor (@hourly, @every 30m)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Refresh every dashboard once before waiting for the schedule")
	return cmd
}

// runScheduler blocks until ctx ends.
func runScheduler(ctx context.Context, sched *scheduler.Scheduler, runNow bool) error {
	if runNow {
		for _, e := range sched.Entries() {
			// failures are logged by the scheduler; keep watching
			_ = sched.RunNow(e.Name)
		}
	}
	sched.Start()
	for _, e := range sched.Entries() {
		_, _ = fmt.Fprintf(os.Stdout, "%s: next refresh at %s\n", e.Name, e.Next.Format(time.RFC3339))
	}

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sched.Stop(stopCtx)
	return nil
}
