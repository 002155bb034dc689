package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dune-client/internal/domain"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the local run history",
	}
	cmd.AddCommand(newHistoryListCmd(a))
	cmd.AddCommand(newHistoryShowCmd(a))
	cmd.AddCommand(newHistorySummaryCmd(a))
	cmd.AddCommand(newHistoryPruneCmd(a))
	return cmd
}

type historyFilterFlags struct {
	queryID int64
	status  string
	since   time.Duration
	limit   int
}

func (f *historyFilterFlags) register(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().Int64Var(&f.queryID, "query-id", 0, "Only runs of this query")
	cmd.Flags().StringVar(&f.status, "status", "", "Only runs with this status (succeeded, failed)")
	cmd.Flags().DurationVar(&f.since, "since", 0, "Only runs started within this duration")
	cmd.Flags().IntVar(&f.limit, "limit", defaultLimit, "Maximum number of runs")
}

func (f *historyFilterFlags) filter(cmd *cobra.Command) (domain.RunFilter, error) {
	filter := domain.RunFilter{Limit: f.limit}
	if cmd.Flags().Changed("query-id") {
		id := f.queryID
		filter.QueryID = &id
	}
	if f.status != "" {
		s := domain.RunStatus(strings.ToUpper(f.status))
		if s != domain.RunStatusSucceeded && s != domain.RunStatusFailed {
			return filter, domain.ErrValidation("unknown status %q: use succeeded or failed", f.status)
		}
		filter.Status = &s
	}
	if f.since > 0 {
		since := time.Now().Add(-f.since)
		filter.Since = &since
	}
	return filter, nil
}

var runHeaders = []string{"ID", "QUERY_ID", "NAME", "NETWORK", "STATUS", "ATTEMPTS", "ROWS", "DURATION", "STARTED", "ERROR"}

func runRow(r domain.RunRecord) []string {
	errText := ""
	if r.ErrorCode != nil {
		errText = *r.ErrorCode
	}
	return []string{
		r.ID,
		strconv.FormatInt(r.QueryID, 10),
		r.QueryName,
		r.Network.String(),
		string(r.Status),
		strconv.Itoa(r.Attempts),
		strconv.Itoa(r.RowCount),
		r.Duration().Round(time.Millisecond).String(),
		r.StartedAt.Local().Format(time.DateTime),
		errText,
	}
}

type runJSON struct {
	ID           string   `json:"id"`
	QueryID      int64    `json:"query_id"`
	QueryName    string   `json:"query_name"`
	Network      string   `json:"network"`
	Status       string   `json:"status"`
	Attempts     int      `json:"attempts"`
	JobID        *string  `json:"job_id"`
	ResultID     *string  `json:"result_id"`
	RowCount     int      `json:"row_count"`
	Columns      []string `json:"columns"`
	ErrorCode    *string  `json:"error_code"`
	ErrorMessage *string  `json:"error_message"`
	StartedAt    string   `json:"started_at"`
	DurationMs   int64    `json:"duration_ms"`
}

func toRunJSON(r domain.RunRecord) runJSON {
	return runJSON{
		ID: r.ID, QueryID: r.QueryID, QueryName: r.QueryName, Network: r.Network.String(),
		Status: string(r.Status), Attempts: r.Attempts, JobID: r.JobID, ResultID: r.ResultID,
		RowCount: r.RowCount, Columns: r.Columns, ErrorCode: r.ErrorCode, ErrorMessage: r.ErrorMessage,
		StartedAt: r.StartedAt.UTC().Format(time.RFC3339Nano), DurationMs: r.Duration().Milliseconds(),
	}
}

func newHistoryListCmd(a *app) *cobra.Command {
	var ff historyFilterFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close() //nolint:errcheck

			filter, err := ff.filter(cmd)
			if err != nil {
				return err
			}
			h, err := a.runHistory()
			if err != nil {
				return err
			}
			runs, err := h.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(runs))
			out := make([]runJSON, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, runRow(r))
				out = append(out, toRunJSON(r))
			}
			return printRows(cmd, os.Stdout, runHeaders, rows, out)
		},
	}
	ff.register(cmd, domain.DefaultRunLimit)
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close() //nolint:errcheck

			h, err := a.runHistory()
			if err != nil {
				return err
			}
			r, err := h.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, toRunJSON(*r))
			}
			row := runRow(*r)
			for i, h := range runHeaders {
				_, _ = fmt.Fprintf(os.Stdout, "%-10s %s\n", h, row[i])
			}
			if r.ErrorMessage != nil {
				_, _ = fmt.Fprintf(os.Stdout, "%-10s %s\n", "MESSAGE", *r.ErrorMessage)
			}
			if len(r.Columns) > 0 {
				_, _ = fmt.Fprintf(os.Stdout, "%-10s %s\n", "COLUMNS", strings.Join(r.Columns, ", "))
			}
			return nil
		},
	}
}

func newHistorySummaryCmd(a *app) *cobra.Command {
	var ff historyFilterFlags

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize recorded runs per query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close() //nolint:errcheck

			filter, err := ff.filter(cmd)
			if err != nil {
				return err
			}
			h, err := a.runHistory()
			if err != nil {
				return err
			}
			sums, err := h.Summarize(cmd.Context(), filter)
			if err != nil {
				return err
			}
			type summaryJSON struct {
				QueryID       int64  `json:"query_id"`
				QueryName     string `json:"query_name"`
				Runs          int    `json:"runs"`
				Failures      int    `json:"failures"`
				LastStatus    string `json:"last_status"`
				LastRunAt     string `json:"last_run_at"`
				AvgDurationMs int64  `json:"avg_duration_ms"`
			}
			rows := make([][]string, 0, len(sums))
			out := make([]summaryJSON, 0, len(sums))
			for _, s := range sums {
				rows = append(rows, []string{
					strconv.FormatInt(s.QueryID, 10), s.QueryName, strconv.Itoa(s.Runs), strconv.Itoa(s.Failures),
					string(s.LastStatus), s.LastRunAt.Local().Format(time.DateTime), s.AvgDuration.Round(time.Millisecond).String(),
				})
				out = append(out, summaryJSON{
					QueryID: s.QueryID, QueryName: s.QueryName, Runs: s.Runs, Failures: s.Failures,
					LastStatus: string(s.LastStatus), LastRunAt: s.LastRunAt.UTC().Format(time.RFC3339Nano),
					AvgDurationMs: s.AvgDuration.Milliseconds(),
				})
			}
			return printRows(cmd, os.Stdout,
				[]string{"QUERY_ID", "NAME", "RUNS", "FAILURES", "LAST_STATUS", "LAST_RUN", "AVG_DURATION"}, rows, out)
		},
	}
	ff.register(cmd, 1000)
	return cmd
}

func newHistoryPruneCmd(a *app) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close() //nolint:errcheck

			h, err := a.runHistory()
			if err != nil {
				return err
			}
			n, err := h.Prune(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]int64{"deleted": n})
			}
			_, _ = fmt.Fprintf(os.Stdout, "Deleted %d run(s)\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Delete runs started before now minus this duration")
	return cmd
}
