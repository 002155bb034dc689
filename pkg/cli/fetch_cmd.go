package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"dune-client/internal/domain"
)

func newFetchCmd(a *app) *cobra.Command {
	var (
		queryID     int64
		name        string
		sqlText     string
		sqlFile     string
		network     string
		params      paramsFlag
		pollTimeout time.Duration
		maxRetries  int
		noHistory   bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run a query and print its results",
		Long: "Register the SQL under a query id, execute it, wait for the result and print\n" +
			"the rows. Failed attempts are retried from the start after a fresh login.",
		Example: `  # Run SQL against Ethereum mainnet using DUNE_QUERY_ID
  dune fetch --sql "select 1 as one"

  # Parameterised query from a file, as JSON
  dune fetch --query-id 1234 --sql-file holders.sql --network polygon \
    --param token=0xabc --param min:number=10 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close() //nolint:errcheck

			raw, err := readSQL(sqlText, sqlFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			chain, err := domain.ParseNetwork(network)
			if err != nil {
				return err
			}
			id := a.cfg.QueryID
			if cmd.Flags().Changed("query-id") {
				id = queryID
			}
			if id <= 0 {
				return domain.ErrValidation("a query id is required: pass --query-id or set DUNE_QUERY_ID")
			}
			if cmd.Flags().Changed("poll-timeout") {
				a.cfg.PollTimeout = pollTimeout
			}
			if cmd.Flags().Changed("max-retries") {
				a.cfg.MaxRetries = maxRetries
			}

			orch, err := a.orchestrator(!noHistory)
			if err != nil {
				return err
			}
			rs, err := orch.Fetch(cmd.Context(), domain.Query{
				ID:         id,
				Name:       name,
				RawSQL:     raw,
				Network:    chain,
				Parameters: params.params,
			})
			if err != nil {
				return err
			}
			a.logger.Info("fetch complete", "query_id", id, "rows", len(rs.Rows), "runtime_ms", rs.Meta.RuntimeMs)
			return printResultSet(cmd, os.Stdout, rs)
		},
	}

	cmd.Flags().Int64Var(&queryID, "query-id", 0, "Query id to store the SQL under (env DUNE_QUERY_ID)")
	cmd.Flags().StringVar(&name, "name", "untitled", "Query name")
	cmd.Flags().StringVar(&sqlText, "sql", "", "SQL text")
	cmd.Flags().StringVar(&sqlFile, "sql-file", "", `Read SQL from a file ("-" for stdin)`)
	cmd.Flags().StringVar(&network, "network", "mainnet", "Network (mainnet, polygon, gchain, bsc, solana, optimism v1|v2)")
	cmd.Flags().Var(&params, "param", "Query parameter key[:text|number|datetime]=value (repeatable)")
	cmd.Flags().DurationVar(&pollTimeout, "poll-timeout", 0, "Give up waiting for a result after this long (0 waits forever)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Full restarts after a failed attempt (env DUNE_MAX_RETRIES, default 2)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run in the run history")
	cmd.MarkFlagsMutuallyExclusive("sql", "sql-file")

	return cmd
}

func readSQL(text, file string, stdin io.Reader) (string, error) {
	switch {
	case text != "":
		return text, nil
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read sql from stdin: %w", err)
		}
		return string(data), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read sql file: %w", err)
		}
		return string(data), nil
	}
	return "", domain.ErrValidation("no SQL given: pass --sql or --sql-file")
}

// resultColumns returns the declared column order, falling back to the
// sorted keys of the first row.
func resultColumns(rs *domain.ResultSet) []string {
	if len(rs.Meta.Columns) > 0 {
		return rs.Meta.Columns
	}
	if len(rs.Rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(rs.Rows[0]))
	for k := range rs.Rows[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

type resultJSON struct {
	Meta metaJSON        `json:"meta"`
	Rows []domain.Record `json:"rows"`
}

type metaJSON struct {
	ResultID    string   `json:"result_id"`
	JobID       string   `json:"job_id"`
	Error       *string  `json:"error"`
	RuntimeMs   int64    `json:"runtime_ms"`
	GeneratedAt string   `json:"generated_at"`
	Columns     []string `json:"columns"`
}

func printResultSet(cmd *cobra.Command, w io.Writer, rs *domain.ResultSet) error {
	cols := resultColumns(rs)
	rows := make([][]string, 0, len(rs.Rows))
	for _, r := range rs.Rows {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = r[c]
		}
		rows = append(rows, row)
	}
	records := rs.Rows
	if records == nil {
		records = []domain.Record{}
	}
	return printRows(cmd, w, cols, rows, resultJSON{
		Meta: metaJSON{
			ResultID:    rs.Meta.ID,
			JobID:       rs.Meta.JobID,
			Error:       rs.Meta.Error,
			RuntimeMs:   rs.Meta.RuntimeMs,
			GeneratedAt: rs.Meta.GeneratedAtRaw,
			Columns:     cols,
		},
		Rows: records,
	})
}
