package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dune-client/internal/domain"
)

// RunRepo implements domain.RunRepository over the runs table. Writes go to
// the single-connection write pool; listings use the read pool.
type RunRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewRunRepo creates a RunRepo. read may be nil, in which case write is
// used for everything.
func NewRunRepo(write, read *sql.DB) *RunRepo {
	if read == nil {
		read = write
	}
	return &RunRepo{write: write, read: read}
}

var _ domain.RunRepository = (*RunRepo)(nil)

const runColumns = `id, query_id, query_name, network, status, attempts, job_id, result_id,
	row_count, columns_json, error_code, error_message, started_at, finished_at`

// Create inserts run. An empty ID is filled with a new UUIDv7.
func (r *RunRepo) Create(ctx context.Context, run *domain.RunRecord) error {
	if run.ID == "" {
		run.ID = domain.NewID()
	}
	cols := run.Columns
	if cols == nil {
		cols = []string{}
	}
	colsJSON, err := json.Marshal(cols)
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}

	_, err = r.write.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.QueryID, run.QueryName, int(run.Network), string(run.Status), run.Attempts,
		nullString(run.JobID), nullString(run.ResultID), run.RowCount, string(colsJSON),
		nullString(run.ErrorCode), nullString(run.ErrorMessage),
		formatTime(run.StartedAt), formatTime(run.FinishedAt),
	)
	return mapDBError(err)
}

// Get returns the run with the given id.
func (r *RunRepo) Get(ctx context.Context, id string) (*domain.RunRecord, error) {
	row := r.read.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return run, nil
}

// List returns runs matching filter, newest first.
func (r *RunRepo) List(ctx context.Context, filter domain.RunFilter) ([]domain.RunRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.QueryID != nil {
		where = append(where, "query_id = ?")
		args = append(args, *filter.QueryID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Since != nil {
		where = append(where, "started_at >= ?")
		args = append(args, formatTime(*filter.Since))
	}

	q := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, filter.EffectiveLimit())

	rows, err := r.read.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

// DeleteBefore removes runs that started before cutoff and reports how many
// were deleted.
func (r *RunRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.write.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*domain.RunRecord, error) {
	var (
		run                   domain.RunRecord
		network               int
		status                string
		jobID, resultID       sql.NullString
		errCode, errMsg       sql.NullString
		colsJSON              string
		startedAt, finishedAt string
	)
	if err := s.Scan(&run.ID, &run.QueryID, &run.QueryName, &network, &status, &run.Attempts,
		&jobID, &resultID, &run.RowCount, &colsJSON, &errCode, &errMsg, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	run.Network = domain.Network(network)
	run.Status = domain.RunStatus(status)
	run.JobID = stringPtr(jobID)
	run.ResultID = stringPtr(resultID)
	run.ErrorCode = stringPtr(errCode)
	run.ErrorMessage = stringPtr(errMsg)

	if err := json.Unmarshal([]byte(colsJSON), &run.Columns); err != nil {
		return nil, fmt.Errorf("decode columns of run %s: %w", run.ID, err)
	}
	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at of run %s: %w", run.ID, err)
	}
	if run.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at of run %s: %w", run.ID, err)
	}
	return &run, nil
}
