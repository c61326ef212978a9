// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history records extraction runs in a SQLite ledger so past
// outputs can be traced back to the archive, layers and window that
// produced them. Only provenance is stored, never raster values.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/worldclim-extractor/pkg/types"
)

const (
	dbFile            = "history.db"
	defaultMaxResults = 20

	// timeLayout has a fixed-width fraction so stored times sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store manages the run ledger database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// NewStore opens or creates the ledger at cfg.Dir/history.db and creates
// the schema if it does not exist.
func NewStore(cfg types.HistoryConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			input_path TEXT,
			output_path TEXT,
			variable TEXT NOT NULL,
			resolution TEXT NOT NULL,
			window_size INTEGER NOT NULL,
			archive_url TEXT NOT NULL,
			row_count INTEGER NOT NULL DEFAULT 0,
			column_names TEXT,
			status TEXT NOT NULL,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_variable ON runs(variable)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record inserts run and returns it with its assigned ID.
func (s *Store) Record(ctx context.Context, run types.Run) (types.Run, error) {
	if run.Status == "" {
		return run, fmt.Errorf("recording run: status is required")
	}
	cols, err := json.Marshal(run.Columns)
	if err != nil {
		return run, fmt.Errorf("marshaling columns: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (started_at, finished_at, input_path, output_path, variable,
			resolution, window_size, archive_url, row_count, column_names, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(run.StartedAt), formatTime(run.FinishedAt), run.InputPath, run.OutputPath,
		run.Variable, run.Resolution, run.Window, run.ArchiveURL, run.Rows, string(cols),
		string(run.Status), run.Error,
	)
	if err != nil {
		return run, fmt.Errorf("inserting run: %w", err)
	}
	if run.ID, err = res.LastInsertId(); err != nil {
		return run, fmt.Errorf("reading run id: %w", err)
	}
	return run, nil
}

// QueryOptions filters List.
type QueryOptions struct {
	// Variable restricts results to one variable code.
	Variable string

	// Status restricts results to succeeded or failed runs.
	Status types.RunStatus

	// MaxResults caps the number of runs; 0 uses the store default.
	MaxResults int
}

// List returns matching runs, most recent first.
func (s *Store) List(ctx context.Context, opts QueryOptions) ([]types.Run, error) {
	var where []string
	var args []any
	if opts.Variable != "" {
		where = append(where, "variable = ?")
		args = append(args, strings.ToLower(opts.Variable))
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}

	limit := opts.MaxResults
	if limit <= 0 {
		limit = s.maxResults
	}

	query := `SELECT id, started_at, finished_at, input_path, output_path, variable,
		resolution, window_size, archive_url, row_count, column_names, status, error FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		var (
			r                       types.Run
			started                 string
			finished, input, output sql.NullString
			cols, status, errText   sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &input, &output, &r.Variable,
			&r.Resolution, &r.Window, &r.ArchiveURL, &r.Rows, &cols, &status, &errText); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished.String)
		r.InputPath, r.OutputPath = input.String, output.String
		r.Status = types.RunStatus(status.String)
		r.Error = errText.String
		if cols.String != "" && cols.String != "null" {
			if err := json.Unmarshal([]byte(cols.String), &r.Columns); err != nil {
				return nil, fmt.Errorf("run %d columns: %w", r.ID, err)
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
