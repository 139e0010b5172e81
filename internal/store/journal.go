package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shpitdev/company-enricher/internal/enrich"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run ID is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// Run is one enrichment run as recorded in the journal.
type Run struct {
	ID         string
	Input      string
	Output     string
	Model      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress or was interrupted
	Total      int
	Done       int
	Failed     int
}

// Journal records runs and the latest state of each company in a sqlite file.
// It is read by the history command; runs never resume from it.
type Journal struct {
	db   *sql.DB
	path string
}

// Open creates or opens the journal at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// One connection keeps writes ordered and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	j := &Journal{db: db, path: path}
	if err := j.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input TEXT NOT NULL,
		output TEXT NOT NULL,
		model TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		total INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS items (
		run_id TEXT NOT NULL,
		item_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		data_json TEXT,
		sources_json TEXT,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (run_id, item_id),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initialize journal schema: %w", err)
	}
	return nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// BeginRun records the start of a run over total companies.
func (j *Journal) BeginRun(ctx context.Context, r Run) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, output, model, started_at, total) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Input, r.Output, r.Model, r.StartedAt.UnixMilli(), r.Total,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// RecordItem stores the current state of one company, replacing any earlier state.
func (j *Journal) RecordItem(ctx context.Context, runID string, c enrich.Company) error {
	var dataJSON, sourcesJSON sql.NullString
	if c.Data != nil {
		b, err := json.Marshal(c.Data)
		if err != nil {
			return fmt.Errorf("encode record for %q: %w", c.Name, err)
		}
		dataJSON = sql.NullString{String: string(b), Valid: true}
	}
	if c.Sources != nil {
		b, err := json.Marshal(c.Sources)
		if err != nil {
			return fmt.Errorf("encode sources for %q: %w", c.Name, err)
		}
		sourcesJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO items (run_id, item_id, name, status, error, data_json, sources_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, item_id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			data_json = excluded.data_json,
			sources_json = excluded.sources_json,
			updated_at = excluded.updated_at`,
		runID, c.ID, c.Name, string(c.Status), c.Error, dataJSON, sourcesJSON, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record item %d of run %s: %w", c.ID, runID, err)
	}
	return nil
}

// FinishRun marks a run as complete.
func (j *Journal) FinishRun(ctx context.Context, runID string, at time.Time) error {
	res, err := j.db.ExecContext(ctx, `UPDATE runs SET finished_at = ? WHERE id = ?`, at.UnixMilli(), runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `
	SELECT r.id, r.input, r.output, r.model, r.started_at, r.finished_at, r.total,
		COALESCE(SUM(CASE WHEN i.status = 'done' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN i.status = 'error' THEN 1 ELSE 0 END), 0)
	FROM runs r LEFT JOIN items i ON i.run_id = r.id`

// Runs lists the most recent runs first. limit <= 0 returns all runs.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := runColumns + ` GROUP BY r.id ORDER BY r.started_at DESC, r.id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run by ID.
func (j *Journal) GetRun(ctx context.Context, runID string) (Run, error) {
	row := j.db.QueryRowContext(ctx, runColumns+` WHERE r.id = ? GROUP BY r.id`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return r, err
}

// Items returns the recorded companies of a run in ID order.
func (j *Journal) Items(ctx context.Context, runID string) ([]enrich.Company, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT item_id, name, status, error, data_json, sources_json
		FROM items WHERE run_id = ? ORDER BY item_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list items of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []enrich.Company
	for rows.Next() {
		var (
			c                     enrich.Company
			status                string
			dataJSON, sourcesJSON sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &status, &c.Error, &dataJSON, &sourcesJSON); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		c.Status = enrich.Status(status)
		if dataJSON.Valid {
			var rec enrich.Record
			if err := json.Unmarshal([]byte(dataJSON.String), &rec); err != nil {
				return nil, fmt.Errorf("decode record for %q: %w", c.Name, err)
			}
			c.Data = &rec
		}
		if sourcesJSON.Valid {
			c.Sources = []enrich.Citation{}
			if err := json.Unmarshal([]byte(sourcesJSON.String), &c.Sources); err != nil {
				return nil, fmt.Errorf("decode sources for %q: %w", c.Name, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	if err := s.Scan(&r.ID, &r.Input, &r.Output, &r.Model, &started, &finished, &r.Total, &r.Done, &r.Failed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		r.FinishedAt = time.UnixMilli(finished.Int64)
	}
	return r, nil
}
