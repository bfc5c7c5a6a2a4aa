// Package runlog provides the sqlite-backed run history repository.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/datasetkit/commodity-data/internal/runlog"
)

const timeFormat = time.RFC3339

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, run *domain.Run) error {
	const query = `INSERT INTO runs (series, status, fetched, added, total, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, query,
		run.Series, string(run.Status),
		run.Fetched, run.Added, run.Total, run.Error,
		run.StartedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	run.ID, _ = res.LastInsertId()
	return nil
}

func (r *Repository) Update(ctx context.Context, run *domain.Run) error {
	const query = `UPDATE runs SET status = ?, fetched = ?, added = ?, total = ?, error = ?, finished_at = ?
		WHERE id = ?`

	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, query,
		string(run.Status), run.Fetched, run.Added, run.Total, run.Error,
		run.FinishedAt.UTC().Format(timeFormat),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first, optionally filtered to one
// series. limit <= 0 means a default page of 20.
func (r *Repository) List(ctx context.Context, series string, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, series, status, fetched, added, total, error, started_at, finished_at
		FROM runs`
	args := []any{}
	if series != "" {
		query += ` WHERE series = ?`
		args = append(args, series)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []domain.Run
	for rows.Next() {
		var run domain.Run
		var status, startedStr, finishedStr string
		if err := rows.Scan(&run.ID, &run.Series, &status,
			&run.Fetched, &run.Added, &run.Total, &run.Error,
			&startedStr, &finishedStr); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = domain.Status(status)
		if t, err := time.Parse(timeFormat, startedStr); err == nil {
			run.StartedAt = t
		}
		if finishedStr != "" {
			if t, err := time.Parse(timeFormat, finishedStr); err == nil {
				run.FinishedAt = t
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
