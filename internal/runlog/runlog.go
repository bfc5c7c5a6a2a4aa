// Package runlog records the outcome of each pipeline run per series: how
// many rows the provider returned, how many were new, and where the run
// ended. It is the durable audit trail behind the CLI history command.
package runlog

import (
	"context"
	"time"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Run struct {
	ID         int64     `json:"id"`
	Series     string    `json:"series"`
	Status     Status    `json:"status"`
	Fetched    int64     `json:"fetched"`
	Added      int64     `json:"added"`
	Total      int64     `json:"total"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

type Repository interface {
	Create(ctx context.Context, r *Run) error
	Update(ctx context.Context, r *Run) error
	List(ctx context.Context, series string, limit int) ([]Run, error)
}
