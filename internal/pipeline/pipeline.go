// Package pipeline runs the per-series batch flow: fetch, normalize, merge
// into the tracked history, persist the tracker, export the three formats.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/datasetkit/commodity-data/internal/config"
	"github.com/datasetkit/commodity-data/internal/export"
	"github.com/datasetkit/commodity-data/internal/provider"
	"github.com/datasetkit/commodity-data/internal/runlog"
	"github.com/datasetkit/commodity-data/internal/series"
)

type Pipeline struct {
	registry *provider.Registry
	runs     runlog.Repository // optional; nil disables the run log
}

func New(registry *provider.Registry, runs runlog.Repository) *Pipeline {
	return &Pipeline{registry: registry, runs: runs}
}

// RunAll processes every configured series sequentially. One series' failure
// does not abort its siblings; the joined error reflects whether any series
// failed so the caller can exit non-zero.
func (p *Pipeline) RunAll(ctx context.Context, seriesCfgs []config.Series) error {
	var errs []error
	for _, sc := range seriesCfgs {
		if err := p.Run(ctx, sc); err != nil {
			slog.Error("series failed", "series", sc.Name, "error", err)
			errs = append(errs, fmt.Errorf("series %s: %w", sc.Name, err))
			continue
		}
		slog.Info("series completed", "series", sc.Name)
	}
	return errors.Join(errs...)
}

// Run executes one series pipeline end to end. Any fetch or parse failure
// aborts before the merge is ever invoked.
func (p *Pipeline) Run(ctx context.Context, sc config.Series) error {
	prov, err := p.registry.Get(sc.Provider)
	if err != nil {
		return err
	}

	run := &runlog.Run{Series: sc.Name, Status: runlog.StatusRunning}
	p.logCreate(ctx, run)

	observations, err := prov.Fetch(ctx)
	if err != nil {
		return p.fail(ctx, run, fmt.Errorf("fetch: %w", err))
	}
	if len(observations) == 0 {
		return p.fail(ctx, run, fmt.Errorf("fetch: provider %s returned no observations", sc.Provider))
	}
	slog.Info("data downloaded", "series", sc.Name, "rows", len(observations))

	fresh := make([]series.Record, len(observations))
	for i, o := range observations {
		fresh[i] = series.NewRecord(o.Date, o.Price)
	}

	existing, err := series.LoadTracker(sc.TrackerFile)
	if err != nil {
		return p.fail(ctx, run, fmt.Errorf("load tracker: %w", err))
	}
	slog.Info("tracker loaded", "series", sc.Name, "rows", len(existing))

	res := series.Merge(existing, fresh)
	switch {
	case res.Created:
		slog.Info("new dataset created", "series", sc.Name, "rows", len(res.Records))
	case res.Added == 0:
		slog.Info("no new records, data is up to date", "series", sc.Name, "rows", len(res.Records))
	default:
		slog.Info("new records added", "series", sc.Name, "added", res.Added, "rows", len(res.Records))
	}

	if err := series.SaveTracker(sc.TrackerFile, res.Records); err != nil {
		return p.fail(ctx, run, fmt.Errorf("save tracker: %w", err))
	}
	slog.Info("tracker saved", "series", sc.Name, "path", sc.TrackerFile)

	if err := export.Export(sc.ExportDir, sc.Name, res.Records); err != nil {
		return p.fail(ctx, run, fmt.Errorf("export: %w", err))
	}

	run.Status = runlog.StatusCompleted
	run.Fetched = int64(len(observations))
	run.Added = int64(res.Added)
	run.Total = int64(len(res.Records))
	p.logUpdate(ctx, run)
	return nil
}

func (p *Pipeline) fail(ctx context.Context, run *runlog.Run, err error) error {
	run.Status = runlog.StatusFailed
	run.Error = err.Error()
	p.logUpdate(ctx, run)
	return err
}

func (p *Pipeline) logCreate(ctx context.Context, run *runlog.Run) {
	if p.runs == nil {
		return
	}
	if err := p.runs.Create(ctx, run); err != nil {
		slog.Warn("failed to record run start", "series", run.Series, "error", err)
	}
}

func (p *Pipeline) logUpdate(ctx context.Context, run *runlog.Run) {
	if p.runs == nil {
		return
	}
	if err := p.runs.Update(ctx, run); err != nil {
		slog.Warn("failed to record run outcome", "series", run.Series, "error", err)
	}
}
