package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/datasetkit/commodity-data/internal/config"
	"github.com/datasetkit/commodity-data/internal/provider"
	"github.com/datasetkit/commodity-data/internal/runlog"
	"github.com/datasetkit/commodity-data/internal/series"
)

// --- mock provider ---
type mockProvider struct {
	source       string
	observations []provider.Observation
	err          error
	calls        int
}

func (m *mockProvider) Source() string { return m.source }

func (m *mockProvider) Fetch(_ context.Context) ([]provider.Observation, error) {
	m.calls++
	return m.observations, m.err
}

// --- mock run repo ---
type mockRunRepo struct {
	runs   []*runlog.Run
	nextID int64
}

func (m *mockRunRepo) Create(_ context.Context, r *runlog.Run) error {
	m.nextID++
	r.ID = m.nextID
	cp := *r
	m.runs = append(m.runs, &cp)
	return nil
}

func (m *mockRunRepo) Update(_ context.Context, r *runlog.Run) error {
	for i, existing := range m.runs {
		if existing.ID == r.ID {
			cp := *r
			m.runs[i] = &cp
			return nil
		}
	}
	return nil
}

func (m *mockRunRepo) List(_ context.Context, _ string, _ int) ([]runlog.Run, error) {
	out := make([]runlog.Run, len(m.runs))
	for i, r := range m.runs {
		out[i] = *r
	}
	return out, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seriesConfig(t *testing.T, name string) config.Series {
	t.Helper()
	dir := t.TempDir()
	return config.Series{
		Name:        name,
		Provider:    "mock",
		TrackerFile: filepath.Join(dir, name+".csv"),
		ExportDir:   dir,
	}
}

func newTestPipeline(prov provider.Provider, runs runlog.Repository) *Pipeline {
	registry := provider.NewRegistry()
	registry.Register(prov)
	return New(registry, runs)
}

func TestRunFirstTimeCreatesTrackerAndExports(t *testing.T) {
	prov := &mockProvider{
		source: "mock",
		observations: []provider.Observation{
			{Date: date(2025, time.November, 17), Price: 63.16},
		},
	}
	repo := &mockRunRepo{}
	p := newTestPipeline(prov, repo)
	sc := seriesConfig(t, "crude_oil_brent")

	if err := p.Run(context.Background(), sc); err != nil {
		t.Fatalf("run: %v", err)
	}

	records, err := series.LoadTracker(sc.TrackerFile)
	if err != nil {
		t.Fatalf("load tracker: %v", err)
	}
	if len(records) != 1 || records[0].Price != 63.16 {
		t.Fatalf("unexpected tracker contents: %+v", records)
	}

	if len(repo.runs) != 1 {
		t.Fatalf("expected 1 run record, got %d", len(repo.runs))
	}
	run := repo.runs[0]
	if run.Status != runlog.StatusCompleted {
		t.Errorf("expected completed run, got %s", run.Status)
	}
	if run.Fetched != 1 || run.Added != 1 || run.Total != 1 {
		t.Errorf("unexpected run counts: %+v", run)
	}
}

func TestRunMergesOnlyNewDates(t *testing.T) {
	sc := seriesConfig(t, "crude_oil_brent")
	existing := []series.Record{series.NewRecord(date(2025, time.November, 13), 62.14)}
	if err := series.SaveTracker(sc.TrackerFile, existing); err != nil {
		t.Fatalf("seed tracker: %v", err)
	}

	prov := &mockProvider{
		source: "mock",
		observations: []provider.Observation{
			{Date: date(2025, time.November, 13), Price: 62.14},
			{Date: date(2025, time.November, 14), Price: 63.45},
		},
	}
	repo := &mockRunRepo{}
	p := newTestPipeline(prov, repo)

	if err := p.Run(context.Background(), sc); err != nil {
		t.Fatalf("run: %v", err)
	}

	records, err := series.LoadTracker(sc.TrackerFile)
	if err != nil {
		t.Fatalf("load tracker: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if !records[0].Date.Equal(date(2025, time.November, 14)) {
		t.Errorf("expected newest record first, got %s", records[0].Date)
	}
	if repo.runs[0].Added != 1 {
		t.Errorf("expected run to report 1 new record, got %d", repo.runs[0].Added)
	}
}

func TestRunFetchFailureAbortsBeforeMerge(t *testing.T) {
	sc := seriesConfig(t, "crude_oil_brent")
	existing := []series.Record{series.NewRecord(date(2025, time.November, 13), 62.14)}
	if err := series.SaveTracker(sc.TrackerFile, existing); err != nil {
		t.Fatalf("seed tracker: %v", err)
	}

	prov := &mockProvider{source: "mock", err: fmt.Errorf("connection refused")}
	repo := &mockRunRepo{}
	p := newTestPipeline(prov, repo)

	if err := p.Run(context.Background(), sc); err == nil {
		t.Fatal("expected fetch failure to propagate")
	}

	// Tracker must be untouched.
	records, err := series.LoadTracker(sc.TrackerFile)
	if err != nil {
		t.Fatalf("load tracker: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("tracker modified despite fetch failure: %d records", len(records))
	}
	if repo.runs[0].Status != runlog.StatusFailed {
		t.Errorf("expected failed run record, got %s", repo.runs[0].Status)
	}
	if repo.runs[0].Error == "" {
		t.Error("expected run record to carry the failure reason")
	}
}

func TestRunUnknownProvider(t *testing.T) {
	p := New(provider.NewRegistry(), nil)
	sc := seriesConfig(t, "s")

	if err := p.Run(context.Background(), sc); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestRunAllIsolatesSeriesFailures(t *testing.T) {
	failing := &mockProvider{source: "bad", err: fmt.Errorf("boom")}
	working := &mockProvider{
		source: "good",
		observations: []provider.Observation{
			{Date: date(2025, time.November, 17), Price: 63.16},
		},
	}
	registry := provider.NewRegistry()
	registry.Register(failing)
	registry.Register(working)
	p := New(registry, nil)

	scBad := seriesConfig(t, "bad_series")
	scBad.Provider = "bad"
	scGood := seriesConfig(t, "good_series")
	scGood.Provider = "good"

	err := p.RunAll(context.Background(), []config.Series{scBad, scGood})
	if err == nil {
		t.Fatal("expected aggregated error when a series fails")
	}
	if working.calls != 1 {
		t.Error("a failing series must not prevent siblings from running")
	}

	if _, err := series.LoadTracker(scGood.TrackerFile); err != nil {
		t.Errorf("expected good series tracker to exist: %v", err)
	}
}

func TestRunWithoutRunLog(t *testing.T) {
	prov := &mockProvider{
		source: "mock",
		observations: []provider.Observation{
			{Date: date(2025, time.November, 17), Price: 63.16},
		},
	}
	p := newTestPipeline(prov, nil)

	if err := p.Run(context.Background(), seriesConfig(t, "s")); err != nil {
		t.Fatalf("run without run log: %v", err)
	}
}
