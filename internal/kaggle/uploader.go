package kaggle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/datasetkit/commodity-data/internal/apperror"
)

// Target is one configured remote dataset destination: where it lives on
// Kaggle and which exported files make up its content. Built from config,
// never mutated during a run.
type Target struct {
	ID      string
	Owner   string
	Slug    string
	Title   string
	License string
	Private bool
	Enabled bool
	Files   []string
}

// RetryPolicy bounds the transient-failure retry loop.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// API is the remote surface the uploader drives. *Client implements it; tests
// substitute a scripted fake.
type API interface {
	UploadFile(ctx context.Context, path string) (string, error)
	CreateVersion(ctx context.Context, owner, slug, notes string, tokens []string) error
	CreateDataset(ctx context.Context, meta DatasetMeta, tokens []string) error
}

type Action string

const (
	ActionVersion Action = "version"
	ActionCreate  Action = "create"
	ActionDryRun  Action = "dry-run"
	ActionSkipped Action = "skipped"
)

// Report is the outcome of pushing one target. Attempts counts the tries of
// the call that terminated the state machine.
type Report struct {
	Target   string
	Action   Action
	Attempts int
	Err      error
}

type Uploader struct {
	api    API
	retry  RetryPolicy
	dryRun bool
	now    func() time.Time
	sleep  func(time.Duration)
}

func NewUploader(api API, opts ...Option) *Uploader {
	u := &Uploader{
		api:   api,
		retry: DefaultRetryPolicy(),
		now:   time.Now,
		sleep: time.Sleep,
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

type Option func(*Uploader)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(u *Uploader) { u.retry = p }
}

func WithDryRun(dry bool) Option {
	return func(u *Uploader) { u.dryRun = dry }
}

// WithSleep replaces the backoff wait, used by tests to avoid real delays.
func WithSleep(fn func(time.Duration)) Option {
	return func(u *Uploader) { u.sleep = fn }
}

// PushAll processes targets strictly sequentially. A fatal failure on one
// target never prevents the remaining targets from being attempted; the
// caller inspects the reports to decide the process exit status.
func (u *Uploader) PushAll(ctx context.Context, targets []Target) []Report {
	reports := make([]Report, 0, len(targets))
	for _, t := range targets {
		if !t.Enabled {
			slog.Info("target disabled, skipping", "target", t.ID)
			reports = append(reports, Report{Target: t.ID, Action: ActionSkipped})
			continue
		}
		r := u.Push(ctx, t)
		if r.Err != nil {
			slog.Error("target failed", "target", t.ID, "kind", apperror.KindOf(r.Err), "error", r.Err)
		} else {
			slog.Info("target done", "target", t.ID, "action", r.Action, "attempts", r.Attempts)
		}
		reports = append(reports, r)
	}
	return reports
}

// Push uploads one target. The remote state is discovered optimistically: a
// version-creation call is attempted first since the dataset usually already
// exists for a recurring job, and the create path is the fallback.
func (u *Uploader) Push(ctx context.Context, t Target) Report {
	report := Report{Target: t.ID}

	if err := u.validate(t); err != nil {
		report.Err = err
		return report
	}

	if u.dryRun {
		slog.Info("dry run: would push dataset version",
			"target", t.ID, "dataset", t.Owner+"/"+t.Slug, "files", len(t.Files))
		report.Action = ActionDryRun
		return report
	}

	tokens, err := u.stageFiles(ctx, t)
	if err != nil {
		report.Err = err
		return report
	}

	notes := fmt.Sprintf("Auto-update: %s UTC", u.now().UTC().Format("2006-01-02 15:04:05"))

	report.Action = ActionVersion
	attempts, err := u.withRetry(ctx, func() error {
		return u.api.CreateVersion(ctx, t.Owner, t.Slug, notes, tokens)
	})
	report.Attempts = attempts
	if err == nil {
		return report
	}

	switch apperror.KindOf(err) {
	case apperror.NotFound:
		slog.Info("dataset not found, creating it", "target", t.ID)
	case apperror.Forbidden:
		// Heuristic carried over from observed behavior: a 403 on version
		// creation has co-occurred with a stale or mismatched slug rather
		// than a genuine authorization denial, so the create path is tried
		// as a recovery. Not guaranteed correct.
		slog.Warn("version creation forbidden, falling back to dataset creation",
			"target", t.ID, "error", err)
	default:
		report.Err = err
		return report
	}

	report.Action = ActionCreate
	attempts, err = u.withRetry(ctx, func() error {
		return u.api.CreateDataset(ctx, DatasetMeta{
			Owner:   t.Owner,
			Slug:    t.Slug,
			Title:   t.Title,
			License: t.License,
			Private: t.Private,
		}, tokens)
	})
	report.Attempts = attempts
	report.Err = err
	return report
}

// validate performs the local checks that also back the dry-run mode: config
// completeness and manifest file existence.
func (u *Uploader) validate(t Target) error {
	if t.Owner == "" || t.Slug == "" {
		return fmt.Errorf("target %s: owner and slug are required", t.ID)
	}
	if t.Title == "" {
		return fmt.Errorf("target %s: title is required", t.ID)
	}
	if len(t.Files) == 0 {
		return fmt.Errorf("target %s: file manifest is empty", t.ID)
	}
	for _, path := range t.Files {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("target %s: manifest file missing: %w", t.ID, err)
		}
	}
	return nil
}

func (u *Uploader) stageFiles(ctx context.Context, t Target) ([]string, error) {
	tokens := make([]string, 0, len(t.Files))
	for _, path := range t.Files {
		var token string
		_, err := u.withRetry(ctx, func() error {
			var uerr error
			token, uerr = u.api.UploadFile(ctx, path)
			return uerr
		})
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", path, err)
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// withRetry runs fn, retrying with exponential backoff while failures are
// classified Transient. Any other classification returns immediately. The
// attempt count is reported either way.
func (u *Uploader) withRetry(ctx context.Context, fn func() error) (int, error) {
	delay := u.retry.InitialBackoff
	attempts := 0
	for {
		attempts++
		err := fn()
		if err == nil {
			return attempts, nil
		}
		if apperror.KindOf(err) != apperror.Transient || attempts >= u.retry.MaxAttempts {
			return attempts, err
		}
		slog.Warn("transient failure, retrying", "attempt", attempts, "backoff", delay, "error", err)
		select {
		case <-ctx.Done():
			return attempts, ctx.Err()
		default:
		}
		u.sleep(delay)
		delay *= 2
		if u.retry.MaxBackoff > 0 && delay > u.retry.MaxBackoff {
			delay = u.retry.MaxBackoff
		}
	}
}
