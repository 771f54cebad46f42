package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"murmur/app/repositories"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"
)

// AttachmentFiles removes the backing file of an attachment. Removing a file
// that does not exist must succeed.
type AttachmentFiles interface {
	DeleteAttachment(name string) error
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Started    time.Time
	Threshold  time.Time
	Candidates int
	Removed    int
	// Skipped counts candidates linked to a post between selection and claim.
	Skipped  int
	Failed   int
	Duration time.Duration
}

// AttachmentReaper deletes attachments that were never linked to a post and
// are older than the retention window, together with their files.
type AttachmentReaper struct {
	store     repositories.Store
	files     AttachmentFiles
	retention time.Duration
	interval  time.Duration
	logger    *log.Logger
	now       func() time.Time

	guard *semaphore.Weighted

	mu   sync.Mutex
	last *SweepResult
}

// ReaperOption configures an AttachmentReaper.
type ReaperOption func(*AttachmentReaper)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) ReaperOption {
	return func(r *AttachmentReaper) { r.now = now }
}

// WithLogger sets the logger used for per-item failures and sweep summaries.
func WithLogger(logger *log.Logger) ReaperOption {
	return func(r *AttachmentReaper) { r.logger = logger }
}

func NewAttachmentReaper(store repositories.Store, files AttachmentFiles, retention, interval time.Duration, opts ...ReaperOption) *AttachmentReaper {
	r := &AttachmentReaper{
		store:     store,
		files:     files,
		retention: retention,
		interval:  interval,
		logger:    log.Default(),
		now:       time.Now,
		guard:     semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run sweeps at startup and then once per interval until ctx is done. A
// tick that fires while a sweep is still running is skipped.
func (r *AttachmentReaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("attachment reaper started", "interval", r.interval, "retention", r.retention)
	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("attachment reaper stopped")
			return nil
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *AttachmentReaper) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// A sweep runs to completion even if shutdown starts meanwhile.
	_, err := r.Sweep(context.WithoutCancel(ctx))
	if errors.Is(err, ErrSweepInProgress) {
		r.logger.Warn("skipping tick, previous sweep still running")
	} else if err != nil {
		r.logger.Error("attachment sweep failed", "err", err)
	}
}

// Sweep performs one cleanup pass. Failures on single attachments are
// logged and counted; only a failure to select candidates is returned.
// Returns ErrSweepInProgress if another sweep is running.
func (r *AttachmentReaper) Sweep(ctx context.Context) (SweepResult, error) {
	if !r.guard.TryAcquire(1) {
		return SweepResult{}, ErrSweepInProgress
	}
	defer r.guard.Release(1)

	started := r.now()
	result := SweepResult{
		Started:   started,
		Threshold: started.Add(-r.retention),
	}
	candidates, err := r.store.Attachments().FindUnlinkedBefore(ctx, result.Threshold)
	if err != nil {
		return result, fmt.Errorf("select unlinked attachments: %w", err)
	}
	result.Candidates = len(candidates)

	for _, candidate := range candidates {
		removed, err := r.reap(ctx, candidate.ID, started)
		switch {
		case err != nil:
			result.Failed++
			r.logger.Error("failed to reap attachment", "id", candidate.ID, "name", candidate.Name, "err", err)
		case removed:
			result.Removed++
		default:
			result.Skipped++
		}
	}

	result.Duration = r.now().Sub(started)
	r.mu.Lock()
	r.last = &result
	r.mu.Unlock()

	if result.Candidates > 0 {
		r.logger.Info("attachment sweep finished",
			"candidates", result.Candidates,
			"removed", result.Removed,
			"skipped", result.Skipped,
			"failed", result.Failed)
	}
	return result, nil
}

// LastSweep returns the result of the most recent completed sweep.
func (r *AttachmentReaper) LastSweep() (SweepResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return SweepResult{}, false
	}
	return *r.last, true
}

// reap claims the attachment, removes its file and then its record. It
// reports false when the attachment got linked or vanished in the meantime.
// A failed file delete leaves the claim in place; the next sweep retries.
func (r *AttachmentReaper) reap(ctx context.Context, id int64, now time.Time) (bool, error) {
	var (
		name string
		keep bool
	)
	err := r.store.Atomic(ctx, func(tx repositories.Store) error {
		attachment, err := tx.Attachments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		keep = !attachment.Reapable(now, r.retention)
		if keep {
			return nil
		}
		name = attachment.Name
		if attachment.Reaping {
			return nil
		}
		attachment.Reaping = true
		return tx.Attachments().Update(ctx, attachment)
	})
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim: %w", err)
	}
	if keep {
		return false, nil
	}

	if err := r.files.DeleteAttachment(name); err != nil {
		return false, fmt.Errorf("delete file: %w", err)
	}
	err = r.store.Attachments().Delete(ctx, id)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return false, fmt.Errorf("delete record: %w", err)
	}
	return true, nil
}
