// Package scheduler drives periodic scans inside the process.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"content_scout/internal/model"
	"content_scout/internal/scan"
)

// ScanRunner runs one complete scan.
type ScanRunner interface {
	RunScan(ctx context.Context) (model.ScanReport, error)
}

// History reports the last recorded scan.
type History interface {
	LastScan(ctx context.Context) (*model.ScanReport, error)
}

// Scheduler periodically runs scans.
type Scheduler struct {
	runner   ScanRunner
	history  History
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// New creates a Scheduler that scans every interval.
func New(runner ScanRunner, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// SetHistory makes the first scan wait out the remainder of the interval
// since the last recorded scan, so restarts do not rescan immediately.
func (s *Scheduler) SetHistory(h History) {
	s.history = h
}

// SetTickInterval overrides the scan interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.interval = d
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if wait := s.initialDelay(ctx); wait > 0 {
		s.log.Info("waiting for next scan", "in", wait.Round(time.Second))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) initialDelay(ctx context.Context) time.Duration {
	if s.history == nil {
		return 0
	}
	last, err := s.history.LastScan(ctx)
	if err != nil || last == nil {
		return 0
	}
	return s.interval - s.now().Sub(last.StartedAt)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.runner.RunScan(ctx)
	switch {
	case errors.Is(err, scan.ErrScanInProgress):
		s.log.Info("previous scan still running, skipping tick")
	case err != nil:
		s.log.Error("scan failed", "error", err)
	case report.Skipped:
		s.log.Info("scan skipped", "scan_id", report.ID)
	default:
		s.log.Debug("scan finished", "scan_id", report.ID, "accepted", report.Accepted)
	}
}
