// Package quota tracks per-platform read budgets across daily and monthly windows.
package quota

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"content_scout/internal/model"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// Limit is the configured budget of one platform.
type Limit struct {
	Daily   int
	Monthly int
}

// Status reports remaining reads for a platform.
type Status struct {
	DailyRemaining   int
	MonthlyRemaining int
}

// Store persists budgets so counters survive restarts.
type Store interface {
	LoadBudgets(ctx context.Context) ([]model.QuotaBudget, error)
	SaveBudget(ctx context.Context, b model.QuotaBudget) error
}

// Tracker is the single source of truth for "can I afford N more reads".
// It never returns errors; persistence failures are logged.
type Tracker struct {
	mu      sync.Mutex
	budgets map[model.Platform]*model.QuotaBudget
	store   Store
	now     func() time.Time
	log     *slog.Logger

	// seq numbers snapshots per platform; saved is the newest one stored.
	// A snapshot older than saved is never written.
	saveMu sync.Mutex
	seq    map[model.Platform]uint64
	saved  map[model.Platform]uint64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithStore enables persistence of budgets.
func WithStore(s Store) Option {
	return func(t *Tracker) { t.store = s }
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(log *slog.Logger) Option {
	return func(t *Tracker) { t.log = log }
}

// New creates a Tracker with one budget per configured platform.
func New(limits map[model.Platform]Limit, opts ...Option) *Tracker {
	t := &Tracker{
		budgets: make(map[model.Platform]*model.QuotaBudget, len(limits)),
		seq:     make(map[model.Platform]uint64, len(limits)),
		saved:   make(map[model.Platform]uint64, len(limits)),
		now:     time.Now,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}

	now := t.now().UTC()
	for p, l := range limits {
		t.budgets[p] = &model.QuotaBudget{
			Platform:         p,
			DailyLimit:       l.Daily,
			MonthlyLimit:     l.Monthly,
			LastDailyReset:   now.Format(dayLayout),
			LastMonthlyReset: now.Format(monthLayout),
		}
	}
	return t
}

// Load restores persisted counters for configured platforms. Limits always
// come from configuration, never from the store.
func (t *Tracker) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	saved, err := t.store.LoadBudgets(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range saved {
		b, ok := t.budgets[s.Platform]
		if !ok {
			continue
		}
		b.DailyUsed = s.DailyUsed
		b.MonthlyUsed = s.MonthlyUsed
		if s.LastDailyReset != "" {
			b.LastDailyReset = s.LastDailyReset
		}
		if s.LastMonthlyReset != "" {
			b.LastMonthlyReset = s.LastMonthlyReset
		}
		t.resetLocked(b)
	}
	return nil
}

// CanAfford reports whether n more reads fit in both windows.
func (t *Tracker) CanAfford(p model.Platform, n int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.budgets[p]
	if !ok {
		return false
	}
	t.resetLocked(b)
	if n <= 0 {
		return true
	}
	return n <= remaining(b.DailyLimit, b.DailyUsed) && n <= remaining(b.MonthlyLimit, b.MonthlyUsed)
}

// Consume records n reads after a successful external call.
func (t *Tracker) Consume(p model.Platform, n int) {
	if n <= 0 {
		return
	}

	t.mu.Lock()
	b, ok := t.budgets[p]
	if !ok {
		t.mu.Unlock()
		return
	}
	t.resetLocked(b)
	b.DailyUsed += n
	b.MonthlyUsed += n
	snapshot := *b
	t.seq[p]++
	seq := t.seq[p]
	t.mu.Unlock()

	t.persist(snapshot, seq)
}

// Status returns remaining reads for p.
func (t *Tracker) Status(p model.Platform) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.budgets[p]
	if !ok {
		return Status{}
	}
	t.resetLocked(b)
	return Status{
		DailyRemaining:   remaining(b.DailyLimit, b.DailyUsed),
		MonthlyRemaining: remaining(b.MonthlyLimit, b.MonthlyUsed),
	}
}

// Budget returns a snapshot of the budget for p.
func (t *Tracker) Budget(p model.Platform) (model.QuotaBudget, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.budgets[p]
	if !ok {
		return model.QuotaBudget{}, false
	}
	t.resetLocked(b)
	return *b, true
}

// resetLocked zeroes counters whose window has passed. Calling it twice in
// the same day and month is a no-op.
func (t *Tracker) resetLocked(b *model.QuotaBudget) {
	now := t.now().UTC()
	if day := now.Format(dayLayout); b.LastDailyReset != day {
		b.DailyUsed = 0
		b.LastDailyReset = day
	}
	if month := now.Format(monthLayout); b.LastMonthlyReset != month {
		b.MonthlyUsed = 0
		b.LastMonthlyReset = month
	}
}

func (t *Tracker) persist(b model.QuotaBudget, seq uint64) {
	if t.store == nil {
		return
	}
	t.saveMu.Lock()
	defer t.saveMu.Unlock()
	if seq <= t.saved[b.Platform] {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.store.SaveBudget(ctx, b); err != nil {
		t.log.Error("save quota budget", "platform", b.Platform, "error", err)
		return
	}
	t.saved[b.Platform] = seq
}

func remaining(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}
