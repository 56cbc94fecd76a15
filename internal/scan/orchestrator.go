// Package scan runs the discovery pipeline: plan, fetch, dedupe, filter,
// score and hand qualifying items to the sinks.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"content_scout/internal/dedupe"
	"content_scout/internal/filter"
	"content_scout/internal/metrics"
	"content_scout/internal/model"
	"content_scout/internal/quota"
)

// ErrScanInProgress is returned when a scan is requested while another runs.
var ErrScanInProgress = errors.New("scan already in progress")

// State is the phase of the running scan.
type State string

// Scan states.
const (
	StateIdle       State = "idle"
	StatePlanning   State = "planning"
	StateFetching   State = "fetching"
	StateDeduping   State = "deduping"
	StateScoring    State = "scoring"
	StatePersisting State = "persisting"
)

// Scan outcomes reported to metrics.
const (
	outcomeCompleted = "completed"
	outcomeSkipped   = "skipped"
	outcomeCancelled = "cancelled"
)

const defaultScoringWorkers = 4

// Planner produces the queries of one scan kind.
type Planner interface {
	Plan(platform model.Platform, kind model.ScanKind) []model.SearchQuery
	MinRequest() int
}

// Quota is the subset of the quota tracker the orchestrator reads.
type Quota interface {
	CanAfford(p model.Platform, n int) bool
	Status(p model.Platform) quota.Status
}

// Searcher runs queries against one platform.
type Searcher interface {
	Platform() model.Platform
	Search(ctx context.Context, q model.SearchQuery) ([]model.ContentItem, error)
}

// Analyzer scores one item.
type Analyzer interface {
	Analyze(item model.ContentItem) model.ContentAnalysis
}

// Sink accepts qualifying items. A failure affects only that item.
type Sink interface {
	Accept(ctx context.Context, item model.ContentItem, analysis model.ContentAnalysis) error
}

// RunRecorder keeps the history of scans.
type RunRecorder interface {
	RecordScan(ctx context.Context, report model.ScanReport) error
}

// Sweeper evicts stale cache entries.
type Sweeper interface {
	Sweep() int
}

// Config wires an Orchestrator. Planner, Quota, Searchers and Analyzer are
// required.
type Config struct {
	Planner   Planner
	Quota     Quota
	Searchers []Searcher
	Analyzer  Analyzer
	Filter    *filter.Set
	Sinks     []Sink
	Recorder  RunRecorder
	Cache     Sweeper
	Metrics   *metrics.Collector
	Log       *slog.Logger
	Now       func() time.Time

	// MinScore is the lowest score forwarded to the sinks.
	MinScore int
	// ExcludedTiers are never forwarded. Nil means Spam and LowQuality.
	ExcludedTiers []model.QualityTier
	// ScoringWorkers bounds scoring parallelism.
	ScoringWorkers int
}

// Orchestrator runs one scan at a time.
type Orchestrator struct {
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
	excluded map[model.QualityTier]struct{}

	mu      sync.Mutex
	state   State
	running bool
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		cfg:   cfg,
		log:   cfg.Log,
		now:   cfg.Now,
		state: StateIdle,
	}
	if o.log == nil {
		o.log = slog.New(slog.DiscardHandler)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.cfg.ScoringWorkers <= 0 {
		o.cfg.ScoringWorkers = defaultScoringWorkers
	}
	tiers := cfg.ExcludedTiers
	if tiers == nil {
		tiers = []model.QualityTier{model.Spam, model.LowQuality}
	}
	o.excluded = make(map[model.QualityTier]struct{}, len(tiers))
	for _, t := range tiers {
		o.excluded[t] = struct{}{}
	}
	return o
}

// State returns the phase of the running scan, or StateIdle.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// RunScan performs one full scan. A scan that no platform can afford is
// skipped and reported with Skipped set. The only errors are
// ErrScanInProgress and the cancellation of ctx.
func (o *Orchestrator) RunScan(ctx context.Context) (model.ScanReport, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return model.ScanReport{}, ErrScanInProgress
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.state = StateIdle
		o.mu.Unlock()
	}()

	report := model.ScanReport{
		ID:        uuid.NewString(),
		StartedAt: o.now().UTC(),
		ByTier:    make(map[model.QualityTier]int),
	}
	log := o.log.With("scan_id", report.ID)

	if !o.anyAffordable() {
		report.Skipped = true
		report.FinishedAt = o.now().UTC()
		log.Info("scan skipped, no platform can afford a request")
		o.cfg.Metrics.ScanFinished(outcomeSkipped, 0)
		o.record(ctx, log, report)
		return report, nil
	}

	if err := o.run(ctx, log, &report); err != nil {
		o.cfg.Metrics.ScanFinished(outcomeCancelled, 0)
		log.Warn("scan cancelled", "error", err)
		return report, err
	}

	if o.cfg.Cache != nil {
		if n := o.cfg.Cache.Sweep(); n > 0 {
			log.Debug("swept cache", "evicted", n)
		}
	}
	o.reportQuota()

	report.FinishedAt = o.now().UTC()
	o.cfg.Metrics.ScanFinished(outcomeCompleted, report.FinishedAt.Sub(report.StartedAt))
	log.Info("scan completed",
		"fetched", report.Fetched,
		"unique", report.Unique,
		"relevant", report.Relevant,
		"accepted", report.Accepted,
		"failed", report.Failed,
	)
	o.record(ctx, log, report)
	return report, nil
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, report *model.ScanReport) error {
	searchers := o.cfg.Searchers
	o.setState(StatePlanning)
	plans := make([][]kindPlan, len(searchers))
	for i, s := range searchers {
		plans[i] = o.plan(s.Platform())
	}

	o.setState(StateFetching)
	fetched, skipped, err := o.fetch(ctx, log, searchers, plans)
	if err != nil {
		return err
	}
	report.SkippedKinds = skipped
	report.Fetched = len(fetched)

	o.setState(StateDeduping)
	unique := dedupe.Dedupe(fetched)
	report.Unique = len(unique)
	relevant := o.cfg.Filter.Apply(unique)
	report.Relevant = len(relevant)

	o.setState(StateScoring)
	analyses, err := o.score(ctx, relevant)
	if err != nil {
		return err
	}
	report.Scored = len(analyses)
	for _, a := range analyses {
		report.ByTier[a.Quality]++
		o.cfg.Metrics.ItemScored(a.Quality)
	}

	o.setState(StatePersisting)
	for i, item := range relevant {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !o.qualifies(analyses[i]) {
			continue
		}
		if o.persist(ctx, log, item, analyses[i]) {
			report.Accepted++
		} else {
			report.Failed++
		}
	}
	return nil
}

type kindPlan struct {
	kind    model.ScanKind
	queries []model.SearchQuery
}

func (o *Orchestrator) plan(p model.Platform) []kindPlan {
	out := make([]kindPlan, 0, len(model.ScanKinds))
	for _, k := range model.ScanKinds {
		out = append(out, kindPlan{kind: k, queries: o.cfg.Planner.Plan(p, k)})
	}
	return out
}

// anyAffordable reports whether some platform can pay for the smallest useful
// request.
func (o *Orchestrator) anyAffordable() bool {
	minReq := o.cfg.Planner.MinRequest()
	for _, s := range o.cfg.Searchers {
		if o.cfg.Quota.CanAfford(s.Platform(), minReq) {
			return true
		}
	}
	return false
}

// fetch runs one worker per platform. Within a platform the kinds run in
// order; once a kind cannot be afforded it and the kinds after it are skipped.
func (o *Orchestrator) fetch(ctx context.Context, log *slog.Logger, searchers []Searcher, plans [][]kindPlan) ([]model.ContentItem, []string, error) {
	results := make([][]model.ContentItem, len(searchers))
	skipped := make([][]string, len(searchers))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range searchers {
		g.Go(func() error {
			p := s.Platform()
			for j, kp := range plans[i] {
				if len(kp.queries) == 0 {
					continue
				}
				if !o.cfg.Quota.CanAfford(p, kp.queries[0].Cost()) {
					for _, rest := range plans[i][j:] {
						skipped[i] = append(skipped[i], fmt.Sprintf("%s:%s", p, rest.kind))
					}
					log.Info("quota shortfall, skipping remaining kinds", "platform", p, "kind", kp.kind)
					return nil
				}
				for _, q := range kp.queries {
					items, err := s.Search(gctx, q)
					if err != nil {
						return fmt.Errorf("search %s: %w", p, err)
					}
					results[i] = append(results[i], items...)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var items []model.ContentItem
	var kinds []string
	for i := range searchers {
		items = append(items, results[i]...)
		kinds = append(kinds, skipped[i]...)
	}
	return items, kinds, nil
}

func (o *Orchestrator) score(ctx context.Context, items []model.ContentItem) ([]model.ContentAnalysis, error) {
	out := make([]model.ContentAnalysis, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.ScoringWorkers)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = o.cfg.Analyzer.Analyze(item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) qualifies(a model.ContentAnalysis) bool {
	if a.Score < o.cfg.MinScore {
		return false
	}
	_, excluded := o.excluded[a.Quality]
	return !excluded
}

// persist hands the item to every sink and reports whether all accepted it.
func (o *Orchestrator) persist(ctx context.Context, log *slog.Logger, item model.ContentItem, a model.ContentAnalysis) bool {
	ok := true
	for _, s := range o.cfg.Sinks {
		if err := s.Accept(ctx, item, a); err != nil {
			name := sinkName(s)
			o.cfg.Metrics.SinkError(name)
			log.Error("sink rejected item", "sink", name, "item", item.Key(), "error", err)
			ok = false
		}
	}
	return ok
}

func (o *Orchestrator) record(ctx context.Context, log *slog.Logger, report model.ScanReport) {
	if o.cfg.Recorder == nil {
		return
	}
	if err := o.cfg.Recorder.RecordScan(ctx, report); err != nil {
		log.Error("record scan", "error", err)
	}
}

func (o *Orchestrator) reportQuota() {
	if o.cfg.Metrics == nil {
		return
	}
	for _, s := range o.cfg.Searchers {
		st := o.cfg.Quota.Status(s.Platform())
		o.cfg.Metrics.QuotaRemaining(s.Platform(), st.DailyRemaining, st.MonthlyRemaining)
	}
}

func sinkName(s Sink) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}
