// Package metrics exposes Prometheus instrumentation for the scan pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"content_scout/internal/model"
)

const namespace = "content_scout"

// Cache lookup outcomes.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"
)

// Collector holds the pipeline metrics. A nil *Collector is valid and
// records nothing, so components can be built without instrumentation.
type Collector struct {
	registry *prometheus.Registry

	quotaConsumed  *prometheus.CounterVec
	quotaRemaining *prometheus.GaugeVec
	cacheLookups   *prometheus.CounterVec
	fetchErrors    *prometheus.CounterVec
	itemsFetched   *prometheus.CounterVec
	itemsScored    *prometheus.CounterVec
	sinkErrors     *prometheus.CounterVec
	scansTotal     *prometheus.CounterVec
	scanDuration   prometheus.Histogram
}

// New creates a Collector registered on its own registry.
func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.quotaConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_consumed_total",
			Help:      "Reads charged against platform quota",
		},
		[]string{"platform"},
	)
	c.quotaRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_remaining",
			Help:      "Remaining reads per platform and window",
		},
		[]string{"platform", "window"},
	)
	c.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by outcome",
		},
		[]string{"platform", "result"},
	)
	c.fetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed platform requests",
		},
		[]string{"platform"},
	)
	c.itemsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_fetched_total",
			Help:      "Items returned by platform adapters",
		},
		[]string{"platform"},
	)
	c.itemsScored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_scored_total",
			Help:      "Items scored by quality tier",
		},
		[]string{"tier"},
	)
	c.sinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed item writes per sink",
		},
		[]string{"sink"},
	)
	c.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scans by outcome",
		},
		[]string{"outcome"},
	)
	c.scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of completed scans",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	c.registry.MustRegister(
		c.quotaConsumed,
		c.quotaRemaining,
		c.cacheLookups,
		c.fetchErrors,
		c.itemsFetched,
		c.itemsScored,
		c.sinkErrors,
		c.scansTotal,
		c.scanDuration,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) QuotaConsumed(p model.Platform, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.quotaConsumed.WithLabelValues(string(p)).Add(float64(n))
}

func (c *Collector) QuotaRemaining(p model.Platform, daily, monthly int) {
	if c == nil {
		return
	}
	c.quotaRemaining.WithLabelValues(string(p), "daily").Set(float64(daily))
	c.quotaRemaining.WithLabelValues(string(p), "monthly").Set(float64(monthly))
}

func (c *Collector) CacheLookup(p model.Platform, result string) {
	if c == nil {
		return
	}
	c.cacheLookups.WithLabelValues(string(p), result).Inc()
}

func (c *Collector) FetchError(p model.Platform) {
	if c == nil {
		return
	}
	c.fetchErrors.WithLabelValues(string(p)).Inc()
}

func (c *Collector) ItemsFetched(p model.Platform, n int) {
	if c == nil {
		return
	}
	c.itemsFetched.WithLabelValues(string(p)).Add(float64(n))
}

func (c *Collector) ItemScored(tier model.QualityTier) {
	if c == nil {
		return
	}
	c.itemsScored.WithLabelValues(string(tier)).Inc()
}

func (c *Collector) SinkError(sink string) {
	if c == nil {
		return
	}
	c.sinkErrors.WithLabelValues(sink).Inc()
}

// ScanFinished records a scan outcome ("completed", "skipped", "cancelled").
func (c *Collector) ScanFinished(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.scansTotal.WithLabelValues(outcome).Inc()
	if outcome == "completed" {
		c.scanDuration.Observe(d.Seconds())
	}
}
