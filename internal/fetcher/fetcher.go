// Package fetcher runs platform searches behind the quota tracker and the
// response cache, and normalizes platform payloads into content items.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"content_scout/internal/metrics"
	"content_scout/internal/model"
)

const (
	userAgent       = "ContentScout/1.0"
	maxResponseSize = 5 * 1024 * 1024
	defaultTimeout  = 30 * time.Second
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Source is the platform-specific half of an adapter: how to ask and how to
// read the answer.
type Source interface {
	Platform() model.Platform
	// Fetch performs the authenticated request(s) for q and returns the raw
	// payload that will be cached.
	Fetch(ctx context.Context, q model.SearchQuery) ([]byte, error)
	// Normalize maps a raw payload into content items.
	Normalize(q model.SearchQuery, raw []byte) ([]model.ContentItem, error)
}

// Quota is the subset of the quota tracker an adapter needs.
type Quota interface {
	CanAfford(p model.Platform, n int) bool
	Consume(p model.Platform, n int)
}

// Cache is the subset of the response cache an adapter needs.
type Cache interface {
	Get(key string) ([]byte, bool)
	GetIgnoringTTL(key string) ([]byte, bool)
	Put(key string, value []byte)
}

// Adapter applies the shared quota/cache/network control flow to a Source.
type Adapter struct {
	source  Source
	quota   Quota
	cache   Cache
	metrics *metrics.Collector
	log     *slog.Logger
	timeout time.Duration
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Adapter) { a.log = log }
}

// WithMetrics enables instrumentation.
func WithMetrics(m *metrics.Collector) Option {
	return func(a *Adapter) { a.metrics = m }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// NewAdapter creates an Adapter for src.
func NewAdapter(src Source, quota Quota, cache Cache, opts ...Option) *Adapter {
	a := &Adapter{
		source:  src,
		quota:   quota,
		cache:   cache,
		log:     slog.New(slog.DiscardHandler),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Platform returns the platform served by the adapter.
func (a *Adapter) Platform() model.Platform {
	return a.source.Platform()
}

// Search returns the items matching q.
//
// When the quota cannot afford q, a cached response of any age is served and
// nothing is charged. A fresh cached response is served without a network
// call. Otherwise the platform is queried and charged for the items it
// actually returned. Failed requests are logged and yield no items; the only
// error returned is the cancellation of ctx.
func (a *Adapter) Search(ctx context.Context, q model.SearchQuery) ([]model.ContentItem, error) {
	p := a.source.Platform()
	key := q.Key()
	log := a.log.With("platform", p, "kind", q.Kind, "query", q.Text)

	if !a.quota.CanAfford(p, q.Cost()) {
		raw, ok := a.cache.GetIgnoringTTL(key)
		if !ok {
			a.metrics.CacheLookup(p, metrics.CacheMiss)
			log.Info("quota exhausted, no cached response")
			return nil, nil
		}
		a.metrics.CacheLookup(p, metrics.CacheStale)
		log.Info("quota exhausted, serving cached response")
		return a.normalize(log, q, raw), nil
	}

	if raw, ok := a.cache.Get(key); ok {
		a.metrics.CacheLookup(p, metrics.CacheHit)
		return a.normalize(log, q, raw), nil
	}
	a.metrics.CacheLookup(p, metrics.CacheMiss)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.source.Fetch(fetchCtx, q)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.metrics.FetchError(p)
		log.Warn("fetch failed", "error", err)
		return nil, nil
	}

	items, err := a.source.Normalize(q, raw)
	if err != nil {
		a.metrics.FetchError(p)
		log.Warn("malformed response", "error", err)
		return nil, nil
	}

	a.quota.Consume(p, len(items))
	a.metrics.QuotaConsumed(p, len(items))
	a.metrics.ItemsFetched(p, len(items))
	a.cache.Put(key, raw)

	return applyFloor(q, items), nil
}

func (a *Adapter) normalize(log *slog.Logger, q model.SearchQuery, raw []byte) []model.ContentItem {
	items, err := a.source.Normalize(q, raw)
	if err != nil {
		log.Warn("malformed cached response", "error", err)
		return nil
	}
	return applyFloor(q, items)
}

// applyFloor drops items below the query's engagement floor. Code-host
// floors are part of the query text and are not re-checked here.
func applyFloor(q model.SearchQuery, items []model.ContentItem) []model.ContentItem {
	if q.MinEngagement <= 0 {
		return items
	}
	metric := ""
	switch q.Platform {
	case model.ShortForm:
		metric = model.EngLikes
	case model.Video:
		metric = model.EngViews
	default:
		return items
	}
	out := items[:0:0]
	for _, it := range items {
		if it.Metric(metric) >= q.MinEngagement {
			out = append(out, it)
		}
	}
	return out
}

// get performs a GET request and returns the body of a 200 response.
func get(ctx context.Context, client HTTPClient, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// StatusError reports a non-200 platform response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// element decodes one item of a platform list and keeps its source bytes
// for ContentItem.Raw.
type element[T any] struct {
	Value T
	Raw   json.RawMessage
}

func (e *element[T]) UnmarshalJSON(b []byte) error {
	e.Raw = append(json.RawMessage(nil), b...)
	return json.Unmarshal(b, &e.Value)
}
