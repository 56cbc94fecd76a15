package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"content_scout/internal/model"
	"content_scout/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if dsn == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Name identifies the store in sink metrics.
func (s *SQLite) Name() string { return "sqlite" }

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Accept upserts the item and replaces its analysis in one transaction.
func (s *SQLite) Accept(ctx context.Context, item model.ContentItem, a model.ContentAnalysis) error {
	engagement, err := json.Marshal(nonNilMap(item.Engagement))
	if err != nil {
		return fmt.Errorf("encode engagement: %w", err)
	}
	urls, err := json.Marshal(nonNilSlice(item.URLs))
	if err != nil {
		return fmt.Errorf("encode urls: %w", err)
	}
	signals, err := json.Marshal(a.Signals)
	if err != nil {
		return fmt.Errorf("encode signals: %w", err)
	}
	reasons, err := json.Marshal(nonNilSlice(a.Reasons))
	if err != nil {
		return fmt.Errorf("encode reasons: %w", err)
	}
	now := time.Now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO content_items (platform, platform_id, title, body, author_id, author_name,
		     author_followers, author_verified, published_at, engagement, urls, raw, first_seen_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (platform, platform_id) DO UPDATE SET
		     title = excluded.title,
		     body = excluded.body,
		     author_id = excluded.author_id,
		     author_name = excluded.author_name,
		     author_followers = excluded.author_followers,
		     author_verified = excluded.author_verified,
		     published_at = excluded.published_at,
		     engagement = excluded.engagement,
		     urls = excluded.urls,
		     raw = excluded.raw,
		     updated_at = excluded.updated_at`,
		string(item.Platform), item.PlatformID, item.Title, item.Body, item.Author.ID, item.Author.Name,
		item.Author.Followers, boolToInt(item.Author.Verified), formatTime(item.PublishedAt),
		string(engagement), string(urls), item.Raw, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO content_analyses (platform, platform_id, quality, tier_rank, score, signals, reasons, confidence, analyzed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (platform, platform_id) DO UPDATE SET
		     quality = excluded.quality,
		     tier_rank = excluded.tier_rank,
		     score = excluded.score,
		     signals = excluded.signals,
		     reasons = excluded.reasons,
		     confidence = excluded.confidence,
		     analyzed_at = excluded.analyzed_at`,
		string(item.Platform), item.PlatformID, string(a.Quality), a.Quality.Rank(), a.Score,
		string(signals), string(reasons), a.Confidence, now,
	)
	if err != nil {
		return fmt.Errorf("upsert analysis: %w", err)
	}

	return tx.Commit()
}

const storedItemColumns = `i.platform, i.platform_id, i.title, i.body, i.author_id, i.author_name,
	i.author_followers, i.author_verified, i.published_at, i.engagement, i.urls, i.raw,
	a.quality, a.score, a.signals, a.reasons, a.confidence, a.analyzed_at`

// GetItem returns a stored item with its analysis.
func (s *SQLite) GetItem(ctx context.Context, platform model.Platform, platformID string) (*model.StoredItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+storedItemColumns+`
		 FROM content_items i JOIN content_analyses a USING (platform, platform_id)
		 WHERE i.platform = ? AND i.platform_id = ?`,
		string(platform), platformID,
	)
	it, err := scanStoredItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// ListTop returns up to limit items ordered by score, newest analysis first
// among equal scores.
func (s *SQLite) ListTop(ctx context.Context, limit int, minTier model.QualityTier) ([]model.StoredItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+storedItemColumns+`
		 FROM content_items i JOIN content_analyses a USING (platform, platform_id)
		 WHERE a.tier_rank >= ?
		 ORDER BY a.score DESC, a.analyzed_at DESC, i.platform, i.platform_id
		 LIMIT ?`,
		minTier.Rank(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query top items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.StoredItem
	for rows.Next() {
		it, err := scanStoredItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// LoadBudgets returns all persisted quota budgets.
func (s *SQLite) LoadBudgets(ctx context.Context) ([]model.QuotaBudget, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT platform, daily_used, daily_limit, monthly_used, monthly_limit, last_daily_reset, last_monthly_reset
		 FROM quota_budgets ORDER BY platform`,
	)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var budgets []model.QuotaBudget
	for rows.Next() {
		var b model.QuotaBudget
		var platform string
		if err := rows.Scan(&platform, &b.DailyUsed, &b.DailyLimit, &b.MonthlyUsed, &b.MonthlyLimit,
			&b.LastDailyReset, &b.LastMonthlyReset); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.Platform = model.Platform(platform)
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// SaveBudget upserts the budget of one platform.
func (s *SQLite) SaveBudget(ctx context.Context, b model.QuotaBudget) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quota_budgets (platform, daily_used, daily_limit, monthly_used, monthly_limit, last_daily_reset, last_monthly_reset)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (platform) DO UPDATE SET
		     daily_used = excluded.daily_used,
		     daily_limit = excluded.daily_limit,
		     monthly_used = excluded.monthly_used,
		     monthly_limit = excluded.monthly_limit,
		     last_daily_reset = excluded.last_daily_reset,
		     last_monthly_reset = excluded.last_monthly_reset`,
		string(b.Platform), b.DailyUsed, b.DailyLimit, b.MonthlyUsed, b.MonthlyLimit, b.LastDailyReset, b.LastMonthlyReset,
	)
	if err != nil {
		return fmt.Errorf("save budget: %w", err)
	}
	return nil
}

// RecordScan stores a scan report.
func (s *SQLite) RecordScan(ctx context.Context, r model.ScanReport) error {
	kinds, err := json.Marshal(nonNilSlice(r.SkippedKinds))
	if err != nil {
		return fmt.Errorf("encode skipped kinds: %w", err)
	}
	tiers, err := json.Marshal(nonNilMap(r.ByTier))
	if err != nil {
		return fmt.Errorf("encode tiers: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scan_runs (id, started_at, finished_at, skipped, skipped_kinds, fetched, unique_items,
		     relevant, scored, accepted, failed, by_tier)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout), boolToInt(r.Skipped),
		string(kinds), r.Fetched, r.Unique, r.Relevant, r.Scored, r.Accepted, r.Failed, string(tiers),
	)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}
	return nil
}

// LastScan returns the most recently started scan.
func (s *SQLite) LastScan(ctx context.Context) (*model.ScanReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, skipped, skipped_kinds, fetched, unique_items,
		     relevant, scored, accepted, failed, by_tier
		 FROM scan_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	)
	var r model.ScanReport
	var started, finished, kinds, tiers string
	var skipped int
	err := row.Scan(&r.ID, &started, &finished, &skipped, &kinds, &r.Fetched, &r.Unique,
		&r.Relevant, &r.Scored, &r.Accepted, &r.Failed, &tiers)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.Skipped = skipped == 1
	r.StartedAt, _ = time.Parse(timeLayout, started)
	r.FinishedAt, _ = time.Parse(timeLayout, finished)
	if err := json.Unmarshal([]byte(kinds), &r.SkippedKinds); err != nil {
		return nil, fmt.Errorf("decode skipped kinds: %w", err)
	}
	if err := json.Unmarshal([]byte(tiers), &r.ByTier); err != nil {
		return nil, fmt.Errorf("decode tiers: %w", err)
	}
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	v := t.UTC().Format(timeLayout)
	return &v
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return m
}

type scannable interface {
	Scan(dest ...any) error
}

func scanStoredItem(row scannable) (model.StoredItem, error) {
	var it model.StoredItem
	var platform, quality, engagement, urls, signals, reasons, analyzed string
	var verified int
	var published sql.NullString
	err := row.Scan(&platform, &it.Item.PlatformID, &it.Item.Title, &it.Item.Body,
		&it.Item.Author.ID, &it.Item.Author.Name, &it.Item.Author.Followers, &verified,
		&published, &engagement, &urls, &it.Item.Raw,
		&quality, &it.Analysis.Score, &signals, &reasons, &it.Analysis.Confidence, &analyzed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return it, err
		}
		return it, fmt.Errorf("scan item: %w", err)
	}

	it.Item.Platform = model.Platform(platform)
	it.Item.Author.Verified = verified == 1
	if published.Valid {
		it.Item.PublishedAt, _ = time.Parse(timeLayout, published.String)
	}
	if err := json.Unmarshal([]byte(engagement), &it.Item.Engagement); err != nil {
		return it, fmt.Errorf("decode engagement: %w", err)
	}
	if err := json.Unmarshal([]byte(urls), &it.Item.URLs); err != nil {
		return it, fmt.Errorf("decode urls: %w", err)
	}
	it.Analysis.Quality = model.QualityTier(quality)
	if err := json.Unmarshal([]byte(signals), &it.Analysis.Signals); err != nil {
		return it, fmt.Errorf("decode signals: %w", err)
	}
	if err := json.Unmarshal([]byte(reasons), &it.Analysis.Reasons); err != nil {
		return it, fmt.Errorf("decode reasons: %w", err)
	}
	it.AnalyzedAt, _ = time.Parse(timeLayout, analyzed)
	return it, nil
}
