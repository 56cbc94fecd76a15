// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies the external service an item was discovered on.
type Platform string

// Supported platforms.
const (
	CodeHost  Platform = "codehost"
	Video     Platform = "video"
	ShortForm Platform = "shortform"
)

// Platforms lists every supported platform in scan order.
var Platforms = []Platform{CodeHost, Video, ShortForm}

// ParsePlatform converts a string into a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case CodeHost, Video, ShortForm:
		return p, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Author describes who published a content item.
type Author struct {
	ID        string
	Name      string
	Followers int64
	Verified  bool
}

// Engagement counter keys shared by adapters and scorers.
const (
	EngStars       = "stars"
	EngForks       = "forks"
	EngWatchers    = "watchers"
	EngOpenIssues  = "open_issues"
	EngHasTests    = "has_tests"
	EngHasCI       = "has_ci"
	EngPushedAt    = "pushed_at"
	EngViews       = "views"
	EngLikes       = "likes"
	EngComments    = "comments"
	EngSubscribers = "subscribers"
	EngDuration    = "duration_seconds"
	EngRetweets    = "retweets"
	EngReplies     = "replies"
	EngQuotes      = "quotes"
	EngThreadLen   = "thread_length"
)

// ContentItem is a normalized candidate discovered on any platform.
// (Platform, PlatformID) is globally unique.
type ContentItem struct {
	PlatformID  string
	Platform    Platform
	Title       string
	Body        string
	Author      Author
	PublishedAt time.Time
	Engagement  map[string]float64
	URLs        []string
	Raw         []byte
}

// Key returns the deduplication key of the item.
func (c ContentItem) Key() string {
	return string(c.Platform) + ":" + c.PlatformID
}

// Metric returns an engagement counter or zero when absent.
func (c ContentItem) Metric(name string) float64 {
	if c.Engagement == nil {
		return 0
	}
	return c.Engagement[name]
}

// QuotaBudget tracks consumed reads for one platform.
type QuotaBudget struct {
	Platform         Platform
	DailyUsed        int
	DailyLimit       int
	MonthlyUsed      int
	MonthlyLimit     int
	LastDailyReset   string // 2006-01-02
	LastMonthlyReset string // 2006-01
}

// CacheEntry is a raw adapter response stored under a normalized key.
type CacheEntry struct {
	Key      string
	Value    []byte
	StoredAt time.Time
}

// QualitySignals holds independently computed sub-scores, each in [0,100].
type QualitySignals struct {
	TechnicalDepth      float64 `json:"technical_depth"`
	Innovation          float64 `json:"innovation"`
	Uniqueness          float64 `json:"uniqueness"`
	CodeComplexity      float64 `json:"code_complexity"`
	AcademicReferences  float64 `json:"academic_references"`
	IndustryRelevance   float64 `json:"industry_relevance"`
	AuthorCredibility   float64 `json:"author_credibility"`
	CommunityEngagement float64 `json:"community_engagement"`
	Freshness           float64 `json:"freshness"`
}

// Values returns the signals in declaration order.
func (s QualitySignals) Values() []float64 {
	return []float64{
		s.TechnicalDepth,
		s.Innovation,
		s.Uniqueness,
		s.CodeComplexity,
		s.AcademicReferences,
		s.IndustryRelevance,
		s.AuthorCredibility,
		s.CommunityEngagement,
		s.Freshness,
	}
}

// QualityTier is the final classification bucket.
type QualityTier string

// Quality tiers from worst to best.
const (
	Spam         QualityTier = "spam"
	LowQuality   QualityTier = "low_quality"
	Basic        QualityTier = "basic"
	Intermediate QualityTier = "intermediate"
	Advanced     QualityTier = "advanced"
	Innovative   QualityTier = "innovative"
)

var tierRank = map[QualityTier]int{
	Spam:         0,
	LowQuality:   1,
	Basic:        2,
	Intermediate: 3,
	Advanced:     4,
	Innovative:   5,
}

// Rank orders tiers; unknown tiers rank below Spam.
func (q QualityTier) Rank() int {
	if r, ok := tierRank[q]; ok {
		return r
	}
	return -1
}

// ParseQualityTier converts a string into a QualityTier.
func ParseQualityTier(s string) (QualityTier, error) {
	t := QualityTier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tierRank[t]; !ok {
		return "", fmt.Errorf("unknown quality tier %q", s)
	}
	return t, nil
}

// ContentAnalysis is the immutable scoring outcome for one item.
type ContentAnalysis struct {
	Quality    QualityTier
	Score      int
	Signals    QualitySignals
	Reasons    []string
	Confidence float64
}

// ScanKind selects which query family the planner emits.
type ScanKind string

// Scan kinds in execution order.
const (
	KindTargeted ScanKind = "targeted"
	KindTrending ScanKind = "trending"
	KindAuthor   ScanKind = "author"
)

// ScanKinds lists the kinds in the order a scan runs them.
var ScanKinds = []ScanKind{KindTargeted, KindTrending, KindAuthor}

// SearchQuery is one planned request against a platform.
type SearchQuery struct {
	Platform      Platform
	Kind          ScanKind
	Text          string
	Limit         int
	MinEngagement float64
	Sort          string
	Since         time.Time
}

// Cost is the quota the query is expected to consume.
func (q SearchQuery) Cost() int {
	return q.Limit
}

// Key returns the normalized cache key of the query. Author queries keep
// their case since channel IDs are case-sensitive.
func (q SearchQuery) Key() string {
	text := q.Text
	if q.Kind != KindAuthor {
		text = strings.ToLower(text)
	}
	text = strings.Join(strings.Fields(text), " ")
	since := ""
	if !q.Since.IsZero() {
		since = q.Since.UTC().Format("2006-01-02")
	}
	return fmt.Sprintf("%s|%s|%s|%d|%s|%s", q.Platform, q.Kind, text, q.Limit, q.Sort, since)
}

// ScanReport summarizes one scan run.
type ScanReport struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Skipped      bool
	SkippedKinds []string
	Fetched      int
	Unique       int
	Relevant     int
	Scored       int
	Accepted     int
	Failed       int
	ByTier       map[QualityTier]int
}

// StoredItem is a persisted item together with its latest analysis.
type StoredItem struct {
	Item       ContentItem
	Analysis   ContentAnalysis
	AnalyzedAt time.Time
}
