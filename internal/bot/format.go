package bot

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"content_scout/internal/model"
	"content_scout/internal/quota"
	"content_scout/internal/scan"
)

const maxExcerpt = 280

var signalNames = []string{
	"technical depth",
	"innovation",
	"uniqueness",
	"code complexity",
	"academic references",
	"industry relevance",
	"author credibility",
	"community engagement",
	"freshness",
}

type counter struct {
	key   string
	label string
}

var headlineCounters = map[model.Platform][]counter{
	model.CodeHost:  {{model.EngStars, "stars"}, {model.EngForks, "forks"}},
	model.Video:     {{model.EngViews, "views"}, {model.EngLikes, "likes"}},
	model.ShortForm: {{model.EngLikes, "likes"}, {model.EngRetweets, "reposts"}, {model.EngReplies, "replies"}},
}

// PlatformQuota pairs a platform with its remaining reads.
type PlatformQuota struct {
	Platform model.Platform
	Status   quota.Status
}

// FormatNotification formats a scored item as a Telegram notification message.
func FormatNotification(item model.ContentItem, a model.ContentAnalysis, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s %d/100] %s\n\n", tierLabel(a.Quality), a.Score, item.Platform)
	b.WriteString(item.Title)
	b.WriteString("\n")
	b.WriteString(byline(item, now))
	if eng := engagementLine(item); eng != "" {
		b.WriteString("\n")
		b.WriteString(eng)
	}
	if excerpt := truncate(item.Body, maxExcerpt); excerpt != "" && excerpt != item.Title {
		b.WriteString("\n\n")
		b.WriteString(excerpt)
	}
	if len(item.URLs) > 0 {
		b.WriteString("\n\n")
		b.WriteString(item.URLs[0])
	}
	return b.String()
}

// FormatReport formats the outcome of one scan.
func FormatReport(r model.ScanReport) string {
	id := shortID(r.ID)
	if r.Skipped {
		return fmt.Sprintf("Scan %s skipped: no platform has quota left.", id)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Scan %s finished in %s\n", id, r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	fmt.Fprintf(&b, "Fetched %s, unique %s, relevant %s, scored %s\n",
		humanize.Comma(int64(r.Fetched)), humanize.Comma(int64(r.Unique)),
		humanize.Comma(int64(r.Relevant)), humanize.Comma(int64(r.Scored)))
	fmt.Fprintf(&b, "Accepted %d, failed %d", r.Accepted, r.Failed)
	if tiers := tierBreakdown(r.ByTier); tiers != "" {
		b.WriteString("\nTiers: ")
		b.WriteString(tiers)
	}
	if len(r.SkippedKinds) > 0 {
		b.WriteString("\nOut of quota: ")
		b.WriteString(strings.Join(r.SkippedKinds, ", "))
	}
	return b.String()
}

// FormatStatus formats the pipeline phase, remaining quota and the last scan.
func FormatStatus(state scan.State, quotas []PlatformQuota, last *model.ScanReport, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pipeline: %s\n", state)

	b.WriteString("\nQuota remaining (daily / monthly):\n")
	for _, q := range quotas {
		fmt.Fprintf(&b, "  %s: %s / %s\n", q.Platform,
			humanize.Comma(int64(q.Status.DailyRemaining)), humanize.Comma(int64(q.Status.MonthlyRemaining)))
	}

	b.WriteString("\nLast scan: ")
	switch {
	case last == nil:
		b.WriteString("never")
	case last.Skipped:
		fmt.Fprintf(&b, "%s (skipped)", humanize.RelTime(last.StartedAt, now, "ago", "from now"))
	default:
		fmt.Fprintf(&b, "%s (accepted %d of %d)",
			humanize.RelTime(last.StartedAt, now, "ago", "from now"), last.Accepted, last.Unique)
	}
	return b.String()
}

// FormatTop formats the best stored items.
func FormatTop(items []model.StoredItem, minTier model.QualityTier, now time.Time) string {
	if len(items) == 0 {
		return fmt.Sprintf("No stored items at %s or above yet.", minTier)
	}
	var b strings.Builder
	b.WriteString("Top items:\n")
	for i, it := range items {
		fmt.Fprintf(&b, "\n%d. [%s %d] %s\n", i+1, tierLabel(it.Analysis.Quality), it.Analysis.Score, it.Item.Title)
		fmt.Fprintf(&b, "   %s · %s\n", it.Item.Platform, age(it.Item.PublishedAt, now))
		if len(it.Item.URLs) > 0 {
			fmt.Fprintf(&b, "   %s\n", it.Item.URLs[0])
		}
	}
	return b.String()
}

// FormatReasons explains how a stored item was scored.
func FormatReasons(it *model.StoredItem) string {
	a := it.Analysis
	var b strings.Builder
	fmt.Fprintf(&b, "%q scored %d (%s, confidence %d%%)\n",
		it.Item.Title, a.Score, a.Quality, int(math.Round(a.Confidence*100)))

	if len(a.Reasons) == 0 {
		b.WriteString("\nNo notable signals.\n")
	} else {
		b.WriteString("\n")
		for _, r := range a.Reasons {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	b.WriteString("\nSignals:\n")
	for i, v := range a.Signals.Values() {
		fmt.Fprintf(&b, "  %s: %.0f\n", signalNames[i], v)
	}
	return b.String()
}

func tierLabel(t model.QualityTier) string {
	return strings.ToUpper(strings.ReplaceAll(string(t), "_", " "))
}

func byline(item model.ContentItem, now time.Time) string {
	name := item.Author.Name
	if name == "" {
		name = item.Author.ID
	}
	if name == "" {
		name = "unknown"
	}
	line := "by " + name
	if item.Author.Followers > 0 {
		line += fmt.Sprintf(" (%s followers)", humanize.Comma(item.Author.Followers))
	}
	return line + " · " + age(item.PublishedAt, now)
}

func age(published, now time.Time) string {
	if published.IsZero() {
		return "date unknown"
	}
	return humanize.RelTime(published, now, "ago", "from now")
}

func engagementLine(item model.ContentItem) string {
	var parts []string
	for _, c := range headlineCounters[item.Platform] {
		if v := item.Metric(c.key); v > 0 {
			parts = append(parts, humanize.Comma(int64(v))+" "+c.label)
		}
	}
	return strings.Join(parts, " · ")
}

func tierBreakdown(byTier map[model.QualityTier]int) string {
	tiers := make([]model.QualityTier, 0, len(byTier))
	for t, n := range byTier {
		if n > 0 {
			tiers = append(tiers, t)
		}
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Rank() > tiers[j].Rank() })

	parts := make([]string, len(tiers))
	for i, t := range tiers {
		parts[i] = fmt.Sprintf("%s %d", t, byTier[t])
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
