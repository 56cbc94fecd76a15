package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"content_scout/internal/model"
	"content_scout/internal/quota"
	"content_scout/internal/scan"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func sampleRepo() model.ContentItem {
	return model.ContentItem{
		PlatformID:  "1",
		Platform:    model.CodeHost,
		Title:       "acme/agent-runtime",
		Body:        "Runtime for MCP tool servers with   work-stealing scheduling",
		Author:      model.Author{ID: "acme", Name: "acme", Followers: 1200},
		PublishedAt: testNow.Add(-48 * time.Hour),
		Engagement:  map[string]float64{model.EngStars: 4200, model.EngForks: 12},
		URLs:        []string{"https://github.com/acme/agent-runtime"},
	}
}

func sampleAnalysis() model.ContentAnalysis {
	return model.ContentAnalysis{
		Quality:    model.Advanced,
		Score:      82,
		Signals:    model.QualitySignals{TechnicalDepth: 72, Innovation: 40, Freshness: 100},
		Reasons:    []string{"strong technical depth (72)", "fresh content"},
		Confidence: 0.812,
	}
}

func TestFormatNotification(t *testing.T) {
	tests := []struct {
		name         string
		item         func() model.ContentItem
		wantContains []string
		wantMissing  []string
	}{
		{
			name: "repository",
			item: sampleRepo,
			wantContains: []string{
				"[ADVANCED 82/100] codehost",
				"acme/agent-runtime",
				"by acme (1,200 followers) · 2 days ago",
				"4,200 stars · 12 forks",
				"Runtime for MCP tool servers with work-stealing scheduling",
				"https://github.com/acme/agent-runtime",
			},
		},
		{
			name: "post without author or counters",
			item: func() model.ContentItem {
				return model.ContentItem{
					PlatformID: "9",
					Platform:   model.ShortForm,
					Title:      "thread on async runtimes",
					Body:       "thread on async runtimes",
					Engagement: map[string]float64{model.EngRetweets: 3},
				}
			},
			wantContains: []string{
				"[ADVANCED 82/100] shortform",
				"by unknown · date unknown",
				"3 reposts",
			},
			wantMissing: []string{"likes", "https://"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatNotification(tt.item(), sampleAnalysis(), testNow)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q:\n%s", want, got)
				}
			}
			for _, miss := range tt.wantMissing {
				if strings.Contains(got, miss) {
					t.Errorf("output should not contain %q:\n%s", miss, got)
				}
			}
		})
	}
}

func TestFormatReport(t *testing.T) {
	start := testNow.Add(-time.Minute)

	tests := []struct {
		name         string
		report       model.ScanReport
		wantContains []string
	}{
		{
			name:         "skipped",
			report:       model.ScanReport{ID: "0f8fad5b-d9cb-469f-a165-70867728950e", Skipped: true},
			wantContains: []string{"Scan 0f8fad5b skipped"},
		},
		{
			name: "completed",
			report: model.ScanReport{
				ID: "0f8fad5b-d9cb-469f-a165-70867728950e", StartedAt: start, FinishedAt: start.Add(42 * time.Second),
				Fetched: 1234, Unique: 25, Relevant: 20, Scored: 20, Accepted: 6, Failed: 1,
				ByTier:       map[model.QualityTier]int{model.Basic: 10, model.Advanced: 6, model.Spam: 0},
				SkippedKinds: []string{"video:author"},
			},
			wantContains: []string{
				"Scan 0f8fad5b finished in 42s",
				"Fetched 1,234, unique 25, relevant 20, scored 20",
				"Accepted 6, failed 1",
				"Tiers: advanced 6, basic 10",
				"Out of quota: video:author",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatReport(tt.report)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q:\n%s", want, got)
				}
			}
		})
	}
}

func TestFormatStatus(t *testing.T) {
	quotas := []PlatformQuota{
		{Platform: model.CodeHost, Status: quota.Status{DailyRemaining: 480, MonthlyRemaining: 9520}},
		{Platform: model.ShortForm, Status: quota.Status{DailyRemaining: 0, MonthlyRemaining: 1400}},
	}

	tests := []struct {
		name         string
		state        scan.State
		last         *model.ScanReport
		wantContains []string
	}{
		{
			name:  "never scanned",
			state: scan.StateIdle,
			wantContains: []string{
				"Pipeline: idle",
				"codehost: 480 / 9,520",
				"shortform: 0 / 1,400",
				"Last scan: never",
			},
		},
		{
			name:         "completed scan",
			state:        scan.StateScoring,
			last:         &model.ScanReport{StartedAt: testNow.Add(-3 * time.Hour), Accepted: 6, Unique: 25},
			wantContains: []string{"Pipeline: scoring", "Last scan: 3 hours ago (accepted 6 of 25)"},
		},
		{
			name:         "skipped scan",
			state:        scan.StateIdle,
			last:         &model.ScanReport{StartedAt: testNow.Add(-3 * time.Hour), Skipped: true},
			wantContains: []string{"Last scan: 3 hours ago (skipped)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatStatus(tt.state, quotas, tt.last, testNow)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q:\n%s", want, got)
				}
			}
		})
	}
}

func TestFormatTop(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := FormatTop(nil, model.Advanced, testNow)
		if diff := cmp.Diff("No stored items at advanced or above yet.", got); diff != "" {
			t.Errorf("FormatTop mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ranked", func(t *testing.T) {
		second := sampleRepo()
		second.Title = "other/repo"
		second.URLs = nil
		second.PublishedAt = time.Time{}
		items := []model.StoredItem{
			{Item: sampleRepo(), Analysis: sampleAnalysis()},
			{Item: second, Analysis: model.ContentAnalysis{Quality: model.LowQuality, Score: 31}},
		}

		got := FormatTop(items, model.Spam, testNow)
		for _, want := range []string{
			"1. [ADVANCED 82] acme/agent-runtime",
			"codehost · 2 days ago",
			"https://github.com/acme/agent-runtime",
			"2. [LOW QUALITY 31] other/repo",
			"codehost · date unknown",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("output missing %q:\n%s", want, got)
			}
		}
	})
}

func TestFormatReasons(t *testing.T) {
	t.Run("with reasons", func(t *testing.T) {
		got := FormatReasons(&model.StoredItem{Item: sampleRepo(), Analysis: sampleAnalysis()})
		for _, want := range []string{
			`"acme/agent-runtime" scored 82 (advanced, confidence 81%)`,
			"- strong technical depth (72)",
			"- fresh content",
			"technical depth: 72",
			"freshness: 100",
			"community engagement: 0",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("output missing %q:\n%s", want, got)
			}
		}
	})

	t.Run("no reasons", func(t *testing.T) {
		got := FormatReasons(&model.StoredItem{Item: sampleRepo(), Analysis: model.ContentAnalysis{Quality: model.Basic}})
		if !strings.Contains(got, "No notable signals.") {
			t.Errorf("output missing fallback line:\n%s", got)
		}
	})
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "hello  world", n: 20, want: "hello world"},
		{name: "exact", in: "abcde", n: 5, want: "abcde"},
		{name: "cut", in: "abcdef ghij", n: 7, want: "abcdef…"},
		{name: "runes", in: "żółw żółw", n: 4, want: "żółw…"},
		{name: "empty", in: "   ", n: 4, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, truncate(tt.in, tt.n)); diff != "" {
				t.Errorf("truncate(%q, %d) mismatch (-want +got):\n%s", tt.in, tt.n, diff)
			}
		})
	}
}

func TestTierLabel(t *testing.T) {
	tests := []struct {
		tier model.QualityTier
		want string
	}{
		{model.Innovative, "INNOVATIVE"},
		{model.LowQuality, "LOW QUALITY"},
		{model.Spam, "SPAM"},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tierLabel(tt.tier)); diff != "" {
				t.Errorf("tierLabel(%q) mismatch (-want +got):\n%s", tt.tier, diff)
			}
		})
	}
}
