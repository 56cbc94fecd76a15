package scoring

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"content_scout/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		score   int
		signals model.QualitySignals
		want    model.QualityTier
	}{
		{name: "advanced boundary", score: 80, signals: model.QualitySignals{TechnicalDepth: 50}, want: model.Advanced},
		{name: "intermediate boundary", score: 60, signals: model.QualitySignals{TechnicalDepth: 50}, want: model.Intermediate},
		{name: "basic boundary", score: 40, signals: model.QualitySignals{TechnicalDepth: 50}, want: model.Basic},
		{name: "just below basic", score: 39, signals: model.QualitySignals{TechnicalDepth: 50}, want: model.LowQuality},
		{name: "innovative at moderate score", score: 55, signals: model.QualitySignals{Innovation: 85, TechnicalDepth: 75}, want: model.Innovative},
		{name: "innovation without depth", score: 55, signals: model.QualitySignals{Innovation: 85, TechnicalDepth: 70}, want: model.Basic},
		{name: "spam", score: 19, signals: model.QualitySignals{TechnicalDepth: 5}, want: model.Spam},
		{name: "low score with some depth", score: 19, signals: model.QualitySignals{TechnicalDepth: 15}, want: model.LowQuality},
		{name: "spam wins over novelty", score: 10, signals: model.QualitySignals{Innovation: 90, TechnicalDepth: 5}, want: model.Spam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.score, tt.signals)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWeighted(t *testing.T) {
	all := model.QualitySignals{
		TechnicalDepth: 100, Innovation: 100, Uniqueness: 100,
		CodeComplexity: 100, AcademicReferences: 100, IndustryRelevance: 100,
		AuthorCredibility: 100, CommunityEngagement: 100, Freshness: 100,
	}
	if diff := cmp.Diff(100.0, Weighted(all), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Weighted(all 100) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(25.0, Weighted(model.QualitySignals{Innovation: 100}), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Weighted(innovation only) mismatch (-want +got):\n%s", diff)
	}
}

func TestReasons(t *testing.T) {
	strong := model.QualitySignals{
		TechnicalDepth: 95, Innovation: 90, Uniqueness: 85, CodeComplexity: 80,
		AcademicReferences: 75, IndustryRelevance: 72, AuthorCredibility: 71,
	}
	got := reasons(model.Innovative, 78, strong, 90, 0.2)
	if len(got) != maxReasons {
		t.Fatalf("got %d reasons, want %d: %q", len(got), maxReasons, got)
	}
	want := []string{
		"novelty backed by depth (innovation 90, technical depth 95)",
		"strong technical depth (95)",
		"strong innovation (90)",
		"strong uniqueness (85)",
		"strong code complexity (80)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reasons mismatch (-want +got):\n%s", diff)
	}

	got = reasons(model.LowQuality, 30, model.QualitySignals{TechnicalDepth: 12}, 10, 0.3)
	want = []string{
		"score 30 meets the low_quality threshold",
		"low technical depth (12)",
		"low innovation (0)",
		"penalized for promotional or beginner phrasing (0.30)",
		"weak platform signals (10)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reasons mismatch (-want +got):\n%s", diff)
	}
}

func TestBlacklistPenalty(t *testing.T) {
	tests := []struct {
		name        string
		title, body string
		want        float64
		wantLabels  []string
	}{
		{name: "clean", title: "Streaming tool use in the Claude SDK", want: 0},
		{name: "single rule", title: "Step-by-step MCP server setup", want: 0.2, wantLabels: []string{"step by step"}},
		{name: "case insensitive", title: "HELLO WORLD agent", body: "Cheat sheet inside", want: 0.4, wantLabels: []string{"hello world", "cheat sheet"}},
		{name: "capped", title: "Giveaway", body: "buy now, click here, follow me for nft airdrop", want: 1, wantLabels: []string{"giveaway", "sales pitch", "call to action", "follow bait", "crypto"}},
		{name: "word boundary", title: "Tutorialspoint scraper", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, labels := blacklistPenalty(tt.title, tt.body)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("penalty mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantLabels, labels, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("labels mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCodeComplexity(t *testing.T) {
	trivial := strings.Repeat("print(\"hello\")\n", 8)
	structured := strings.Join([]string{
		"import asyncio",
		"",
		"class Pool:",
		"    async def run(self, jobs):",
		"        for job in jobs:",
		"            if job.ready:",
		"                await job.start()",
		"            else:",
		"                self.pending.append(job)",
	}, "\n")

	tests := []struct {
		name   string
		blocks []string
		want   float64
	}{
		{name: "no code", want: 0},
		{name: "blank block", blocks: []string{"\n\n"}, want: 0},
		// 8 lines and 8 trivial lines: 16 * (1 - 0.8).
		{name: "print only", blocks: []string{trivial}, want: 3.2},
		// 8 lines, control for/if/else, async asyncio/async/await, import, defs class/def.
		{name: "structured", blocks: []string{structured}, want: 16 + 18 + 24 + 5 + 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := codeComplexity(tt.blocks)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("codeComplexity() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlatformScorers(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	scorers := defaultScorers()

	tests := []struct {
		name string
		item model.ContentItem
		want float64
	}{
		{
			name: "repo with tests, ci and fresh push",
			item: model.ContentItem{Platform: model.CodeHost, Engagement: map[string]float64{
				model.EngStars: 9999, model.EngForks: 999,
				model.EngHasTests: 1, model.EngHasCI: 1,
				model.EngPushedAt: float64(now.Add(-48 * time.Hour).Unix()),
			}},
			want: 100,
		},
		{
			name: "bare repo",
			item: model.ContentItem{Platform: model.CodeHost},
			want: 0,
		},
		{
			name: "video in the long-form bucket",
			item: model.ContentItem{Platform: model.Video, Engagement: map[string]float64{
				model.EngViews: 1000, model.EngLikes: 50, model.EngSubscribers: 500,
				model.EngDuration: 20 * 60,
			}},
			want: 30 + 30 + 40,
		},
		{
			name: "short video without views",
			item: model.ContentItem{Platform: model.Video, Engagement: map[string]float64{model.EngDuration: 3 * 60}},
			want: 10,
		},
		{
			name: "thread with reposts",
			item: model.ContentItem{Platform: model.ShortForm, Engagement: map[string]float64{
				model.EngLikes: 100, model.EngRetweets: 20, model.EngThreadLen: 8,
			}},
			want: 30 + 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorers[tt.item.Platform].Score(tt.item, now)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("Score() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
