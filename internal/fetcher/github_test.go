package fetcher

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"content_scout/internal/model"
)

func newGitHubFixture(t *testing.T) (*GitHub, *routeTransport) {
	t.Helper()
	rt := &routeTransport{routes: map[string]*mockTransport{
		"/search/repositories":                {body: loadFixture(t, "../../testdata/github_search.json"), statusCode: 200},
		"/repos/acme/mcp-orchestrator/readme": {body: loadFixture(t, "../../testdata/github_readme.html"), statusCode: 200},
	}}
	return NewGitHub(rt, "tok").WithBaseURL("https://api.test/"), rt
}

func TestGitHubFetchAndNormalize(t *testing.T) {
	g, rt := newGitHubFixture(t)
	q := model.SearchQuery{Platform: model.CodeHost, Kind: model.KindTrending, Text: "claude stars:>=50", Limit: 10, Sort: "stars"}

	raw, err := g.Fetch(context.Background(), q)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	first := rt.requests[0]
	if diff := cmp.Diff("Bearer tok", first.Header.Get("Authorization")); diff != "" {
		t.Errorf("auth header mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("claude stars:>=50", first.URL.Query().Get("q")); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("stars", first.URL.Query().Get("sort")); diff != "" {
		t.Errorf("sort mismatch (-want +got):\n%s", diff)
	}
	if got := first.Header.Get("User-Agent"); got != userAgent {
		t.Errorf("User-Agent = %q", got)
	}

	items, err := g.Normalize(q, raw)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if diff := cmp.Diff([]string{"901", "902"}, ids(items)); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(ids(items), rawIDs(t, items)); diff != "" {
		t.Errorf("raw record ids mismatch (-want +got):\n%s", diff)
	}

	repo := items[0]
	wantEngagement := map[string]float64{
		model.EngStars:      1250,
		model.EngForks:      88,
		model.EngWatchers:   1250,
		model.EngOpenIssues: 12,
		model.EngPushedAt:   float64(time.Date(2026, 3, 9, 18, 30, 0, 0, time.UTC).Unix()),
		model.EngHasTests:   1,
		model.EngHasCI:      1,
	}
	if diff := cmp.Diff(wantEngagement, repo.Engagement); diff != "" {
		t.Errorf("engagement mismatch (-want +got):\n%s", diff)
	}
	wantURLs := []string{
		"https://github.com/acme/mcp-orchestrator",
		"https://acme.dev/mcp",
		"https://github.com/acme/mcp-orchestrator/actions/workflows/ci.yml",
		"https://codecov.io/gh/acme/mcp-orchestrator",
		"https://arxiv.org/abs/2601.01234",
	}
	if diff := cmp.Diff(wantURLs, repo.URLs); diff != "" {
		t.Errorf("urls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(model.Author{ID: "acme", Name: "acme"}, repo.Author); diff != "" {
		t.Errorf("author mismatch (-want +got):\n%s", diff)
	}
	for _, want := range []string{"Multi-agent orchestration", "Topics: mcp, agents, claude", "```\nimport", "go test -race"} {
		if !strings.Contains(repo.Body, want) {
			t.Errorf("body missing %q", want)
		}
	}

	// A repository without a README degrades to zero markers.
	if got := items[1].Metric(model.EngHasTests); got != 0 {
		t.Errorf("has_tests without readme = %v", got)
	}
}

func TestGitHubNormalizeMalformed(t *testing.T) {
	g := NewGitHub(&mockTransport{}, "")
	for _, raw := range []string{"not json", `{"readmes":{}}`, `{"search":"oops"}`} {
		if _, err := g.Normalize(model.SearchQuery{}, []byte(raw)); err == nil {
			t.Errorf("Normalize(%q) expected error", raw)
		}
	}
}

func TestGitHubFetchSearchError(t *testing.T) {
	g := NewGitHub(&mockTransport{body: `{"message":"rate limited"}`, statusCode: 403}, "tok")
	if _, err := g.Fetch(context.Background(), model.SearchQuery{Text: "claude", Limit: 10}); err == nil {
		t.Fatal("expected error for 403")
	}
}

func TestParseReadme(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantTests bool
		wantCI    bool
		wantCode  int
	}{
		{
			name:      "fixture",
			html:      loadFixture(t, "../../testdata/github_readme.html"),
			wantTests: true,
			wantCI:    true,
			wantCode:  2,
		},
		{
			name: "plain prose",
			html: "<p>Just some notes about prompts.</p>",
		},
		{
			name:   "travis badge",
			html:   `<img src="https://travis-ci.org/x/y.svg">`,
			wantCI: true,
		},
		{
			name:      "pytest in code",
			html:      "<pre><code>pip install -e . &amp;&amp; pytest</code></pre>",
			wantTests: true,
			wantCode:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := parseReadme(tt.html)
			if err != nil {
				t.Fatalf("parseReadme() error: %v", err)
			}
			got := []any{r.HasTests, r.HasCI, len(r.Code)}
			want := []any{tt.wantTests, tt.wantCI, tt.wantCode}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("readme markers (tests, ci, code) mismatch (-want +got):\n%s", diff)
			}
			if strings.Contains(r.Text, "func main") {
				t.Error("code blocks must not leak into prose text")
			}
		})
	}
}

func TestParseReadmeTruncatesOnRuneBoundary(t *testing.T) {
	// One ASCII byte shifts every two-byte rune so the limit falls inside one.
	html := "<p>a" + strings.Repeat("ż", maxReadmeText/2) + "</p>"
	r, err := parseReadme(html)
	if err != nil {
		t.Fatalf("parseReadme() error: %v", err)
	}
	if !utf8.ValidString(r.Text) {
		t.Error("truncated text is not valid UTF-8")
	}
	if diff := cmp.Diff(maxReadmeText-1, len(r.Text)); diff != "" {
		t.Errorf("text length mismatch (-want +got):\n%s", diff)
	}
}

func TestTruncateBytes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "abc", n: 5, want: "abc"},
		{name: "ascii cut", in: "abcdef", n: 4, want: "abcd"},
		{name: "inside rune", in: "aż", n: 2, want: "a"},
		{name: "after rune", in: "ażb", n: 3, want: "aż"},
		{name: "inside emoji", in: "🧵x", n: 3, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, truncateBytes(tt.in, tt.n)); diff != "" {
				t.Errorf("truncateBytes(%q, %d) mismatch (-want +got):\n%s", tt.in, tt.n, diff)
			}
		})
	}
}
