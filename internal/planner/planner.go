// Package planner turns the topic vocabulary into a bounded set of search
// queries per platform and scan kind.
package planner

import (
	"fmt"
	"strings"
	"time"

	"content_scout/internal/model"
)

// Options bounds and tunes the generated queries.
type Options struct {
	MaxQueriesPerScan  int
	MaxResultsPerQuery int
	KeywordsPerQuery   int
	AuthorsPerQuery    int

	MinStars         int
	TrendingMinStars int
	MinLikes         float64
	TrendingMinLikes float64
	MinViews         float64
	TrendingMinViews float64
	TrendingWindow   time.Duration

	Now func() time.Time
}

// DefaultOptions returns the planner defaults.
func DefaultOptions() Options {
	return Options{
		MaxQueriesPerScan:  5,
		MaxResultsPerQuery: 10,
		KeywordsPerQuery:   3,
		AuthorsPerQuery:    5,
		MinStars:           10,
		TrendingMinStars:   50,
		MinLikes:           5,
		TrendingMinLikes:   50,
		MinViews:           1000,
		TrendingMinViews:   10000,
		TrendingWindow:     7 * 24 * time.Hour,
	}
}

// Negative terms keep beginner material out of video results.
var videoExclusions = []string{"-tutorial", "-beginner", "-beginners"}

// Planner builds queries. It is stateless apart from its configuration.
type Planner struct {
	vocab Vocabulary
	opts  Options
}

// New creates a Planner. Zero option fields take their defaults.
func New(vocab Vocabulary, opts Options) *Planner {
	def := DefaultOptions()
	if opts.MaxQueriesPerScan <= 0 {
		opts.MaxQueriesPerScan = def.MaxQueriesPerScan
	}
	if opts.MaxResultsPerQuery <= 0 {
		opts.MaxResultsPerQuery = def.MaxResultsPerQuery
	}
	if opts.KeywordsPerQuery <= 0 {
		opts.KeywordsPerQuery = def.KeywordsPerQuery
	}
	if opts.AuthorsPerQuery <= 0 {
		opts.AuthorsPerQuery = def.AuthorsPerQuery
	}
	if opts.TrendingWindow <= 0 {
		opts.TrendingWindow = def.TrendingWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Planner{vocab: vocab, opts: opts}
}

// MinRequest is the smallest request a scan can make on any platform.
func (p *Planner) MinRequest() int {
	return p.opts.MaxResultsPerQuery
}

// Plan returns at most MaxQueriesPerScan queries for the platform and kind.
// Each kind has its own ceiling so one kind never starves another.
func (p *Planner) Plan(platform model.Platform, kind model.ScanKind) []model.SearchQuery {
	var qs []model.SearchQuery
	switch kind {
	case model.KindTargeted:
		qs = p.targeted(platform)
	case model.KindTrending:
		qs = p.trending(platform)
	case model.KindAuthor:
		qs = p.authors(platform)
	}
	if len(qs) > p.opts.MaxQueriesPerScan {
		qs = qs[:p.opts.MaxQueriesPerScan]
	}
	return qs
}

func (p *Planner) targeted(platform model.Platform) []model.SearchQuery {
	var out []model.SearchQuery
	for _, group := range p.groups() {
		q := p.base(platform, model.KindTargeted)
		switch platform {
		case model.CodeHost:
			q.Text = fmt.Sprintf("%s stars:>=%d", disjunction(group, " OR "), p.opts.MinStars)
		case model.ShortForm:
			q.Text = disjunction(group, " OR ") + " -is:retweet -is:reply lang:en"
			q.MinEngagement = p.opts.MinLikes
			q.Sort = "recency"
		case model.Video:
			q.Text = disjunction(group, "|") + " " + strings.Join(videoExclusions, " ")
			q.MinEngagement = p.opts.MinViews
			q.Sort = "relevance"
		default:
			return nil
		}
		out = append(out, q)
	}
	return out
}

func (p *Planner) trending(platform model.Platform) []model.SearchQuery {
	since := p.opts.Now().UTC().Add(-p.opts.TrendingWindow).Truncate(24 * time.Hour)
	var out []model.SearchQuery
	for _, group := range p.groups() {
		q := p.base(platform, model.KindTrending)
		switch platform {
		case model.CodeHost:
			q.Text = fmt.Sprintf("%s stars:>=%d created:>%s",
				disjunction(group, " OR "), p.opts.TrendingMinStars, since.Format("2006-01-02"))
			q.Sort = "stars"
			q.Since = since
		case model.ShortForm:
			q.Text = disjunction(group, " OR ") + " -is:retweet -is:reply lang:en"
			// Recent search already covers the last seven days.
			q.MinEngagement = p.opts.TrendingMinLikes
			q.Sort = "relevancy"
		case model.Video:
			q.Text = disjunction(group, "|") + " " + strings.Join(videoExclusions, " ")
			q.MinEngagement = p.opts.TrendingMinViews
			q.Sort = "viewCount"
			q.Since = since
		default:
			return nil
		}
		out = append(out, q)
	}
	return out
}

func (p *Planner) authors(platform model.Platform) []model.SearchQuery {
	authors := p.vocab.Authors[platform]
	if len(authors) == 0 {
		return nil
	}

	var out []model.SearchQuery
	switch platform {
	case model.CodeHost:
		for _, chunk := range chunks(authors, p.opts.AuthorsPerQuery) {
			q := p.base(platform, model.KindAuthor)
			parts := make([]string, len(chunk))
			for i, a := range chunk {
				parts[i] = "user:" + a
			}
			q.Text = strings.Join(parts, " ")
			q.Sort = "updated"
			out = append(out, q)
		}
	case model.ShortForm:
		for _, chunk := range chunks(authors, p.opts.AuthorsPerQuery) {
			q := p.base(platform, model.KindAuthor)
			parts := make([]string, len(chunk))
			for i, a := range chunk {
				parts[i] = "from:" + a
			}
			q.Text = "(" + strings.Join(parts, " OR ") + ") -is:retweet -is:reply"
			q.Sort = "recency"
			out = append(out, q)
		}
	case model.Video:
		// Channel feeds are read one channel at a time.
		for _, channelID := range authors {
			q := p.base(platform, model.KindAuthor)
			q.Text = channelID
			out = append(out, q)
		}
	}
	return out
}

func (p *Planner) base(platform model.Platform, kind model.ScanKind) model.SearchQuery {
	return model.SearchQuery{
		Platform: platform,
		Kind:     kind,
		Limit:    p.opts.MaxResultsPerQuery,
	}
}

// groups packs keywords first, then advanced patterns, into groups of
// KeywordsPerQuery terms.
func (p *Planner) groups() [][]string {
	var terms []string
	for _, k := range p.vocab.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			terms = append(terms, k)
		}
	}
	out := chunks(terms, p.opts.KeywordsPerQuery)

	var patterns []string
	for _, k := range p.vocab.AdvancedPatterns {
		if k = strings.TrimSpace(k); k != "" {
			patterns = append(patterns, k)
		}
	}
	return append(out, chunks(patterns, p.opts.KeywordsPerQuery)...)
}

func disjunction(terms []string, sep string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = quote(t)
	}
	if len(quoted) == 1 {
		return quoted[0]
	}
	return "(" + strings.Join(quoted, sep) + ")"
}

func quote(term string) string {
	if strings.ContainsAny(term, " \t") {
		return `"` + strings.ReplaceAll(term, `"`, "") + `"`
	}
	return term
}

func chunks(items []string, size int) [][]string {
	var out [][]string
	for len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n:n])
		items = items[n:]
	}
	return out
}
