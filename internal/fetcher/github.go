package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"content_scout/internal/model"
)

const gitHubAPI = "https://api.github.com"

// GitHub searches repositories on the code host.
type GitHub struct {
	client  HTTPClient
	baseURL string
	token   string
	// readmes is how many top results get their README inspected. README
	// reads are billed to the core budget, not the search budget.
	readmes int
}

// NewGitHub creates a GitHub source.
func NewGitHub(client HTTPClient, token string) *GitHub {
	return &GitHub{client: client, baseURL: gitHubAPI, token: token, readmes: 5}
}

// WithBaseURL points the source at another API root.
func (g *GitHub) WithBaseURL(u string) *GitHub {
	g.baseURL = strings.TrimRight(u, "/")
	return g
}

func (g *GitHub) Platform() model.Platform { return model.CodeHost }

type gitHubPayload struct {
	Search  json.RawMessage   `json:"search"`
	Readmes map[string]string `json:"readmes,omitempty"`
}

type gitHubSearch struct {
	Items []gitHubRepo `json:"items"`
}

type gitHubRepo struct {
	ID              int64     `json:"id"`
	FullName        string    `json:"full_name"`
	Description     string    `json:"description"`
	HTMLURL         string    `json:"html_url"`
	Homepage        string    `json:"homepage"`
	Language        string    `json:"language"`
	Topics          []string  `json:"topics"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	WatchersCount   int       `json:"watchers_count"`
	OpenIssuesCount int       `json:"open_issues_count"`
	CreatedAt       time.Time `json:"created_at"`
	PushedAt        time.Time `json:"pushed_at"`
	Owner           struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Type  string `json:"type"`
	} `json:"owner"`
}

func (g *GitHub) header(accept string) http.Header {
	h := http.Header{}
	h.Set("Accept", accept)
	h.Set("X-GitHub-Api-Version", "2022-11-28")
	if g.token != "" {
		h.Set("Authorization", "Bearer "+g.token)
	}
	return h
}

// Fetch runs the repository search and reads the READMEs of the top results.
func (g *GitHub) Fetch(ctx context.Context, q model.SearchQuery) ([]byte, error) {
	v := url.Values{}
	v.Set("q", q.Text)
	v.Set("per_page", strconv.Itoa(q.Limit))
	if q.Sort != "" {
		v.Set("sort", q.Sort)
		v.Set("order", "desc")
	}

	body, err := get(ctx, g.client, g.baseURL+"/search/repositories?"+v.Encode(), g.header("application/vnd.github+json"))
	if err != nil {
		return nil, fmt.Errorf("search repositories: %w", err)
	}

	var res gitHubSearch
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}

	payload := gitHubPayload{Search: body, Readmes: map[string]string{}}
	for i, repo := range res.Items {
		if i >= g.readmes {
			break
		}
		html, err := get(ctx, g.client, g.baseURL+"/repos/"+repo.FullName+"/readme", g.header("application/vnd.github.html+json"))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Missing READMEs are common and only lower the score.
			continue
		}
		payload.Readmes[repo.FullName] = string(html)
	}

	return json.Marshal(payload)
}

// Normalize maps the search payload into items.
func (g *GitHub) Normalize(_ model.SearchQuery, raw []byte) ([]model.ContentItem, error) {
	var payload gitHubPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if len(payload.Search) == 0 {
		return nil, fmt.Errorf("payload has no search result")
	}
	var res struct {
		Items []element[gitHubRepo] `json:"items"`
	}
	if err := json.Unmarshal(payload.Search, &res); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}

	items := make([]model.ContentItem, 0, len(res.Items))
	for _, el := range res.Items {
		repo := el.Value
		if repo.ID == 0 {
			continue
		}
		item := model.ContentItem{
			Raw:         el.Raw,
			PlatformID:  strconv.FormatInt(repo.ID, 10),
			Platform:    model.CodeHost,
			Title:       repo.FullName,
			Author:      model.Author{ID: repo.Owner.Login, Name: repo.Owner.Login},
			PublishedAt: repo.CreatedAt,
			Engagement: map[string]float64{
				model.EngStars:      float64(repo.StargazersCount),
				model.EngForks:      float64(repo.ForksCount),
				model.EngWatchers:   float64(repo.WatchersCount),
				model.EngOpenIssues: float64(repo.OpenIssuesCount),
			},
		}
		if !repo.PushedAt.IsZero() {
			item.Engagement[model.EngPushedAt] = float64(repo.PushedAt.Unix())
		}
		item.URLs = appendURL(item.URLs, repo.HTMLURL)
		item.URLs = appendURL(item.URLs, repo.Homepage)

		var body strings.Builder
		body.WriteString(repo.Description)
		if len(repo.Topics) > 0 {
			body.WriteString("\n\nTopics: " + strings.Join(repo.Topics, ", "))
		}
		if repo.Language != "" {
			body.WriteString("\nLanguage: " + repo.Language)
		}

		if html, ok := payload.Readmes[repo.FullName]; ok {
			if rd, err := parseReadme(html); err == nil {
				body.WriteString("\n\n" + rd.Text)
				for _, code := range rd.Code {
					body.WriteString("\n\n```\n" + code + "\n```")
				}
				for _, l := range rd.Links {
					item.URLs = appendURL(item.URLs, l)
				}
				item.Engagement[model.EngHasTests] = boolMetric(rd.HasTests)
				item.Engagement[model.EngHasCI] = boolMetric(rd.HasCI)
			}
		}
		item.Body = body.String()
		items = append(items, item)
	}
	return items, nil
}

func appendURL(urls []string, u string) []string {
	u = strings.TrimSpace(u)
	if u == "" {
		return urls
	}
	for _, existing := range urls {
		if existing == u {
			return urls
		}
	}
	return append(urls, u)
}

func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
