package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"content_scout/internal/model"
)

const twitterAPI = "https://api.twitter.com/2"

// Twitter runs recent search on the short-form platform.
type Twitter struct {
	client  HTTPClient
	baseURL string
	token   string
}

// NewTwitter creates a short-form source authenticated with a bearer token.
func NewTwitter(client HTTPClient, token string) *Twitter {
	return &Twitter{client: client, baseURL: twitterAPI, token: token}
}

// WithBaseURL points the source at another API root.
func (t *Twitter) WithBaseURL(u string) *Twitter {
	t.baseURL = strings.TrimRight(u, "/")
	return t
}

func (t *Twitter) Platform() model.Platform { return model.ShortForm }

type tweetSearch struct {
	Data     []element[tweet] `json:"data"`
	Includes struct {
		Users []struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			Username      string `json:"username"`
			Verified      bool   `json:"verified"`
			PublicMetrics struct {
				FollowersCount int64 `json:"followers_count"`
			} `json:"public_metrics"`
		} `json:"users"`
	} `json:"includes"`
}

type tweet struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	AuthorID       string    `json:"author_id"`
	CreatedAt      time.Time `json:"created_at"`
	ConversationID string    `json:"conversation_id"`
	PublicMetrics  struct {
		RetweetCount int64 `json:"retweet_count"`
		ReplyCount   int64 `json:"reply_count"`
		LikeCount    int64 `json:"like_count"`
		QuoteCount   int64 `json:"quote_count"`
	} `json:"public_metrics"`
	Entities struct {
		URLs []struct {
			ExpandedURL string `json:"expanded_url"`
		} `json:"urls"`
	} `json:"entities"`
}

// Fetch calls recent search with author expansions.
func (t *Twitter) Fetch(ctx context.Context, q model.SearchQuery) ([]byte, error) {
	v := url.Values{}
	v.Set("query", q.Text)
	// The endpoint rejects max_results outside [10, 100].
	v.Set("max_results", strconv.Itoa(min(max(q.Limit, 10), 100)))
	v.Set("tweet.fields", "created_at,public_metrics,author_id,conversation_id,entities")
	v.Set("expansions", "author_id")
	v.Set("user.fields", "name,username,verified,public_metrics")
	if q.Sort != "" {
		v.Set("sort_order", q.Sort)
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+t.token)
	body, err := get(ctx, t.client, t.baseURL+"/tweets/search/recent?"+v.Encode(), h)
	if err != nil {
		return nil, fmt.Errorf("recent search: %w", err)
	}
	return body, nil
}

// Normalize maps a recent search response into items.
func (t *Twitter) Normalize(q model.SearchQuery, raw []byte) ([]model.ContentItem, error) {
	var res tweetSearch
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}

	type user struct {
		model.Author
		username string
	}
	users := make(map[string]user, len(res.Includes.Users))
	for _, u := range res.Includes.Users {
		users[u.ID] = user{
			Author: model.Author{
				ID:        u.ID,
				Name:      u.Name,
				Followers: u.PublicMetrics.FollowersCount,
				Verified:  u.Verified,
			},
			username: u.Username,
		}
	}

	items := make([]model.ContentItem, 0, len(res.Data))
	for _, el := range res.Data {
		tw := el.Value
		if tw.ID == "" {
			continue
		}
		u, ok := users[tw.AuthorID]
		if !ok {
			u = user{Author: model.Author{ID: tw.AuthorID}}
		}
		if u.username != "" {
			u.Author.Name = u.username
		}

		item := model.ContentItem{
			Raw:         el.Raw,
			PlatformID:  tw.ID,
			Platform:    model.ShortForm,
			Title:       headline(tw.Text),
			Body:        tw.Text,
			Author:      u.Author,
			PublishedAt: tw.CreatedAt,
			Engagement: map[string]float64{
				model.EngRetweets:    float64(tw.PublicMetrics.RetweetCount),
				model.EngReplies:     float64(tw.PublicMetrics.ReplyCount),
				model.EngLikes:       float64(tw.PublicMetrics.LikeCount),
				model.EngQuotes:      float64(tw.PublicMetrics.QuoteCount),
				model.EngThreadLen:   float64(threadLength(tw.Text)),
				model.EngSubscribers: float64(u.Followers),
			},
		}
		for _, e := range tw.Entities.URLs {
			item.URLs = appendURL(item.URLs, e.ExpandedURL)
		}
		handle := u.username
		if handle == "" {
			handle = "i"
		}
		item.URLs = appendURL(item.URLs, "https://x.com/"+handle+"/status/"+tw.ID)
		items = append(items, item)

		if q.Limit > 0 && len(items) == q.Limit {
			break
		}
	}
	return items, nil
}

var threadMarker = regexp.MustCompile(`(?:^|\s)(\d{1,2})\s*/\s*(\d{1,2})(?:\s|$|[.:)])`)

// threadLength estimates how many posts the thread has from "n/m" markers
// and the thread emoji.
func threadLength(text string) int {
	if m := threadMarker.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		if n >= 1 && total >= 2 && n <= total {
			return total
		}
	}
	if strings.Contains(text, "🧵") || strings.Contains(strings.ToLower(text), "a thread") {
		return 2
	}
	return 1
}

// headline returns the first line of text, truncated to 100 runes.
func headline(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	if utf8.RuneCountInString(line) <= 100 {
		return line
	}
	r := []rune(line)
	return string(r[:100]) + "…"
}
