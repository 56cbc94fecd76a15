package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"content_scout/internal/model"
)

const (
	youTubeAPI   = "https://www.googleapis.com/youtube/v3"
	youTubeFeeds = "https://www.youtube.com/feeds/videos.xml"
)

// YouTube searches videos and reads channel feeds.
type YouTube struct {
	client  HTTPClient
	apiURL  string
	feedURL string
	key     string
}

// NewYouTube creates a YouTube source authenticated with an API key.
func NewYouTube(client HTTPClient, key string) *YouTube {
	return &YouTube{client: client, apiURL: youTubeAPI, feedURL: youTubeFeeds, key: key}
}

// WithBaseURLs points the source at other API and feed roots.
func (y *YouTube) WithBaseURLs(api, feed string) *YouTube {
	y.apiURL = strings.TrimRight(api, "/")
	y.feedURL = feed
	return y
}

func (y *YouTube) Platform() model.Platform { return model.Video }

type youTubePayload struct {
	Videos   json.RawMessage `json:"videos"`
	Channels json.RawMessage `json:"channels,omitempty"`
}

type youTubeSearch struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type youTubeVideos struct {
	Items []element[youTubeVideo] `json:"items"`
}

type youTubeVideo struct {
	ID      string `json:"id"`
	Snippet struct {
		Title        string    `json:"title"`
		Description  string    `json:"description"`
		ChannelID    string    `json:"channelId"`
		ChannelTitle string    `json:"channelTitle"`
		PublishedAt  time.Time `json:"publishedAt"`
		Tags         []string  `json:"tags"`
	} `json:"snippet"`
	Statistics struct {
		ViewCount    int64 `json:"viewCount,string"`
		LikeCount    int64 `json:"likeCount,string"`
		CommentCount int64 `json:"commentCount,string"`
	} `json:"statistics"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}

type youTubeChannels struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			SubscriberCount int64 `json:"subscriberCount,string"`
		} `json:"statistics"`
	} `json:"items"`
}

// Fetch resolves a search into video details and channel statistics, or
// reads a channel feed for author queries.
func (y *YouTube) Fetch(ctx context.Context, q model.SearchQuery) ([]byte, error) {
	if q.Kind == model.KindAuthor {
		body, err := get(ctx, y.client, y.feedURL+"?channel_id="+url.QueryEscape(q.Text), nil)
		if err != nil {
			return nil, fmt.Errorf("channel feed: %w", err)
		}
		return body, nil
	}

	v := url.Values{}
	v.Set("part", "id")
	v.Set("type", "video")
	v.Set("q", q.Text)
	v.Set("maxResults", strconv.Itoa(q.Limit))
	if q.Sort != "" {
		v.Set("order", q.Sort)
	}
	if !q.Since.IsZero() {
		v.Set("publishedAfter", q.Since.UTC().Format(time.RFC3339))
	}
	body, err := y.call(ctx, "search", v)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	var res youTubeSearch
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}

	var ids []string
	for _, it := range res.Items {
		if it.ID.VideoID != "" {
			ids = append(ids, it.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		return json.Marshal(youTubePayload{Videos: json.RawMessage(`{"items":[]}`)})
	}

	v = url.Values{}
	v.Set("part", "snippet,statistics,contentDetails")
	v.Set("id", strings.Join(ids, ","))
	videos, err := y.call(ctx, "videos", v)
	if err != nil {
		return nil, fmt.Errorf("videos: %w", err)
	}

	payload := youTubePayload{Videos: videos}
	var vs youTubeVideos
	if err := json.Unmarshal(videos, &vs); err != nil {
		return nil, fmt.Errorf("decode videos: %w", err)
	}
	seen := map[string]bool{}
	var channels []string
	for _, it := range vs.Items {
		if id := it.Value.Snippet.ChannelID; id != "" && !seen[id] {
			seen[id] = true
			channels = append(channels, id)
		}
	}
	if len(channels) > 0 {
		v = url.Values{}
		v.Set("part", "statistics")
		v.Set("id", strings.Join(channels, ","))
		ch, err := y.call(ctx, "channels", v)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		} else {
			payload.Channels = ch
		}
	}
	return json.Marshal(payload)
}

func (y *YouTube) call(ctx context.Context, endpoint string, v url.Values) ([]byte, error) {
	v.Set("key", y.key)
	h := http.Header{}
	h.Set("Accept", "application/json")
	return get(ctx, y.client, y.apiURL+"/"+endpoint+"?"+v.Encode(), h)
}

// Normalize maps either a channel feed or a search payload into items.
func (y *YouTube) Normalize(q model.SearchQuery, raw []byte) ([]model.ContentItem, error) {
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '<' {
		return normalizeChannelFeed(trimmed, q.Limit)
	}

	var payload youTubePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	var vs youTubeVideos
	if err := json.Unmarshal(payload.Videos, &vs); err != nil {
		return nil, fmt.Errorf("decode videos: %w", err)
	}
	subscribers := map[string]int64{}
	if len(payload.Channels) > 0 {
		var cs youTubeChannels
		if err := json.Unmarshal(payload.Channels, &cs); err == nil {
			for _, c := range cs.Items {
				subscribers[c.ID] = c.Statistics.SubscriberCount
			}
		}
	}

	items := make([]model.ContentItem, 0, len(vs.Items))
	for _, el := range vs.Items {
		v := el.Value
		if v.ID == "" {
			continue
		}
		subs := subscribers[v.Snippet.ChannelID]
		body := v.Snippet.Description
		if len(v.Snippet.Tags) > 0 {
			body += "\n\nTags: " + strings.Join(v.Snippet.Tags, ", ")
		}
		items = append(items, model.ContentItem{
			Raw:        el.Raw,
			PlatformID: v.ID,
			Platform:   model.Video,
			Title:      v.Snippet.Title,
			Body:       body,
			Author: model.Author{
				ID:        v.Snippet.ChannelID,
				Name:      v.Snippet.ChannelTitle,
				Followers: subs,
			},
			PublishedAt: v.Snippet.PublishedAt,
			Engagement: map[string]float64{
				model.EngViews:       float64(v.Statistics.ViewCount),
				model.EngLikes:       float64(v.Statistics.LikeCount),
				model.EngComments:    float64(v.Statistics.CommentCount),
				model.EngSubscribers: float64(subs),
				model.EngDuration:    parseISODuration(v.ContentDetails.Duration).Seconds(),
			},
			URLs: []string{"https://www.youtube.com/watch?v=" + v.ID},
		})
	}
	return items, nil
}

// normalizeChannelFeed maps at most limit feed entries into items. The feed
// has no page size, so the limit is applied here.
func normalizeChannelFeed(raw []byte, limit int) ([]model.ContentItem, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]model.ContentItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		id := extValue(it.Extensions, "yt", "videoId")
		if id == "" {
			id = strings.TrimPrefix(it.GUID, "yt:video:")
		}
		if id == "" {
			continue
		}

		item := model.ContentItem{
			PlatformID: id,
			Platform:   model.Video,
			Title:      it.Title,
			Author:     model.Author{ID: extValue(it.Extensions, "yt", "channelId")},
			Engagement: map[string]float64{},
			URLs:       []string{"https://www.youtube.com/watch?v=" + id},
		}
		if it.Author != nil {
			item.Author.Name = it.Author.Name
		} else if len(feed.Authors) > 0 {
			item.Author.Name = feed.Authors[0].Name
		}
		if it.PublishedParsed != nil {
			item.PublishedAt = *it.PublishedParsed
		}

		if group := firstExt(it.Extensions, "media", "group"); group != nil {
			if d := firstChild(group, "description"); d != nil {
				item.Body = d.Value
			}
			if community := firstChild(group, "community"); community != nil {
				if stats := firstChild(community, "statistics"); stats != nil {
					item.Engagement[model.EngViews] = parseFloat(stats.Attrs["views"])
				}
				if rating := firstChild(community, "starRating"); rating != nil {
					item.Engagement[model.EngLikes] = parseFloat(rating.Attrs["count"])
				}
			}
		}
		if item.Body == "" {
			item.Body = it.Description
		}
		if entry, err := json.Marshal(it); err == nil {
			item.Raw = entry
		}
		items = append(items, item)

		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items, nil
}

func firstExt(exts ext.Extensions, ns, name string) *ext.Extension {
	if exts == nil {
		return nil
	}
	list := exts[ns][name]
	if len(list) == 0 {
		return nil
	}
	return &list[0]
}

func firstChild(e *ext.Extension, name string) *ext.Extension {
	list := e.Children[name]
	if len(list) == 0 {
		return nil
	}
	return &list[0]
}

func extValue(exts ext.Extensions, ns, name string) string {
	if e := firstExt(exts, ns, name); e != nil {
		return strings.TrimSpace(e.Value)
	}
	return ""
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseISODuration parses the ISO 8601 durations the video API returns,
// such as PT1H2M3S. Unparseable input yields zero.
func parseISODuration(s string) time.Duration {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, u := range units {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		d += time.Duration(n) * u
	}
	return d
}
