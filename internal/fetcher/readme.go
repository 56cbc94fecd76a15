package fetcher

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxReadmeText = 20000

// readme is what the scorer cares about in a rendered README.
type readme struct {
	Text     string
	Code     []string
	Links    []string
	HasTests bool
	HasCI    bool
}

var ciMarkers = []string{
	"actions/workflows",
	"/workflows/",
	"travis-ci",
	"circleci",
	"buildkite",
	"gitlab-ci",
}

var testMarkers = []string{
	"go test",
	"pytest",
	"npm test",
	"npm run test",
	"cargo test",
	"make test",
	"unit tests",
	"test suite",
	"codecov",
	"coveralls",
}

// parseReadme extracts prose, code blocks, links and build/test markers from
// README HTML as rendered by the code host.
func parseReadme(html string) (readme, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return readme{}, err
	}

	var r readme
	doc.Find("pre").Each(func(_ int, s *goquery.Selection) {
		if code := strings.TrimSpace(s.Text()); code != "" {
			r.Code = append(r.Code, code)
		}
	})

	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			return
		}
		if !seen[href] {
			seen[href] = true
			r.Links = append(r.Links, href)
		}
		if containsAny(strings.ToLower(href), ciMarkers) {
			r.HasCI = true
		}
	})

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		src = strings.ToLower(src)
		if containsAny(src, ciMarkers) {
			r.HasCI = true
		}
		if strings.Contains(src, "codecov") || strings.Contains(src, "coveralls") {
			r.HasTests = true
		}
	})

	lowerCode := strings.ToLower(strings.Join(r.Code, "\n"))
	doc.Find("pre").Remove()
	text := strings.Join(strings.Fields(doc.Text()), " ")
	lowerText := strings.ToLower(text)

	if containsAny(lowerText, testMarkers) || containsAny(lowerCode, testMarkers) {
		r.HasTests = true
	}
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		h := strings.ToLower(s.Text())
		if strings.Contains(h, "test") {
			r.HasTests = true
		}
	})

	r.Text = truncateBytes(text, maxReadmeText)
	return r, nil
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
