package scoring

import (
	"math"
	"time"

	"content_scout/internal/model"
)

// PlatformScorer turns platform-native signals into a 0-100 contribution.
type PlatformScorer interface {
	// Score rates the item using signals only its platform has.
	Score(item model.ContentItem, now time.Time) float64
	// Engagement rates community reaction on the platform's own scale.
	Engagement(item model.ContentItem) float64
}

func defaultScorers() map[model.Platform]PlatformScorer {
	return map[model.Platform]PlatformScorer{
		model.CodeHost:  codeHostScorer{},
		model.Video:     videoScorer{},
		model.ShortForm: shortFormScorer{},
	}
}

type codeHostScorer struct{}

func (codeHostScorer) Score(item model.ContentItem, now time.Time) float64 {
	s := 30*clamp01(log10p(item.Metric(model.EngStars))/4) +
		15*clamp01(log10p(item.Metric(model.EngForks))/3)
	if item.Metric(model.EngHasTests) > 0 {
		s += 20
	}
	if item.Metric(model.EngHasCI) > 0 {
		s += 15
	}
	if pushed := item.Metric(model.EngPushedAt); pushed > 0 {
		age := ageDays(time.Unix(int64(pushed), 0), now)
		s += 20 * decay(age, 30, 365)
	}
	return clip(s, 0, 100)
}

func (codeHostScorer) Engagement(item model.ContentItem) float64 {
	return clip(20*log10p(item.Metric(model.EngStars))+10*log10p(item.Metric(model.EngForks)), 0, 100)
}

type videoScorer struct{}

func (videoScorer) Score(item model.ContentItem, _ time.Time) float64 {
	views := item.Metric(model.EngViews)
	var s float64
	if views > 0 {
		s += 30 * clamp01(item.Metric(model.EngLikes)/views/0.05)
		subs := math.Max(item.Metric(model.EngSubscribers), 1)
		s += 30 * clamp01(views/subs)
	}

	d := time.Duration(item.Metric(model.EngDuration)) * time.Second
	switch {
	case d < time.Minute:
	case d < 5*time.Minute:
		s += 10
	case d < 10*time.Minute:
		s += 25
	case d <= 90*time.Minute:
		s += 40
	default:
		s += 30
	}
	return clip(s, 0, 100)
}

func (videoScorer) Engagement(item model.ContentItem) float64 {
	return clip(12*log10p(item.Metric(model.EngViews))+8*log10p(item.Metric(model.EngLikes))+5*log10p(item.Metric(model.EngComments)), 0, 100)
}

type shortFormScorer struct{}

func (shortFormScorer) Score(item model.ContentItem, _ time.Time) float64 {
	likes := math.Max(item.Metric(model.EngLikes), 1)
	s := 30 * clamp01(item.Metric(model.EngRetweets)/likes/0.2)

	thread := item.Metric(model.EngThreadLen)
	if thread > 1 {
		s += 30 * clamp01((thread-1)/7)
	}
	s += 40 * clamp01(log10p(float64(item.Author.Followers))/5)
	return clip(s, 0, 100)
}

func (shortFormScorer) Engagement(item model.ContentItem) float64 {
	return clip(20*log10p(item.Metric(model.EngLikes))+15*log10p(item.Metric(model.EngRetweets))+5*log10p(item.Metric(model.EngReplies)), 0, 100)
}

func log10p(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Log10(1 + x)
}

func ageDays(t, now time.Time) float64 {
	if t.IsZero() {
		return math.Inf(1)
	}
	return now.Sub(t).Hours() / 24
}

// decay is 1 up to full days, then falls linearly to 0 at zero days.
func decay(age, full, zero float64) float64 {
	switch {
	case age <= full:
		return 1
	case age >= zero:
		return 0
	default:
		return 1 - (age-full)/(zero-full)
	}
}
