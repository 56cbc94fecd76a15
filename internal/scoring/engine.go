// Package scoring rates discovered content on independent quality signals and
// classifies it into a quality tier.
package scoring

import (
	"math"
	"strings"
	"time"

	"content_scout/internal/model"
)

// Short-circuit thresholds of the blacklist stage.
const (
	shortCircuitPenalty = 0.8
	spamPenalty         = 0.95
	spamScore           = 5
	lowQualityScore     = 15
)

// Options configures an Engine.
type Options struct {
	// Now is the reference time for freshness and recency.
	Now func() time.Time
	// KnownAuthors raise author credibility. Matched case-insensitively
	// against author IDs and names.
	KnownAuthors []string
	// TopicKeywords and AdvancedPatterns describe the monitored topic.
	TopicKeywords    []string
	AdvancedPatterns []string
	// Scorers overrides the per-platform scorers.
	Scorers map[model.Platform]PlatformScorer
}

// Engine scores content items. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	now      func() time.Time
	known    map[string]struct{}
	topic    []string
	patterns []string
	scorers  map[model.Platform]PlatformScorer
}

// New creates an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		now:     opts.Now,
		known:   make(map[string]struct{}, len(opts.KnownAuthors)),
		scorers: defaultScorers(),
	}
	if e.now == nil {
		e.now = time.Now
	}
	for _, a := range opts.KnownAuthors {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			e.known[a] = struct{}{}
		}
	}
	e.topic = lowerAll(opts.TopicKeywords)
	e.patterns = lowerAll(opts.AdvancedPatterns)
	for p, s := range opts.Scorers {
		e.scorers[p] = s
	}
	return e
}

// Analyze scores one item. It never fails: missing fields degrade the
// signals that depend on them to zero.
func (e *Engine) Analyze(item model.ContentItem) model.ContentAnalysis {
	penalty, matched := blacklistPenalty(item.Title, item.Body)
	if penalty > shortCircuitPenalty {
		tier, score := model.LowQuality, lowQualityScore
		if penalty >= spamPenalty {
			tier, score = model.Spam, spamScore
		}
		return model.ContentAnalysis{
			Quality:    tier,
			Score:      score,
			Reasons:    []string{"matched blacklisted phrasing: " + strings.Join(matched, ", ")},
			Confidence: round3(penalty),
		}
	}

	now := e.now()
	st := analyzeText(item.Title, item.Body, item.URLs)
	code := codeComplexity(st.codeBlocks)
	lower := strings.ToLower(item.Title + "\n" + item.Body)

	var platformScore, engagement float64
	if sc, ok := e.scorers[item.Platform]; ok {
		platformScore = sc.Score(item, now)
		engagement = sc.Engagement(item)
	}

	signals := model.QualitySignals{
		TechnicalDepth: clip(
			8*float64(st.techHits)+0.4*code+20*st.textComplexity()-10*float64(st.negHits), 0, 100),
		Innovation:          clip(e.innovation(st, lower), 0, 100),
		Uniqueness:          clip(e.uniqueness(st, penalty), 0, 100),
		CodeComplexity:      code,
		AcademicReferences:  clip(25*float64(st.referenceHits), 0, 100),
		IndustryRelevance:   clip(15*float64(countDistinct(lower, e.topic))+10*float64(st.industryHits), 0, 100),
		AuthorCredibility:   clip(e.credibility(item.Author), 0, 100),
		CommunityEngagement: engagement,
		Freshness:           clip(freshness(item, now), 0, 100),
	}
	signals = roundSignals(signals)

	ml := 100 * (st.textComplexity() +
		st.vocabularyDiversity() +
		st.sentenceVariability() +
		st.technicalTermDensity() +
		clamp01(float64(st.referenceHits)/4) +
		st.structuralComplexity()) / 6

	final := 0.6*Weighted(signals) + 0.2*platformScore + 0.2*ml
	final *= 1 - 0.5*penalty
	score := int(math.Round(clip(final, 0, 100)))

	tier := Classify(score, signals)
	return model.ContentAnalysis{
		Quality:    tier,
		Score:      score,
		Signals:    signals,
		Reasons:    reasons(tier, score, signals, platformScore, penalty),
		Confidence: confidence(signals, ml),
	}
}

func (e *Engine) innovation(st textStats, lower string) float64 {
	s := 15*float64(st.noveltyHits) + 8*float64(st.innovHits)
	// Research structure counts only when several markers co-occur.
	if st.researchHits >= 2 {
		s += 25
	}
	s += 10 * float64(countDistinct(lower, e.patterns))
	return s
}

func (e *Engine) uniqueness(st textStats, penalty float64) float64 {
	s := 70*st.vocabularyDiversity() + 30*(1-penalty)
	// Very short texts are trivially diverse.
	if st.words < 20 {
		s *= float64(st.words) / 20
	}
	return s
}

func (e *Engine) credibility(a model.Author) float64 {
	s := 15 * log10p(float64(a.Followers))
	if a.Verified {
		s += 15
	}
	if e.isKnown(a) {
		s += 40
	}
	return s
}

func (e *Engine) isKnown(a model.Author) bool {
	for _, k := range []string{a.ID, a.Name} {
		if k == "" {
			continue
		}
		if _, ok := e.known[strings.ToLower(k)]; ok {
			return true
		}
	}
	return false
}

// freshness uses the most recent of publication and last push: 100 within a
// week, falling to 0 after a year.
func freshness(item model.ContentItem, now time.Time) float64 {
	latest := item.PublishedAt
	if pushed := item.Metric(model.EngPushedAt); pushed > 0 {
		if t := time.Unix(int64(pushed), 0); t.After(latest) {
			latest = t
		}
	}
	if latest.IsZero() {
		return 0
	}
	return 100 * decay(ageDays(latest, now), 7, 365)
}

func roundSignals(s model.QualitySignals) model.QualitySignals {
	r := func(x float64) float64 { return math.Round(x*100) / 100 }
	return model.QualitySignals{
		TechnicalDepth:      r(s.TechnicalDepth),
		Innovation:          r(s.Innovation),
		Uniqueness:          r(s.Uniqueness),
		CodeComplexity:      r(s.CodeComplexity),
		AcademicReferences:  r(s.AcademicReferences),
		IndustryRelevance:   r(s.IndustryRelevance),
		AuthorCredibility:   r(s.AuthorCredibility),
		CommunityEngagement: r(s.CommunityEngagement),
		Freshness:           r(s.Freshness),
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
