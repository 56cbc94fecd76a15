package scoring

import (
	"fmt"
	"math"
	"sort"

	"content_scout/internal/model"
)

// Signal weights of the final score. They sum to 1.
const (
	WeightTechnicalDepth      = 0.20
	WeightInnovation          = 0.25
	WeightUniqueness          = 0.10
	WeightCodeComplexity      = 0.15
	WeightAcademicReferences  = 0.05
	WeightIndustryRelevance   = 0.10
	WeightAuthorCredibility   = 0.05
	WeightCommunityEngagement = 0.05
	WeightFreshness           = 0.05
)

// Weighted returns the fixed weighted sum of the signals.
func Weighted(s model.QualitySignals) float64 {
	return WeightTechnicalDepth*s.TechnicalDepth +
		WeightInnovation*s.Innovation +
		WeightUniqueness*s.Uniqueness +
		WeightCodeComplexity*s.CodeComplexity +
		WeightAcademicReferences*s.AcademicReferences +
		WeightIndustryRelevance*s.IndustryRelevance +
		WeightAuthorCredibility*s.AuthorCredibility +
		WeightCommunityEngagement*s.CommunityEngagement +
		WeightFreshness*s.Freshness
}

// Classify maps a final score and its signals to a tier. The Innovative check
// runs before the plain thresholds, so a moderate score with strong novelty
// and depth still classifies as Innovative.
func Classify(score int, s model.QualitySignals) model.QualityTier {
	switch {
	case score < 20 && s.TechnicalDepth < 10:
		return model.Spam
	case s.Innovation > 80 && s.TechnicalDepth > 70:
		return model.Innovative
	case score >= 80:
		return model.Advanced
	case score >= 60:
		return model.Intermediate
	case score >= 40:
		return model.Basic
	default:
		return model.LowQuality
	}
}

// confidence is high when the signals agree and the text features are strong.
func confidence(s model.QualitySignals, ml float64) float64 {
	_, sd := meanStd(s.Values())
	agreement := clamp01(1 - sd/50)
	return round3(clamp01(0.7*agreement + 0.3*ml/100))
}

var signalNames = []string{
	"technical depth",
	"innovation",
	"uniqueness",
	"code complexity",
	"academic references",
	"industry relevance",
	"author credibility",
	"community engagement",
	"freshness",
}

const maxReasons = 5

// reasons lists the signals and thresholds that decided the outcome, most
// decisive first.
func reasons(tier model.QualityTier, score int, s model.QualitySignals, platform, penalty float64) []string {
	var out []string

	switch tier {
	case model.Innovative:
		out = append(out, fmt.Sprintf("novelty backed by depth (innovation %.0f, technical depth %.0f)", s.Innovation, s.TechnicalDepth))
	case model.Spam:
		out = append(out, fmt.Sprintf("little technical content (score %d, technical depth %.0f)", score, s.TechnicalDepth))
	default:
		out = append(out, fmt.Sprintf("score %d meets the %s threshold", score, tier))
	}

	type named struct {
		name  string
		value float64
	}
	values := s.Values()
	var strong, weak []named
	for i, v := range values {
		switch {
		case v >= 70:
			strong = append(strong, named{signalNames[i], v})
		case v < 20 && (i == 0 || i == 1):
			weak = append(weak, named{signalNames[i], v})
		}
	}
	sort.SliceStable(strong, func(i, j int) bool { return strong[i].value > strong[j].value })
	for _, n := range strong {
		out = append(out, fmt.Sprintf("strong %s (%.0f)", n.name, n.value))
	}
	if tier.Rank() <= model.Basic.Rank() {
		for _, n := range weak {
			out = append(out, fmt.Sprintf("low %s (%.0f)", n.name, n.value))
		}
	}

	if penalty > 0 {
		out = append(out, fmt.Sprintf("penalized for promotional or beginner phrasing (%.2f)", penalty))
	}
	switch {
	case platform >= 70:
		out = append(out, fmt.Sprintf("strong platform signals (%.0f)", platform))
	case platform <= 20:
		out = append(out, fmt.Sprintf("weak platform signals (%.0f)", platform))
	}

	if len(out) > maxReasons {
		out = out[:maxReasons]
	}
	return out
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
