package scoring

import (
	"regexp"
	"strings"
)

type blacklistRule struct {
	label  string
	re     *regexp.Regexp
	weight float64
}

// blacklist weights sum toward a penalty capped at 1.
var blacklist = []blacklistRule{
	{label: "getting started", re: regexp.MustCompile(`\bgetting started\b`), weight: 0.3},
	{label: "tutorial", re: regexp.MustCompile(`\btutorials?\b`), weight: 0.3},
	{label: "for beginners", re: regexp.MustCompile(`\bfor (?:absolute |complete )?beginners\b`), weight: 0.3},
	{label: "step by step", re: regexp.MustCompile(`\bstep[- ]by[- ]step\b`), weight: 0.2},
	{label: "hello world", re: regexp.MustCompile(`\bhello,? world\b`), weight: 0.2},
	{label: "cheat sheet", re: regexp.MustCompile(`\bcheat ?sheets?\b`), weight: 0.2},
	{label: "giveaway", re: regexp.MustCompile(`\bgiveaways?\b`), weight: 0.5},
	{label: "sales pitch", re: regexp.MustCompile(`\b(?:buy now|limited offer|discount code|promo code|use my code)\b`), weight: 0.5},
	{label: "call to action", re: regexp.MustCompile(`\b(?:click here|link in bio|subscribe now|smash that like)\b`), weight: 0.4},
	{label: "clickbait", re: regexp.MustCompile(`\b(?:you won'?t believe|mind[- ]blowing|game[- ]changer|insane|secret trick)\b`), weight: 0.3},
	{label: "productivity hype", re: regexp.MustCompile(`\b(?:10x|100x) (?:your|productivity|developer)\b`), weight: 0.3},
	{label: "follow bait", re: regexp.MustCompile(`\bfollow (?:me|for more)\b`), weight: 0.3},
	{label: "crypto", re: regexp.MustCompile(`\b(?:airdrop|nft|memecoin|crypto signals)\b`), weight: 0.4},
}

// blacklistPenalty returns the capped penalty in [0,1] and the labels of the
// rules that matched, in rule order.
func blacklistPenalty(title, body string) (float64, []string) {
	text := strings.ToLower(title + "\n" + body)
	var penalty float64
	var labels []string
	for _, r := range blacklist {
		if r.re.MatchString(text) {
			penalty += r.weight
			labels = append(labels, r.label)
		}
	}
	return clamp01(penalty), labels
}
