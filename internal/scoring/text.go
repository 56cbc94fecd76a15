package scoring

import (
	"math"
	"regexp"
	"strings"
)

var (
	wordRe      = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}_'-]*`)
	sentenceRe  = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n{2,}`)
	fenceRe     = regexp.MustCompile("(?s)```[^\\n]*\\n(.*?)```")
	listItemRe  = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s+`)
	headingRe   = regexp.MustCompile(`(?m)^\s*#{1,6}\s+\S`)
	citationRe  = regexp.MustCompile(`\[\d{1,3}\]|\bet al\.`)
	controlRe   = regexp.MustCompile(`\b(?:if|else|for|while|switch|case|match|try|catch|except|select|defer)\b`)
	asyncRe     = regexp.MustCompile(`\b(?:async|await|goroutine|chan|Promise|Future|tokio|asyncio|spawn|WaitGroup|errgroup)\b|\bgo\s+\w+\(|\bgo func\b`)
	importRe    = regexp.MustCompile(`(?m)^\s*(?:import\b|from\s+\S+\s+import\b|use\s+\w|#include\b|package\s+\w|const\s+\w+\s*=\s*require\()`)
	defRe       = regexp.MustCompile(`\b(?:func|def|function|class|fn|interface|struct|impl|type)\b`)
	trivialRe   = regexp.MustCompile(`^\s*(?:print\(|console\.log\(|fmt\.Print|echo\s|System\.out\.print|puts\s)`)
	academicURL = []string{"arxiv.org", "doi.org", "acm.org", "ieee.org", "openreview.net", "aclanthology.org", "semanticscholar.org", "papers.nips.cc"}
)

var technicalTerms = []string{
	"architecture", "algorithm", "latency", "throughput", "concurrency",
	"distributed", "benchmark", "evaluation", "embedding", "vector",
	"inference", "fine-tuning", "orchestration", "protocol", "runtime",
	"compiler", "parser", "scheduler", "cache", "streaming", "tokenizer",
	"retrieval", "agent", "tool use", "sandbox", "schema", "observability",
	"tracing", "async", "parallel", "context window", "prompt caching",
	"rag", "mcp", "api", "sdk", "memory", "planner", "harness", "eval",
}

var innovationTerms = []string{
	"novel", "new approach", "research", "prototype", "experimental",
	"introduces", "open-sourced", "we built", "architecture", "technique",
}

var negativeTerms = []string{
	"beginner", "basics", "introduction to", "easy", "simple", "quick",
	"tips", "tricks", "hack", "learn", "how to", "explained",
}

var noveltyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bbreakthrough\b`),
	regexp.MustCompile(`\bfirst[- ]of[- ]its[- ]kind\b`),
	regexp.MustCompile(`\bnovel\b`),
	regexp.MustCompile(`\bstate[- ]of[- ]the[- ]art\b`),
	regexp.MustCompile(`\bwe (?:propose|introduce|present)\b`),
	regexp.MustCompile(`\boutperform(?:s|ed|ing)?\b`),
	regexp.MustCompile(`\bnew paradigm\b`),
	regexp.MustCompile(`\bunprecedented\b`),
}

var researchMarkers = []string{
	"abstract", "conclusion", "references", "methodology", "related work",
	"ablation", "experiments", "results",
}

var industryTerms = []string{
	"production", "enterprise", "deploy", "scalab", "latency", "cost",
	"sla", "customers", "reliability", "security", "compliance",
}

// textStats are the counting heuristics every later stage builds on.
type textStats struct {
	words         int
	uniqueWords   int
	sentences     []int
	paragraphs    int
	listItems     int
	headings      int
	codeBlocks    []string
	techHits      int
	techDensity   int
	innovHits     int
	negHits       int
	noveltyHits   int
	researchHits  int
	referenceHits int
	industryHits  int
}

func analyzeText(title, body string, urls []string) textStats {
	var st textStats

	for _, m := range fenceRe.FindAllStringSubmatch(body, -1) {
		st.codeBlocks = append(st.codeBlocks, m[1])
	}
	prose := fenceRe.ReplaceAllString(body, "\n\n")
	all := strings.ToLower(title + "\n" + prose)

	words := wordRe.FindAllString(all, -1)
	st.words = len(words)
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[w] = struct{}{}
	}
	st.uniqueWords = len(seen)

	for _, s := range sentenceRe.Split(strings.ToLower(prose), -1) {
		if n := len(wordRe.FindAllString(s, -1)); n > 0 {
			st.sentences = append(st.sentences, n)
		}
	}
	for _, p := range strings.Split(prose, "\n\n") {
		if strings.TrimSpace(p) != "" {
			st.paragraphs++
		}
	}
	st.listItems = len(listItemRe.FindAllString(prose, -1))
	st.headings = len(headingRe.FindAllString(prose, -1))

	st.techHits = countDistinct(all, technicalTerms)
	st.techDensity = countOccurrences(all, technicalTerms)
	st.innovHits = countDistinct(all, innovationTerms)
	st.negHits = countDistinct(all, negativeTerms)
	for _, re := range noveltyPatterns {
		if re.MatchString(all) {
			st.noveltyHits++
		}
	}
	st.researchHits = countDistinct(all, researchMarkers)
	st.industryHits = countDistinct(all, industryTerms)

	st.referenceHits = len(citationRe.FindAllString(all, -1))
	for _, u := range urls {
		lu := strings.ToLower(u)
		for _, a := range academicURL {
			if strings.Contains(lu, a) {
				st.referenceHits++
				break
			}
		}
	}
	for _, a := range academicURL {
		st.referenceHits += strings.Count(all, a)
	}
	return st
}

// vocabularyDiversity is the type-token ratio of the text.
func (st textStats) vocabularyDiversity() float64 {
	if st.words == 0 {
		return 0
	}
	return float64(st.uniqueWords) / float64(st.words)
}

// textComplexity maps average sentence length to [0,1]; 25 words is the top.
func (st textStats) textComplexity() float64 {
	if len(st.sentences) == 0 {
		return 0
	}
	mean, _ := meanStd(st.sentences)
	return clamp01(mean / 25)
}

// sentenceVariability is the coefficient of variation of sentence lengths.
func (st textStats) sentenceVariability() float64 {
	if len(st.sentences) < 2 {
		return 0
	}
	mean, sd := meanStd(st.sentences)
	if mean == 0 {
		return 0
	}
	return clamp01(sd / mean)
}

func (st textStats) technicalTermDensity() float64 {
	if st.words == 0 {
		return 0
	}
	return clamp01(float64(st.techDensity) / float64(st.words) * 10)
}

func (st textStats) structuralComplexity() float64 {
	s := float64(st.headings) + float64(st.listItems)/2 + float64(len(st.codeBlocks))*2 + float64(st.paragraphs)/2
	return clamp01(s / 10)
}

// codeComplexity estimates how substantial the embedded code is, in [0,100].
// Blocks made of bare print calls score close to zero.
func codeComplexity(blocks []string) float64 {
	if len(blocks) == 0 {
		return 0
	}
	var lines, trivial int
	code := strings.Join(blocks, "\n")
	for _, l := range strings.Split(code, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines++
		if trivialRe.MatchString(l) {
			trivial++
		}
	}
	if lines == 0 {
		return 0
	}

	control := len(controlRe.FindAllString(code, -1))
	async := len(asyncRe.FindAllString(code, -1))
	imports := len(importRe.FindAllString(code, -1))
	defs := len(defRe.FindAllString(code, -1))

	raw := 2*float64(min(lines, 20)) +
		6*float64(min(control, 5)) +
		8*float64(min(async, 3)) +
		5*float64(min(imports, 4)) +
		5*float64(min(defs, 4))
	trivialRatio := float64(trivial) / float64(lines)
	return clip(raw*(1-0.8*trivialRatio), 0, 100)
}

func countDistinct(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}

func countOccurrences(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		n += strings.Count(text, t)
	}
	return n
}

func meanStd[T int | float64](xs []T) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += float64(x)
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := float64(x) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

func clip(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	return math.Max(lo, math.Min(hi, x))
}

func clamp01(x float64) float64 { return clip(x, 0, 1) }
