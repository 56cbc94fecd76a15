package planner

import (
	"content_scout/internal/filter"
	"content_scout/internal/model"
)

// Vocabulary is the static topic description queries are built from.
type Vocabulary struct {
	Keywords         []string                    `yaml:"keywords"`
	AdvancedPatterns []string                    `yaml:"advancedPatterns"`
	Authors          map[model.Platform][]string `yaml:"authors"`
	Filters          []filter.Rule               `yaml:"filters"`
}

// DefaultVocabulary returns the built-in topic vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Keywords: []string{
			"claude",
			"anthropic",
			"model context protocol",
			"mcp server",
			"claude code",
			"llm agent",
			"tool use",
			"agentic workflow",
			"prompt caching",
		},
		AdvancedPatterns: []string{
			"multi-agent orchestration",
			"retrieval augmented generation",
			"constitutional ai",
			"function calling",
			"computer use",
			"extended thinking",
		},
		Authors: map[model.Platform][]string{
			model.CodeHost:  {"anthropics", "modelcontextprotocol"},
			model.ShortForm: {"AnthropicAI", "alexalbert__"},
			model.Video:     {"UCrDwWp7EBBv4NwvScIpBDOA"},
		},
		Filters: []filter.Rule{
			{Kind: filter.ExcludeRe, Scope: filter.ScopeAll, Value: `\b(airdrop|nft mint|crypto signals)\b`},
		},
	}
}

// KnownAuthors returns every configured author handle across platforms.
func (v Vocabulary) KnownAuthors() []string {
	var out []string
	for _, p := range model.Platforms {
		out = append(out, v.Authors[p]...)
	}
	return out
}
