// Package filter implements the relevance rules applied to discovered items
// before they are scored.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"content_scout/internal/model"
)

// Kind defines the type of a rule.
type Kind string

// Rule kinds.
const (
	Include   Kind = "include"
	Exclude   Kind = "exclude"
	IncludeRe Kind = "include_re"
	ExcludeRe Kind = "exclude_re"
)

// Scope defines which part of an item a rule matches against.
type Scope string

// Rule scopes.
const (
	ScopeTitle  Scope = "title"
	ScopeBody   Scope = "body"
	ScopeAuthor Scope = "author"
	ScopeAll    Scope = "all"
)

// Rule is a single relevance rule. An empty Platform applies the rule to
// every platform.
type Rule struct {
	Kind     Kind           `yaml:"kind"`
	Scope    Scope          `yaml:"scope"`
	Value    string         `yaml:"value"`
	Platform model.Platform `yaml:"platform,omitempty"`
}

type compiled struct {
	Rule
	re *regexp.Regexp
}

// Set is a compiled, immutable list of rules safe for concurrent use.
type Set struct {
	rules []compiled
}

// Compile validates rules and prepares regular expressions.
func Compile(rules []Rule) (*Set, error) {
	s := &Set{rules: make([]compiled, 0, len(rules))}
	for i, r := range rules {
		if r.Scope == "" {
			r.Scope = ScopeAll
		}
		c := compiled{Rule: r}
		switch r.Kind {
		case Include, Exclude:
			c.Value = strings.ToLower(r.Value)
		case IncludeRe, ExcludeRe:
			re, err := regexp.Compile("(?i)" + r.Value)
			if err != nil {
				return nil, fmt.Errorf("rule %d: invalid regex: %w", i, err)
			}
			c.re = re
		default:
			return nil, fmt.Errorf("rule %d: unknown kind %q", i, r.Kind)
		}
		switch r.Scope {
		case ScopeTitle, ScopeBody, ScopeAuthor, ScopeAll:
		default:
			return nil, fmt.Errorf("rule %d: unknown scope %q", i, r.Scope)
		}
		s.rules = append(s.rules, c)
	}
	return s, nil
}

// Match checks whether an item passes the rule set.
// With no applicable rules the item always passes.
// Include rules use OR logic (at least one must match).
// Exclude rules use AND logic (none must match).
func (s *Set) Match(item model.ContentItem) bool {
	if s == nil {
		return true
	}

	hasIncludes := false
	anyIncludeMatched := false

	for _, r := range s.rules {
		if r.Platform != "" && r.Platform != item.Platform {
			continue
		}
		switch r.Kind {
		case Include, IncludeRe:
			hasIncludes = true
			if !anyIncludeMatched && r.matches(item) {
				anyIncludeMatched = true
			}
		case Exclude, ExcludeRe:
			if r.matches(item) {
				return false
			}
		}
	}

	return !hasIncludes || anyIncludeMatched
}

// Apply returns the items that pass the rule set, preserving order.
func (s *Set) Apply(items []model.ContentItem) []model.ContentItem {
	out := make([]model.ContentItem, 0, len(items))
	for _, it := range items {
		if s.Match(it) {
			out = append(out, it)
		}
	}
	return out
}

// Len returns the number of rules in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

func (r compiled) matches(item model.ContentItem) bool {
	text := textForScope(item, r.Scope)
	if r.re != nil {
		return r.re.MatchString(text)
	}
	return strings.Contains(text, r.Value)
}

func textForScope(item model.ContentItem, scope Scope) string {
	switch scope {
	case ScopeTitle:
		return strings.ToLower(item.Title)
	case ScopeBody:
		return strings.ToLower(item.Body)
	case ScopeAuthor:
		return strings.ToLower(item.Author.Name + " " + item.Author.ID)
	default:
		return strings.ToLower(item.Title + " " + item.Body)
	}
}
