package bot

import (
	"fmt"
	"strconv"
	"strings"

	"content_scout/internal/model"
)

const (
	defaultTopLimit = 5
	maxTopLimit     = 20
)

// TopArgs holds the parsed arguments of /top.
type TopArgs struct {
	Limit   int
	MinTier model.QualityTier
}

// ParseTopArgs parses arguments for /top.
// Format: [count] [min_tier], in either order.
func ParseTopArgs(args string) (TopArgs, error) {
	out := TopArgs{Limit: defaultTopLimit, MinTier: model.Basic}
	for _, part := range strings.Fields(args) {
		if n, err := strconv.Atoi(part); err == nil {
			if n < 1 || n > maxTopLimit {
				return TopArgs{}, fmt.Errorf("count must be between 1 and %d", maxTopLimit)
			}
			out.Limit = n
			continue
		}
		tier, err := model.ParseQualityTier(part)
		if err != nil {
			return TopArgs{}, fmt.Errorf("usage: /top [count] [tier]")
		}
		out.MinTier = tier
	}
	return out, nil
}

// ParseItemRef extracts a platform and platform ID from "<platform> <id>"
// or "<platform>:<id>".
func ParseItemRef(args string) (model.Platform, string, error) {
	s := strings.TrimSpace(args)
	var name, id string
	if before, after, ok := strings.Cut(s, ":"); ok {
		name, id = before, after
	} else if fields := strings.Fields(s); len(fields) == 2 {
		name, id = fields[0], fields[1]
	} else {
		return "", "", fmt.Errorf("usage: /why <platform> <id>")
	}

	p, err := model.ParsePlatform(name)
	if err != nil {
		return "", "", err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "", fmt.Errorf("item ID is required")
	}
	return p, id, nil
}

// WhyData builds the callback payload of the "Why?" button.
func WhyData(p model.Platform, id string) string {
	return cmdWhy + ":" + string(p) + ":" + id
}
