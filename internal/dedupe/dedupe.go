// Package dedupe removes repeated items from the union of adapter results.
package dedupe

import "content_scout/internal/model"

// Dedupe returns items with repeats of the same (platform, platformID)
// removed. The first occurrence wins and order is preserved. The input slice
// is not modified.
func Dedupe(items []model.ContentItem) []model.ContentItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]model.ContentItem, 0, len(items))
	for _, it := range items {
		k := it.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}
