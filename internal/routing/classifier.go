package routing

import (
	"strings"
)

// Classification is the lightweight read of a task's text used when the
// directive and task type leave the strategy open.
type Classification struct {
	Category   string  // "design", "change", "investigation", "routine"
	Confidence float64 // 0..1
}

var categoryKeywords = map[string][]string{
	"design":        {"architecture", "design", "restructure", "refactor", "migration", "schema"},
	"investigation": {"investigate", "research", "explore", "compare", "evaluate", "why"},
	"change":        {"implement", "add", "fix", "bug", "create", "build", "update", "remove"},
	"routine":       {"document", "docs", "rename", "format", "typo", "comment"},
}

// Classify scores a task's title and description against keyword sets.
// Confidence grows with the number of distinct hits, capped at 0.9; no hits
// yields ("change", 0.2) so downstream policy still has a default.
func Classify(title, description string) Classification {
	text := strings.ToLower(title + " " + description)

	best := Classification{Category: "change", Confidence: 0.2}
	for category, words := range categoryKeywords {
		hits := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		conf := 0.4 + 0.15*float64(hits)
		if conf > 0.9 {
			conf = 0.9
		}
		if conf > best.Confidence {
			best = Classification{Category: category, Confidence: conf}
		}
	}
	return best
}
