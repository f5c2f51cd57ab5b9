package routing

import (
	"regexp"
	"strings"

	"conductor/internal/types"
)

// ParseDirective extracts routing hints from free-form user text. Each hint
// carries its own confidence; weak phrasing produces a hint below the
// override threshold so policy still decides.
func ParseDirective(text string) types.UserDirective {
	var d types.UserDirective
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "get consensus"),
		strings.Contains(lower, "multiple agents"),
		strings.Contains(lower, "second opinion"):
		d.ForceConsensus = true
		d.ForceConfidence = 0.85
	case strings.Contains(lower, "consensus"):
		d.ForceConsensus = true
		d.ForceConfidence = 0.5
	}

	switch {
	case strings.Contains(lower, "no consensus"),
		strings.Contains(lower, "just one agent"),
		strings.Contains(lower, "single agent"):
		d.PreventConsensus = true
		d.PreventConfidence = 0.85
	case strings.Contains(lower, "quick"), strings.Contains(lower, "fast"):
		d.PreventConsensus = true
		d.PreventConfidence = 0.4
	}

	if m := assignPattern.FindStringSubmatch(lower); m != nil {
		d.AssignToAgent = m[1]
		d.AssignConfidence = 0.8
	}

	if strings.Contains(lower, "urgent") || strings.Contains(lower, "emergency") ||
		strings.Contains(lower, "asap") {
		d.IsEmergency = true
		d.EmergencyConfidence = 0.75
	}

	return d
}

var assignPattern = regexp.MustCompile(`(?:assign(?:ed)? to|use agent|give (?:this )?to)\s+([a-z0-9_-]+)`)
