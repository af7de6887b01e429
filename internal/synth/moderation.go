package synth

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"reelsmith/internal/services"
)

// moderationBlocklist maps flagged phrases to the moderation category they
// trip. Screening happens before any generation work is dispatched for the
// script, and a hit fails the job permanently.
var moderationBlocklist = map[string]string{
	"graphic violence": "violence",
	"explicit gore":    "violence",
	"sexual content":   "sexual",
	"self-harm":        "self_harm",
}

// screenScript checks a script against the blocklist and returns a
// moderation error listing every tripped category. Matching is case folded,
// not just lowercased, so scripts in mixed scripts still screen correctly.
func screenScript(script string) error {
	folded := cases.Fold().String(script)
	seen := make(map[string]bool)
	var categories []string
	for phrase, category := range moderationBlocklist {
		if strings.Contains(folded, phrase) && !seen[category] {
			seen[category] = true
			categories = append(categories, category)
		}
	}
	if len(categories) == 0 {
		return nil
	}
	sort.Strings(categories)
	return &services.ModerationError{Categories: categories}
}
