package domain

import (
	"regexp"
	"strings"
)

// MaxVisualAids caps how many directives are sent for generation. Extra
// directives are parsed but discarded; the bound limits the cost of the
// parallel image calls, not anything on the backend side.
const MaxVisualAids = 4

// noAidsSentinel in the first directive position means the model decided no
// illustration is needed.
const noAidsSentinel = "none"

var promptDirectiveRe = regexp.MustCompile(`(?i)^PROMPT:\s*(.+)$`)

// ExtractVisualAidPrompts pulls illustration directives out of the
// visual-aid section's body lines. Order is preserved, duplicates are kept,
// a leading "none" (any case) suppresses generation entirely.
func ExtractVisualAidPrompts(body []string) []string {
	var prompts []string
	for _, line := range body {
		if m := promptDirectiveRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			prompts = append(prompts, strings.TrimSpace(m[1]))
		}
	}
	if len(prompts) == 0 {
		return nil
	}
	if strings.EqualFold(prompts[0], noAidsSentinel) {
		return nil
	}
	if len(prompts) > MaxVisualAids {
		prompts = prompts[:MaxVisualAids]
	}
	return prompts
}
