package domain

import (
	"regexp"
	"strings"
)

// Section header lines look like "=== STEP-BY-STEP SOLUTION ===". Only a
// line that is exactly a header after trimming opens a section; an inline
// "===" never does.
var sectionHeaderRe = regexp.MustCompile(`^===\s*(.+?)\s*===$`)

// VisualAidSectionTitle names the metadata section consumed by the prompt
// extractor. It is never rendered.
const VisualAidSectionTitle = "visual aid prompts"

// Section is one titled block of a model response. Title keeps the case the
// model emitted; consumers compare it case-insensitively.
type Section struct {
	Title string
	Body  []string
}

// IsVisualAid reports whether this is the visual-aid metadata section.
func (s Section) IsVisualAid() bool {
	return strings.EqualFold(strings.TrimSpace(s.Title), VisualAidSectionTitle)
}

// ParseSections splits raw model output into titled sections plus the lines
// preceding the first header. It is total: any input yields a result, a
// response without headers comes back entirely in leading.
func ParseSections(raw string) (sections []Section, leading []string) {
	var open *Section
	for _, line := range strings.Split(raw, "\n") {
		if m := sectionHeaderRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			if open != nil {
				sections = append(sections, *open)
			}
			open = &Section{Title: m[1]}
			continue
		}
		if open != nil {
			open.Body = append(open.Body, line)
		} else {
			leading = append(leading, line)
		}
	}
	if open != nil {
		sections = append(sections, *open)
	}
	return sections, leading
}

// VisibleSections drops the visual-aid metadata section, keeping order.
func VisibleSections(sections []Section) []Section {
	visible := make([]Section, 0, len(sections))
	for _, s := range sections {
		if s.IsVisualAid() {
			continue
		}
		visible = append(visible, s)
	}
	return visible
}

// VisualAidBody returns the body of the visual-aid section, or nil when the
// response has none.
func VisualAidBody(sections []Section) []string {
	for _, s := range sections {
		if s.IsVisualAid() {
			return s.Body
		}
	}
	return nil
}
