// Package render turns parsed model responses into the two presentation
// forms: the interactive HTML tree and the exported PDF report. Both run on
// the same parse and line classification, so screen and export cannot
// drift apart.
package render

import (
	"strings"

	"github.com/snapsolve/backend/domain"
)

// Treatment is the visual treatment applied to one section block.
type Treatment string

const (
	TreatmentSubject  Treatment = "subject"
	TreatmentPractice Treatment = "practice"
	TreatmentDefault  Treatment = "default"
)

// SectionTreatment maps a section title to its treatment, case-insensitively.
func SectionTreatment(title string) Treatment {
	lower := strings.ToLower(strings.TrimSpace(title))
	switch {
	case lower == "subject":
		return TreatmentSubject
	case strings.Contains(lower, "practice"):
		return TreatmentPractice
	default:
		return TreatmentDefault
	}
}

// SectionBlock is one visible section with its classified body lines.
type SectionBlock struct {
	Title     string
	Treatment Treatment
	Lines     []domain.ClassifiedLine
}

// Document is the classified form of one message, shared by both renderers.
// When no visible section survives parsing, Fallback holds the leading
// unstructured lines and Sections is empty, never both.
type Document struct {
	Sections []SectionBlock
	Fallback []string
}

// BuildDocument parses and classifies one message body. The visual-aid
// metadata section is dropped here, so no renderer can show it.
func BuildDocument(content string) Document {
	sections, leading := domain.ParseSections(content)
	visible := domain.VisibleSections(sections)

	if len(visible) == 0 {
		return Document{Fallback: leading}
	}

	blocks := make([]SectionBlock, 0, len(visible))
	for _, section := range visible {
		block := SectionBlock{
			Title:     section.Title,
			Treatment: SectionTreatment(section.Title),
			Lines:     make([]domain.ClassifiedLine, 0, len(section.Body)),
		}
		for _, line := range section.Body {
			block.Lines = append(block.Lines, domain.ClassifyLine(line))
		}
		blocks = append(blocks, block)
	}
	return Document{Sections: blocks}
}
