package render

import (
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/snapsolve/backend/domain"
)

// SolutionRenderer derives the interactive HTML view of a message. The
// derivation is pure, so results are memoized per message id keyed by a
// content hash; the hash changes only when visual aids attach.
type SolutionRenderer struct {
	hasher domain.Hasher

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	fingerprint string
	html        string
}

func NewSolutionRenderer(hasher domain.Hasher) *SolutionRenderer {
	return &SolutionRenderer{
		hasher: hasher,
		cache:  make(map[string]cacheEntry),
	}
}

// Render returns the HTML tree for one message.
func (r *SolutionRenderer) Render(msg domain.Message) string {
	fingerprint := r.hasher.Hash([]byte(msg.Content + "\x00" + strings.Join(msg.VisualAids, "\x00")))

	r.mu.Lock()
	if entry, ok := r.cache[msg.ID]; ok && entry.fingerprint == fingerprint {
		r.mu.Unlock()
		return entry.html
	}
	r.mu.Unlock()

	rendered := renderSolutionHTML(msg)

	r.mu.Lock()
	r.cache[msg.ID] = cacheEntry{fingerprint: fingerprint, html: rendered}
	r.mu.Unlock()

	return rendered
}

func renderSolutionHTML(msg domain.Message) string {
	doc := BuildDocument(msg.Content)

	var b strings.Builder
	fmt.Fprintf(&b, `<div class="solution solution--%s">`, msg.Role)

	if len(doc.Sections) == 0 {
		// Non-conforming output still renders as plain paragraphs; the
		// bubble is never blank.
		b.WriteString(`<div class="solution-fallback">`)
		for _, line := range doc.Fallback {
			if strings.TrimSpace(line) == "" {
				continue
			}
			fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(line))
		}
		b.WriteString(`</div>`)
	} else {
		for _, section := range doc.Sections {
			writeSectionHTML(&b, section, msg.Role)
		}
	}

	if len(msg.VisualAids) > 0 {
		writeGalleryHTML(&b, msg.VisualAids)
	}

	b.WriteString(`</div>`)
	return b.String()
}

func writeSectionHTML(b *strings.Builder, section SectionBlock, role domain.Role) {
	fmt.Fprintf(b, `<section class="solution-section treatment--%s role--%s">`, section.Treatment, role)
	fmt.Fprintf(b, `<h4 class="solution-section__title">%s</h4>`, html.EscapeString(section.Title))
	b.WriteString(`<div class="solution-section__body">`)
	for _, line := range section.Lines {
		writeLineHTML(b, line)
	}
	b.WriteString(`</div></section>`)
}

func writeLineHTML(b *strings.Builder, line domain.ClassifiedLine) {
	switch line.Category {
	case domain.LineBadges:
		b.WriteString(`<div class="badge-row">`)
		for _, badge := range line.Badges {
			class := "badge"
			if badge.Weight != domain.WeightNone {
				class += " badge--confidence-" + string(badge.Weight)
			}
			fmt.Fprintf(b, `<span class="%s">%s</span>`, class, html.EscapeString(badge.Text))
		}
		b.WriteString(`</div>`)
	case domain.LineFormula:
		fmt.Fprintf(b, `<div class="formula">%s</div>`, html.EscapeString(line.Raw))
	case domain.LineStep:
		fmt.Fprintf(b, `<div class="step">%s</div>`, html.EscapeString(line.Raw))
	case domain.LineParagraph:
		fmt.Fprintf(b, `<p>%s</p>`, html.EscapeString(line.Raw))
	case domain.LineBlank:
		// Blank lines emit nothing.
	}
}

func writeGalleryHTML(b *strings.Builder, aids []string) {
	b.WriteString(`<div class="visual-aids"><h4 class="visual-aids__title">Visual Aids &amp; Diagrams</h4><div class="visual-aids__grid">`)
	for _, url := range aids {
		escaped := html.EscapeString(url)
		fmt.Fprintf(b, `<a class="visual-aid" href="%s" target="_blank" rel="noopener"><img src="%s" alt="Visual aid"/></a>`, escaped, escaped)
	}
	b.WriteString(`</div></div>`)
}
