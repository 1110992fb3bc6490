package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/snapsolve/backend/adapters/hasher"
	"github.com/snapsolve/backend/domain"
)

func newRenderer() *SolutionRenderer {
	return NewSolutionRenderer(hasher.New())
}

func assistantMessage(id, content string) domain.Message {
	return domain.Message{
		ID:        id,
		Role:      domain.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func TestRenderSections(t *testing.T) {
	msg := assistantMessage("m1",
		"=== SUBJECT ===\nMathematics | Confidence: 95%\n"+
			"=== STEP-BY-STEP SOLUTION ===\n1. Add one.\n$$ x = 2 $$\nSo x is two.\n"+
			"=== PRACTICE QUESTIONS ===\n1. Solve x + 2 = 5\n")

	out := newRenderer().Render(msg)

	assert.Contains(t, out, `class="solution solution--assistant"`)
	assert.Contains(t, out, `treatment--subject`)
	assert.Contains(t, out, `treatment--practice`)
	assert.Contains(t, out, `treatment--default`)
	assert.Contains(t, out, `<div class="formula">$$ x = 2 $$</div>`)
	assert.Contains(t, out, `<div class="step">1. Add one.</div>`)
	assert.Contains(t, out, `<p>So x is two.</p>`)
	assert.Contains(t, out, `badge--confidence-high`)
}

func TestRenderNeverShowsVisualAidSection(t *testing.T) {
	msg := assistantMessage("m2",
		"=== FINAL ANSWER ===\nx = 2\n=== VISUAL AID PROMPTS ===\nPROMPT: secret directive\n")

	out := newRenderer().Render(msg)

	assert.NotContains(t, out, "secret directive")
	assert.NotContains(t, strings.ToLower(out), "visual aid prompts")
}

func TestRenderFallbackParagraphs(t *testing.T) {
	msg := assistantMessage("m3", "I could not read the image.\n\nPlease try again.")

	out := newRenderer().Render(msg)

	assert.Contains(t, out, `class="solution-fallback"`)
	assert.Contains(t, out, "<p>I could not read the image.</p>")
	assert.Contains(t, out, "<p>Please try again.</p>")
}

func TestRenderEscapesHTML(t *testing.T) {
	msg := assistantMessage("m4", "=== FINAL ANSWER ===\n<script>alert(1)</script>")

	out := newRenderer().Render(msg)

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestRenderGallery(t *testing.T) {
	msg := assistantMessage("m5", "=== FINAL ANSWER ===\nx = 2")
	msg.VisualAids = []string{"https://img.example/one.png", "https://img.example/two.png"}

	out := newRenderer().Render(msg)

	assert.Contains(t, out, `class="visual-aids"`)
	assert.Equal(t, 2, strings.Count(out, "<img "))
	assert.Contains(t, out, `target="_blank"`)
}

func TestRenderMemoized(t *testing.T) {
	r := newRenderer()
	msg := assistantMessage("m6", "=== FINAL ANSWER ===\nx = 2")

	first := r.Render(msg)
	second := r.Render(msg)
	assert.Equal(t, first, second)

	// Attaching aids changes the fingerprint and invalidates the entry.
	msg.VisualAids = []string{"https://img.example/one.png"}
	third := r.Render(msg)
	assert.NotEqual(t, first, third)
	assert.Contains(t, third, "visual-aids")
}

func TestRenderUserRoleClass(t *testing.T) {
	msg := domain.Message{ID: "m7", Role: domain.RoleUser, Content: "what is x?"}

	out := newRenderer().Render(msg)

	assert.Contains(t, out, `class="solution solution--user"`)
}
