package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// LineCategory is the rendering category of one content line. It is a pure
// function of the line's text and is recomputed on every render.
type LineCategory int

const (
	LineBlank LineCategory = iota
	LineBadges
	LineFormula
	LineStep
	LineParagraph
)

// ConfidenceWeight is the visual weight of a confidence badge. Presentation
// only; nothing else branches on it.
type ConfidenceWeight string

const (
	WeightHigh   ConfidenceWeight = "high"
	WeightMedium ConfidenceWeight = "medium"
	WeightLow    ConfidenceWeight = "low"
	WeightNone   ConfidenceWeight = ""
)

// Badge is one trimmed segment of a badge row.
type Badge struct {
	Text       string
	Confidence int
	Weight     ConfidenceWeight
}

// ClassifiedLine pairs a line with its category and, for badge rows, the
// parsed segments.
type ClassifiedLine struct {
	Category LineCategory
	Raw      string
	Badges   []Badge
}

const badgeSeparator = " | "

var (
	stepRe     = regexp.MustCompile(`^\d+\.`)
	digitRunRe = regexp.MustCompile(`\d+`)
)

// ClassifyLine assigns a rendering category to one body line. Evaluation
// order is fixed: badges, then formula, then step, then paragraph/blank.
func ClassifyLine(line string) ClassifiedLine {
	switch {
	case strings.Contains(line, badgeSeparator):
		return ClassifiedLine{Category: LineBadges, Raw: line, Badges: parseBadges(line)}
	case strings.Contains(line, "$$"):
		return ClassifiedLine{Category: LineFormula, Raw: line}
	case stepRe.MatchString(line):
		return ClassifiedLine{Category: LineStep, Raw: line}
	case strings.TrimSpace(line) == "":
		return ClassifiedLine{Category: LineBlank, Raw: line}
	default:
		return ClassifiedLine{Category: LineParagraph, Raw: line}
	}
}

func parseBadges(line string) []Badge {
	parts := strings.Split(line, badgeSeparator)
	badges := make([]Badge, 0, len(parts))
	for _, part := range parts {
		badge := Badge{Text: strings.TrimSpace(part)}
		if strings.Contains(strings.ToLower(badge.Text), "confidence") {
			if run := digitRunRe.FindString(badge.Text); run != "" {
				badge.Confidence, _ = strconv.Atoi(run)
			}
			badge.Weight = confidenceWeight(badge.Confidence)
		}
		badges = append(badges, badge)
	}
	return badges
}

func confidenceWeight(value int) ConfidenceWeight {
	switch {
	case value >= 90:
		return WeightHigh
	case value >= 70:
		return WeightMedium
	default:
		return WeightLow
	}
}
