package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/snapsolve/backend/domain"
)

const (
	productName = "SnapSolve AI"
	reportLabel = "SOLUTION REPORT"
	footerNote  = "Generated by SnapSolve AI - Solutions are AI-generated for reference only."
)

// ExportImage is one image already fetched and decoded for embedding.
type ExportImage struct {
	Name string
	Type string // "PNG" or "JPG"
	Data []byte
}

// ExportImages carries every image that survived loading. Images that
// failed to load are simply missing; their absence never fails the export.
type ExportImages struct {
	Input *ExportImage
	Aids  []ExportImage
}

// RenderPDF assembles the export document for one message and writes it to
// out. Same parse, classification, and section treatments as the screen
// renderer; only the medium differs.
func RenderPDF(msg domain.Message, images ExportImages, out io.Writer) error {
	doc := BuildDocument(msg.Content)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 18)
	pdf.AddPage()

	writeReportHeader(pdf, msg.ID)

	if images.Input != nil {
		writeInputImage(pdf, *images.Input)
	}

	if len(doc.Sections) == 0 {
		for _, line := range doc.Fallback {
			if strings.TrimSpace(line) == "" {
				continue
			}
			pdf.SetFont("Helvetica", "", 10)
			pdf.SetTextColor(51, 65, 85)
			pdf.MultiCell(0, 5, line, "", "L", false)
		}
	} else {
		for _, section := range doc.Sections {
			writeSectionPDF(pdf, section)
		}
	}

	if len(images.Aids) > 0 {
		writeAidGrid(pdf, images.Aids)
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 7)
	pdf.SetTextColor(148, 163, 184)
	pdf.CellFormat(0, 5, footerNote, "", 1, "C", false, 0, "")

	if err := pdf.Output(out); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}

func writeReportHeader(pdf *fpdf.Fpdf, messageID string) {
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(0, 10, productName, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetTextColor(16, 185, 129)
	pdf.CellFormat(0, 5, reportLabel, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 116, 139)
	pdf.CellFormat(0, 5, "Report ID: "+messageID, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Date: "+time.Now().Format("2006-01-02"), "", 1, "L", false, 0, "")

	pdf.Ln(2)
	pdf.SetDrawColor(79, 70, 229)
	pdf.SetLineWidth(0.6)
	left, _, right, _ := pdf.GetMargins()
	pageW, _ := pdf.GetPageSize()
	y := pdf.GetY()
	pdf.Line(left, y, pageW-right, y)
	pdf.Ln(6)
}

func writeInputImage(pdf *fpdf.Fpdf, img ExportImage) {
	pdf.SetFont("Helvetica", "B", 7)
	pdf.SetTextColor(148, 163, 184)
	pdf.CellFormat(0, 5, "ORIGINAL INPUT", "", 1, "L", false, 0, "")

	info := pdf.RegisterImageOptionsReader(img.Name, fpdf.ImageOptions{ImageType: img.Type}, bytes.NewReader(img.Data))
	if info == nil || pdf.Err() {
		// Undecodable input image is skipped, not fatal.
		pdf.ClearError()
		return
	}
	left, _, right, _ := pdf.GetMargins()
	pageW, _ := pdf.GetPageSize()
	width := (pageW - left - right) / 2
	pdf.ImageOptions(img.Name, left, pdf.GetY(), width, 0, true, fpdf.ImageOptions{ImageType: img.Type}, 0, "")
	pdf.Ln(6)
}

func writeSectionPDF(pdf *fpdf.Fpdf, section SectionBlock) {
	titleR, titleG, titleB := sectionTitleColor(section.Treatment)
	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetTextColor(titleR, titleG, titleB)
	pdf.CellFormat(0, 5, strings.ToUpper(section.Title), "", 1, "L", false, 0, "")

	fillR, fillG, fillB := sectionFillColor(section.Treatment)
	pdf.SetFillColor(fillR, fillG, fillB)

	for _, line := range section.Lines {
		writeLinePDF(pdf, line)
	}
	pdf.Ln(4)
}

func writeLinePDF(pdf *fpdf.Fpdf, line domain.ClassifiedLine) {
	switch line.Category {
	case domain.LineBadges:
		pdf.SetFont("Helvetica", "B", 8)
		for _, badge := range line.Badges {
			r, g, b := badgeFillColor(badge.Weight)
			pdf.SetFillColor(r, g, b)
			pdf.SetTextColor(51, 65, 85)
			width := pdf.GetStringWidth(badge.Text) + 6
			pdf.CellFormat(width, 6, badge.Text, "1", 0, "C", true, 0, "")
			pdf.CellFormat(2, 6, "", "", 0, "L", false, 0, "")
		}
		pdf.Ln(8)
	case domain.LineFormula:
		// Formula lines stay in their own monospaced block, never merged
		// into surrounding paragraphs.
		pdf.SetFont("Courier", "", 10)
		pdf.SetTextColor(30, 41, 59)
		pdf.SetFillColor(255, 255, 255)
		pdf.SetDrawColor(226, 232, 240)
		pdf.SetLineWidth(0.2)
		pdf.MultiCell(0, 8, strings.TrimSpace(line.Raw), "1", "C", true)
		pdf.Ln(1)
	case domain.LineStep:
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(71, 85, 105)
		left, _, _, _ := pdf.GetMargins()
		pdf.SetX(left + 5)
		pdf.MultiCell(0, 5, line.Raw, "", "L", false)
		pdf.Ln(1)
	case domain.LineParagraph:
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(51, 65, 85)
		pdf.MultiCell(0, 5, line.Raw, "", "L", false)
	case domain.LineBlank:
	}
}

// writeAidGrid lays generated illustrations out two per row.
func writeAidGrid(pdf *fpdf.Fpdf, aids []ExportImage) {
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetTextColor(16, 185, 129)
	pdf.CellFormat(0, 5, "VISUAL AIDS & DIAGRAMS", "", 1, "L", false, 0, "")

	left, _, right, _ := pdf.GetMargins()
	pageW, _ := pdf.GetPageSize()
	const gap = 5.0
	colW := (pageW - left - right - gap) / 2

	x, y := left, pdf.GetY()
	rowH := 0.0
	for i, img := range aids {
		info := pdf.RegisterImageOptionsReader(img.Name, fpdf.ImageOptions{ImageType: img.Type}, bytes.NewReader(img.Data))
		if info == nil || pdf.Err() {
			pdf.ClearError()
			continue
		}
		wd, ht := info.Extent()
		scaledH := ht * (colW / wd)

		pdf.ImageOptions(img.Name, x, y, colW, 0, false, fpdf.ImageOptions{ImageType: img.Type}, 0, "")
		if scaledH > rowH {
			rowH = scaledH
		}
		if i%2 == 0 {
			x = left + colW + gap
		} else {
			x = left
			y += rowH + gap
			rowH = 0
		}
	}
	if rowH > 0 {
		y += rowH + gap
	}
	pdf.SetY(y)
}

func sectionTitleColor(treatment Treatment) (int, int, int) {
	switch treatment {
	case TreatmentPractice:
		return 217, 119, 6
	default:
		return 99, 102, 241
	}
}

func sectionFillColor(treatment Treatment) (int, int, int) {
	switch treatment {
	case TreatmentSubject:
		return 238, 242, 255
	case TreatmentPractice:
		return 254, 243, 199
	default:
		return 248, 250, 252
	}
}

func badgeFillColor(weight domain.ConfidenceWeight) (int, int, int) {
	switch weight {
	case domain.WeightHigh:
		return 209, 250, 229
	case domain.WeightMedium:
		return 219, 234, 254
	case domain.WeightLow:
		return 254, 226, 226
	default:
		return 241, 245, 249
	}
}
