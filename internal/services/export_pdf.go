package services

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/go-pdf/fpdf"

	"appeloffres/api/internal/models"
)

// UTF-8 fonts for the PDF export. The core PDF fonts only cover cp1252.
//
//go:embed fonts/*.ttf
var pdfFonts embed.FS

var pdfFontFiles = []struct {
	style string
	file  string
}{
	{"", "fonts/DejaVuSansCondensed.ttf"},
	{"B", "fonts/DejaVuSansCondensed-Bold.ttf"},
	{"I", "fonts/DejaVuSansCondensed-Oblique.ttf"},
	{"BI", "fonts/DejaVuSansCondensed-BoldOblique.ttf"},
}

const (
	pdfFont       = "DejaVu"
	pdfMargin     = 20.0
	pdfLineHeight = 5.5
	pdfListIndent = 4.0
	pdfMarkerGap  = 6.0
	pdfLabelWidth = 45.0
)

type pdfWriter struct {
	pdf *fpdf.Fpdf
}

// RenderPDF renders the export document as an A4 PDF.
func RenderPDF(doc ExportDocument) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	for _, f := range pdfFontFiles {
		data, err := pdfFonts.ReadFile(f.file)
		if err != nil {
			return nil, fmt.Errorf("failed to load font %s: %w", f.file, err)
		}
		pdf.AddUTF8FontFromBytes(pdfFont, f.style, data)
	}
	w := &pdfWriter{pdf: pdf}

	pdf.SetTitle(doc.Title, true)
	if doc.CompanyName != "" {
		pdf.SetAuthor(doc.CompanyName, true)
	}
	pdf.SetCreator("appeloffres", true)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	w.header(doc)
	w.fields(doc.Fields)
	if len(doc.Description) > 0 {
		w.heading("Description du besoin")
		w.blocks(doc.Description)
	}
	for _, section := range doc.Sections {
		w.heading(section.Title)
		if section.IsEmpty {
			w.placeholder("Section non renseignée")
			continue
		}
		w.blocks(section.Blocks)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *pdfWriter) header(doc ExportDocument) {
	pdf := w.pdf
	if doc.CompanyName != "" {
		pdf.SetFont(pdfFont, "", 10)
		pdf.SetTextColor(90, 90, 90)
		pdf.CellFormat(0, 6, doc.CompanyName, "", 1, "L", false, 0, "")
	}
	pdf.SetFont(pdfFont, "B", 18)
	pdf.SetTextColor(20, 40, 90)
	pdf.MultiCell(0, 8, doc.Title, "", "L", false)

	pdf.SetFont(pdfFont, "", 9)
	pdf.SetTextColor(90, 90, 90)
	subtitle := "Demande générée le " + doc.GeneratedAt.Format("02/01/2006")
	if doc.Reference != "" {
		subtitle = "Réf. " + doc.Reference + " - " + subtitle
	}
	pdf.CellFormat(0, 6, subtitle, "", 1, "L", false, 0, "")

	pageWidth, _ := pdf.GetPageSize()
	y := pdf.GetY() + 2
	pdf.SetDrawColor(20, 40, 90)
	pdf.Line(pdfMargin, y, pageWidth-pdfMargin, y)
	pdf.Ln(6)
}

func (w *pdfWriter) fields(fields []ExportField) {
	pdf := w.pdf
	for _, f := range fields {
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont(pdfFont, "B", 10)
		pdf.CellFormat(pdfLabelWidth, pdfLineHeight, f.Label, "", 0, "L", false, 0, "")
		pdf.SetFont(pdfFont, "", 10)
		pdf.MultiCell(0, pdfLineHeight, f.Value, "", "L", false)
	}
	pdf.Ln(4)
}

func (w *pdfWriter) heading(title string) {
	pdf := w.pdf
	pdf.Ln(2)
	pdf.SetFont(pdfFont, "B", 13)
	pdf.SetTextColor(20, 40, 90)
	pdf.MultiCell(0, 7, title, "", "L", false)
	pdf.Ln(1)
}

func (w *pdfWriter) placeholder(text string) {
	w.pdf.SetFont(pdfFont, "I", 10)
	w.pdf.SetTextColor(140, 140, 140)
	w.pdf.MultiCell(0, pdfLineHeight, text, "", "L", false)
	w.pdf.Ln(2)
}

func (w *pdfWriter) blocks(blocks [][]models.ParsedLine) {
	pdf := w.pdf
	left, _, _, _ := pdf.GetMargins()
	pdf.SetTextColor(0, 0, 0)
	for _, block := range blocks {
		for _, line := range block {
			marker := listMarker(line)
			if marker != "" {
				pdf.SetFont(pdfFont, "", 10)
				pdf.SetX(left + pdfListIndent)
				pdf.Write(pdfLineHeight, marker)
				textX := left + pdfListIndent + pdfMarkerGap
				if pdf.GetX() < textX {
					pdf.SetX(textX)
				}
				pdf.SetLeftMargin(textX)
			}
			w.segments(line.Segments)
			pdf.SetLeftMargin(left)
			pdf.Ln(pdfLineHeight)
		}
		pdf.Ln(2)
	}
}

func (w *pdfWriter) segments(segments []models.TextSegment) {
	for _, seg := range segments {
		style := ""
		if seg.Bold {
			style += "B"
		}
		if seg.Italic {
			style += "I"
		}
		w.pdf.SetFont(pdfFont, style, 10)
		w.pdf.Write(pdfLineHeight, seg.Text)
	}
}
