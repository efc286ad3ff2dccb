package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"appeloffres/api/internal/models"
)

// Export formats served by the export endpoints.
const (
	FormatPDF      = "pdf"
	FormatDOCX     = "docx"
	FormatMarkdown = "md"
	FormatZIP      = "zip"
)

// ExportField is one labelled metadata value printed at the top of an exported document.
type ExportField struct {
	Label string
	Value string
}

// ExportSection is a section ready for rendering.
type ExportSection struct {
	Title   string
	HTML    string
	Blocks  [][]models.ParsedLine
	IsEmpty bool
}

// ExportDocument holds everything the renderers need, independent of the output format.
type ExportDocument struct {
	Title           string
	Reference       string
	CompanyName     string
	GeneratedAt     time.Time
	Fields          []ExportField
	Description     [][]models.ParsedLine
	DescriptionHTML string
	Sections        []ExportSection
}

// NewExportDocument assembles a demand project (and the optional company profile) into render input.
func NewExportDocument(p models.DemandProject, company *models.Company, generatedAt time.Time) ExportDocument {
	doc := ExportDocument{
		Title:           PlainText(models.Value(p.Title)),
		Reference:       PlainText(models.Value(p.Reference)),
		GeneratedAt:     generatedAt,
		Description:     ParseMarkdownContent(models.Value(p.Description)),
		DescriptionHTML: models.Value(p.Description),
	}
	if doc.Title == "" {
		doc.Title = "Demande sans titre"
	}
	if company != nil {
		doc.CompanyName = strings.TrimSpace(company.Name)
	}

	fields := []struct {
		label string
		value *string
	}{
		{"Référence", p.Reference},
		{"Service demandeur", p.DepartmentName},
		{"Contact", p.ContactName},
		{"Email", p.ContactEmail},
		{"Type de besoin", p.NeedType},
		{"Urgence", urgencyLabel(p.UrgencyLevel)},
		{"Budget", p.BudgetRange},
		{"Livraison souhaitée", p.DesiredDeliveryDate},
	}
	for _, f := range fields {
		if v := PlainText(models.Value(f.value)); v != "" {
			doc.Fields = append(doc.Fields, ExportField{Label: f.label, Value: v})
		}
	}

	for _, s := range sortedSections(p.Sections) {
		blocks := ParseMarkdownContent(s.Content)
		doc.Sections = append(doc.Sections, ExportSection{
			Title:   strings.TrimSpace(s.Title),
			HTML:    s.Content,
			Blocks:  blocks,
			IsEmpty: len(blocks) == 0,
		})
	}
	return doc
}

// ErrUnsupportedFormat is returned by Render for an unknown format.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Render produces the export of doc in format. baseName, annexes and blobs only matter for FormatZIP.
func Render(ctx context.Context, format string, doc ExportDocument, baseName string, annexes []models.Annex, blobs BlobFetcher) ([]byte, error) {
	switch format {
	case FormatPDF:
		return RenderPDF(doc)
	case FormatDOCX:
		return RenderDOCX(doc)
	case FormatMarkdown:
		md, err := RenderMarkdown(doc)
		if err != nil {
			return nil, err
		}
		return []byte(md), nil
	case FormatZIP:
		return BuildArchive(ctx, ArchiveInput{Document: doc, BaseName: baseName, Annexes: annexes}, blobs)
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
}

func urgencyLabel(level *string) *string {
	if level == nil {
		return nil
	}
	labels := map[models.UrgencyLevel]string{
		models.UrgencyLow:      "Faible",
		models.UrgencyNormal:   "Normale",
		models.UrgencyHigh:     "Élevée",
		models.UrgencyCritical: "Critique",
	}
	if label, ok := labels[models.UrgencyLevel(strings.ToLower(strings.TrimSpace(*level)))]; ok {
		return &label
	}
	return level
}

// ExportFilenameFor names the export of p in the given format.
func ExportFilenameFor(p models.DemandProject, format string, date time.Time) string {
	return ExportFilename(PlainText(models.Value(p.Reference)), PlainText(models.Value(p.Title)), format, date)
}

// listMarker is the prefix printed before a list line ("• ", "3. "), or "" for paragraphs.
func listMarker(line models.ParsedLine) string {
	switch line.Type {
	case models.LineBullet:
		return "• "
	case models.LineNumbered:
		if line.Number != nil {
			return strconv.Itoa(*line.Number) + ". "
		}
	}
	return ""
}
