package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"appeloffres/api/internal/models"
)

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
</Types>`

const docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
</Relationships>`

const (
	docxHeaderOpen = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	docxHeaderClose = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/>` +
		`<w:pgMar w:top="1134" w:right="1134" w:bottom="1134" w:left="1134" w:header="709" w:footer="709" w:gutter="0"/>` +
		`</w:sectPr></w:body></w:document>`
)

// docxRun is one run of text with its formatting. Size is in half-points.
type docxRun struct {
	text   string
	bold   bool
	italic bool
	size   int
	color  string
}

// docxBuilder accumulates the body of word/document.xml.
type docxBuilder struct {
	body strings.Builder
}

// RenderDOCX renders the export document as a WordprocessingML (.docx) package.
func RenderDOCX(doc ExportDocument) ([]byte, error) {
	b := &docxBuilder{}

	if doc.CompanyName != "" {
		b.paragraph("", docxRun{text: doc.CompanyName, size: 20, color: "5A5A5A"})
	}
	b.paragraph("", docxRun{text: doc.Title, bold: true, size: 36, color: "14285A"})
	subtitle := "Demande générée le " + doc.GeneratedAt.Format("02/01/2006")
	if doc.Reference != "" {
		subtitle = "Réf. " + doc.Reference + " - " + subtitle
	}
	b.paragraph("", docxRun{text: subtitle, size: 18, color: "5A5A5A"})

	for _, f := range doc.Fields {
		b.paragraph("", docxRun{text: f.Label + " : ", bold: true, size: 20}, docxRun{text: f.Value, size: 20})
	}

	if len(doc.Description) > 0 {
		b.heading("Description du besoin")
		b.blocks(doc.Description)
	}
	for _, section := range doc.Sections {
		b.heading(section.Title)
		if section.IsEmpty {
			b.paragraph("", docxRun{text: "Section non renseignée", italic: true, size: 20, color: "8C8C8C"})
			continue
		}
		b.blocks(section.Blocks)
	}

	document := docxHeaderOpen + b.body.String() + docxHeaderClose

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRootRels},
		{"docProps/core.xml", docxCoreProperties(doc)},
		{"word/document.xml", document},
	}
	for _, part := range parts {
		if err := writeZipEntry(zw, part.name, []byte(part.content), doc.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize DOCX: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *docxBuilder) heading(title string) {
	b.paragraph(`<w:spacing w:before="240" w:after="120"/>`, docxRun{text: title, bold: true, size: 26, color: "14285A"})
}

func (b *docxBuilder) blocks(blocks [][]models.ParsedLine) {
	for _, block := range blocks {
		for i, line := range block {
			props := ""
			if i == len(block)-1 {
				props = `<w:spacing w:after="160"/>`
			} else {
				props = `<w:spacing w:after="0"/>`
			}
			runs := make([]docxRun, 0, len(line.Segments)+1)
			if marker := listMarker(line); marker != "" {
				props += `<w:ind w:left="720" w:hanging="360"/>`
				runs = append(runs, docxRun{text: marker, size: 20})
			}
			for _, seg := range line.Segments {
				runs = append(runs, docxRun{text: seg.Text, bold: seg.Bold, italic: seg.Italic, size: 20})
			}
			b.paragraph(props, runs...)
		}
	}
}

func (b *docxBuilder) paragraph(props string, runs ...docxRun) {
	b.body.WriteString("<w:p>")
	if props != "" {
		b.body.WriteString("<w:pPr>" + props + "</w:pPr>")
	}
	for _, r := range runs {
		b.body.WriteString("<w:r>")
		var rPr strings.Builder
		if r.bold {
			rPr.WriteString("<w:b/>")
		}
		if r.italic {
			rPr.WriteString("<w:i/>")
		}
		if r.color != "" {
			rPr.WriteString(`<w:color w:val="` + r.color + `"/>`)
		}
		if r.size > 0 {
			rPr.WriteString(fmt.Sprintf(`<w:sz w:val="%d"/>`, r.size))
		}
		if rPr.Len() > 0 {
			b.body.WriteString("<w:rPr>" + rPr.String() + "</w:rPr>")
		}
		b.body.WriteString(`<w:t xml:space="preserve">` + escapeXML(r.text) + "</w:t></w:r>")
	}
	b.body.WriteString("</w:p>")
}

func docxCoreProperties(doc ExportDocument) string {
	created := doc.GeneratedAt.UTC().Format(time.RFC3339)
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + escapeXML(doc.Title) + `</dc:title>` +
		`<dc:creator>` + escapeXML(doc.CompanyName) + `</dc:creator>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + created + `</dcterms:created>` +
		`</cp:coreProperties>`
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return ""
	}
	return buf.String()
}

// writeZipEntry adds one deflated file with a fixed modification time.
func writeZipEntry(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	header := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if !modified.IsZero() {
		header.Modified = modified
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
