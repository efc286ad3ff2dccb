package services

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// RenderMarkdown renders the export document as a Markdown file. Section bodies go through a full
// HTML-to-Markdown conversion so tables, links and headings from the editor survive.
func RenderMarkdown(doc ExportDocument) (string, error) {
	var b strings.Builder

	if doc.CompanyName != "" {
		b.WriteString("_" + doc.CompanyName + "_\n\n")
	}
	b.WriteString("# " + doc.Title + "\n\n")
	for _, f := range doc.Fields {
		fmt.Fprintf(&b, "- **%s** : %s\n", f.Label, f.Value)
	}
	if len(doc.Fields) > 0 {
		b.WriteString("\n")
	}

	if strings.TrimSpace(doc.DescriptionHTML) != "" {
		body, err := htmlToMarkdown(doc.DescriptionHTML)
		if err != nil {
			return "", fmt.Errorf("failed to convert description: %w", err)
		}
		b.WriteString("## Description du besoin\n\n" + body + "\n\n")
	}

	for _, section := range doc.Sections {
		b.WriteString("## " + section.Title + "\n\n")
		if section.IsEmpty {
			b.WriteString("_Section non renseignée_\n\n")
			continue
		}
		body, err := htmlToMarkdown(section.HTML)
		if err != nil {
			return "", fmt.Errorf("failed to convert section %q: %w", section.Title, err)
		}
		b.WriteString(body + "\n\n")
	}

	b.WriteString("---\n\nDemande générée le " + doc.GeneratedAt.Format("02/01/2006") + "\n")
	return b.String(), nil
}

// htmlToMarkdown converts editor HTML. Content that carries no tags is already markdown.
func htmlToMarkdown(content string) (string, error) {
	if !htmlTagPattern.MatchString(content) {
		return strings.TrimSpace(content), nil
	}
	markdown, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(markdown), nil
}
