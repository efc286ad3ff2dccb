package services

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"appeloffres/api/internal/models"
)

var (
	bulletLinePattern   = regexp.MustCompile(`^[-*•]\s+(.*)$`)
	numberedLinePattern = regexp.MustCompile(`^(\d+)\.\s+(.*)$`)
	blankLinePattern    = regexp.MustCompile(`\n[ \t]*\n`)
)

// inlineMarker is one emphasis delimiter. Markers are tried in slice order at every position.
type inlineMarker struct {
	delim  string
	bold   bool
	italic bool
}

var inlineMarkers = []inlineMarker{
	{delim: "***", bold: true, italic: true},
	{delim: "**", bold: true},
	{delim: "*", italic: true},
}

// ParseInlineMarkdown splits text into styled segments. At each '*' the markers are tried longest
// first; the first one with a closing delimiter on the same line wins. Unmatched '*' stay literal.
func ParseInlineMarkdown(text string) []models.TextSegment {
	var segments []models.TextSegment
	var plain strings.Builder

	flush := func() {
		if plain.Len() > 0 {
			segments = append(segments, models.TextSegment{Text: plain.String()})
			plain.Reset()
		}
	}

	i := 0
	for i < len(text) {
		if text[i] != '*' {
			plain.WriteByte(text[i])
			i++
			continue
		}
		matched := false
		for _, m := range inlineMarkers {
			inner, end, ok := matchSpan(text, i, m.delim)
			if !ok {
				continue
			}
			flush()
			segments = append(segments, models.TextSegment{Text: inner, Bold: m.bold, Italic: m.italic})
			i = end
			matched = true
			break
		}
		if !matched {
			plain.WriteByte('*')
			i++
		}
	}
	flush()

	if len(segments) == 0 {
		return []models.TextSegment{{Text: text}}
	}
	return segments
}

// matchSpan looks for delim at pos and its closing delim after at least one byte of content.
// Returns the content and the index just past the closing delimiter.
func matchSpan(text string, pos int, delim string) (string, int, bool) {
	if !strings.HasPrefix(text[pos:], delim) {
		return "", 0, false
	}
	start := pos + len(delim)
	if start >= len(text) {
		return "", 0, false
	}
	rel := strings.Index(text[start+1:], delim)
	if rel < 0 {
		return "", 0, false
	}
	closeAt := start + 1 + rel
	inner := text[start:closeAt]
	if strings.Contains(inner, "\n") {
		return "", 0, false
	}
	return inner, closeAt + len(delim), true
}

// ParseLine classifies a single line and parses its inline styling.
func ParseLine(line string) models.ParsedLine {
	trimmed := strings.TrimSpace(line)

	if m := bulletLinePattern.FindStringSubmatch(trimmed); m != nil {
		return models.ParsedLine{Type: models.LineBullet, Segments: ParseInlineMarkdown(m[1])}
	}
	if m := numberedLinePattern.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return models.ParsedLine{Type: models.LineNumbered, Number: &n, Segments: ParseInlineMarkdown(m[2])}
		}
	}
	return models.ParsedLine{Type: models.LineParagraph, Segments: ParseInlineMarkdown(trimmed)}
}

// ParseMarkdownContent turns editor content into blocks of classified lines.
// Blocks are separated by blank lines in the stripped text.
func ParseMarkdownContent(content string) [][]models.ParsedLine {
	blocks := [][]models.ParsedLine{}
	for _, group := range splitBlocks(StripHTML(content)) {
		lines := make([]models.ParsedLine, 0, len(group))
		for _, line := range group {
			lines = append(lines, ParseLine(line))
		}
		blocks = append(blocks, lines)
	}
	return blocks
}

// splitBlocks splits text on blank lines and drops blank lines inside each block.
func splitBlocks(text string) [][]string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var blocks [][]string
	for _, para := range blankLinePattern.Split(text, -1) {
		var lines []string
		for _, line := range strings.Split(para, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		if len(lines) > 0 {
			blocks = append(blocks, lines)
		}
	}
	return blocks
}

// MarkdownToHTML renders editor content (or plain markdown) as preview HTML.
func MarkdownToHTML(content string) string {
	var b strings.Builder
	for _, block := range ParseMarkdownContent(content) {
		writeBlockHTML(&b, block)
	}
	return b.String()
}

func writeBlockHTML(b *strings.Builder, lines []models.ParsedLine) {
	switch {
	case allOfType(lines, models.LineBullet):
		writeListHTML(b, "ul", lines)
		return
	case allOfType(lines, models.LineNumbered):
		writeListHTML(b, "ol", lines)
		return
	}

	openList := ""
	inParagraph := false
	for _, line := range lines {
		tag := listTag(line.Type)
		if tag == "" {
			if openList != "" {
				b.WriteString("</" + openList + ">")
				openList = ""
			}
			if inParagraph {
				b.WriteString("<br>")
			} else {
				b.WriteString("<p>")
				inParagraph = true
			}
			b.WriteString(segmentsHTML(line.Segments))
			continue
		}
		if inParagraph {
			b.WriteString("</p>")
			inParagraph = false
		}
		if openList != tag {
			if openList != "" {
				b.WriteString("</" + openList + ">")
			}
			b.WriteString("<" + tag + ">")
			openList = tag
		}
		b.WriteString("<li>" + segmentsHTML(line.Segments) + "</li>")
	}
	if inParagraph {
		b.WriteString("</p>")
	}
	if openList != "" {
		b.WriteString("</" + openList + ">")
	}
}

func writeListHTML(b *strings.Builder, tag string, lines []models.ParsedLine) {
	b.WriteString("<" + tag + ">")
	for _, line := range lines {
		b.WriteString("<li>" + segmentsHTML(line.Segments) + "</li>")
	}
	b.WriteString("</" + tag + ">")
}

func allOfType(lines []models.ParsedLine, t models.LineType) bool {
	if len(lines) == 0 {
		return false
	}
	for _, line := range lines {
		if line.Type != t {
			return false
		}
	}
	return true
}

func listTag(t models.LineType) string {
	switch t {
	case models.LineBullet:
		return "ul"
	case models.LineNumbered:
		return "ol"
	}
	return ""
}

// FormatInlineHTML escapes text and expands emphasis markers to <strong>/<em>
// with the same precedence as ParseInlineMarkdown.
func FormatInlineHTML(text string) string {
	return segmentsHTML(ParseInlineMarkdown(text))
}

func segmentsHTML(segments []models.TextSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		escaped := html.EscapeString(seg.Text)
		switch {
		case seg.Bold && seg.Italic:
			b.WriteString("<strong><em>" + escaped + "</em></strong>")
		case seg.Bold:
			b.WriteString("<strong>" + escaped + "</strong>")
		case seg.Italic:
			b.WriteString("<em>" + escaped + "</em>")
		default:
			b.WriteString(escaped)
		}
	}
	return b.String()
}

// SegmentsText concatenates the segment texts, dropping styling.
func SegmentsText(segments []models.TextSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Text)
	}
	return b.String()
}
