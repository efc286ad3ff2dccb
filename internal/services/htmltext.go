package services

import (
	"regexp"
	"strings"
)

// tagSubstitution maps one family of HTML tags to its plain-text or markdown replacement.
type tagSubstitution struct {
	pattern     *regexp.Regexp
	replacement string
}

// tagSubstitutions is applied top to bottom. The catch-all entry must stay last.
var tagSubstitutions = []tagSubstitution{
	{regexp.MustCompile(`(?i)<br\s*/?>`), "\n"},
	{regexp.MustCompile(`(?i)</p\s*>`), "\n\n"},
	{regexp.MustCompile(`(?i)<p(?:\s[^>]*)?>`), ""},
	{regexp.MustCompile(`(?i)<li(?:\s[^>]*)?>`), "- "},
	{regexp.MustCompile(`(?i)</li\s*>`), "\n"},
	{regexp.MustCompile(`(?i)</?(?:ul|ol)(?:\s[^>]*)?>`), "\n"},
	{regexp.MustCompile(`(?i)</h[1-6]\s*>`), "\n\n"},
	{regexp.MustCompile(`(?i)</div\s*>`), "\n"},
	{regexp.MustCompile(`(?i)</?(?:strong|b)(?:\s[^>]*)?>`), "**"},
	{regexp.MustCompile(`(?i)</?(?:em|i)(?:\s[^>]*)?>`), "*"},
	{htmlTagPattern, ""},
}

// entityReplacer decodes the entities rich-text editors emit. It runs in a single pass so
// "&amp;lt;" decodes to "&lt;" and not to "<".
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

var (
	htmlTagPattern       = regexp.MustCompile(`<[^>]*>`)
	excessNewlinePattern = regexp.MustCompile(`\n{3,}`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
)

// StripHTML converts editor HTML into the restricted markdown subset used by the exports:
// line and paragraph breaks, "- " list items, ** bold and * italic markers.
func StripHTML(html string) string {
	if html == "" {
		return ""
	}
	text := strings.ReplaceAll(html, "\r\n", "\n")
	for _, sub := range tagSubstitutions {
		text = sub.pattern.ReplaceAllLiteralString(text, sub.replacement)
	}
	text = DecodeEntities(text)
	text = excessNewlinePattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// DecodeEntities decodes the fixed entity table. Other entities are left untouched.
func DecodeEntities(s string) string {
	return entityReplacer.Replace(s)
}

// PlainText removes every tag (each one counts as a word break), decodes entities and collapses whitespace.
func PlainText(html string) string {
	if html == "" {
		return ""
	}
	text := htmlTagPattern.ReplaceAllLiteralString(html, " ")
	text = DecodeEntities(text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// CountWords counts whitespace-separated words of the plain text.
func CountWords(html string) int {
	plain := PlainText(html)
	if plain == "" {
		return 0
	}
	return len(strings.Fields(plain))
}

// HasText reports whether a nullable field carries any visible text.
func HasText(s *string) bool {
	return s != nil && PlainText(*s) != ""
}
