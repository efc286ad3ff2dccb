package services

import (
	"reflect"
	"testing"

	"appeloffres/api/internal/models"
)

func TestParseInlineMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []models.TextSegment
	}{
		{"plain", "texte simple", []models.TextSegment{{Text: "texte simple"}}},
		{"empty", "", []models.TextSegment{{Text: ""}}},
		{"bold", "un **deux** trois", []models.TextSegment{
			{Text: "un "}, {Text: "deux", Bold: true}, {Text: " trois"},
		}},
		{"italic", "*un*", []models.TextSegment{{Text: "un", Italic: true}}},
		{"bold italic wins over bold", "***fort***", []models.TextSegment{{Text: "fort", Bold: true, Italic: true}}},
		{"mixed", "**a** et *b*", []models.TextSegment{
			{Text: "a", Bold: true}, {Text: " et "}, {Text: "b", Italic: true},
		}},
		{"unmatched star stays literal", "5 * 3", []models.TextSegment{{Text: "5 * 3"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseInlineMarkdown(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestParseLine(t *testing.T) {
	line := ParseLine("  - premier point")
	if line.Type != models.LineBullet {
		t.Fatalf("Expected bullet, got %q", line.Type)
	}
	if SegmentsText(line.Segments) != "premier point" {
		t.Errorf("Unexpected text %q", SegmentsText(line.Segments))
	}

	line = ParseLine("12. douzième")
	if line.Type != models.LineNumbered || line.Number == nil || *line.Number != 12 {
		t.Fatalf("Expected numbered line 12, got %+v", line)
	}

	line = ParseLine("*italique* en début")
	if line.Type != models.LineParagraph {
		t.Errorf("Expected paragraph for leading emphasis, got %q", line.Type)
	}

	line = ParseLine("• puce")
	if line.Type != models.LineBullet {
		t.Errorf("Expected bullet for •, got %q", line.Type)
	}
}

func TestParseMarkdownContent(t *testing.T) {
	blocks := ParseMarkdownContent("<p>Intro</p><ul><li>un</li><li>deux</li></ul><p>Fin</p>")
	if len(blocks) != 3 {
		t.Fatalf("Expected 3 blocks, got %d: %+v", len(blocks), blocks)
	}
	if len(blocks[1]) != 2 || blocks[1][0].Type != models.LineBullet {
		t.Errorf("Expected a 2-item bullet block, got %+v", blocks[1])
	}

	empty := ParseMarkdownContent("<p> </p>")
	if empty == nil || len(empty) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", empty)
	}
}

func TestMarkdownToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"paragraph", "Bonjour", "<p>Bonjour</p>"},
		{"two paragraphs", "Un\n\nDeux", "<p>Un</p><p>Deux</p>"},
		{"line break", "Un\nDeux", "<p>Un<br>Deux</p>"},
		{"bullets", "- a\n- **b**", "<ul><li>a</li><li><strong>b</strong></li></ul>"},
		{"numbered", "1. a\n2. b", "<ol><li>a</li><li>b</li></ol>"},
		{"mixed block", "Liste :\n- a\n- b\nFin", "<p>Liste :</p><ul><li>a</li><li>b</li></ul><p>Fin</p>"},
		{"escaped", "a < b & c", "<p>a &lt; b &amp; c</p>"},
		{"bold italic", "***x***", "<p><strong><em>x</em></strong></p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MarkdownToHTML(tt.input)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestMarkdownToHTMLRoundTrip(t *testing.T) {
	input := "Intro **forte**\nsuite\n\n- un\n- *deux*"
	first := ParseMarkdownContent(input)
	second := ParseMarkdownContent(MarkdownToHTML(input))
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected rendering to parse back identically.\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
