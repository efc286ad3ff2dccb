package models

// LineType classifies a line of formatted content
type LineType string

const (
	LineParagraph LineType = "paragraph"
	LineBullet    LineType = "bullet"
	LineNumbered  LineType = "numbered"
)

// TextSegment is a run of text sharing the same inline styling
type TextSegment struct {
	Text   string `json:"text"`
	Bold   bool   `json:"bold,omitempty"`
	Italic bool   `json:"italic,omitempty"`
}

// ParsedLine is one classified line. Number is only set for numbered lines.
type ParsedLine struct {
	Type     LineType      `json:"type"`
	Number   *int          `json:"number,omitempty"`
	Segments []TextSegment `json:"segments"`
}
