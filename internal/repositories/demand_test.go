package repositories

import (
	"testing"

	"appeloffres/api/internal/models"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"réseau", "réseau"},
		{"100%", `100\%`},
		{"lot_1", `lot\_1`},
		{`a\b`, `a\\b`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.input); got != tt.expected {
			t.Errorf("escapeLike(%q): expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestNormalizeSections(t *testing.T) {
	sections := []models.Section{
		{ID: "keep", Title: "  Contexte "},
		{Title: "Besoin"},
		{ID: "  ", Title: "Planning"},
	}
	normalizeSections(sections)

	if sections[0].ID != "keep" {
		t.Errorf("Expected existing id to be kept, got %q", sections[0].ID)
	}
	if sections[0].Title != "Contexte" {
		t.Errorf("Expected trimmed title, got %q", sections[0].Title)
	}
	if sections[1].ID == "" || sections[2].ID == "" || sections[1].ID == sections[2].ID {
		t.Errorf("Expected distinct generated ids, got %q and %q", sections[1].ID, sections[2].ID)
	}
}
