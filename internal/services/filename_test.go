package services

import (
	"testing"
	"time"
)

func TestExportFilename(t *testing.T) {
	date := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		reference string
		title     string
		ext       string
		expected  string
	}{
		{"accents and punctuation", "DAO/2025-07", "Clôture Été 2025 — Réseau d'Eau", "pdf", "DEMANDE_DAO2025-07_Cloture_Ete_2025_Reseau_dEau_20250314.pdf"},
		{"no reference", "", "Achat de matériel", "docx", "DEMANDE_Achat_de_materiel_20250314.docx"},
		{"no reference nor title", "", "", "md", "DEMANDE_20250314.md"},
		{"dotted extension", "R1", "Test", ".zip", "DEMANDE_R1_Test_20250314.zip"},
		{"reference truncated", "ABCDEFGHIJKLMNOPQRSTUVWXYZ", "T", "pdf", "DEMANDE_ABCDEFGHIJKLMNOPQRST_T_20250314.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExportFilename(tt.reference, tt.title, tt.ext, date)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRemoveAccents(t *testing.T) {
	tests := map[string]string{
		"Été":          "Ete",
		"Œuvre":        "OEuvre",
		"ça va à Noël": "ca va a Noel",
		"plain":        "plain",
	}
	for input, expected := range tests {
		if got := RemoveAccents(input); got != expected {
			t.Errorf("RemoveAccents(%q): expected %q, got %q", input, expected, got)
		}
	}
}

func TestSanitizeFilenamePart(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"  a  b__c ", 0, "a_b_c"},
		{"abcdefgh", 3, "abc"},
		{"ab cd", 3, "ab"},
		{"***", 10, ""},
		{"prix/€", 0, "prix"},
	}
	for _, tt := range tests {
		if got := SanitizeFilenamePart(tt.input, tt.maxLen); got != tt.expected {
			t.Errorf("SanitizeFilenamePart(%q, %d): expected %q, got %q", tt.input, tt.maxLen, tt.expected, got)
		}
	}
}

func TestAnnexArchiveName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Devis final.XLSX", "Devis_final.xlsx"},
		{`C:\docs\Plan d'accès.pdf`, "Plan_dacces.pdf"},
		{"../../etc/passwd", "passwd"},
		{"???.pdf", "annexe.pdf"},
		{"notes", "notes"},
	}
	for _, tt := range tests {
		if got := AnnexArchiveName(tt.input); got != tt.expected {
			t.Errorf("AnnexArchiveName(%q): expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}
