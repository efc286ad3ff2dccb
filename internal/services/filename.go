package services

import (
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	exportFilenamePrefix = "DEMANDE"
	maxReferenceLength   = 20
	maxTitleLength       = 40
	maxAnnexStemLength   = 60
)

var (
	ligatureReplacer      = strings.NewReplacer("œ", "oe", "Œ", "OE", "æ", "ae", "Æ", "AE", "ß", "ss")
	unsafeFilenamePattern = regexp.MustCompile(`[^A-Za-z0-9\s_-]`)
	separatorPattern      = regexp.MustCompile(`[\s_]+`)
)

// RemoveAccents strips diacritics: "Été" becomes "Ete".
func RemoveAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, ligatureReplacer.Replace(s))
	if err != nil {
		return s
	}
	return out
}

// SanitizeFilenamePart keeps ASCII letters, digits and hyphens, joins words with single
// underscores and truncates to maxLen characters.
func SanitizeFilenamePart(s string, maxLen int) string {
	cleaned := RemoveAccents(s)
	cleaned = unsafeFilenamePattern.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = separatorPattern.ReplaceAllString(cleaned, "_")
	if maxLen > 0 && len(cleaned) > maxLen {
		cleaned = cleaned[:maxLen]
	}
	return strings.Trim(cleaned, "_-")
}

// ExportFilename builds DEMANDE_{reference}_{title}_{YYYYMMDD}.{ext}. Empty parts are skipped.
func ExportFilename(reference, title, ext string, date time.Time) string {
	parts := []string{exportFilenamePrefix}
	if ref := SanitizeFilenamePart(reference, maxReferenceLength); ref != "" {
		parts = append(parts, ref)
	}
	if t := SanitizeFilenamePart(title, maxTitleLength); t != "" {
		parts = append(parts, t)
	}
	parts = append(parts, date.Format("20060102"))
	name := strings.Join(parts, "_")
	if ext = strings.TrimPrefix(strings.TrimSpace(ext), "."); ext != "" {
		name += "." + ext
	}
	return name
}

// AnnexArchiveName sanitizes an uploaded file name for use inside an archive, keeping its extension.
func AnnexArchiveName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := path.Ext(base)
	stem := SanitizeFilenamePart(strings.TrimSuffix(base, ext), maxAnnexStemLength)
	if stem == "" {
		stem = "annexe"
	}
	ext = strings.ToLower(SanitizeFilenamePart(strings.TrimPrefix(ext, "."), 10))
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}
