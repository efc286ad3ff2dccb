package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"appeloffres/api/internal/models"
)

// Compiled regex patterns (reused across calls)
var (
	spacePattern       = regexp.MustCompile(`[ \t]{2,}`)
	pipeNumberPattern  = regexp.MustCompile(`\|[0-9]+\|`)
	doublePipePattern  = regexp.MustCompile(`\|\|+`)
	pipeOnlyPattern    = regexp.MustCompile(`^[\s|]+$`)
	leadingPipePattern = regexp.MustCompile(`^\|+\s*`)
	trailingPipeRegexp = regexp.MustCompile(`\s*\|+$`)

	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	// French numbers: 01 23 45 67 89, 01.23.45.67.89, +33 1 23 45 67 89
	phonePattern = regexp.MustCompile(`(?:\+33\s?|0)[1-9](?:[\s.-]?\d{2}){4}`)
	urlPattern   = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)

	buyerPattern    = regexp.MustCompile(`(?im)^\s*(?:pouvoir adjudicateur|entit[ée] adjudicatrice|acheteur public|acheteur|ma[iî]tre d'ouvrage)\s*:\s*(.+)$`)
	deadlinePattern = regexp.MustCompile(`(?i)date\s+(?:et\s+heure\s+)?limite\s+de\s+(?:r[ée]ception|remise|d[ée]p[oô]t)\s+des\s+(?:offres|plis|candidatures)\s*:?\s*(?:le\s+)?(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}(?:\s*(?:à|a)\s*\d{1,2}\s*[h:]\s*\d{0,2})?)`)
	lotPattern      = regexp.MustCompile(`(?im)^\s*lot\s*(?:n\s*[°o]\s*)?(\d+)\s*[:\-–]\s*(.+)$`)
	criterionRegexp = regexp.MustCompile(`(?im)^\s*(?:[-•*]|\d+[.)])?\s*([\p{L}' ]{3,60}?)\s*[:\-–]\s*(\d{1,3})\s*%`)
	validityPattern = regexp.MustCompile(`(?i)d[ée]lai\s+de\s+validit[ée]\s+des\s+offres\s*:?\s*(?:est\s+(?:fix[ée]\s+)?(?:à\s+)?)?(\d+)\s*jours`)
	durationPattern = regexp.MustCompile(`(?i)dur[ée]e\s+du\s+(?:march[ée]|contrat|accord-cadre)\s*:?\s*(?:est\s+(?:de\s+)?)?(\d+)\s*(mois|ans?|jours)`)
	headingPattern  = regexp.MustCompile(`^(?:article\s+)?\d+(?:\.\d+)*[.)]?\s+`)
)

// procedureTypes are tested in order; the first keyword found names the procedure.
var procedureTypes = []struct {
	keyword string
	label   string
}{
	{"appel d'offres ouvert", "Appel d'offres ouvert"},
	{"appel d'offres restreint", "Appel d'offres restreint"},
	{"dialogue compétitif", "Dialogue compétitif"},
	{"procédure concurrentielle avec négociation", "Procédure concurrentielle avec négociation"},
	{"procédure négociée", "Procédure négociée"},
	{"procédure adaptée", "Procédure adaptée (MAPA)"},
	{"mapa", "Procédure adaptée (MAPA)"},
}

// keyFactRules flag clauses that commonly change how a response must be prepared.
var keyFactRules = []struct {
	keywords []string
	fact     string
}{
	{[]string{"dume", "document unique de marché européen"}, "DUME accepté ou exigé"},
	{[]string{"visite obligatoire", "visite sur site obligatoire", "visite des lieux est obligatoire"}, "Visite obligatoire avant remise des offres"},
	{[]string{"variantes sont autorisées", "variantes autorisées"}, "Variantes autorisées"},
	{[]string{"variantes ne sont pas autorisées", "variantes non autorisées", "variantes interdites"}, "Variantes interdites"},
	{[]string{"versement d'une avance", "versement d’une avance", "avance forfaitaire"}, "Versement d'une avance prévu"},
	{[]string{"retenue de garantie"}, "Retenue de garantie"},
	{[]string{"signature électronique"}, "Signature électronique requise"},
	{[]string{"allotissement", "décomposé en lots", "alloti"}, "Marché alloti"},
	{[]string{"accord-cadre"}, "Accord-cadre"},
	{[]string{"clause sociale", "insertion professionnelle"}, "Clause sociale d'insertion"},
}

var excerptKeywords = []string{
	"objet", "prestations", "besoin", "exigences", "livraison", "délai", "critères",
	"prix", "valeur technique", "offre", "candidature", "lot", "durée", "remise",
	"cahier des charges", "cctp", "spécifications", "pénalités", "garantie",
}

const excerptTarget = 1000

// ComputeContentHash computes SHA256 hash of text for change detection
func ComputeContentHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

// ExtractPDFText extracts the plain text of a PDF document.
func ExtractPDFText(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract plain text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}
	return buf.String(), nil
}

// NormalizeText cleans extracted document text: unified line endings, table pipes removed,
// spaces collapsed, and at most two consecutive blank lines.
func NormalizeText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	normalized = DecodeEntities(normalized)

	var processed []string
	blankLineCount := 0
	for _, line := range strings.Split(normalized, "\n") {
		if pipeOnlyPattern.MatchString(line) && strings.Contains(line, "|") {
			continue
		}
		cleaned := pipeNumberPattern.ReplaceAllString(line, " ")
		cleaned = doublePipePattern.ReplaceAllString(cleaned, " ")
		cleaned = leadingPipePattern.ReplaceAllString(cleaned, "")
		cleaned = trailingPipeRegexp.ReplaceAllString(cleaned, "")
		cleaned = spacePattern.ReplaceAllString(cleaned, " ")
		cleaned = strings.TrimSpace(cleaned)

		if cleaned == "" {
			blankLineCount++
			if blankLineCount <= 2 {
				processed = append(processed, "")
			}
			continue
		}
		blankLineCount = 0
		processed = append(processed, cleaned)
	}

	return strings.TrimSpace(strings.Join(processed, "\n"))
}

// AnalyzeRC extracts the facts a bidder needs from the text of a consultation rules document.
func AnalyzeRC(text string) models.RCSummary {
	normalized := NormalizeText(text)
	lower := strings.ToLower(normalized)

	emails, phones, urls := extractContacts(normalized)
	summary := models.RCSummary{
		Lots:           extractLots(normalized),
		AwardCriteria:  extractCriteria(normalized),
		ContactEmails:  emails,
		ContactPhones:  phones,
		ImportantURLs:  urls,
		KeyFacts:       extractKeyFacts(normalized),
		NormalizedText: normalized,
		ContentHash:    ComputeContentHash(normalized),
	}

	if m := buyerPattern.FindStringSubmatch(normalized); m != nil {
		summary.Buyer = models.StringPtr(m[1])
	}
	for _, pt := range procedureTypes {
		if strings.Contains(lower, pt.keyword) {
			label := pt.label
			summary.ProcedureType = &label
			break
		}
	}
	if m := deadlinePattern.FindStringSubmatch(normalized); m != nil {
		summary.SubmissionDeadline = models.StringPtr(m[1])
	}
	summary.Excerpt = buildExcerpt(normalized)

	return summary
}

// extractContacts extracts emails, phone numbers, and URLs from text
func extractContacts(text string) (emails []string, phones []string, urls []string) {
	emails = deduplicateStrings(emailPattern.FindAllString(text, -1))
	phones = deduplicateStrings(phonePattern.FindAllString(text, -1))
	urls = deduplicateStrings(urlPattern.FindAllString(text, -1))
	return emails, phones, urls
}

func extractLots(text string) []models.Lot {
	lots := []models.Lot{}
	seen := make(map[int]bool)
	for _, m := range lotPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		lots = append(lots, models.Lot{Number: n, Title: strings.TrimSpace(m[2])})
	}
	return lots
}

func extractCriteria(text string) []models.AwardCriterion {
	criteria := []models.AwardCriterion{}
	seen := make(map[string]bool)
	for _, m := range criterionRegexp.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		weight, err := strconv.Atoi(m[2])
		if err != nil || weight > 100 {
			continue
		}
		seen[key] = true
		criteria = append(criteria, models.AwardCriterion{Name: name, Weight: &weight})
	}
	return criteria
}

// extractKeyFacts extracts clauses like DUME, mandatory site visits, variants, validity and duration
func extractKeyFacts(text string) []string {
	lower := strings.ToLower(text)
	facts := []string{}

	for _, rule := range keyFactRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				facts = append(facts, rule.fact)
				break
			}
		}
	}
	if m := validityPattern.FindStringSubmatch(text); m != nil {
		facts = append(facts, fmt.Sprintf("Validité des offres : %s jours", m[1]))
	}
	if m := durationPattern.FindStringSubmatch(text); m != nil {
		facts = append(facts, fmt.Sprintf("Durée du marché : %s %s", m[1], strings.ToLower(m[2])))
	}

	return deduplicateStrings(facts)
}

// deduplicateStrings removes duplicates while preserving order
func deduplicateStrings(slice []string) []string {
	seen := make(map[string]bool)
	result := []string{}
	for _, s := range slice {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}

// splitParagraphs accumulates lines until a blank line or a numbered/upper-case heading.
func splitParagraphs(text string) []string {
	var paragraphs []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		isHeading := headingPattern.MatchString(strings.ToLower(trimmed)) ||
			(len(trimmed) < 80 && isMostlyUpper(trimmed))

		if trimmed == "" || isHeading {
			flush()
			if isHeading && trimmed != "" {
				current = append(current, trimmed)
			}
			continue
		}
		current = append(current, trimmed)
	}
	flush()
	return paragraphs
}

// scoreParagraph scores a paragraph by keyword matches and penalizes boilerplate
func scoreParagraph(para string) int {
	lower := strings.ToLower(para)
	score := 0
	for _, keyword := range excerptKeywords {
		if strings.Contains(lower, keyword) {
			score += 2
		}
	}
	if isBoilerplateParagraph(para) {
		score -= 10
	}
	return score
}

// isBoilerplateParagraph flags long, mostly upper-case blocks (legal notices, headers)
func isBoilerplateParagraph(para string) bool {
	trimmed := strings.TrimSpace(para)
	if trimmed == "" {
		return true
	}
	return len(trimmed) > 100 && isMostlyUpper(trimmed)
}

// isMostlyUpper reports whether at least 80% of the letters are upper case.
func isMostlyUpper(s string) bool {
	upper, letters := 0, 0
	for _, r := range s {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= 'À' && r <= 'ÿ' {
			letters++
			if r >= 'A' && r <= 'Z' || r >= 'À' && r <= 'Þ' {
				upper++
			}
		}
	}
	return letters > 0 && upper*100/letters >= 80
}

// buildExcerpt keeps the best-scoring paragraphs, in score order, up to excerptTarget characters.
func buildExcerpt(text string) string {
	type scoredPara struct {
		text  string
		score int
	}
	var scored []scoredPara
	for _, para := range splitParagraphs(text) {
		if s := scoreParagraph(para); s > 0 {
			scored = append(scored, scoredPara{text: para, score: s})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	var b strings.Builder
	for _, sp := range scored {
		sep := ""
		if b.Len() > 0 {
			sep = "\n\n"
		}
		remaining := excerptTarget - b.Len() - len(sep)
		if remaining <= 3 {
			break
		}
		b.WriteString(sep)
		if len(sp.text) <= remaining {
			b.WriteString(sp.text)
			continue
		}
		b.WriteString(truncateRunes(sp.text, remaining-3))
		b.WriteString("...")
		break
	}
	return b.String()
}

// truncateRunes cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}
