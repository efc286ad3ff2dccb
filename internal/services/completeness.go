package services

import (
	"fmt"
	"math"
	"sort"

	"appeloffres/api/internal/models"
)

// Category weights of the completeness percentage. They sum to 1.
const (
	requiredWeight    = 0.5
	recommendedWeight = 0.2
	sectionWeight     = 0.3

	// minCompleteWords is the word count from which a section counts as complete.
	minCompleteWords = 10
)

const (
	requiredFieldMessage = "Champ obligatoire"
	noSectionsWarning    = "Aucune section de contenu définie"
)

type fieldRule struct {
	field string
	label string
	hint  string
	value func(p *models.DemandProject) *string
}

var requiredFieldRules = []fieldRule{
	{field: "title", label: "Titre du projet", value: func(p *models.DemandProject) *string { return p.Title }},
	{field: "departmentName", label: "Service demandeur", value: func(p *models.DemandProject) *string { return p.DepartmentName }},
	{field: "contactName", label: "Nom du contact", value: func(p *models.DemandProject) *string { return p.ContactName }},
	{field: "needType", label: "Type de besoin", value: func(p *models.DemandProject) *string { return p.NeedType }},
}

var recommendedFieldRules = []fieldRule{
	{
		field: "reference", label: "Référence interne", hint: "Facilite le suivi de la demande",
		value: func(p *models.DemandProject) *string { return p.Reference },
	},
	{
		field: "contactEmail", label: "Email du contact", hint: "Permet aux acheteurs de vous recontacter",
		value: func(p *models.DemandProject) *string { return p.ContactEmail },
	},
	{
		field: "budgetRange", label: "Fourchette budgétaire", hint: "Important pour l'évaluation",
		value: func(p *models.DemandProject) *string { return p.BudgetRange },
	},
	{
		field: "desiredDeliveryDate", label: "Date de livraison souhaitée", hint: "Aide à planifier la procédure",
		value: func(p *models.DemandProject) *string { return p.DesiredDeliveryDate },
	},
	{
		field: "description", label: "Description du besoin", hint: "Donne le contexte de la demande",
		value: func(p *models.DemandProject) *string { return p.Description },
	},
}

// CheckCompleteness scores how filled-in a demand project is.
// Only required fields decide IsComplete; recommended fields and sections weigh on the percentage.
func CheckCompleteness(p models.DemandProject) models.CompletenessResult {
	result := models.CompletenessResult{
		RequiredFields:    make([]models.FieldCheck, 0, len(requiredFieldRules)),
		RecommendedFields: make([]models.FieldCheck, 0, len(recommendedFieldRules)),
		Sections:          make([]models.SectionCheck, 0, len(p.Sections)),
		Warnings:          []string{},
	}

	requiredPassed := 0
	for _, rule := range requiredFieldRules {
		check := models.FieldCheck{Field: rule.field, Label: rule.label, Status: models.CheckComplete}
		if HasText(rule.value(&p)) {
			requiredPassed++
		} else {
			msg := requiredFieldMessage
			check.Status = models.CheckIncomplete
			check.Message = &msg
		}
		result.RequiredFields = append(result.RequiredFields, check)
	}

	recommendedPassed := 0
	for _, rule := range recommendedFieldRules {
		check := models.FieldCheck{Field: rule.field, Label: rule.label, Status: models.CheckComplete}
		if HasText(rule.value(&p)) {
			recommendedPassed++
		} else {
			hint := rule.hint
			check.Status = models.CheckWarning
			check.Message = &hint
		}
		result.RecommendedFields = append(result.RecommendedFields, check)
	}

	sectionsPassed := 0
	for _, section := range sortedSections(p.Sections) {
		check, warning := checkSection(section)
		if check.Status == models.SectionComplete {
			sectionsPassed++
		}
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
		result.Sections = append(result.Sections, check)
	}
	if len(p.Sections) == 0 {
		result.Warnings = append(result.Warnings, noSectionsWarning)
	}

	score := requiredWeight*ratio(requiredPassed, len(requiredFieldRules)) +
		recommendedWeight*ratio(recommendedPassed, len(recommendedFieldRules)) +
		sectionWeight*ratio(sectionsPassed, len(p.Sections))

	result.Percentage = clampPercentage(int(math.Round(score * 100)))
	result.IsComplete = requiredPassed == len(requiredFieldRules)
	result.TotalChecks = len(requiredFieldRules) + len(recommendedFieldRules) + len(p.Sections)
	result.PassedChecks = requiredPassed + recommendedPassed + sectionsPassed
	return result
}

func checkSection(section models.Section) (models.SectionCheck, string) {
	words := CountWords(section.Content)
	check := models.SectionCheck{ID: section.ID, Title: section.Title, WordCount: words}

	switch {
	case words == 0:
		check.Status = models.SectionEmpty
		if section.IsRequired {
			return check, fmt.Sprintf("Section \"%s\" obligatoire mais vide", section.Title)
		}
	case words < minCompleteWords:
		check.Status = models.SectionPartial
		return check, fmt.Sprintf("Section \"%s\" semble incomplète (%d mots)", section.Title, words)
	default:
		check.Status = models.SectionComplete
	}
	return check, ""
}

// sortedSections returns a copy of sections ordered by Order; ties keep their input order.
func sortedSections(sections []models.Section) []models.Section {
	sorted := make([]models.Section, len(sections))
	copy(sorted, sections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})
	return sorted
}

// ratio is passed/total, with an empty category counting as fully satisfied.
func ratio(passed, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(passed) / float64(total)
}

func clampPercentage(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
