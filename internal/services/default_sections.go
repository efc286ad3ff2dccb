package services

import (
	"github.com/google/uuid"

	"appeloffres/api/internal/models"
)

type sectionTemplate struct {
	title    string
	required bool
}

// defaultSectionTemplates is the skeleton of a new demand, in display order.
var defaultSectionTemplates = []sectionTemplate{
	{"Contexte et objectifs", true},
	{"Description du besoin", true},
	{"Contraintes techniques", false},
	{"Livrables attendus", true},
	{"Planning et délais", false},
	{"Critères de sélection", false},
}

// DefaultSections returns the sections a demand starts with, each with a fresh id.
func DefaultSections() []models.Section {
	sections := make([]models.Section, 0, len(defaultSectionTemplates))
	for i, tpl := range defaultSectionTemplates {
		sections = append(sections, models.Section{
			ID:         uuid.NewString(),
			Title:      tpl.title,
			IsDefault:  true,
			IsRequired: tpl.required,
			Order:      i,
		})
	}
	return sections
}
