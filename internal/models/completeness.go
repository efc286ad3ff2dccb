package models

// CheckStatus represents the outcome of a single field check
type CheckStatus string

const (
	CheckComplete   CheckStatus = "complete"
	CheckIncomplete CheckStatus = "incomplete"
	CheckWarning    CheckStatus = "warning"
)

// SectionStatus represents how filled-in a section is
type SectionStatus string

const (
	SectionComplete SectionStatus = "complete"
	SectionEmpty    SectionStatus = "empty"
	SectionPartial  SectionStatus = "partial"
)

// FieldCheck is the result of checking one scalar field of a demand project
type FieldCheck struct {
	Field   string      `json:"field"`
	Label   string      `json:"label"`
	Status  CheckStatus `json:"status"`
	Message *string     `json:"message,omitempty"`
}

// SectionCheck is the result of checking one section
type SectionCheck struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Status    SectionStatus `json:"status"`
	WordCount int           `json:"wordCount"`
}

// CompletenessResult is the outcome of a completeness analysis.
// IsComplete only reflects required fields; Percentage also weighs recommended fields and sections.
type CompletenessResult struct {
	IsComplete        bool           `json:"isComplete"`
	Percentage        int            `json:"percentage"`
	RequiredFields    []FieldCheck   `json:"requiredFields"`
	RecommendedFields []FieldCheck   `json:"recommendedFields"`
	Sections          []SectionCheck `json:"sections"`
	TotalChecks       int            `json:"totalChecks"`
	PassedChecks      int            `json:"passedChecks"`
	Warnings          []string       `json:"warnings"`
}
