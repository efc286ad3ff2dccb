package models

// AwardCriterion is one weighted criterion from a consultation rules document
type AwardCriterion struct {
	Name   string `json:"name"`
	Weight *int   `json:"weight,omitempty"`
}

// Lot is one lot of a tender
type Lot struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// RCSummary represents structured facts extracted from a Règlement de Consultation
type RCSummary struct {
	Buyer              *string          `json:"buyer,omitempty"`
	ProcedureType      *string          `json:"procedureType,omitempty"`
	SubmissionDeadline *string          `json:"submissionDeadline,omitempty"`
	Lots               []Lot            `json:"lots"`
	AwardCriteria      []AwardCriterion `json:"awardCriteria"`
	ContactEmails      []string         `json:"contactEmails"`
	ContactPhones      []string         `json:"contactPhones"`
	ImportantURLs      []string         `json:"importantUrls"`
	KeyFacts           []string         `json:"keyFacts"`
	Excerpt            string           `json:"excerpt"`
	NormalizedText     string           `json:"normalizedText"`
	ContentHash        string           `json:"contentHash"`
}
