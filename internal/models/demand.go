package models

import (
	"strings"
	"time"
)

// UrgencyLevel represents how quickly the requesting department needs the purchase
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "low"
	UrgencyNormal   UrgencyLevel = "normal"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyCritical UrgencyLevel = "critical"
)

// DemandProject represents a demand project (the structured procurement request a company drafts).
// Scalar fields are nullable: nil means the field was never provided.
type DemandProject struct {
	ID                  string    `json:"id"`
	CompanyID           string    `json:"companyId"`
	Title               *string   `json:"title"`
	Reference           *string   `json:"reference"`
	DepartmentName      *string   `json:"departmentName"`
	ContactName         *string   `json:"contactName"`
	ContactEmail        *string   `json:"contactEmail"`
	NeedType            *string   `json:"needType"`
	UrgencyLevel        *string   `json:"urgencyLevel"`
	BudgetRange         *string   `json:"budgetRange"`
	DesiredDeliveryDate *string   `json:"desiredDeliveryDate"`
	Description         *string   `json:"description"`
	Sections            []Section `json:"sections"`
	CompletenessScore   *int      `json:"completenessScore,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Section represents one titled, ordered block of rich-text content within a demand project
type Section struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	IsDefault  bool   `json:"isDefault"`
	IsRequired bool   `json:"isRequired"`
	Order      int    `json:"order"`
}

// Annex represents a supporting file attached to a demand project and kept in object storage
type Annex struct {
	ID          string    `json:"id"`
	DemandID    string    `json:"demandId"`
	FileName    string    `json:"fileName"`
	StorageKey  string    `json:"storageKey"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Company represents the tenant's company profile
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Siret     *string   `json:"siret,omitempty"`
	Address   *string   `json:"address,omitempty"`
	City      *string   `json:"city,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Value returns the dereferenced string, or "" when the field is absent.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StringPtr returns a pointer to the trimmed value, or nil when it is blank.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
