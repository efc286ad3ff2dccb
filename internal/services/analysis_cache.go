package services

import (
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"

	"appeloffres/api/internal/models"
)

const defaultAnalysisCacheSize = 1024

// AnalysisCache memoizes completeness results by content hash. Results are pure functions of the
// project content, so entries never need invalidation; stale keys simply age out.
type AnalysisCache struct {
	cache *lru.Cache[string, models.CompletenessResult]
}

// NewAnalysisCache creates a cache holding up to size results (1024 when size <= 0).
func NewAnalysisCache(size int) (*AnalysisCache, error) {
	if size <= 0 {
		size = defaultAnalysisCacheSize
	}
	cache, err := lru.New[string, models.CompletenessResult](size)
	if err != nil {
		return nil, err
	}
	return &AnalysisCache{cache: cache}, nil
}

// Check returns the completeness of p, computing it on a cache miss.
func (c *AnalysisCache) Check(p models.DemandProject) models.CompletenessResult {
	if c == nil || c.cache == nil {
		return CheckCompleteness(p)
	}
	key, ok := analysisKey(p)
	if !ok {
		return CheckCompleteness(p)
	}
	if result, found := c.cache.Get(key); found {
		return result
	}
	result := CheckCompleteness(p)
	c.cache.Add(key, result)
	return result
}

// Len reports the number of cached results.
func (c *AnalysisCache) Len() int {
	if c == nil || c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

// analysisKey hashes only what the analyzer reads, so timestamps and ids of the project itself
// do not split the cache.
func analysisKey(p models.DemandProject) (string, bool) {
	payload := struct {
		Title               *string          `json:"title"`
		Reference           *string          `json:"reference"`
		DepartmentName      *string          `json:"departmentName"`
		ContactName         *string          `json:"contactName"`
		ContactEmail        *string          `json:"contactEmail"`
		NeedType            *string          `json:"needType"`
		BudgetRange         *string          `json:"budgetRange"`
		DesiredDeliveryDate *string          `json:"desiredDeliveryDate"`
		Description         *string          `json:"description"`
		Sections            []models.Section `json:"sections"`
	}{
		Title:               p.Title,
		Reference:           p.Reference,
		DepartmentName:      p.DepartmentName,
		ContactName:         p.ContactName,
		ContactEmail:        p.ContactEmail,
		NeedType:            p.NeedType,
		BudgetRange:         p.BudgetRange,
		DesiredDeliveryDate: p.DesiredDeliveryDate,
		Description:         p.Description,
		Sections:            p.Sections,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", false
	}
	return ComputeContentHash(string(data)), true
}
