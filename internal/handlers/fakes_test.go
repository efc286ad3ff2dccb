package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"appeloffres/api/internal/models"
	"appeloffres/api/internal/repositories"
	"appeloffres/api/internal/services"
)

type fakeDemandStore struct {
	mu      sync.Mutex
	demands map[string]*models.DemandProject
	nextID  int
	scores  map[string]int

	// updateErr, when set, fails Update and UpdateWithSections without changing anything.
	updateErr error
}

func newFakeDemandStore() *fakeDemandStore {
	return &fakeDemandStore{
		demands: make(map[string]*models.DemandProject),
		scores:  make(map[string]int),
	}
}

func (s *fakeDemandStore) owned(companyID, id string) (*models.DemandProject, error) {
	p, ok := s.demands[id]
	if !ok || p.CompanyID != companyID {
		return nil, repositories.ErrNotFound
	}
	return p, nil
}

func copyDemand(p *models.DemandProject) *models.DemandProject {
	c := *p
	c.Sections = append([]models.Section{}, p.Sections...)
	return &c
}

func (s *fakeDemandStore) List(_ context.Context, companyID string, params repositories.ListParams) (*repositories.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []models.DemandProject{}
	for _, p := range s.demands {
		if p.CompanyID == companyID {
			items = append(items, *copyDemand(p))
		}
	}
	return &repositories.ListResult{Items: items, TotalRecords: len(items), Limit: params.Limit}, nil
}

func (s *fakeDemandStore) Get(_ context.Context, companyID, id string) (*models.DemandProject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.owned(companyID, id)
	if err != nil {
		return nil, err
	}
	return copyDemand(p), nil
}

func (s *fakeDemandStore) Create(_ context.Context, companyID string, p *models.DemandProject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = fmt.Sprintf("demand-%d", s.nextID)
	p.CompanyID = companyID
	if len(p.Sections) == 0 {
		p.Sections = services.DefaultSections()
	}
	fillSectionIDs(p.Sections)
	s.demands[p.ID] = copyDemand(p)
	return nil
}

func (s *fakeDemandStore) Update(_ context.Context, companyID string, p *models.DemandProject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	existing, err := s.owned(companyID, p.ID)
	if err != nil {
		return err
	}
	updated := copyDemand(p)
	updated.Sections = existing.Sections
	s.demands[p.ID] = updated
	return nil
}

func (s *fakeDemandStore) UpdateWithSections(_ context.Context, companyID string, p *models.DemandProject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, err := s.owned(companyID, p.ID); err != nil {
		return err
	}
	fillSectionIDs(p.Sections)
	s.demands[p.ID] = copyDemand(p)
	return nil
}

func (s *fakeDemandStore) Delete(_ context.Context, companyID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.owned(companyID, id); err != nil {
		return err
	}
	delete(s.demands, id)
	return nil
}

func (s *fakeDemandStore) ReplaceSections(_ context.Context, companyID, demandID string, sections []models.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.owned(companyID, demandID)
	if err != nil {
		return err
	}
	fillSectionIDs(sections)
	p.Sections = append([]models.Section{}, sections...)
	return nil
}

func (s *fakeDemandStore) UpdateSectionContent(_ context.Context, companyID, demandID, sectionID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.owned(companyID, demandID)
	if err != nil {
		return err
	}
	for i := range p.Sections {
		if p.Sections[i].ID == sectionID {
			p.Sections[i].Content = content
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (s *fakeDemandStore) SaveCompleteness(_ context.Context, companyID, demandID string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.owned(companyID, demandID)
	if err != nil {
		return err
	}
	p.CompletenessScore = &score
	s.scores[demandID] = score
	return nil
}

func fillSectionIDs(sections []models.Section) {
	for i := range sections {
		if strings.TrimSpace(sections[i].ID) == "" {
			sections[i].ID = fmt.Sprintf("section-%d", i+1)
		}
	}
}

type fakeAnnexStore struct {
	annexes map[string][]models.Annex
}

func (s *fakeAnnexStore) ListByDemand(_ context.Context, _ string, demandID string) ([]models.Annex, error) {
	return s.annexes[demandID], nil
}

type fakeCompanyStore struct {
	mu        sync.Mutex
	companies map[string]*models.Company
}

func newFakeCompanyStore() *fakeCompanyStore {
	return &fakeCompanyStore{companies: make(map[string]*models.Company)}
}

func (s *fakeCompanyStore) Get(_ context.Context, id string) (*models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *fakeCompanyStore) Upsert(_ context.Context, c *models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.UpdatedAt = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	copied := *c
	s.companies[c.ID] = &copied
	return nil
}

type fakeDrafter struct {
	content string
	err     error
	calls   int
}

func (d *fakeDrafter) DraftSection(_ context.Context, p models.DemandProject, sectionID, _ string, _ *models.RCSummary) (models.Section, error) {
	d.calls++
	if d.err != nil {
		return models.Section{}, d.err
	}
	for _, s := range p.Sections {
		if s.ID == sectionID {
			s.Content = d.content
			return s, nil
		}
	}
	return models.Section{}, services.ErrSectionNotFound
}
