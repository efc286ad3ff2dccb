package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"appeloffres/api/internal/models"
	"appeloffres/api/internal/services"
)

// ErrNotFound is returned when no row matches, including rows owned by another company.
var ErrNotFound = errors.New("not found")

type DemandRepository struct {
	db *pgxpool.Pool
}

func NewDemandRepository(db *pgxpool.Pool) *DemandRepository {
	return &DemandRepository{db: db}
}

type ListParams struct {
	SearchText string
	Limit      int
	Offset     int
}

type ListResult struct {
	Items        []models.DemandProject `json:"items"`
	TotalRecords int                    `json:"totalRecords"`
	Limit        int                    `json:"limit"`
	Offset       int                    `json:"offset"`
	HasMore      bool                   `json:"hasMore"`
}

const demandColumns = `
	id, company_id, title, reference, department_name, contact_name, contact_email,
	need_type, urgency_level, budget_range, desired_delivery_date, description,
	completeness_score, created_at, updated_at`

// List returns the company's demands, most recently updated first. Sections are not loaded.
func (r *DemandRepository) List(ctx context.Context, companyID string, params ListParams) (*ListResult, error) {
	conditions := []string{"company_id = $1"}
	args := []interface{}{companyID}
	argPos := 2

	if params.SearchText != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(COALESCE(title, '') || ' ' || COALESCE(reference, '') || ' ' || COALESCE(department_name, '')) ILIKE $%d",
			argPos,
		))
		args = append(args, "%"+escapeLike(params.SearchText)+"%")
		argPos++
	}
	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	var totalRecords int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM demand_projects "+whereClause, args...).Scan(&totalRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to count demands: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM demand_projects
		%s
		ORDER BY updated_at DESC, id
		LIMIT $%d OFFSET $%d
	`, demandColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query demands: %w", err)
	}
	defer rows.Close()

	items := []models.DemandProject{}
	for rows.Next() {
		p, err := scanDemand(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan demand: %w", err)
		}
		p.Sections = []models.Section{}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating demands: %w", err)
	}

	return &ListResult{
		Items:        items,
		TotalRecords: totalRecords,
		Limit:        limit,
		Offset:       offset,
		HasMore:      offset+len(items) < totalRecords,
	}, nil
}

// Get loads one demand with its sections ordered by display order.
func (r *DemandRepository) Get(ctx context.Context, companyID, id string) (*models.DemandProject, error) {
	row := r.db.QueryRow(ctx, "SELECT "+demandColumns+" FROM demand_projects WHERE id = $1 AND company_id = $2", id, companyID)
	p, err := scanDemand(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get demand: %w", err)
	}

	sections, err := r.loadSections(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Sections = sections
	return p, nil
}

// Create inserts a new demand. It gets the default sections when none are given.
func (r *DemandRepository) Create(ctx context.Context, companyID string, p *models.DemandProject) error {
	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.CompanyID = companyID
	p.CreatedAt = now
	p.UpdatedAt = now
	if len(p.Sections) == 0 {
		p.Sections = services.DefaultSections()
	}
	normalizeSections(p.Sections)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO demand_projects (
			id, company_id, title, reference, department_name, contact_name, contact_email,
			need_type, urgency_level, budget_range, desired_delivery_date, description,
			completeness_score, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		p.ID, p.CompanyID, p.Title, p.Reference, p.DepartmentName, p.ContactName, p.ContactEmail,
		p.NeedType, p.UrgencyLevel, p.BudgetRange, p.DesiredDeliveryDate, p.Description,
		p.CompletenessScore, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert demand: %w", err)
	}

	if err := insertSections(ctx, tx, p.ID, p.Sections); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit demand: %w", err)
	}
	return nil
}

// Update saves the scalar fields of p. Sections are saved with ReplaceSections or UpdateWithSections.
func (r *DemandRepository) Update(ctx context.Context, companyID string, p *models.DemandProject) error {
	return updateDemand(ctx, r.db, companyID, p)
}

// UpdateWithSections saves the scalar fields and the section list of p in one transaction.
func (r *DemandRepository) UpdateWithSections(ctx context.Context, companyID string, p *models.DemandProject) error {
	normalizeSections(p.Sections)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := updateDemand(ctx, tx, companyID, p); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM demand_sections WHERE demand_id = $1", p.ID); err != nil {
		return fmt.Errorf("failed to delete sections: %w", err)
	}
	if err := insertSections(ctx, tx, p.ID, p.Sections); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit demand: %w", err)
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func updateDemand(ctx context.Context, db execer, companyID string, p *models.DemandProject) error {
	p.UpdatedAt = time.Now().UTC()
	tag, err := db.Exec(ctx, `
		UPDATE demand_projects SET
			title = $3,
			reference = $4,
			department_name = $5,
			contact_name = $6,
			contact_email = $7,
			need_type = $8,
			urgency_level = $9,
			budget_range = $10,
			desired_delivery_date = $11,
			description = $12,
			completeness_score = $13,
			updated_at = $14
		WHERE id = $1 AND company_id = $2
	`,
		p.ID, companyID, p.Title, p.Reference, p.DepartmentName, p.ContactName, p.ContactEmail,
		p.NeedType, p.UrgencyLevel, p.BudgetRange, p.DesiredDeliveryDate, p.Description,
		p.CompletenessScore, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update demand: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a demand. Sections and annex rows go with it (ON DELETE CASCADE).
func (r *DemandRepository) Delete(ctx context.Context, companyID, id string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM demand_projects WHERE id = $1 AND company_id = $2", id, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete demand: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceSections swaps the whole section list of a demand in one transaction.
func (r *DemandRepository) ReplaceSections(ctx context.Context, companyID, demandID string, sections []models.Section) error {
	normalizeSections(sections)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, "UPDATE demand_projects SET updated_at = $3 WHERE id = $1 AND company_id = $2",
		demandID, companyID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to touch demand: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, "DELETE FROM demand_sections WHERE demand_id = $1", demandID); err != nil {
		return fmt.Errorf("failed to delete sections: %w", err)
	}
	if err := insertSections(ctx, tx, demandID, sections); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sections: %w", err)
	}
	return nil
}

// UpdateSectionContent replaces the content of a single section.
func (r *DemandRepository) UpdateSectionContent(ctx context.Context, companyID, demandID, sectionID, content string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE demand_sections s SET content = $4
		FROM demand_projects d
		WHERE s.demand_id = d.id AND d.id = $1 AND d.company_id = $2 AND s.id = $3
	`, demandID, companyID, sectionID, content)
	if err != nil {
		return fmt.Errorf("failed to update section: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	_, err = r.db.Exec(ctx, "UPDATE demand_projects SET updated_at = $2 WHERE id = $1", demandID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to touch demand: %w", err)
	}
	return nil
}

// SaveCompleteness stores the last computed completeness percentage without touching updated_at.
func (r *DemandRepository) SaveCompleteness(ctx context.Context, companyID, demandID string, score int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE demand_projects SET completeness_score = $3, completeness_checked_at = $4
		WHERE id = $1 AND company_id = $2
	`, demandID, companyID, score, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save completeness: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DemandRepository) loadSections(ctx context.Context, demandID string) ([]models.Section, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, title, content, is_default, is_required, sort_order
		FROM demand_sections
		WHERE demand_id = $1
		ORDER BY sort_order, id
	`, demandID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	sections := []models.Section{}
	for rows.Next() {
		var s models.Section
		if err := rows.Scan(&s.ID, &s.Title, &s.Content, &s.IsDefault, &s.IsRequired, &s.Order); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sections: %w", err)
	}
	return sections, nil
}

func insertSections(ctx context.Context, tx pgx.Tx, demandID string, sections []models.Section) error {
	if len(sections) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, s := range sections {
		batch.Queue(`
			INSERT INTO demand_sections (demand_id, id, title, content, is_default, is_required, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, demandID, s.ID, s.Title, s.Content, s.IsDefault, s.IsRequired, s.Order)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert sections: %w", err)
	}
	return nil
}

// normalizeSections assigns ids to new sections and trims titles.
func normalizeSections(sections []models.Section) {
	for i := range sections {
		if strings.TrimSpace(sections[i].ID) == "" {
			sections[i].ID = uuid.NewString()
		}
		sections[i].Title = strings.TrimSpace(sections[i].Title)
	}
}

func scanDemand(row pgx.Row) (*models.DemandProject, error) {
	var p models.DemandProject
	err := row.Scan(
		&p.ID,
		&p.CompanyID,
		&p.Title,
		&p.Reference,
		&p.DepartmentName,
		&p.ContactName,
		&p.ContactEmail,
		&p.NeedType,
		&p.UrgencyLevel,
		&p.BudgetRange,
		&p.DesiredDeliveryDate,
		&p.Description,
		&p.CompletenessScore,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}
