package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"appeloffres/api/internal/models"
)

type CompanyRepository struct {
	db *pgxpool.Pool
}

func NewCompanyRepository(db *pgxpool.Pool) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// Get loads the company profile.
func (r *CompanyRepository) Get(ctx context.Context, id string) (*models.Company, error) {
	var c models.Company
	err := r.db.QueryRow(ctx, `
		SELECT id, name, siret, address, city, email, phone, updated_at
		FROM companies
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Siret, &c.Address, &c.City, &c.Email, &c.Phone, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, nil
}

// Upsert creates or replaces the company profile, with conflict handling on id.
func (r *CompanyRepository) Upsert(ctx context.Context, c *models.Company) error {
	c.UpdatedAt = time.Now().UTC()
	_, err := r.db.Exec(ctx, `
		INSERT INTO companies (id, name, siret, address, city, email, phone, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			siret = EXCLUDED.siret,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			updated_at = EXCLUDED.updated_at
	`, c.ID, c.Name, c.Siret, c.Address, c.City, c.Email, c.Phone, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert company: %w", err)
	}
	return nil
}
