package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"appeloffres/api/internal/models"
)

type AnnexRepository struct {
	db *pgxpool.Pool
}

func NewAnnexRepository(db *pgxpool.Pool) *AnnexRepository {
	return &AnnexRepository{db: db}
}

// ListByDemand returns the annexes of a demand owned by companyID, oldest first.
func (r *AnnexRepository) ListByDemand(ctx context.Context, companyID, demandID string) ([]models.Annex, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.demand_id, a.file_name, a.storage_key, a.content_type, a.size_bytes, a.uploaded_at
		FROM demand_annexes a
		JOIN demand_projects d ON d.id = a.demand_id
		WHERE a.demand_id = $1 AND d.company_id = $2
		ORDER BY a.uploaded_at, a.id
	`, demandID, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query annexes: %w", err)
	}
	defer rows.Close()

	annexes := []models.Annex{}
	for rows.Next() {
		var a models.Annex
		if err := rows.Scan(&a.ID, &a.DemandID, &a.FileName, &a.StorageKey, &a.ContentType, &a.Size, &a.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan annex: %w", err)
		}
		annexes = append(annexes, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating annexes: %w", err)
	}
	return annexes, nil
}
