package repository

import (
	"context"
	"database/sql"
	"fmt"

	"couplecare-crisis/internal/models"

	"go.uber.org/zap"
)

// CoupleRepository reads the couples table owned by the platform
type CoupleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCoupleRepository creates a couple repository
func NewCoupleRepository(db *sql.DB, logger *zap.Logger) *CoupleRepository {
	return &CoupleRepository{
		db:     db,
		logger: logger,
	}
}

// ListActiveCoupleIDs returns every couple with status = 'active'
func (r *CoupleRepository) ListActiveCoupleIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT couple_id
		FROM couples
		WHERE status = 'active'
		ORDER BY couple_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active couples: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan couple_id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate couples: %w", err)
	}

	return ids, nil
}

// GetCouple returns the couple and its partner links
func (r *CoupleRepository) GetCouple(ctx context.Context, coupleID string) (*models.Couple, error) {
	if coupleID == "" {
		return nil, fmt.Errorf("couple_id is required")
	}

	query := `
		SELECT couple_id, partner_a_id, partner_b_id, status
		FROM couples
		WHERE couple_id = $1
	`

	var couple models.Couple
	var partnerA, partnerB sql.NullString
	err := r.db.QueryRowContext(ctx, query, coupleID).Scan(
		&couple.CoupleID,
		&partnerA,
		&partnerB,
		&couple.Status,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("couple %s: %w", coupleID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get couple: %w", err)
	}

	if partnerA.Valid {
		couple.PartnerAID = &partnerA.String
	}
	if partnerB.Valid {
		couple.PartnerBID = &partnerB.String
	}

	return &couple, nil
}
