package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"couplecare-crisis/internal/models"

	"go.uber.org/zap"
)

// HotlinesRepository read-only crisis_hotlines directory
type HotlinesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHotlinesRepository creates a hotline repository
func NewHotlinesRepository(db *sql.DB, logger *zap.Logger) *HotlinesRepository {
	return &HotlinesRepository{
		db:     db,
		logger: logger,
	}
}

// List hotlines, optionally filtered by country code (case-insensitive)
func (r *HotlinesRepository) List(ctx context.Context, country string) ([]*models.CrisisHotline, error) {
	query := `
		SELECT hotline_id, country, name, phone, hotline_type, available_24_7
		FROM crisis_hotlines
	`
	args := []interface{}{}
	if country = strings.TrimSpace(country); country != "" {
		query += ` WHERE UPPER(country) = $1`
		args = append(args, strings.ToUpper(country))
	}
	query += ` ORDER BY country, name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list hotlines: %w", err)
	}
	defer rows.Close()

	var result []*models.CrisisHotline
	for rows.Next() {
		var h models.CrisisHotline
		if err := rows.Scan(&h.HotlineID, &h.Country, &h.Name, &h.Phone, &h.HotlineType, &h.Available247); err != nil {
			return nil, fmt.Errorf("failed to scan hotline: %w", err)
		}
		result = append(result, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hotlines: %w", err)
	}
	return result, nil
}
