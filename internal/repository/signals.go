package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"couplecare-crisis/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// SignalsRepository read-only queries over check-ins, messages and conflicts
type SignalsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSignalsRepository creates a signals repository
func NewSignalsRepository(db *sql.DB, logger *zap.Logger) *SignalsRepository {
	return &SignalsRepository{
		db:     db,
		logger: logger,
	}
}

// RedCheckinDays distinct (user, UTC day) pairs with a red check-in in [from, to]
func (r *SignalsRepository) RedCheckinDays(ctx context.Context, userIDs []string, from, to time.Time) ([]models.RedCheckin, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT user_id, to_char((created_at AT TIME ZONE 'UTC')::date, 'YYYY-MM-DD') AS day
		FROM checkins
		WHERE user_id = ANY($1)
		  AND zone = 'red'
		  AND created_at >= $2
		  AND created_at <= $3
		GROUP BY user_id, day
		ORDER BY day, user_id
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(userIDs), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query red check-ins: %w", err)
	}
	defer rows.Close()

	var result []models.RedCheckin
	for rows.Next() {
		var rc models.RedCheckin
		if err := rows.Scan(&rc.UserID, &rc.Day); err != nil {
			return nil, fmt.Errorf("failed to scan red check-in: %w", err)
		}
		result = append(result, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate red check-ins: %w", err)
	}

	return result, nil
}

// LastCheckins most recent check-in at or before asOf, keyed by user.
// Users who never checked in are absent from the map.
func (r *SignalsRepository) LastCheckins(ctx context.Context, userIDs []string, asOf time.Time) (map[string]time.Time, error) {
	result := make(map[string]time.Time, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT user_id, MAX(created_at)
		FROM checkins
		WHERE user_id = ANY($1)
		  AND created_at <= $2
		GROUP BY user_id
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(userIDs), asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query last check-ins: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		var last sql.NullTime
		if err := rows.Scan(&userID, &last); err != nil {
			return nil, fmt.Errorf("failed to scan last check-in: %w", err)
		}
		if last.Valid {
			result[userID] = last.Time
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate last check-ins: %w", err)
	}

	return result, nil
}

// MessageTones tone analysis of couple messages created in [from, to]
func (r *SignalsRepository) MessageTones(ctx context.Context, coupleID string, from, to time.Time) ([]models.MessageTone, error) {
	if coupleID == "" {
		return nil, fmt.Errorf("couple_id is required")
	}

	query := `
		SELECT
			COALESCE(tone_analysis->>'risk_level', '') AS risk_level,
			ARRAY(
				SELECT jsonb_array_elements_text(COALESCE(tone_analysis->'warning_tags', '[]'::jsonb))
			) AS warning_tags
		FROM couple_messages
		WHERE couple_id = $1
		  AND tone_analysis IS NOT NULL
		  AND created_at >= $2
		  AND created_at <= $3
	`

	rows, err := r.db.QueryContext(ctx, query, coupleID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query message tones: %w", err)
	}
	defer rows.Close()

	var result []models.MessageTone
	for rows.Next() {
		var tone models.MessageTone
		if err := rows.Scan(&tone.RiskLevel, pq.Array(&tone.WarningTags)); err != nil {
			return nil, fmt.Errorf("failed to scan message tone: %w", err)
		}
		result = append(result, tone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message tones: %w", err)
	}

	return result, nil
}

// ConflictCount conflicts started in [from, to]
func (r *SignalsRepository) ConflictCount(ctx context.Context, coupleID string, from, to time.Time) (int, error) {
	if coupleID == "" {
		return 0, fmt.Errorf("couple_id is required")
	}

	query := `
		SELECT COUNT(*)
		FROM conflicts
		WHERE couple_id = $1
		  AND started_at >= $2
		  AND started_at <= $3
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, coupleID, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count conflicts: %w", err)
	}

	return count, nil
}
