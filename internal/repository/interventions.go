package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"couplecare-crisis/internal/models"

	"go.uber.org/zap"
)

const interventionColumns = `
	intervention_id,
	couple_id,
	crisis_score_id,
	intervention_type,
	severity,
	title,
	message,
	action_required,
	expires_at,
	triggered_at,
	action_taken,
	acknowledged_at
`

// InterventionsRepository crisis_interventions store.
// Uniqueness of open rows per (couple_id, intervention_type) is enforced by
// the partial index uq_crisis_interventions_open.
type InterventionsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInterventionsRepository creates an intervention repository
func NewInterventionsRepository(db *sql.DB, logger *zap.Logger) *InterventionsRepository {
	return &InterventionsRepository{
		db:     db,
		logger: logger,
	}
}

// HasOpen reports whether an unacknowledged intervention of this type exists
func (r *InterventionsRepository) HasOpen(ctx context.Context, coupleID string, interventionType models.InterventionType) (bool, error) {
	if coupleID == "" {
		return false, fmt.Errorf("couple_id is required")
	}

	query := `
		SELECT EXISTS (
			SELECT 1
			FROM crisis_interventions
			WHERE couple_id = $1
			  AND intervention_type = $2
			  AND action_taken IS NULL
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, coupleID, string(interventionType)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check open intervention: %w", err)
	}
	return exists, nil
}

// CreateIfNoneOpen inserts the intervention unless an open one of the same
// type already exists for the couple. Returns false when the insert was skipped.
func (r *InterventionsRepository) CreateIfNoneOpen(ctx context.Context, iv *models.CrisisIntervention) (bool, error) {
	if iv == nil {
		return false, fmt.Errorf("intervention is required")
	}
	if iv.CoupleID == "" {
		return false, fmt.Errorf("couple_id is required")
	}
	if iv.InterventionID == "" {
		return false, fmt.Errorf("intervention_id is required")
	}

	query := `INSERT INTO crisis_interventions (` + interventionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL, NULL)
		ON CONFLICT (couple_id, intervention_type) WHERE action_taken IS NULL
		DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		iv.InterventionID,
		iv.CoupleID,
		iv.CrisisScoreID,
		string(iv.InterventionType),
		string(iv.Severity),
		iv.Title,
		iv.Message,
		iv.ActionRequired,
		iv.ExpiresAt,
		iv.TriggeredAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Debug("Open intervention already exists",
				zap.String("couple_id", iv.CoupleID),
				zap.String("intervention_type", string(iv.InterventionType)),
			)
			return false, nil
		}
		return false, fmt.Errorf("failed to create intervention: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetIntervention returns one intervention by id
func (r *InterventionsRepository) GetIntervention(ctx context.Context, interventionID string) (*models.CrisisIntervention, error) {
	if interventionID == "" {
		return nil, fmt.Errorf("intervention_id is required")
	}

	query := `SELECT ` + interventionColumns + `
		FROM crisis_interventions
		WHERE intervention_id = $1`

	iv, err := scanIntervention(r.db.QueryRowContext(ctx, query, interventionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("intervention %s: %w", interventionID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get intervention: %w", err)
	}
	return iv, nil
}

// Acknowledge resolves an open intervention exactly once
func (r *InterventionsRepository) Acknowledge(ctx context.Context, interventionID string, action models.ActionTaken, at time.Time) (*models.CrisisIntervention, error) {
	if interventionID == "" {
		return nil, fmt.Errorf("intervention_id is required")
	}
	if !action.Valid() {
		return nil, fmt.Errorf("invalid action_taken: %s", action)
	}

	query := `
		UPDATE crisis_interventions
		SET action_taken = $2,
			acknowledged_at = $3
		WHERE intervention_id = $1
		  AND action_taken IS NULL
		RETURNING ` + interventionColumns

	iv, err := scanIntervention(r.db.QueryRowContext(ctx, query, interventionID, string(action), at))
	if err == nil {
		return iv, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to acknowledge intervention: %w", err)
	}

	// zero rows: unknown id or already resolved
	if _, getErr := r.GetIntervention(ctx, interventionID); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("intervention %s: %w", interventionID, models.ErrAlreadyResolved)
}

// ListOpen unacknowledged interventions for a couple, newest first
func (r *InterventionsRepository) ListOpen(ctx context.Context, coupleID string) ([]*models.CrisisIntervention, error) {
	if coupleID == "" {
		return nil, fmt.Errorf("couple_id is required")
	}

	query := `SELECT ` + interventionColumns + `
		FROM crisis_interventions
		WHERE couple_id = $1
		  AND action_taken IS NULL
		ORDER BY triggered_at DESC`

	rows, err := r.db.QueryContext(ctx, query, coupleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open interventions: %w", err)
	}
	defer rows.Close()

	var result []*models.CrisisIntervention
	for rows.Next() {
		iv, err := scanIntervention(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intervention: %w", err)
		}
		result = append(result, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interventions: %w", err)
	}
	return result, nil
}

// IgnoreExpired marks open interventions whose expires_at has passed as ignored,
// freeing the (couple, type) slot for a later evaluation
func (r *InterventionsRepository) IgnoreExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE crisis_interventions
		SET action_taken = 'ignored',
			acknowledged_at = $1
		WHERE action_taken IS NULL
		  AND expires_at IS NOT NULL
		  AND expires_at <= $1
	`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire interventions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected, nil
}

func scanIntervention(s rowScanner) (*models.CrisisIntervention, error) {
	var iv models.CrisisIntervention
	var scoreID, actionTaken sql.NullString
	var interventionType, severity string
	var expiresAt, acknowledgedAt sql.NullTime

	err := s.Scan(
		&iv.InterventionID,
		&iv.CoupleID,
		&scoreID,
		&interventionType,
		&severity,
		&iv.Title,
		&iv.Message,
		&iv.ActionRequired,
		&expiresAt,
		&iv.TriggeredAt,
		&actionTaken,
		&acknowledgedAt,
	)
	if err != nil {
		return nil, err
	}

	iv.InterventionType = models.InterventionType(interventionType)
	iv.Severity = models.Severity(severity)
	if scoreID.Valid {
		iv.CrisisScoreID = &scoreID.String
	}
	if expiresAt.Valid {
		iv.ExpiresAt = &expiresAt.Time
	}
	if actionTaken.Valid {
		action := models.ActionTaken(actionTaken.String)
		iv.ActionTaken = &action
	}
	if acknowledgedAt.Valid {
		iv.AcknowledgedAt = &acknowledgedAt.Time
	}
	return &iv, nil
}
