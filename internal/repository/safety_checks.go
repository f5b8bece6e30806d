package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"couplecare-crisis/internal/models"

	"go.uber.org/zap"
)

const safetyCheckColumns = `
	check_id,
	couple_id,
	target_user_id,
	check_type,
	message,
	response,
	responded_at,
	requires_escalation,
	created_at
`

// SafetyChecksRepository safety_checks store
type SafetyChecksRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSafetyChecksRepository creates a safety check repository
func NewSafetyChecksRepository(db *sql.DB, logger *zap.Logger) *SafetyChecksRepository {
	return &SafetyChecksRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an open safety check; an unanswered check of the same type
// for the partner returns models.ErrSafetyCheckPending
func (r *SafetyChecksRepository) Create(ctx context.Context, check *models.SafetyCheck) error {
	if err := validateSafetyCheck(check); err != nil {
		return err
	}

	query := `INSERT INTO safety_checks (` + safetyCheckColumns + `)
		VALUES ($1, $2, $3, $4, $5, NULL, NULL, false, $6)`

	_, err := r.db.ExecContext(ctx, query, safetyCheckInsertArgs(check)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s %s: %w", check.TargetUserID, check.CheckType, models.ErrSafetyCheckPending)
		}
		return fmt.Errorf("failed to create safety check: %w", err)
	}
	return nil
}

// CreateIfNonePending inserts the check unless the partner already has an
// unanswered one of the same type. Reports whether a row was inserted.
func (r *SafetyChecksRepository) CreateIfNonePending(ctx context.Context, check *models.SafetyCheck) (bool, error) {
	if err := validateSafetyCheck(check); err != nil {
		return false, err
	}

	query := `INSERT INTO safety_checks (` + safetyCheckColumns + `)
		VALUES ($1, $2, $3, $4, $5, NULL, NULL, false, $6)
		ON CONFLICT (couple_id, target_user_id, check_type) WHERE responded_at IS NULL
		DO NOTHING`

	result, err := r.db.ExecContext(ctx, query, safetyCheckInsertArgs(check)...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create safety check: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		r.logger.Debug("Safety check already pending",
			zap.String("couple_id", check.CoupleID),
			zap.String("target_user_id", check.TargetUserID),
			zap.String("check_type", string(check.CheckType)),
		)
	}
	return affected > 0, nil
}

func validateSafetyCheck(check *models.SafetyCheck) error {
	if check == nil {
		return fmt.Errorf("safety check is required")
	}
	if check.CoupleID == "" {
		return fmt.Errorf("couple_id is required")
	}
	if check.TargetUserID == "" {
		return fmt.Errorf("target_user_id is required")
	}
	if !check.CheckType.Valid() {
		return fmt.Errorf("invalid check_type: %s", check.CheckType)
	}
	return nil
}

func safetyCheckInsertArgs(check *models.SafetyCheck) []interface{} {
	return []interface{}{
		check.CheckID,
		check.CoupleID,
		check.TargetUserID,
		string(check.CheckType),
		check.Message,
		check.CreatedAt,
	}
}

// GetSafetyCheck returns one check by id
func (r *SafetyChecksRepository) GetSafetyCheck(ctx context.Context, checkID string) (*models.SafetyCheck, error) {
	if checkID == "" {
		return nil, fmt.Errorf("check_id is required")
	}

	query := `SELECT ` + safetyCheckColumns + `
		FROM safety_checks
		WHERE check_id = $1`

	check, err := scanSafetyCheck(r.db.QueryRowContext(ctx, query, checkID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("safety check %s: %w", checkID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get safety check: %w", err)
	}
	return check, nil
}

// Respond records the response of an open check. A closed check is left untouched.
func (r *SafetyChecksRepository) Respond(ctx context.Context, checkID, response string, requiresEscalation bool, at time.Time) (*models.SafetyCheck, error) {
	if checkID == "" {
		return nil, fmt.Errorf("check_id is required")
	}

	query := `
		UPDATE safety_checks
		SET response = $2,
			responded_at = $3,
			requires_escalation = $4
		WHERE check_id = $1
		  AND responded_at IS NULL
		RETURNING ` + safetyCheckColumns

	check, err := scanSafetyCheck(r.db.QueryRowContext(ctx, query, checkID, response, at, requiresEscalation))
	if err == nil {
		return check, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to respond to safety check: %w", err)
	}

	if _, getErr := r.GetSafetyCheck(ctx, checkID); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("safety check %s: %w", checkID, models.ErrAlreadyResolved)
}

// PendingFor open checks targeting a user, oldest first
func (r *SafetyChecksRepository) PendingFor(ctx context.Context, userID string) ([]*models.SafetyCheck, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `SELECT ` + safetyCheckColumns + `
		FROM safety_checks
		WHERE target_user_id = $1
		  AND responded_at IS NULL
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending safety checks: %w", err)
	}
	defer rows.Close()

	var result []*models.SafetyCheck
	for rows.Next() {
		check, err := scanSafetyCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan safety check: %w", err)
		}
		result = append(result, check)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate safety checks: %w", err)
	}
	return result, nil
}

func scanSafetyCheck(s rowScanner) (*models.SafetyCheck, error) {
	var c models.SafetyCheck
	var checkType string
	var response sql.NullString
	var respondedAt sql.NullTime

	err := s.Scan(
		&c.CheckID,
		&c.CoupleID,
		&c.TargetUserID,
		&checkType,
		&c.Message,
		&response,
		&respondedAt,
		&c.RequiresEscalation,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.CheckType = models.SafetyCheckType(checkType)
	if response.Valid {
		c.Response = &response.String
	}
	if respondedAt.Valid {
		c.RespondedAt = &respondedAt.Time
	}
	return &c, nil
}
