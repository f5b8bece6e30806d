package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"couplecare-crisis/internal/models"

	"go.uber.org/zap"
)

const coolingOffColumns = `
	period_id,
	couple_id,
	initiated_by,
	reason,
	duration_hours,
	started_at,
	ends_at,
	status,
	early_ended_at,
	early_end_reason
`

// CoolingOffRepository cooling_off_periods store.
// At most one status='active' row per couple (uq_cooling_off_active).
type CoolingOffRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCoolingOffRepository creates a cooling-off repository
func NewCoolingOffRepository(db *sql.DB, logger *zap.Logger) *CoolingOffRepository {
	return &CoolingOffRepository{
		db:     db,
		logger: logger,
	}
}

// Start inserts a new active period in one transaction:
// stale active rows (ends_at <= now) are completed first, then a live row
// rejects the start with ErrCoolingOffActive.
func (r *CoolingOffRepository) Start(ctx context.Context, period *models.CoolingOffPeriod, now time.Time) (err error) {
	if period == nil {
		return fmt.Errorf("period is required")
	}
	if period.CoupleID == "" {
		return fmt.Errorf("couple_id is required")
	}
	if period.DurationHours <= 0 {
		return fmt.Errorf("duration_hours must be positive")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	completeStale := `
		UPDATE cooling_off_periods
		SET status = 'completed'
		WHERE couple_id = $1
		  AND status = 'active'
		  AND ends_at <= $2
	`
	if _, err = tx.ExecContext(ctx, completeStale, period.CoupleID, now); err != nil {
		return fmt.Errorf("failed to complete stale cooling-off periods: %w", err)
	}

	findLive := `
		SELECT period_id
		FROM cooling_off_periods
		WHERE couple_id = $1
		  AND status = 'active'
		  AND ends_at > $2
		LIMIT 1
		FOR UPDATE
	`
	var liveID string
	err = tx.QueryRowContext(ctx, findLive, period.CoupleID, now).Scan(&liveID)
	switch {
	case err == nil:
		return fmt.Errorf("couple %s period %s: %w", period.CoupleID, liveID, models.ErrCoolingOffActive)
	case err != sql.ErrNoRows:
		return fmt.Errorf("failed to check live cooling-off period: %w", err)
	}

	insert := `INSERT INTO cooling_off_periods (` + coolingOffColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'active', NULL, NULL)`
	_, err = tx.ExecContext(ctx, insert,
		period.PeriodID,
		period.CoupleID,
		period.InitiatedBy,
		period.Reason,
		period.DurationHours,
		period.StartedAt,
		period.EndsAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("couple %s: %w", period.CoupleID, models.ErrCoolingOffActive)
		}
		return fmt.Errorf("failed to insert cooling-off period: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cooling-off period: %w", err)
	}
	period.Status = models.CoolingOffActive
	return nil
}

// GetActive newest row with status='active' for the couple, nil when none.
// The row may already be past ends_at; callers decide liveness.
func (r *CoolingOffRepository) GetActive(ctx context.Context, coupleID string) (*models.CoolingOffPeriod, error) {
	if coupleID == "" {
		return nil, fmt.Errorf("couple_id is required")
	}

	query := `SELECT ` + coolingOffColumns + `
		FROM cooling_off_periods
		WHERE couple_id = $1
		  AND status = 'active'
		ORDER BY started_at DESC
		LIMIT 1`

	period, err := scanCoolingOff(r.db.QueryRowContext(ctx, query, coupleID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active cooling-off period: %w", err)
	}
	return period, nil
}

// GetPeriod returns one period by id
func (r *CoolingOffRepository) GetPeriod(ctx context.Context, periodID string) (*models.CoolingOffPeriod, error) {
	if periodID == "" {
		return nil, fmt.Errorf("period_id is required")
	}

	query := `SELECT ` + coolingOffColumns + `
		FROM cooling_off_periods
		WHERE period_id = $1`

	period, err := scanCoolingOff(r.db.QueryRowContext(ctx, query, periodID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("cooling-off period %s: %w", periodID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get cooling-off period: %w", err)
	}
	return period, nil
}

// EndEarly live active period -> completed with early_ended_at
func (r *CoolingOffRepository) EndEarly(ctx context.Context, periodID, reason string, now time.Time) (*models.CoolingOffPeriod, error) {
	return r.resolve(ctx, periodID, models.CoolingOffCompleted, reason, now)
}

// Cancel live active period -> cancelled
func (r *CoolingOffRepository) Cancel(ctx context.Context, periodID, reason string, now time.Time) (*models.CoolingOffPeriod, error) {
	return r.resolve(ctx, periodID, models.CoolingOffCancelled, reason, now)
}

func (r *CoolingOffRepository) resolve(ctx context.Context, periodID string, status models.CoolingOffStatus, reason string, now time.Time) (*models.CoolingOffPeriod, error) {
	if periodID == "" {
		return nil, fmt.Errorf("period_id is required")
	}

	var reasonArg interface{}
	if reason != "" {
		reasonArg = reason
	}

	query := `
		UPDATE cooling_off_periods
		SET status = $2,
			early_ended_at = $3,
			early_end_reason = $4
		WHERE period_id = $1
		  AND status = 'active'
		  AND ends_at > $3
		RETURNING ` + coolingOffColumns

	period, err := scanCoolingOff(r.db.QueryRowContext(ctx, query, periodID, string(status), now, reasonArg))
	if err == nil {
		return period, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to update cooling-off period: %w", err)
	}

	// zero rows: unknown id, terminal row, or active row past ends_at
	if _, getErr := r.GetPeriod(ctx, periodID); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("cooling-off period %s: %w", periodID, models.ErrAlreadyResolved)
}

// ExpireStale flips every active row with ends_at <= now to completed
func (r *CoolingOffRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE cooling_off_periods
		SET status = 'completed'
		WHERE status = 'active'
		  AND ends_at <= $1
	`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire cooling-off periods: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected, nil
}

func scanCoolingOff(s rowScanner) (*models.CoolingOffPeriod, error) {
	var p models.CoolingOffPeriod
	var status string
	var earlyEndedAt sql.NullTime
	var earlyEndReason sql.NullString

	err := s.Scan(
		&p.PeriodID,
		&p.CoupleID,
		&p.InitiatedBy,
		&p.Reason,
		&p.DurationHours,
		&p.StartedAt,
		&p.EndsAt,
		&status,
		&earlyEndedAt,
		&earlyEndReason,
	)
	if err != nil {
		return nil, err
	}

	p.Status = models.CoolingOffStatus(status)
	if earlyEndedAt.Valid {
		p.EarlyEndedAt = &earlyEndedAt.Time
	}
	if earlyEndReason.Valid {
		p.EarlyEndReason = &earlyEndReason.String
	}
	return &p, nil
}
