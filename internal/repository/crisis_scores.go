package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"couplecare-crisis/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultHistoryLimit history page size when the caller passes 0
	DefaultHistoryLimit = 30
	// MaxHistoryLimit upper bound for history page size
	MaxHistoryLimit = 500
)

const crisisScoreColumns = `
	score_id,
	couple_id,
	score,
	severity,
	red_zone_days,
	high_risk_messages,
	gottman_violations,
	disengagement_hours,
	conflict_frequency,
	calculated_at
`

// CrisisScoresRepository append-only store of computed scores
type CrisisScoresRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCrisisScoresRepository creates a crisis score repository
func NewCrisisScoresRepository(db *sql.DB, logger *zap.Logger) *CrisisScoresRepository {
	return &CrisisScoresRepository{
		db:     db,
		logger: logger,
	}
}

// Record inserts a new score row; rows are never updated
func (r *CrisisScoresRepository) Record(ctx context.Context, coupleID string, signals models.Signals, score int, severity models.Severity, calculatedAt time.Time) (*models.CrisisScore, error) {
	if coupleID == "" {
		return nil, fmt.Errorf("couple_id is required")
	}
	if score < 0 || score > 100 {
		return nil, fmt.Errorf("score out of range: %d", score)
	}
	if !severity.Valid() {
		return nil, fmt.Errorf("invalid severity: %s", severity)
	}

	row := &models.CrisisScore{
		ScoreID:            uuid.New().String(),
		CoupleID:           coupleID,
		Score:              score,
		Severity:           severity,
		RedZoneDays:        signals.RedZoneDays,
		HighRiskMessages:   signals.HighRiskMessages,
		GottmanViolations:  signals.GottmanViolations,
		DisengagementHours: signals.DisengagementHours,
		ConflictFrequency:  signals.ConflictFrequency,
		CalculatedAt:       calculatedAt,
	}

	query := `INSERT INTO crisis_scores (` + crisisScoreColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		row.ScoreID,
		row.CoupleID,
		row.Score,
		string(row.Severity),
		row.RedZoneDays,
		row.HighRiskMessages,
		row.GottmanViolations,
		row.DisengagementHours,
		row.ConflictFrequency,
		row.CalculatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record crisis score: %w", err)
	}

	return row, nil
}

// Latest newest score for the couple, nil when none has been recorded
func (r *CrisisScoresRepository) Latest(ctx context.Context, coupleID string) (*models.CrisisScore, error) {
	if coupleID == "" {
		return nil, fmt.Errorf("couple_id is required")
	}

	query := `SELECT ` + crisisScoreColumns + `
		FROM crisis_scores
		WHERE couple_id = $1
		ORDER BY calculated_at DESC
		LIMIT 1`

	score, err := scanCrisisScore(r.db.QueryRowContext(ctx, query, coupleID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest crisis score: %w", err)
	}

	return score, nil
}

// History newest-first scores; limit is clamped to [1, MaxHistoryLimit], 0 means default
func (r *CrisisScoresRepository) History(ctx context.Context, coupleID string, limit int) ([]*models.CrisisScore, error) {
	if coupleID == "" {
		return nil, fmt.Errorf("couple_id is required")
	}
	limit = ClampHistoryLimit(limit)

	query := `SELECT ` + crisisScoreColumns + `
		FROM crisis_scores
		WHERE couple_id = $1
		ORDER BY calculated_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, coupleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query crisis score history: %w", err)
	}
	defer rows.Close()

	scores := make([]*models.CrisisScore, 0, limit)
	for rows.Next() {
		score, err := scanCrisisScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crisis score: %w", err)
		}
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate crisis scores: %w", err)
	}

	return scores, nil
}

// ClampHistoryLimit normalizes a caller-supplied page size
func ClampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

func scanCrisisScore(s rowScanner) (*models.CrisisScore, error) {
	var score models.CrisisScore
	var severity string
	err := s.Scan(
		&score.ScoreID,
		&score.CoupleID,
		&score.Score,
		&severity,
		&score.RedZoneDays,
		&score.HighRiskMessages,
		&score.GottmanViolations,
		&score.DisengagementHours,
		&score.ConflictFrequency,
		&score.CalculatedAt,
	)
	if err != nil {
		return nil, err
	}
	score.Severity = models.Severity(severity)
	return &score, nil
}
