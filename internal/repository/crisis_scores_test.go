package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"couplecare-crisis/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var crisisScoreRowColumns = []string{
	"score_id", "couple_id", "score", "severity", "red_zone_days",
	"high_risk_messages", "gottman_violations", "disengagement_hours",
	"conflict_frequency", "calculated_at",
}

func setupMockCrisisScoresDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *CrisisScoresRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewCrisisScoresRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestRecordCrisisScore_Success(t *testing.T) {
	db, mock, repo := setupMockCrisisScoresDB(t)
	defer db.Close()

	coupleID := uuid.New().String()
	at := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	signals := models.Signals{RedZoneDays: 3, HighRiskMessages: 2, GottmanViolations: 1, DisengagementHours: 12.5, ConflictFrequency: 1}

	mock.ExpectExec(`INSERT INTO crisis_scores`).
		WithArgs(sqlmock.AnyArg(), coupleID, 78, "critical", 3, 2, 1, 12.5, 1, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	score, err := repo.Record(context.Background(), coupleID, signals, 78, models.SeverityCritical, at)

	require.NoError(t, err)
	assert.NotEmpty(t, score.ScoreID)
	assert.Equal(t, coupleID, score.CoupleID)
	assert.Equal(t, 78, score.Score)
	assert.Equal(t, models.SeverityCritical, score.Severity)
	assert.Equal(t, signals, score.Signals())
	assert.Equal(t, at, score.CalculatedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordCrisisScore_Validation(t *testing.T) {
	db, mock, repo := setupMockCrisisScoresDB(t)
	defer db.Close()

	ctx := context.Background()

	_, err := repo.Record(ctx, "", models.Signals{}, 0, models.SeverityLow, time.Now())
	assert.Contains(t, err.Error(), "couple_id is required")

	_, err = repo.Record(ctx, "c1", models.Signals{}, 101, models.SeverityLow, time.Now())
	assert.Contains(t, err.Error(), "score out of range")

	_, err = repo.Record(ctx, "c1", models.Signals{}, 10, models.Severity("extreme"), time.Now())
	assert.Contains(t, err.Error(), "invalid severity")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordCrisisScore_DBError(t *testing.T) {
	db, mock, repo := setupMockCrisisScoresDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO crisis_scores`).
		WillReturnError(errors.New("connection reset"))

	score, err := repo.Record(context.Background(), "c1", models.Signals{}, 0, models.SeverityLow, time.Now())

	assert.Nil(t, score)
	assert.Contains(t, err.Error(), "failed to record crisis score")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestCrisisScore_Success(t *testing.T) {
	db, mock, repo := setupMockCrisisScoresDB(t)
	defer db.Close()

	coupleID := uuid.New().String()
	scoreID := uuid.New().String()
	at := time.Now().UTC()

	rows := sqlmock.NewRows(crisisScoreRowColumns).
		AddRow(scoreID, coupleID, 31, "high", 0, 5, 1, 4.0, 0, at)
	mock.ExpectQuery(`SELECT .* FROM crisis_scores`).
		WithArgs(coupleID).
		WillReturnRows(rows)

	score, err := repo.Latest(context.Background(), coupleID)

	require.NoError(t, err)
	require.NotNil(t, score)
	assert.Equal(t, scoreID, score.ScoreID)
	assert.Equal(t, 31, score.Score)
	assert.Equal(t, models.SeverityHigh, score.Severity)
	assert.Equal(t, 5, score.HighRiskMessages)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestCrisisScore_NoneRecorded(t *testing.T) {
	db, mock, repo := setupMockCrisisScoresDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM crisis_scores`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(crisisScoreRowColumns))

	score, err := repo.Latest(context.Background(), "c1")

	require.NoError(t, err)
	assert.Nil(t, score)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCrisisScoreHistory_ClampsLimit(t *testing.T) {
	db, mock, repo := setupMockCrisisScoresDB(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(crisisScoreRowColumns).
		AddRow("s2", "c1", 40, "moderate", 1, 1, 1, 0.0, 2, now).
		AddRow("s1", "c1", 20, "low", 0, 1, 1, 0.0, 2, now.Add(-24*time.Hour))
	mock.ExpectQuery(`SELECT .* FROM crisis_scores`).
		WithArgs("c1", MaxHistoryLimit).
		WillReturnRows(rows)

	scores, err := repo.History(context.Background(), "c1", 10000)

	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "s2", scores[0].ScoreID)
	assert.True(t, scores[0].CalculatedAt.After(scores[1].CalculatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClampHistoryLimit(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, ClampHistoryLimit(0))
	assert.Equal(t, DefaultHistoryLimit, ClampHistoryLimit(-3))
	assert.Equal(t, 1, ClampHistoryLimit(1))
	assert.Equal(t, 120, ClampHistoryLimit(120))
	assert.Equal(t, MaxHistoryLimit, ClampHistoryLimit(501))
}
