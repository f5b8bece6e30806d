package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"couplecare-crisis/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var coolingOffRowColumns = []string{
	"period_id", "couple_id", "initiated_by", "reason", "duration_hours",
	"started_at", "ends_at", "status", "early_ended_at", "early_end_reason",
}

func setupMockCoolingOffDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *CoolingOffRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewCoolingOffRepository(db, zap.NewNop())
	return db, mock, repo
}

func newTestPeriod(now time.Time) *models.CoolingOffPeriod {
	return &models.CoolingOffPeriod{
		PeriodID:      "p1",
		CoupleID:      "c1",
		InitiatedBy:   "u1",
		Reason:        "too heated",
		DurationHours: 24,
		StartedAt:     now,
		EndsAt:        now.Add(24 * time.Hour),
	}
}

func TestStartCoolingOff_Success(t *testing.T) {
	db, mock, repo := setupMockCoolingOffDB(t)
	defer db.Close()

	now := time.Now().UTC()
	period := newTestPeriod(now)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE cooling_off_periods\s+SET status = 'completed'`).
		WithArgs("c1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT period_id\s+FROM cooling_off_periods`).
		WithArgs("c1", now).
		WillReturnRows(sqlmock.NewRows([]string{"period_id"}))
	mock.ExpectExec(`INSERT INTO cooling_off_periods`).
		WithArgs("p1", "c1", "u1", "too heated", 24, now, now.Add(24*time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Start(context.Background(), period, now)

	require.NoError(t, err)
	assert.Equal(t, models.CoolingOffActive, period.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStartCoolingOff_LivePeriodRejected(t *testing.T) {
	db, mock, repo := setupMockCoolingOffDB(t)
	defer db.Close()

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE cooling_off_periods`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT period_id`).
		WithArgs("c1", now).
		WillReturnRows(sqlmock.NewRows([]string{"period_id"}).AddRow("p0"))
	mock.ExpectRollback()

	err := repo.Start(context.Background(), newTestPeriod(now), now)

	assert.True(t, errors.Is(err, models.ErrCoolingOffActive))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStartCoolingOff_UniqueViolationMapped(t *testing.T) {
	db, mock, repo := setupMockCoolingOffDB(t)
	defer db.Close()

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE cooling_off_periods`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT period_id`).
		WillReturnRows(sqlmock.NewRows([]string{"period_id"}))
	mock.ExpectExec(`INSERT INTO cooling_off_periods`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Start(context.Background(), newTestPeriod(now), now)

	assert.True(t, errors.Is(err, models.ErrCoolingOffActive))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStartCoolingOff_InvalidDuration(t *testing.T) {
	db, mock, repo := setupMockCoolingOffDB(t)
	defer db.Close()

	now := time.Now()
	period := newTestPeriod(now)
	period.DurationHours = 0

	err := repo.Start(context.Background(), period, now)

	assert.Contains(t, err.Error(), "duration_hours must be positive")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveCoolingOff_None(t *testing.T) {
	db, mock, repo := setupMockCoolingOffDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM cooling_off_periods`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(coolingOffRowColumns))

	period, err := repo.GetActive(context.Background(), "c1")

	require.NoError(t, err)
	assert.Nil(t, period)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEndEarly_Success(t *testing.T) {
	db, mock, repo := setupMockCoolingOffDB(t)
	defer db.Close()

	now := time.Now().UTC()
	started := now.Add(-2 * time.Hour)
	rows := sqlmock.NewRows(coolingOffRowColumns).
		AddRow("p1", "c1", "u1", "r", 24, started, started.Add(24*time.Hour), "completed", now, "talked it out")
	mock.ExpectQuery(`UPDATE cooling_off_periods`).
		WithArgs("p1", "completed", now, "talked it out").
		WillReturnRows(rows)

	period, err := repo.EndEarly(context.Background(), "p1", "talked it out", now)

	require.NoError(t, err)
	assert.Equal(t, models.CoolingOffCompleted, period.Status)
	require.NotNil(t, period.EarlyEndedAt)
	require.NotNil(t, period.EarlyEndReason)
	assert.Equal(t, "talked it out", *period.EarlyEndReason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEndEarly_ExpiredPeriodAlreadyResolved(t *testing.T) {
	db, mock, repo := setupMockCoolingOffDB(t)
	defer db.Close()

	now := time.Now().UTC()
	started := now.Add(-30 * time.Hour)
	mock.ExpectQuery(`UPDATE cooling_off_periods`).
		WillReturnRows(sqlmock.NewRows(coolingOffRowColumns))
	mock.ExpectQuery(`SELECT .* FROM cooling_off_periods`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(coolingOffRowColumns).
			AddRow("p1", "c1", "u1", "r", 24, started, started.Add(24*time.Hour), "active", nil, nil))

	period, err := repo.EndEarly(context.Background(), "p1", "", now)

	assert.Nil(t, period)
	assert.True(t, errors.Is(err, models.ErrAlreadyResolved))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelCoolingOff_NotFound(t *testing.T) {
	db, mock, repo := setupMockCoolingOffDB(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`UPDATE cooling_off_periods`).
		WithArgs("nope", "cancelled", now, nil).
		WillReturnRows(sqlmock.NewRows(coolingOffRowColumns))
	mock.ExpectQuery(`SELECT .* FROM cooling_off_periods`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Cancel(context.Background(), "nope", "", now)

	assert.True(t, errors.Is(err, models.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireStaleCoolingOff(t *testing.T) {
	db, mock, repo := setupMockCoolingOffDB(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE cooling_off_periods`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.ExpireStale(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
