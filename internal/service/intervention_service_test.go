package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"couplecare-crisis/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryInterventions struct {
	rows map[string]*models.CrisisIntervention
}

func (m *memoryInterventions) GetIntervention(_ context.Context, id string) (*models.CrisisIntervention, error) {
	iv, ok := m.rows[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return iv, nil
}

func (m *memoryInterventions) Acknowledge(_ context.Context, id string, action models.ActionTaken, at time.Time) (*models.CrisisIntervention, error) {
	iv, ok := m.rows[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if !iv.IsOpen() {
		return nil, models.ErrAlreadyResolved
	}
	iv.ActionTaken = &action
	iv.AcknowledgedAt = &at
	return iv, nil
}

func (m *memoryInterventions) ListOpen(_ context.Context, coupleID string) ([]*models.CrisisIntervention, error) {
	var out []*models.CrisisIntervention
	for _, iv := range m.rows {
		if iv.CoupleID == coupleID && iv.IsOpen() {
			out = append(out, iv)
		}
	}
	return out, nil
}

func (m *memoryInterventions) IgnoreExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, iv := range m.rows {
		if iv.IsOpen() && iv.ExpiresAt != nil && iv.ExpiresAt.Before(now) {
			ignored := models.ActionIgnored
			iv.ActionTaken = &ignored
			n++
		}
	}
	return n, nil
}

func newTestInterventionService(clock *movableClock, rows ...*models.CrisisIntervention) (*InterventionService, *memoryInterventions, *CoolingOffService) {
	store := &memoryInterventions{rows: map[string]*models.CrisisIntervention{}}
	for _, iv := range rows {
		store.rows[iv.InterventionID] = iv
	}
	coolingOff, _ := newTestCoolingOffService(clock)
	svc := NewInterventionService(store, coolingOff, zap.NewNop())
	svc.SetClock(clock.Now)
	return svc, store, coolingOff
}

func TestInterventionService_AcknowledgeOnce(t *testing.T) {
	clock := &movableClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	svc, _, _ := newTestInterventionService(clock, &models.CrisisIntervention{
		InterventionID:   "iv-1",
		CoupleID:         "couple-1",
		InterventionType: models.InterventionCrisisHotline,
	})
	ctx := context.Background()

	result, err := svc.Acknowledge(ctx, "iv-1", models.ActionAcknowledged, "user-a")
	require.NoError(t, err)
	assert.Equal(t, models.ActionAcknowledged, *result.Intervention.ActionTaken)
	assert.Equal(t, clock.t, *result.Intervention.AcknowledgedAt)
	assert.Nil(t, result.CoolingOff)

	_, err = svc.Acknowledge(ctx, "iv-1", models.ActionDeclined, "user-a")
	assert.True(t, errors.Is(err, models.ErrAlreadyResolved))

	_, err = svc.Acknowledge(ctx, "missing", models.ActionAcknowledged, "user-a")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestInterventionService_AcceptCoolingOffStartsPeriod(t *testing.T) {
	clock := &movableClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	svc, _, coolingOff := newTestInterventionService(clock, &models.CrisisIntervention{
		InterventionID:   "iv-1",
		CoupleID:         "couple-1",
		InterventionType: models.InterventionCoolingOff,
	})
	ctx := context.Background()

	result, err := svc.Acknowledge(ctx, "iv-1", models.ActionAccepted, "user-a")

	require.NoError(t, err)
	require.NotNil(t, result.CoolingOff)
	assert.Equal(t, "user-a", result.CoolingOff.InitiatedBy)
	assert.Equal(t, 24, result.CoolingOff.DurationHours)

	active, err := coolingOff.IsActive(ctx, "couple-1")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestInterventionService_AcceptWithLivePeriod(t *testing.T) {
	clock := &movableClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	svc, _, coolingOff := newTestInterventionService(clock, &models.CrisisIntervention{
		InterventionID:   "iv-1",
		CoupleID:         "couple-1",
		InterventionType: models.InterventionCoolingOff,
	})
	ctx := context.Background()

	_, err := coolingOff.Start(ctx, "couple-1", "user-b", "", 4)
	require.NoError(t, err)

	result, err := svc.Acknowledge(ctx, "iv-1", models.ActionAccepted, "")

	require.NoError(t, err)
	assert.Nil(t, result.CoolingOff)
	assert.Equal(t, models.ActionAccepted, *result.Intervention.ActionTaken)
}

func TestInterventionService_DeclineCoolingOff(t *testing.T) {
	clock := &movableClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	svc, _, coolingOff := newTestInterventionService(clock, &models.CrisisIntervention{
		InterventionID:   "iv-1",
		CoupleID:         "couple-1",
		InterventionType: models.InterventionCoolingOff,
	})
	ctx := context.Background()

	result, err := svc.Acknowledge(ctx, "iv-1", models.ActionDeclined, "user-a")

	require.NoError(t, err)
	assert.Nil(t, result.CoolingOff)
	active, err := coolingOff.IsActive(ctx, "couple-1")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestInterventionService_IgnoreExpired(t *testing.T) {
	clock := &movableClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	past := clock.t.Add(-time.Hour)
	future := clock.t.Add(time.Hour)
	svc, store, _ := newTestInterventionService(clock,
		&models.CrisisIntervention{InterventionID: "old", CoupleID: "couple-1", ExpiresAt: &past},
		&models.CrisisIntervention{InterventionID: "fresh", CoupleID: "couple-1", ExpiresAt: &future},
		&models.CrisisIntervention{InterventionID: "forever", CoupleID: "couple-1"},
	)
	ctx := context.Background()

	n, err := svc.IgnoreExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, models.ActionIgnored, *store.rows["old"].ActionTaken)

	open, err := svc.ListOpen(ctx, "couple-1")
	require.NoError(t, err)
	assert.Len(t, open, 2)
}
