package service

import (
	"context"
	"fmt"
	"time"

	"couplecare-crisis/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CoolingOffStore cooling-off persistence
type CoolingOffStore interface {
	Start(ctx context.Context, period *models.CoolingOffPeriod, now time.Time) error
	GetActive(ctx context.Context, coupleID string) (*models.CoolingOffPeriod, error)
	GetPeriod(ctx context.Context, periodID string) (*models.CoolingOffPeriod, error)
	EndEarly(ctx context.Context, periodID, reason string, now time.Time) (*models.CoolingOffPeriod, error)
	Cancel(ctx context.Context, periodID, reason string, now time.Time) (*models.CoolingOffPeriod, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// CoolingOffService cooling-off state machine: active -> completed | cancelled.
// Expiry is lazy: a row past ends_at is treated as inactive whatever its stored status.
type CoolingOffService struct {
	store        CoolingOffStore
	defaultHours int
	now          func() time.Time
	logger       *zap.Logger
}

// NewCoolingOffService creates the service; defaultHours <= 0 falls back to 24
func NewCoolingOffService(store CoolingOffStore, defaultHours int, logger *zap.Logger) *CoolingOffService {
	if defaultHours <= 0 {
		defaultHours = 24
	}
	return &CoolingOffService{
		store:        store,
		defaultHours: defaultHours,
		now:          time.Now,
		logger:       logger,
	}
}

// SetClock overrides the wall clock
func (s *CoolingOffService) SetClock(now func() time.Time) {
	s.now = now
}

// Start opens a period; returns models.ErrCoolingOffActive while one is live
func (s *CoolingOffService) Start(ctx context.Context, coupleID, initiatedBy, reason string, durationHours int) (*models.CoolingOffPeriod, error) {
	if coupleID == "" {
		return nil, fmt.Errorf("couple_id is required")
	}
	if initiatedBy == "" {
		return nil, fmt.Errorf("initiated_by is required")
	}
	if durationHours < 0 {
		return nil, fmt.Errorf("duration_hours must be positive")
	}
	if durationHours == 0 {
		durationHours = s.defaultHours
	}

	now := s.now().UTC()
	period := &models.CoolingOffPeriod{
		PeriodID:      uuid.New().String(),
		CoupleID:      coupleID,
		InitiatedBy:   initiatedBy,
		Reason:        reason,
		DurationHours: durationHours,
		StartedAt:     now,
		EndsAt:        now.Add(time.Duration(durationHours) * time.Hour),
		Status:        models.CoolingOffActive,
	}

	if err := s.store.Start(ctx, period, now); err != nil {
		return nil, err
	}

	s.logger.Info("Cooling-off period started",
		zap.String("couple_id", coupleID),
		zap.String("period_id", period.PeriodID),
		zap.String("initiated_by", initiatedBy),
		zap.Int("duration_hours", durationHours),
	)
	return period, nil
}

// EndEarly completes a live period before ends_at
func (s *CoolingOffService) EndEarly(ctx context.Context, periodID, reason string) (*models.CoolingOffPeriod, error) {
	period, err := s.store.EndEarly(ctx, periodID, reason, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Cooling-off period ended early",
		zap.String("couple_id", period.CoupleID),
		zap.String("period_id", periodID),
	)
	return period, nil
}

// Cancel cancels a live period
func (s *CoolingOffService) Cancel(ctx context.Context, periodID, reason string) (*models.CoolingOffPeriod, error) {
	period, err := s.store.Cancel(ctx, periodID, reason, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Cooling-off period cancelled",
		zap.String("couple_id", period.CoupleID),
		zap.String("period_id", periodID),
	)
	return period, nil
}

// Active live period for the couple, nil when none
func (s *CoolingOffService) Active(ctx context.Context, coupleID string) (*models.CoolingOffPeriod, error) {
	period, err := s.store.GetActive(ctx, coupleID)
	if err != nil || period == nil {
		return nil, err
	}
	if !period.IsLive(s.now()) {
		return nil, nil
	}
	return period, nil
}

// IsActive reports whether the couple is in a live cooling-off period
func (s *CoolingOffService) IsActive(ctx context.Context, coupleID string) (bool, error) {
	period, err := s.Active(ctx, coupleID)
	if err != nil {
		return false, err
	}
	return period != nil, nil
}

// Get returns a period by id
func (s *CoolingOffService) Get(ctx context.Context, periodID string) (*models.CoolingOffPeriod, error) {
	return s.store.GetPeriod(ctx, periodID)
}

// ExpireStale completes every active period past ends_at
func (s *CoolingOffService) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.store.ExpireStale(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Expired stale cooling-off periods", zap.Int64("count", n))
	}
	return n, nil
}
