package service

import (
	"context"
	"errors"
	"time"

	"couplecare-crisis/internal/models"

	"go.uber.org/zap"
)

// InterventionReader intervention persistence used outside the rule engine
type InterventionReader interface {
	GetIntervention(ctx context.Context, interventionID string) (*models.CrisisIntervention, error)
	Acknowledge(ctx context.Context, interventionID string, action models.ActionTaken, at time.Time) (*models.CrisisIntervention, error)
	ListOpen(ctx context.Context, coupleID string) ([]*models.CrisisIntervention, error)
	IgnoreExpired(ctx context.Context, now time.Time) (int64, error)
}

// AcknowledgeResult acknowledged intervention plus any period it started
type AcknowledgeResult struct {
	Intervention *models.CrisisIntervention `json:"intervention"`
	CoolingOff   *models.CoolingOffPeriod   `json:"cooling_off,omitempty"`
}

// InterventionService user resolution of interventions
type InterventionService struct {
	store      InterventionReader
	coolingOff *CoolingOffService
	now        func() time.Time
	logger     *zap.Logger
}

// NewInterventionService creates the service
func NewInterventionService(store InterventionReader, coolingOff *CoolingOffService, logger *zap.Logger) *InterventionService {
	return &InterventionService{
		store:      store,
		coolingOff: coolingOff,
		now:        time.Now,
		logger:     logger,
	}
}

// SetClock overrides the wall clock
func (s *InterventionService) SetClock(now func() time.Time) {
	s.now = now
}

// Acknowledge resolves an intervention exactly once. Accepting a cooling_off
// intervention starts a cooling-off period initiated by userID; a period that
// is already live is left as is.
func (s *InterventionService) Acknowledge(ctx context.Context, interventionID string, action models.ActionTaken, userID string) (*AcknowledgeResult, error) {
	iv, err := s.store.Acknowledge(ctx, interventionID, action, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.logger.Info("Intervention acknowledged",
		zap.String("intervention_id", interventionID),
		zap.String("couple_id", iv.CoupleID),
		zap.String("intervention_type", string(iv.InterventionType)),
		zap.String("action_taken", string(action)),
	)

	result := &AcknowledgeResult{Intervention: iv}
	if iv.InterventionType != models.InterventionCoolingOff || action != models.ActionAccepted || s.coolingOff == nil {
		return result, nil
	}

	initiatedBy := userID
	if initiatedBy == "" {
		initiatedBy = "system"
	}
	period, err := s.coolingOff.Start(ctx, iv.CoupleID, initiatedBy, "accepted crisis intervention "+iv.InterventionID, 0)
	switch {
	case err == nil:
		result.CoolingOff = period
	case errors.Is(err, models.ErrCoolingOffActive):
		s.logger.Info("Cooling-off already active for accepted intervention",
			zap.String("couple_id", iv.CoupleID),
		)
	default:
		// acknowledgement is committed; surface the start failure
		return result, err
	}
	return result, nil
}

// ListOpen unacknowledged interventions for a couple
func (s *InterventionService) ListOpen(ctx context.Context, coupleID string) ([]*models.CrisisIntervention, error) {
	return s.store.ListOpen(ctx, coupleID)
}

// IgnoreExpired resolves interventions past expires_at as ignored
func (s *InterventionService) IgnoreExpired(ctx context.Context) (int64, error) {
	n, err := s.store.IgnoreExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Expired unacknowledged interventions", zap.Int64("count", n))
	}
	return n, nil
}
