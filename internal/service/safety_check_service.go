package service

import (
	"context"
	"fmt"
	"time"

	"couplecare-crisis/internal/models"
	"couplecare-crisis/internal/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SafetyCheckStore safety check persistence
type SafetyCheckStore interface {
	Create(ctx context.Context, check *models.SafetyCheck) error
	GetSafetyCheck(ctx context.Context, checkID string) (*models.SafetyCheck, error)
	Respond(ctx context.Context, checkID, response string, requiresEscalation bool, at time.Time) (*models.SafetyCheck, error)
	PendingFor(ctx context.Context, userID string) ([]*models.SafetyCheck, error)
}

// Escalator forwards escalated responses to the care team
type Escalator interface {
	Escalate(ctx context.Context, check *models.SafetyCheck) error
}

// SafetyCheckService open -> responded workflow for safety checks
type SafetyCheckService struct {
	store     SafetyCheckStore
	escalator Escalator
	notifier  notify.Notifier
	now       func() time.Time
	logger    *zap.Logger
}

// NewSafetyCheckService creates the service; escalator and notifier may be nil
func NewSafetyCheckService(store SafetyCheckStore, escalator Escalator, notifier notify.Notifier, logger *zap.Logger) *SafetyCheckService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &SafetyCheckService{
		store:     store,
		escalator: escalator,
		notifier:  notifier,
		now:       time.Now,
		logger:    logger,
	}
}

// SetClock overrides the wall clock
func (s *SafetyCheckService) SetClock(now func() time.Time) {
	s.now = now
}

// Create opens a safety check for one partner
func (s *SafetyCheckService) Create(ctx context.Context, coupleID, targetUserID string, checkType models.SafetyCheckType, message string) (*models.SafetyCheck, error) {
	if !checkType.Valid() {
		return nil, fmt.Errorf("invalid check_type: %s", checkType)
	}
	if message == "" {
		message = defaultSafetyCheckMessage
	}

	check := &models.SafetyCheck{
		CheckID:      uuid.New().String(),
		CoupleID:     coupleID,
		TargetUserID: targetUserID,
		CheckType:    checkType,
		Message:      message,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Create(ctx, check); err != nil {
		return nil, err
	}

	if err := s.notifier.Publish(ctx, notify.NewSafetyCheckEvent(check)); err != nil {
		s.logger.Warn("Failed to notify safety check",
			zap.String("check_id", check.CheckID),
			zap.Error(err),
		)
	}
	return check, nil
}

// Respond closes an open check; a closed check returns models.ErrAlreadyResolved.
// Escalation failures are logged; the response itself is already committed.
func (s *SafetyCheckService) Respond(ctx context.Context, checkID, response string, requiresEscalation bool) (*models.SafetyCheck, error) {
	check, err := s.store.Respond(ctx, checkID, response, requiresEscalation, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.logger.Info("Safety check responded",
		zap.String("check_id", checkID),
		zap.String("couple_id", check.CoupleID),
		zap.Bool("requires_escalation", requiresEscalation),
	)

	if requiresEscalation && s.escalator != nil {
		if err := s.escalator.Escalate(ctx, check); err != nil {
			s.logger.Error("Failed to escalate safety check",
				zap.String("check_id", checkID),
				zap.String("couple_id", check.CoupleID),
				zap.Error(err),
			)
		}
	}
	return check, nil
}

// PendingFor open checks targeting the user
func (s *SafetyCheckService) PendingFor(ctx context.Context, userID string) ([]*models.SafetyCheck, error) {
	return s.store.PendingFor(ctx, userID)
}

// Get returns one check
func (s *SafetyCheckService) Get(ctx context.Context, checkID string) (*models.SafetyCheck, error) {
	return s.store.GetSafetyCheck(ctx, checkID)
}

const defaultSafetyCheckMessage = "We wanted to check in. Are you okay?"
