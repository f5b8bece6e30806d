package notify

import (
	"context"
	"errors"
	"time"

	"couplecare-crisis/internal/models"

	"go.uber.org/zap"
)

// Event types published for downstream consumers (push, email, in-app feed)
const (
	EventInterventionTriggered = "crisis.intervention.triggered"
	EventSafetyCheckCreated    = "crisis.safety_check.created"
)

// Event payload published for each newly created row
type Event struct {
	Type         string                     `json:"type"`
	CoupleID     string                     `json:"couple_id"`
	Intervention *models.CrisisIntervention `json:"intervention,omitempty"`
	SafetyCheck  *models.SafetyCheck        `json:"safety_check,omitempty"`
	OccurredAt   time.Time                  `json:"occurred_at"`
}

// NewInterventionEvent wraps a newly inserted intervention
func NewInterventionEvent(iv *models.CrisisIntervention) Event {
	return Event{
		Type:         EventInterventionTriggered,
		CoupleID:     iv.CoupleID,
		Intervention: iv,
		OccurredAt:   iv.TriggeredAt,
	}
}

// NewSafetyCheckEvent wraps a newly created safety check
func NewSafetyCheckEvent(check *models.SafetyCheck) Event {
	return Event{
		Type:        EventSafetyCheckCreated,
		CoupleID:    check.CoupleID,
		SafetyCheck: check,
		OccurredAt:  check.CreatedAt,
	}
}

// Notifier publishes crisis events
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// NopNotifier discards events
type NopNotifier struct{}

// Publish implements Notifier
func (NopNotifier) Publish(context.Context, Event) error { return nil }

// MultiNotifier fans an event out to every backend; one failing backend does not stop the rest
type MultiNotifier struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewMultiNotifier creates a fan-out notifier, skipping nil entries
func NewMultiNotifier(logger *zap.Logger, notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{logger: logger}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Publish implements Notifier
func (m *MultiNotifier) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Publish(ctx, event); err != nil {
			m.logger.Warn("Failed to publish crisis event",
				zap.String("event_type", event.Type),
				zap.String("couple_id", event.CoupleID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len number of configured backends
func (m *MultiNotifier) Len() int {
	return len(m.notifiers)
}
