package models

import "time"

// InterventionType kind of triggered action
type InterventionType string

const (
	InterventionCoolingOff       InterventionType = "cooling_off"
	InterventionEmergencyTherapy InterventionType = "emergency_therapy"
	InterventionCrisisHotline    InterventionType = "crisis_hotline"
	InterventionAISession        InterventionType = "ai_session"
	InterventionSafetyCheck      InterventionType = "safety_check"
)

// ActionTaken user resolution of an intervention
type ActionTaken string

const (
	ActionAcknowledged ActionTaken = "acknowledged"
	ActionAccepted     ActionTaken = "accepted"
	ActionDeclined     ActionTaken = "declined"
	ActionIgnored      ActionTaken = "ignored"
)

// Valid reports whether a is an accepted resolution value
func (a ActionTaken) Valid() bool {
	switch a {
	case ActionAcknowledged, ActionAccepted, ActionDeclined, ActionIgnored:
		return true
	}
	return false
}

// CrisisIntervention one row of crisis_interventions.
// At most one row per (couple_id, intervention_type) may have ActionTaken == nil.
type CrisisIntervention struct {
	InterventionID   string           `json:"intervention_id" db:"intervention_id"`
	CoupleID         string           `json:"couple_id" db:"couple_id"`
	CrisisScoreID    *string          `json:"crisis_score_id,omitempty" db:"crisis_score_id"`
	InterventionType InterventionType `json:"intervention_type" db:"intervention_type"`
	Severity         Severity         `json:"severity" db:"severity"`
	Title            string           `json:"title" db:"title"`
	Message          string           `json:"message" db:"message"`
	ActionRequired   bool             `json:"action_required" db:"action_required"`
	ExpiresAt        *time.Time       `json:"expires_at,omitempty" db:"expires_at"`
	TriggeredAt      time.Time        `json:"triggered_at" db:"triggered_at"`
	ActionTaken      *ActionTaken     `json:"action_taken,omitempty" db:"action_taken"`
	AcknowledgedAt   *time.Time       `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
}

// IsOpen true until the intervention has been acknowledged
func (i *CrisisIntervention) IsOpen() bool {
	return i.ActionTaken == nil
}
