package models

import "time"

// CoolingOffStatus stored state of a cooling-off period
type CoolingOffStatus string

const (
	CoolingOffActive    CoolingOffStatus = "active"
	CoolingOffCompleted CoolingOffStatus = "completed"
	CoolingOffCancelled CoolingOffStatus = "cancelled"
)

// CoolingOffPeriod enforced communication pause for a couple
type CoolingOffPeriod struct {
	PeriodID       string           `json:"period_id" db:"period_id"`
	CoupleID       string           `json:"couple_id" db:"couple_id"`
	InitiatedBy    string           `json:"initiated_by" db:"initiated_by"`
	Reason         string           `json:"reason" db:"reason"`
	DurationHours  int              `json:"duration_hours" db:"duration_hours"`
	StartedAt      time.Time        `json:"started_at" db:"started_at"`
	EndsAt         time.Time        `json:"ends_at" db:"ends_at"`
	Status         CoolingOffStatus `json:"status" db:"status"`
	EarlyEndedAt   *time.Time       `json:"early_ended_at,omitempty" db:"early_ended_at"`
	EarlyEndReason *string          `json:"early_end_reason,omitempty" db:"early_end_reason"`
}

// IsLive stored status is active and ends_at has not passed.
// The stored status alone is not authoritative: an expired row may still read "active".
func (p *CoolingOffPeriod) IsLive(now time.Time) bool {
	return p.Status == CoolingOffActive && p.EndsAt.After(now)
}
