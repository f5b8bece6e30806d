package models

import "time"

// SafetyCheckType reason a safety check was opened
type SafetyCheckType string

const (
	SafetyCheckDisengagement    SafetyCheckType = "disengagement"
	SafetyCheckSustainedRedZone SafetyCheckType = "sustained_red_zone"
	SafetyCheckHighRiskPattern  SafetyCheckType = "high_risk_pattern"
)

// Valid reports whether t is a known check type
func (t SafetyCheckType) Valid() bool {
	switch t {
	case SafetyCheckDisengagement, SafetyCheckSustainedRedZone, SafetyCheckHighRiskPattern:
		return true
	}
	return false
}

// SafetyCheck prompt to one partner, open until responded
type SafetyCheck struct {
	CheckID            string          `json:"check_id" db:"check_id"`
	CoupleID           string          `json:"couple_id" db:"couple_id"`
	TargetUserID       string          `json:"target_user_id" db:"target_user_id"`
	CheckType          SafetyCheckType `json:"check_type" db:"check_type"`
	Message            string          `json:"message" db:"message"`
	Response           *string         `json:"response,omitempty" db:"response"`
	RespondedAt        *time.Time      `json:"responded_at,omitempty" db:"responded_at"`
	RequiresEscalation bool            `json:"requires_escalation" db:"requires_escalation"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// IsOpen true while no response has been recorded
func (c *SafetyCheck) IsOpen() bool {
	return c.RespondedAt == nil
}
