package models

// Severity crisis severity tier
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders tiers low(0) < moderate(1) < high(2) < critical(3); unknown values rank -1
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityModerate:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// Valid reports whether s is one of the four tiers
func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// Signals the five trailing-window counters a score is computed from
type Signals struct {
	RedZoneDays        int     `json:"red_zone_days"`
	HighRiskMessages   int     `json:"high_risk_messages"`
	GottmanViolations  int     `json:"gottman_violations"`
	DisengagementHours float64 `json:"disengagement_hours"`
	ConflictFrequency  int     `json:"conflict_frequency"`
}

// SignalSnapshot Signals plus aggregation context that is not stored on the score row
type SignalSnapshot struct {
	Signals

	// MutualRedZone both partners logged a red check-in inside the window
	MutualRedZone bool `json:"mutual_red_zone"`
	// DisengagedUserID partner silent longest; empty when DisengagementHours is 0
	DisengagedUserID string `json:"disengaged_user_id,omitempty"`
}

// RedCheckin a UTC calendar day on which a user logged a red check-in
type RedCheckin struct {
	UserID string `json:"user_id"`
	Day    string `json:"day"` // YYYY-MM-DD
}

// MessageTone stored tone analysis of one couple message
type MessageTone struct {
	RiskLevel   string   `json:"risk_level"`
	WarningTags []string `json:"warning_tags"`
}
