package evaluator

import (
	"couplecare-crisis/internal/models"
	"couplecare-crisis/internal/scoring"
)

// InterventionSpec one intervention a severity evaluation asks for
type InterventionSpec struct {
	Type           models.InterventionType
	ActionRequired bool
	// SafetyCheck non-empty when a SafetyCheck record accompanies the intervention
	SafetyCheck models.SafetyCheckType
}

// Decide maps a severity and its signals to the interventions to fire.
// Pure: persistence and de-duplication happen in Engine.Apply.
func Decide(severity models.Severity, snap models.SignalSnapshot) []InterventionSpec {
	var specs []InterventionSpec

	switch severity {
	case models.SeverityCritical:
		specs = append(specs, InterventionSpec{Type: models.InterventionCrisisHotline, ActionRequired: true})
		if snap.RedZoneDays >= scoring.SustainedRedZoneDays {
			specs = append(specs, InterventionSpec{Type: models.InterventionCoolingOff, ActionRequired: true})
		}

	case models.SeverityHigh:
		if snap.HighRiskMessages >= scoring.HighRiskMessageThreshold {
			specs = append(specs, InterventionSpec{Type: models.InterventionAISession})
		}
		if snap.GottmanViolations >= scoring.GottmanThreshold {
			specs = append(specs, InterventionSpec{Type: models.InterventionEmergencyTherapy, ActionRequired: true})
		}
		if snap.DisengagementHours >= scoring.DisengagementThreshold {
			specs = append(specs, InterventionSpec{
				Type:           models.InterventionSafetyCheck,
				ActionRequired: true,
				SafetyCheck:    models.SafetyCheckDisengagement,
			})
		}

	case models.SeverityModerate:
		if snap.ConflictFrequency >= scoring.ConflictThreshold {
			specs = append(specs, InterventionSpec{Type: models.InterventionAISession})
		}
	}

	return specs
}
