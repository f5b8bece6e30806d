package evaluator

import "couplecare-crisis/internal/models"

// CatalogEntry fixed user-facing copy for one intervention type
type CatalogEntry struct {
	Title   string
	Message string
}

var interventionCatalog = map[models.InterventionType]CatalogEntry{
	models.InterventionCrisisHotline: {
		Title:   "Support is available right now",
		Message: "Things look really hard at the moment. Trained counselors are available around the clock; the hotline directory lists numbers for your country.",
	},
	models.InterventionCoolingOff: {
		Title:   "Take a cooling-off break",
		Message: "Both of you have been in the red zone for several days. A short pause from difficult conversations can help you both reset. Accept to start a cooling-off period.",
	},
	models.InterventionEmergencyTherapy: {
		Title:   "Talk to a therapist soon",
		Message: "Recent conversations show repeated harmful communication patterns. We recommend booking an urgent session with a couples therapist.",
	},
	models.InterventionAISession: {
		Title:   "Start a guided coaching session",
		Message: "A guided session can help you work through recent tension together. It takes about 15 minutes.",
	},
	models.InterventionSafetyCheck: {
		Title:   "Checking in on you both",
		Message: "One of you has been quiet for a while. We've sent a short wellbeing check to make sure everyone is okay.",
	},
}

var safetyCheckMessages = map[models.SafetyCheckType]string{
	models.SafetyCheckDisengagement:    "We haven't heard from you in a couple of days. Are you okay? Let us know how you're doing.",
	models.SafetyCheckSustainedRedZone: "You've had several very hard days in a row. Are you safe right now?",
	models.SafetyCheckHighRiskPattern:  "Some recent messages worried us. Are you safe right now?",
}

// CatalogFor returns the copy for an intervention type
func CatalogFor(t models.InterventionType) (CatalogEntry, bool) {
	entry, ok := interventionCatalog[t]
	return entry, ok
}

// SafetyCheckMessage returns the prompt for a safety check type
func SafetyCheckMessage(t models.SafetyCheckType) string {
	return safetyCheckMessages[t]
}
