package entities

// IdentifiedSymptom is one symptom the classifier recognised
type IdentifiedSymptom struct {
	Symptom  string `json:"symptom" validate:"required"`
	Severity string `json:"severity"`
}

// SymptomAnalysis is the structured classifier output. The three validated
// fields must be present; AdditionalNotes is optional.
type SymptomAnalysis struct {
	IdentifiedSymptoms []IdentifiedSymptom `json:"identified_symptoms" validate:"required,dive"`
	PossibleConditions []string            `json:"possible_conditions" validate:"required"`
	RecommendedAction  string              `json:"recommended_action" validate:"required"`
	AdditionalNotes    string              `json:"additional_notes,omitempty"`
}
