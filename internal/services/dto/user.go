package dto

type UpdateProfileRequest struct {
	Name *string `json:"name" validate:"omitempty,min=2,max=100"`

	// Pointer semantics: nil leaves the credential untouched, an empty
	// string removes it.
	OpenAIAPIKey *string `json:"openai_api_key"`
}

// CapabilityUsage is one row of the usage report.
type CapabilityUsage struct {
	Used      float64 `json:"used"`
	Limit     float64 `json:"limit"` // -1 means unlimited
	Remaining float64 `json:"remaining"`
}

type UsageResponse struct {
	PlanName      string  `json:"plan_name,omitempty"`
	PlanExpiresAt *string `json:"plan_expires_at,omitempty"`

	Transcriptions       CapabilityUsage `json:"transcriptions"`
	TranscriptionMinutes CapabilityUsage `json:"transcription_minutes"`
	AgentUses            CapabilityUsage `json:"agent_uses"`
	AssistantUses        CapabilityUsage `json:"assistant_uses"`
	AgentsCreated        CapabilityUsage `json:"agents_created"`
	AssistantsCreated    CapabilityUsage `json:"assistants_created"`
}
