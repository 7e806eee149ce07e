package dto

import "scriba_backend/internal/models"

type CreateAgentRequest struct {
	Name           string              `json:"name" validate:"required,min=2,max=100"`
	Description    string              `json:"description"`
	PromptTemplate string              `json:"prompt_template" validate:"required"`
	OutputFormat   models.OutputFormat `json:"output_format" validate:"omitempty,oneof=text pdf"`
	Model          string              `json:"model"`

	// Admin-only fields, ignored for regular users.
	IsSystemAgent     bool     `json:"is_system_agent"`
	RequiresUserToken bool     `json:"requires_user_token"`
	PlanSpecific      bool     `json:"plan_specific"`
	AllowedPlanIDs    []string `json:"allowed_plan_ids"`
}

type UpdateAgentRequest struct {
	Name           *string              `json:"name" validate:"omitempty,min=2,max=100"`
	Description    *string              `json:"description"`
	PromptTemplate *string              `json:"prompt_template"`
	OutputFormat   *models.OutputFormat `json:"output_format" validate:"omitempty,oneof=text pdf"`
	Model          *string              `json:"model"`

	RequiresUserToken *bool     `json:"requires_user_token"`
	PlanSpecific      *bool     `json:"plan_specific"`
	AllowedPlanIDs    *[]string `json:"allowed_plan_ids"`
}

// ExecuteAgentRequest supplies the input for a single-shot run: either a
// completed transcription or raw text, not both.
type ExecuteAgentRequest struct {
	TranscriptionID *string `json:"transcription_id" validate:"omitempty,uuid"`
	InputText       string  `json:"input_text"`
}
