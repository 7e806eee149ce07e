package dto

import "scriba_backend/internal/models"

// KnowledgeFile is one document attached to an assistant's knowledge base.
type KnowledgeFile struct {
	Name    string
	Content []byte
}

type CreateAssistantRequest struct {
	Name             string                   `json:"name" validate:"required,min=2,max=100"`
	Instructions     string                   `json:"instructions" validate:"required"`
	Model            string                   `json:"model"`
	OutputFormat     models.OutputFormat      `json:"output_format" validate:"omitempty,oneof=text pdf"`
	RunConfiguration *models.RunConfiguration `json:"run_configuration"`

	// Admin-only fields, ignored for regular users.
	IsSystemAssistant bool     `json:"is_system_assistant"`
	RequiresUserToken bool     `json:"requires_user_token"`
	PlanSpecific      bool     `json:"plan_specific"`
	AllowedPlanIDs    []string `json:"allowed_plan_ids"`

	// Populated from multipart uploads, never from JSON.
	KnowledgeFiles []KnowledgeFile `json:"-"`
}

type UpdateAssistantRequest struct {
	Name             *string                  `json:"name" validate:"omitempty,min=2,max=100"`
	Instructions     *string                  `json:"instructions"`
	Model            *string                  `json:"model"`
	OutputFormat     *models.OutputFormat     `json:"output_format" validate:"omitempty,oneof=text pdf"`
	RunConfiguration *models.RunConfiguration `json:"run_configuration"`

	RequiresUserToken *bool     `json:"requires_user_token"`
	PlanSpecific      *bool     `json:"plan_specific"`
	AllowedPlanIDs    *[]string `json:"allowed_plan_ids"`

	// Replaces the whole knowledge base when non-empty.
	KnowledgeFiles []KnowledgeFile `json:"-"`
}

// ExecuteAssistantRequest points a multi-step run at a completed transcription.
type ExecuteAssistantRequest struct {
	TranscriptionID string `json:"transcription_id" validate:"required,uuid"`
}
