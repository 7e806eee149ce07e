package models

type UserRole string
type JobStatus string
type OutputFormat string
type ResetPeriod string
type CredentialTier string
type Capability string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"

	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"

	OutputFormatText OutputFormat = "text"
	OutputFormatPDF  OutputFormat = "pdf"

	ResetPeriodMonthly ResetPeriod = "monthly"
	ResetPeriodYearly  ResetPeriod = "yearly"
	ResetPeriodNever   ResetPeriod = "never"

	CredentialTierSystem CredentialTier = "system"
	CredentialTierOwn    CredentialTier = "own"

	CapabilityTranscription     Capability = "transcription"
	CapabilityAgentRun          Capability = "agent_run"
	CapabilityAgentCreation     Capability = "agent_creation"
	CapabilityAssistantRun      Capability = "assistant_run"
	CapabilityAssistantCreation Capability = "assistant_creation"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
