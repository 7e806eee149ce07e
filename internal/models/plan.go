package models

import (
	"gorm.io/datatypes"
)

// PlanFeatures is the typed entitlement bundle stored on a plan. A limit of -1
// means unlimited. Defaults are applied and validated at plan-write time, never
// at read time.
type PlanFeatures struct {
	MaxAudioTranscriptions  int     `json:"maxAudioTranscriptions"`
	MaxTranscriptionMinutes float64 `json:"maxTranscriptionMinutes"`

	MaxAgentUses             int         `json:"maxAgentUses"`
	AllowUserAgentCreation   bool        `json:"allowUserAgentCreation"`
	MaxUserAgents            int         `json:"maxUserAgents"`
	AgentCreationResetPeriod ResetPeriod `json:"agentCreationResetPeriod"`

	MaxAssistantUses             int         `json:"maxAssistantUses"`
	AllowUserAssistantCreation   bool        `json:"allowUserAssistantCreation"`
	MaxAssistants                int         `json:"maxAssistants"`
	AssistantCreationResetPeriod ResetPeriod `json:"assistantCreationResetPeriod"`

	// Credential rules for system-owned definitions.
	UseSystemTokenForSystemAgents bool `json:"useSystemTokenForSystemAgents"`
	AllowUserProvideOwnToken      bool `json:"allowUserProvideOwnToken"`

	// Optional visibility allow-lists. Empty means every system definition of
	// the family is visible.
	AllowedSystemAgentIDs     []string `json:"allowedSystemAgentIds"`
	AllowedSystemAssistantIDs []string `json:"allowedSystemAssistantIds"`
}

// UsageLimit returns the feature limit matching a usage capability.
func (f PlanFeatures) UsageLimit(c Capability) float64 {
	switch c {
	case CapabilityTranscription:
		return float64(f.MaxAudioTranscriptions)
	case CapabilityAgentRun:
		return float64(f.MaxAgentUses)
	case CapabilityAssistantRun:
		return float64(f.MaxAssistantUses)
	case CapabilityAgentCreation:
		return float64(f.MaxUserAgents)
	case CapabilityAssistantCreation:
		return float64(f.MaxAssistants)
	}
	return 0
}

type Plan struct {
	BaseModel
	Name           string                           `gorm:"uniqueIndex;not null" json:"name"`
	Description    string                           `gorm:"type:text" json:"description"`
	Price          float64                          `gorm:"type:decimal(10,2);not null" json:"price"`
	DurationInDays int                              `gorm:"not null" json:"duration_in_days"`
	Features       datatypes.JSONType[PlanFeatures] `json:"features"`
}

func (Plan) TableName() string { return "plans" }
