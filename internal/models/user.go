package models

import "time"

type User struct {
	BaseModel
	Name         string   `gorm:"not null" json:"name"`
	Email        string   `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string   `gorm:"not null" json:"-"`
	Role         UserRole `gorm:"type:varchar(20);default:'user';not null" json:"role"`

	// Own external-API credential, used instead of the platform key when the
	// capability definition or the plan rules require/permit it.
	OpenAIAPIKey string `json:"-"`

	PlanID        *string    `gorm:"type:uuid;index" json:"plan_id"`
	PlanExpiresAt *time.Time `json:"plan_expires_at"`

	// Usage counters. Mutated only through atomic increments and the sweep;
	// meaningful only while PlanExpiresAt is in the future.
	TranscriptionsUsedCount  int     `gorm:"default:0;not null" json:"transcriptions_used_count"`
	TranscriptionMinutesUsed float64 `gorm:"type:decimal(10,2);default:0;not null" json:"transcription_minutes_used"`
	AgentUsesUsed            int     `gorm:"default:0;not null" json:"agent_uses_used"`
	AssistantUsesUsed        int     `gorm:"default:0;not null" json:"assistant_uses_used"`

	// Creation counters roll over on the plan cadence, independently of expiry.
	AgentsCreatedCount         int        `gorm:"default:0;not null" json:"agents_created_count"`
	LastAgentCreationReset     *time.Time `json:"last_agent_creation_reset"`
	AssistantsCreatedCount     int        `gorm:"default:0;not null" json:"assistants_created_count"`
	LastAssistantCreationReset *time.Time `json:"last_assistant_creation_reset"`

	// Relations
	Plan *Plan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

// HasOwnKey reports whether the user configured their own API credential.
func (u *User) HasOwnKey() bool {
	return u.OpenAIAPIKey != ""
}

// PlanActive reports whether the user currently has a non-expired plan.
func (u *User) PlanActive(now time.Time) bool {
	return u.PlanID != nil && u.Plan != nil && u.PlanExpiresAt != nil && u.PlanExpiresAt.After(now)
}
