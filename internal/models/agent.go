package models

import "gorm.io/datatypes"

// Agent is a reusable single-shot generation template. System agents have no
// creator; user agents are owned by exactly one user and count against that
// user's creation quota.
type Agent struct {
	BaseModel
	Name           string       `gorm:"not null" json:"name"`
	Description    string       `gorm:"type:text" json:"description"`
	PromptTemplate string       `gorm:"type:text;not null" json:"prompt_template"`
	OutputFormat   OutputFormat `gorm:"type:varchar(10);default:'text';not null" json:"output_format"`
	Model          string       `gorm:"default:'gpt-4o-mini';not null" json:"model"`

	IsSystemAgent     bool    `gorm:"default:true;not null" json:"is_system_agent"`
	CreatedByUserID   *string `gorm:"type:uuid;index" json:"created_by_user_id"`
	RequiresUserToken bool    `gorm:"default:false;not null" json:"requires_user_token"`

	// PlanSpecific restricts visibility to the listed plans. Invariant: when
	// true, AllowedPlanIDs must be non-empty (enforced at write time).
	PlanSpecific   bool                        `gorm:"default:false;not null" json:"plan_specific"`
	AllowedPlanIDs datatypes.JSONSlice[string] `json:"allowed_plan_ids"`

	Creator *User `gorm:"foreignKey:CreatedByUserID" json:"-"`
}

func (Agent) TableName() string { return "agents" }

func (a *Agent) SystemOwned() bool { return a.IsSystemAgent }

func (a *Agent) OwnedBy(userID string) bool {
	return a.CreatedByUserID != nil && *a.CreatedByUserID == userID
}
