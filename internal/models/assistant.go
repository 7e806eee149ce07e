package models

import "gorm.io/datatypes"

// RunConfiguration holds the sampling parameters passed to a remote run.
type RunConfiguration struct {
	Temperature         float32 `json:"temperature"`
	TopP                float32 `json:"top_p"`
	MaxCompletionTokens int     `json:"max_completion_tokens"`
}

// KnowledgeBase tracks the remote file objects attached to an assistant's
// vector store, so they can be reclaimed on update/delete.
type KnowledgeBase struct {
	FileIDs []string `json:"fileIds"`
}

// Assistant is a reusable multi-step generation definition, mirrored to a
// remote assistant object plus an optional vector store.
type Assistant struct {
	BaseModel
	Name         string       `gorm:"not null" json:"name"`
	Instructions string       `gorm:"type:text;not null" json:"instructions"`
	Model        string       `gorm:"default:'gpt-4o';not null" json:"model"`
	OutputFormat OutputFormat `gorm:"type:varchar(10);default:'text';not null" json:"output_format"`

	RunConfiguration datatypes.JSONType[RunConfiguration] `json:"run_configuration"`
	KnowledgeBase    datatypes.JSONType[KnowledgeBase]    `json:"knowledge_base"`

	// Remote correlation ids. Empty until the definition has been synced.
	OpenAIAssistantID   string `gorm:"uniqueIndex;default:null" json:"openai_assistant_id"`
	OpenAIVectorStoreID string `gorm:"default:null" json:"-"`

	IsSystemAssistant bool    `gorm:"default:false;not null" json:"is_system_assistant"`
	CreatedByUserID   *string `gorm:"type:uuid;index" json:"created_by_user_id"`
	RequiresUserToken bool    `gorm:"default:false;not null" json:"requires_user_token"`

	PlanSpecific   bool                        `gorm:"default:false;not null" json:"plan_specific"`
	AllowedPlanIDs datatypes.JSONSlice[string] `json:"allowed_plan_ids"`

	Creator *User `gorm:"foreignKey:CreatedByUserID" json:"-"`
}

func (Assistant) TableName() string { return "assistants" }

func (a *Assistant) SystemOwned() bool { return a.IsSystemAssistant }
func (a *Assistant) OwnedBy(userID string) bool {
	return a.CreatedByUserID != nil && *a.CreatedByUserID == userID
}
