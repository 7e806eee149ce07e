package models

// AgentAction is the ledger entry for one single-shot generation attempt.
// Deleting an agent is restricted while actions reference it; deleting the
// source transcription nulls the back-reference.
type AgentAction struct {
	BaseModel
	UserID          string  `gorm:"type:uuid;not null;index" json:"user_id"`
	AgentID         string  `gorm:"type:uuid;not null;index" json:"agent_id"`
	TranscriptionID *string `gorm:"type:uuid;index" json:"transcription_id"`

	InputText      string       `gorm:"type:text;not null" json:"-"`
	OutputText     string       `gorm:"type:text" json:"output_text,omitempty"`
	OutputFormat   OutputFormat `gorm:"type:varchar(10);not null" json:"output_format"`
	OutputFilePath string       `json:"-"`

	Status          JobStatus `gorm:"type:varchar(20);default:'pending';not null;index" json:"status"`
	ErrorMessage    string    `gorm:"type:text" json:"error_message,omitempty"`
	UsedSystemToken bool      `gorm:"not null" json:"used_system_token"`

	Agent         *Agent         `gorm:"foreignKey:AgentID;constraint:OnDelete:RESTRICT" json:"agent,omitempty"`
	Transcription *Transcription `gorm:"foreignKey:TranscriptionID;constraint:OnDelete:SET NULL" json:"transcription,omitempty"`
}

func (AgentAction) TableName() string { return "agent_actions" }
