package models

// AssistantRun is the ledger entry for one multi-step generation attempt.
// Thread and run ids correlate the row with the remote operation and are read
// only by the poller. Rows cascade from deletion of the source transcription.
type AssistantRun struct {
	BaseModel
	UserID          string `gorm:"type:uuid;not null;index" json:"user_id"`
	AssistantID     string `gorm:"type:uuid;not null;index" json:"assistant_id"`
	TranscriptionID string `gorm:"type:uuid;not null;index" json:"transcription_id"`

	InputText      string       `gorm:"type:text" json:"-"`
	OutputText     string       `gorm:"type:text" json:"output_text,omitempty"`
	OutputFormat   OutputFormat `gorm:"type:varchar(10);default:'text';not null" json:"output_format"`
	OutputFilePath string       `json:"-"`

	Status          JobStatus `gorm:"type:varchar(20);default:'pending';not null;index" json:"status"`
	ErrorMessage    string    `gorm:"type:text" json:"error_message,omitempty"`
	UsedSystemToken bool      `gorm:"default:false;not null" json:"used_system_token"`

	OpenAIThreadID string `json:"-"`
	OpenAIRunID    string `json:"-"`

	Assistant     *Assistant     `gorm:"foreignKey:AssistantID" json:"assistant,omitempty"`
	Transcription *Transcription `gorm:"foreignKey:TranscriptionID;constraint:OnDelete:CASCADE" json:"transcription,omitempty"`
}

func (AssistantRun) TableName() string { return "assistant_runs" }
