package models

// Transcription is the ledger entry for one audio-to-text attempt. The audio
// file is a scoped resource: the runner deletes it on every exit path.
type Transcription struct {
	BaseModel
	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`

	Title            string `json:"title"`
	AudioPath        string `json:"-"`
	OriginalFileName string `json:"original_file_name"`
	FileSizeKB       int    `json:"file_size_kb"`
	DurationSeconds  int    `json:"duration_seconds"`

	TranscriptionText string    `gorm:"type:text" json:"transcription_text,omitempty"`
	Status            JobStatus `gorm:"type:varchar(20);default:'pending';not null;index" json:"status"`
	ErrorMessage      string    `gorm:"type:text" json:"error_message,omitempty"`
	UsedSystemToken   bool      `gorm:"default:true;not null" json:"used_system_token"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Transcription) TableName() string { return "transcriptions" }
