package repositories

import (
	"context"
	"errors"

	"scriba_backend/internal/engine"
	"scriba_backend/internal/models"

	"gorm.io/gorm"
)

// Every job repository is a ledger for its result type.
var (
	_ engine.Ledger[TranscriptionResult] = (TranscriptionRepository)(nil)
	_ engine.Ledger[AgentActionResult]   = (AgentActionRepository)(nil)
	_ engine.Ledger[AssistantRunResult]  = (AssistantRunRepository)(nil)
)

// ErrJobFinal is returned when a status write targets a record that already
// reached completed or failed. Terminal states are never overwritten.
var ErrJobFinal = errors.New("job record is already in a terminal state")

// markStatus performs a guarded status transition: the update only applies
// while the record is still in one of the allowed source states. Zero rows
// affected means the record is gone or already terminal.
func markStatus(ctx context.Context, db *gorm.DB, model interface{}, id string, from []models.JobStatus, updates map[string]interface{}) error {
	result := db.WithContext(ctx).Model(model).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobFinal
	}
	return nil
}

var nonTerminalStatuses = []models.JobStatus{models.JobStatusPending, models.JobStatusProcessing}
