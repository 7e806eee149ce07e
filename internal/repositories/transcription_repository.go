package repositories

import (
	"context"
	"errors"

	"scriba_backend/internal/models"
	"scriba_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// TranscriptionResult is what a finished transcription writes back.
type TranscriptionResult struct {
	Text            string
	DurationSeconds int
}

type TranscriptionRepository interface {
	Create(t *models.Transcription) error
	FindByID(id string) (*models.Transcription, error)
	FindByIDForUser(id, userID string) (*models.Transcription, error)
	ListByUser(userID string, limit, offset int) ([]models.Transcription, error)
	CountByUser(userID string) (int64, error)
	Delete(id string) error

	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, result TranscriptionResult) error
	MarkFailed(ctx context.Context, id string, reason string) error
	ClearAudioPath(ctx context.Context, id string) error
}

type TranscriptionRepositoryImpl struct {
	db *gorm.DB
}

func NewTranscriptionRepository(db *gorm.DB) TranscriptionRepository {
	return &TranscriptionRepositoryImpl{db: db}
}

func (r *TranscriptionRepositoryImpl) Create(t *models.Transcription) error {
	return r.db.Create(t).Error
}

func (r *TranscriptionRepositoryImpl) FindByID(id string) (*models.Transcription, error) {
	var t models.Transcription
	if err := r.db.First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTranscriptionNotFound
		}
		return nil, err
	}
	return &t, nil
}

// FindByIDForUser scopes the lookup to the owner. Missing and foreign rows
// are indistinguishable to the caller.
func (r *TranscriptionRepositoryImpl) FindByIDForUser(id, userID string) (*models.Transcription, error) {
	var t models.Transcription
	if err := r.db.First(&t, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTranscriptionNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TranscriptionRepositoryImpl) ListByUser(userID string, limit, offset int) ([]models.Transcription, error) {
	var items []models.Transcription
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&items).Error
	return items, err
}

func (r *TranscriptionRepositoryImpl) CountByUser(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Transcription{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *TranscriptionRepositoryImpl) Delete(id string) error {
	result := r.db.Delete(&models.Transcription{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrTranscriptionNotFound
	}
	return nil
}

func (r *TranscriptionRepositoryImpl) MarkProcessing(ctx context.Context, id string) error {
	return markStatus(ctx, r.db, &models.Transcription{}, id,
		[]models.JobStatus{models.JobStatusPending},
		map[string]interface{}{"status": models.JobStatusProcessing})
}

func (r *TranscriptionRepositoryImpl) MarkCompleted(ctx context.Context, id string, result TranscriptionResult) error {
	return markStatus(ctx, r.db, &models.Transcription{}, id, nonTerminalStatuses,
		map[string]interface{}{
			"status":             models.JobStatusCompleted,
			"transcription_text": result.Text,
			"duration_seconds":   result.DurationSeconds,
		})
}

func (r *TranscriptionRepositoryImpl) MarkFailed(ctx context.Context, id string, reason string) error {
	return markStatus(ctx, r.db, &models.Transcription{}, id, nonTerminalStatuses,
		map[string]interface{}{
			"status":        models.JobStatusFailed,
			"error_message": reason,
		})
}

// ClearAudioPath records that the uploaded audio file has been removed.
func (r *TranscriptionRepositoryImpl) ClearAudioPath(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Transcription{}).
		Where("id = ?", id).
		Update("audio_path", "").Error
}
