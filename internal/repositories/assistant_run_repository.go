package repositories

import (
	"context"
	"errors"

	"scriba_backend/internal/models"
	"scriba_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// AssistantRunResult is what a finished assistant run writes back.
type AssistantRunResult struct {
	OutputText     string
	OutputFilePath string
}

type AssistantRunRepository interface {
	Create(run *models.AssistantRun) error
	FindByID(id string) (*models.AssistantRun, error)
	FindByIDForUser(id, userID string) (*models.AssistantRun, error)
	ListByUser(userID string, limit, offset int) ([]models.AssistantRun, error)
	CountByUser(userID string) (int64, error)
	Delete(id string) error

	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, result AssistantRunResult) error
	MarkFailed(ctx context.Context, id string, reason string) error
	SetProviderRefs(ctx context.Context, id, threadID, runID string) error
}

type AssistantRunRepositoryImpl struct {
	db *gorm.DB
}

func NewAssistantRunRepository(db *gorm.DB) AssistantRunRepository {
	return &AssistantRunRepositoryImpl{db: db}
}

func (r *AssistantRunRepositoryImpl) Create(run *models.AssistantRun) error {
	return r.db.Create(run).Error
}

func (r *AssistantRunRepositoryImpl) FindByID(id string) (*models.AssistantRun, error) {
	var run models.AssistantRun
	if err := r.db.Preload("Assistant").First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrJobNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (r *AssistantRunRepositoryImpl) FindByIDForUser(id, userID string) (*models.AssistantRun, error) {
	var run models.AssistantRun
	if err := r.db.Preload("Assistant").First(&run, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrJobNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (r *AssistantRunRepositoryImpl) ListByUser(userID string, limit, offset int) ([]models.AssistantRun, error) {
	var runs []models.AssistantRun
	err := r.db.Preload("Assistant").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&runs).Error
	return runs, err
}

func (r *AssistantRunRepositoryImpl) CountByUser(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.AssistantRun{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *AssistantRunRepositoryImpl) Delete(id string) error {
	result := r.db.Delete(&models.AssistantRun{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrJobNotFound
	}
	return nil
}

func (r *AssistantRunRepositoryImpl) MarkProcessing(ctx context.Context, id string) error {
	return markStatus(ctx, r.db, &models.AssistantRun{}, id,
		[]models.JobStatus{models.JobStatusPending},
		map[string]interface{}{"status": models.JobStatusProcessing})
}

func (r *AssistantRunRepositoryImpl) MarkCompleted(ctx context.Context, id string, result AssistantRunResult) error {
	return markStatus(ctx, r.db, &models.AssistantRun{}, id, nonTerminalStatuses,
		map[string]interface{}{
			"status":           models.JobStatusCompleted,
			"output_text":      result.OutputText,
			"output_file_path": result.OutputFilePath,
		})
}

func (r *AssistantRunRepositoryImpl) MarkFailed(ctx context.Context, id string, reason string) error {
	return markStatus(ctx, r.db, &models.AssistantRun{}, id, nonTerminalStatuses,
		map[string]interface{}{
			"status":        models.JobStatusFailed,
			"error_message": reason,
		})
}

// SetProviderRefs stores the remote thread and run ids once the run has been
// started, so a restarted process could still correlate the record.
func (r *AssistantRunRepositoryImpl) SetProviderRefs(ctx context.Context, id, threadID, runID string) error {
	return r.db.WithContext(ctx).Model(&models.AssistantRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"openai_thread_id": threadID,
			"openai_run_id":    runID,
		}).Error
}
