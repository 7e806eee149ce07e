package repositories

import (
	"context"
	"errors"

	"scriba_backend/internal/models"
	"scriba_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// AgentActionResult is what a finished agent action writes back.
type AgentActionResult struct {
	OutputText     string
	OutputFilePath string
}

type AgentActionRepository interface {
	Create(action *models.AgentAction) error
	FindByID(id string) (*models.AgentAction, error)
	FindByIDForUser(id, userID string) (*models.AgentAction, error)
	ListByUser(userID string, limit, offset int) ([]models.AgentAction, error)
	CountByUser(userID string) (int64, error)
	Delete(id string) error

	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, result AgentActionResult) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

type AgentActionRepositoryImpl struct {
	db *gorm.DB
}

func NewAgentActionRepository(db *gorm.DB) AgentActionRepository {
	return &AgentActionRepositoryImpl{db: db}
}

func (r *AgentActionRepositoryImpl) Create(action *models.AgentAction) error {
	return r.db.Create(action).Error
}

func (r *AgentActionRepositoryImpl) FindByID(id string) (*models.AgentAction, error) {
	var action models.AgentAction
	if err := r.db.Preload("Agent").First(&action, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrJobNotFound
		}
		return nil, err
	}
	return &action, nil
}

func (r *AgentActionRepositoryImpl) FindByIDForUser(id, userID string) (*models.AgentAction, error) {
	var action models.AgentAction
	if err := r.db.Preload("Agent").First(&action, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrJobNotFound
		}
		return nil, err
	}
	return &action, nil
}

func (r *AgentActionRepositoryImpl) ListByUser(userID string, limit, offset int) ([]models.AgentAction, error) {
	var actions []models.AgentAction
	err := r.db.Preload("Agent").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&actions).Error
	return actions, err
}

func (r *AgentActionRepositoryImpl) CountByUser(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.AgentAction{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *AgentActionRepositoryImpl) Delete(id string) error {
	result := r.db.Delete(&models.AgentAction{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrJobNotFound
	}
	return nil
}

func (r *AgentActionRepositoryImpl) MarkProcessing(ctx context.Context, id string) error {
	return markStatus(ctx, r.db, &models.AgentAction{}, id,
		[]models.JobStatus{models.JobStatusPending},
		map[string]interface{}{"status": models.JobStatusProcessing})
}

func (r *AgentActionRepositoryImpl) MarkCompleted(ctx context.Context, id string, result AgentActionResult) error {
	return markStatus(ctx, r.db, &models.AgentAction{}, id, nonTerminalStatuses,
		map[string]interface{}{
			"status":           models.JobStatusCompleted,
			"output_text":      result.OutputText,
			"output_file_path": result.OutputFilePath,
		})
}

func (r *AgentActionRepositoryImpl) MarkFailed(ctx context.Context, id string, reason string) error {
	return markStatus(ctx, r.db, &models.AgentAction{}, id, nonTerminalStatuses,
		map[string]interface{}{
			"status":        models.JobStatusFailed,
			"error_message": reason,
		})
}
