package repositories

import (
	"errors"

	"scriba_backend/internal/models"
	"scriba_backend/pkg/apperrors"

	"gorm.io/gorm"
)

type AssistantRepository interface {
	Create(assistant *models.Assistant) error
	FindByID(id string) (*models.Assistant, error)
	Update(assistant *models.Assistant) error
	Delete(id string) error
	ListSystem() ([]models.Assistant, error)
	ListByOwner(userID string) ([]models.Assistant, error)
	CountByOwner(userID string) (int64, error)
	FindAll(limit, offset int) ([]models.Assistant, error)
}

type AssistantRepositoryImpl struct {
	db *gorm.DB
}

func NewAssistantRepository(db *gorm.DB) AssistantRepository {
	return &AssistantRepositoryImpl{db: db}
}

func (r *AssistantRepositoryImpl) Create(assistant *models.Assistant) error {
	return r.db.Create(assistant).Error
}

func (r *AssistantRepositoryImpl) FindByID(id string) (*models.Assistant, error) {
	var assistant models.Assistant
	if err := r.db.First(&assistant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAssistantNotFound
		}
		return nil, err
	}
	return &assistant, nil
}

func (r *AssistantRepositoryImpl) Update(assistant *models.Assistant) error {
	return r.db.Save(assistant).Error
}

func (r *AssistantRepositoryImpl) Delete(id string) error {
	result := r.db.Delete(&models.Assistant{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrAssistantNotFound
	}
	return nil
}

func (r *AssistantRepositoryImpl) ListSystem() ([]models.Assistant, error) {
	var assistants []models.Assistant
	err := r.db.Where("is_system_assistant = ?", true).Order("name ASC").Find(&assistants).Error
	return assistants, err
}

func (r *AssistantRepositoryImpl) ListByOwner(userID string) ([]models.Assistant, error) {
	var assistants []models.Assistant
	err := r.db.Where("created_by_user_id = ?", userID).Order("created_at DESC").Find(&assistants).Error
	return assistants, err
}

func (r *AssistantRepositoryImpl) CountByOwner(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Assistant{}).Where("created_by_user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *AssistantRepositoryImpl) FindAll(limit, offset int) ([]models.Assistant, error) {
	var assistants []models.Assistant
	err := r.db.Limit(limit).Offset(offset).Order("created_at DESC").Find(&assistants).Error
	return assistants, err
}
