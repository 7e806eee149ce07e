package repositories

import (
	"errors"

	"scriba_backend/internal/models"
	"scriba_backend/pkg/apperrors"

	"gorm.io/gorm"
)

type AgentRepository interface {
	Create(agent *models.Agent) error
	FindByID(id string) (*models.Agent, error)
	Update(agent *models.Agent) error
	Delete(id string) error
	ListSystem() ([]models.Agent, error)
	ListByOwner(userID string) ([]models.Agent, error)
	CountByOwner(userID string) (int64, error)
	FindAll(limit, offset int) ([]models.Agent, error)
}

type AgentRepositoryImpl struct {
	db *gorm.DB
}

func NewAgentRepository(db *gorm.DB) AgentRepository {
	return &AgentRepositoryImpl{db: db}
}

func (r *AgentRepositoryImpl) Create(agent *models.Agent) error {
	return r.db.Create(agent).Error
}

func (r *AgentRepositoryImpl) FindByID(id string) (*models.Agent, error) {
	var agent models.Agent
	if err := r.db.First(&agent, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAgentNotFound
		}
		return nil, err
	}
	return &agent, nil
}

func (r *AgentRepositoryImpl) Update(agent *models.Agent) error {
	return r.db.Save(agent).Error
}

// Delete refuses to remove an agent while recorded actions reference it.
func (r *AgentRepositoryImpl) Delete(id string) error {
	var referenced int64
	if err := r.db.Model(&models.AgentAction{}).Where("agent_id = ?", id).Count(&referenced).Error; err != nil {
		return err
	}
	if referenced > 0 {
		return apperrors.ErrAgentInUse
	}

	result := r.db.Delete(&models.Agent{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrAgentNotFound
	}
	return nil
}

func (r *AgentRepositoryImpl) ListSystem() ([]models.Agent, error) {
	var agents []models.Agent
	err := r.db.Where("is_system_agent = ?", true).Order("name ASC").Find(&agents).Error
	return agents, err
}

func (r *AgentRepositoryImpl) ListByOwner(userID string) ([]models.Agent, error) {
	var agents []models.Agent
	err := r.db.Where("created_by_user_id = ?", userID).Order("created_at DESC").Find(&agents).Error
	return agents, err
}

func (r *AgentRepositoryImpl) CountByOwner(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Agent{}).Where("created_by_user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *AgentRepositoryImpl) FindAll(limit, offset int) ([]models.Agent, error) {
	var agents []models.Agent
	err := r.db.Limit(limit).Offset(offset).Order("created_at DESC").Find(&agents).Error
	return agents, err
}
