package repositories

import (
	"errors"

	"scriba_backend/internal/models"
	"scriba_backend/pkg/apperrors"

	"gorm.io/gorm"
)

type PlanRepository interface {
	Create(plan *models.Plan) error
	FindByID(id string) (*models.Plan, error)
	FindByName(name string) (*models.Plan, error)
	FindAll() ([]models.Plan, error)
	Update(plan *models.Plan) error
	Delete(id string) error
}

type PlanRepositoryImpl struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &PlanRepositoryImpl{db: db}
}

func (r *PlanRepositoryImpl) Create(plan *models.Plan) error {
	return r.db.Create(plan).Error
}

func (r *PlanRepositoryImpl) FindByID(id string) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.First(&plan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepositoryImpl) FindByName(name string) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.First(&plan, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepositoryImpl) FindAll() ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.Order("price ASC").Find(&plans).Error
	return plans, err
}

func (r *PlanRepositoryImpl) Update(plan *models.Plan) error {
	return r.db.Save(plan).Error
}

// Delete refuses to remove a plan that users are still subscribed to.
func (r *PlanRepositoryImpl) Delete(id string) error {
	var subscribed int64
	if err := r.db.Model(&models.User{}).Where("plan_id = ?", id).Count(&subscribed).Error; err != nil {
		return err
	}
	if subscribed > 0 {
		return apperrors.ErrPlanInUse
	}

	result := r.db.Delete(&models.Plan{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrPlanNotFound
	}
	return nil
}
