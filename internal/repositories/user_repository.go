package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scriba_backend/internal/models"
	"scriba_backend/pkg/apperrors"

	"gorm.io/gorm"
)

type UserRepository interface {
	// User operations
	FindByID(id string) (*models.User, error)
	FindByEmail(email string) (*models.User, error)
	Create(user *models.User) error
	Update(user *models.User) error
	Delete(id string) error
	FindAll(limit, offset int) ([]models.User, error)
	CountAll() (int64, error)
	CountByPlan(planID string) (int64, error)

	// Usage counters. Increments are single UPDATE statements so concurrent
	// charges never lose writes.
	ChargeTranscription(ctx context.Context, userID string, minutes float64) error
	ChargeAgentUse(ctx context.Context, userID string) error
	ChargeAssistantUse(ctx context.Context, userID string) error
	IncrementAgentsCreated(ctx context.Context, userID string) error
	IncrementAssistantsCreated(ctx context.Context, userID string) error
	ResetAgentCreationCounter(ctx context.Context, userID string, at time.Time) error
	ResetAssistantCreationCounter(ctx context.Context, userID string, at time.Time) error

	// Plan lifecycle
	AssignPlan(userID, planID string, expiresAt time.Time) error
	ResetExpiredPlans(ctx context.Context, now time.Time) (int64, error)
	FindWithCreationCounters(ctx context.Context) ([]models.User, error)
}

type UserRepositoryImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{db: db}
}

func (r *UserRepositoryImpl) FindByID(id string) (*models.User, error) {
	var user models.User
	err := r.db.Preload("Plan").First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) FindByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Preload("Plan").First(&user, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) Create(user *models.User) error {
	var existing models.User
	if err := r.db.Select("id").Where("email = ?", user.Email).First(&existing).Error; err == nil {
		return apperrors.ErrEmailAlreadyExists
	}
	return r.db.Create(user).Error
}

func (r *UserRepositoryImpl) Update(user *models.User) error {
	return r.db.Save(user).Error
}

func (r *UserRepositoryImpl) Delete(id string) error {
	result := r.db.Delete(&models.User{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *UserRepositoryImpl) FindAll(limit, offset int) ([]models.User, error) {
	var users []models.User
	err := r.db.Preload("Plan").
		Limit(limit).Offset(offset).
		Order("created_at DESC").
		Find(&users).Error
	return users, err
}

func (r *UserRepositoryImpl) CountAll() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}

func (r *UserRepositoryImpl) CountByPlan(planID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("plan_id = ?", planID).Count(&count).Error
	return count, err
}

// Usage counters

func (r *UserRepositoryImpl) ChargeTranscription(ctx context.Context, userID string, minutes float64) error {
	return r.increment(ctx, userID, map[string]interface{}{
		"transcriptions_used_count":  gorm.Expr("transcriptions_used_count + 1"),
		"transcription_minutes_used": gorm.Expr("transcription_minutes_used + ?", minutes),
	})
}

func (r *UserRepositoryImpl) ChargeAgentUse(ctx context.Context, userID string) error {
	return r.increment(ctx, userID, map[string]interface{}{
		"agent_uses_used": gorm.Expr("agent_uses_used + 1"),
	})
}

func (r *UserRepositoryImpl) ChargeAssistantUse(ctx context.Context, userID string) error {
	return r.increment(ctx, userID, map[string]interface{}{
		"assistant_uses_used": gorm.Expr("assistant_uses_used + 1"),
	})
}

// Creation increments also start the rollover clock on the first creation.

func (r *UserRepositoryImpl) IncrementAgentsCreated(ctx context.Context, userID string) error {
	return r.increment(ctx, userID, map[string]interface{}{
		"agents_created_count":      gorm.Expr("agents_created_count + 1"),
		"last_agent_creation_reset": gorm.Expr("COALESCE(last_agent_creation_reset, NOW())"),
	})
}

func (r *UserRepositoryImpl) IncrementAssistantsCreated(ctx context.Context, userID string) error {
	return r.increment(ctx, userID, map[string]interface{}{
		"assistants_created_count":      gorm.Expr("assistants_created_count + 1"),
		"last_assistant_creation_reset": gorm.Expr("COALESCE(last_assistant_creation_reset, NOW())"),
	})
}

func (r *UserRepositoryImpl) increment(ctx context.Context, userID string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update usage counters: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *UserRepositoryImpl) ResetAgentCreationCounter(ctx context.Context, userID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"agents_created_count":      0,
			"last_agent_creation_reset": at,
		}).Error
}

func (r *UserRepositoryImpl) ResetAssistantCreationCounter(ctx context.Context, userID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"assistants_created_count":      0,
			"last_assistant_creation_reset": at,
		}).Error
}

// Plan lifecycle

// AssignPlan activates a plan for the user and zeroes the usage counters so
// the new period starts clean.
func (r *UserRepositoryImpl) AssignPlan(userID, planID string, expiresAt time.Time) error {
	result := r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"plan_id":                    planID,
			"plan_expires_at":            expiresAt,
			"transcriptions_used_count":  0,
			"transcription_minutes_used": 0,
			"agent_uses_used":            0,
			"assistant_uses_used":        0,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// ResetExpiredPlans detaches expired plans and zeroes every usage and
// creation counter in one statement. An expired period leaves nothing behind:
// a later plan purchase starts from a clean slate. Safe to run repeatedly:
// the WHERE clause matches a user at most once per expiry.
func (r *UserRepositoryImpl) ResetExpiredPlans(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("plan_id IS NOT NULL AND plan_expires_at IS NOT NULL AND plan_expires_at <= ?", now).
		Updates(map[string]interface{}{
			"plan_id":                       nil,
			"plan_expires_at":               nil,
			"transcriptions_used_count":     0,
			"transcription_minutes_used":    0,
			"agent_uses_used":               0,
			"assistant_uses_used":           0,
			"agents_created_count":          0,
			"assistants_created_count":      0,
			"last_agent_creation_reset":     nil,
			"last_assistant_creation_reset": nil,
		})
	return result.RowsAffected, result.Error
}

// FindWithCreationCounters returns users whose creation counters may be due
// for a rollover. Only users on a plan are considered.
func (r *UserRepositoryImpl) FindWithCreationCounters(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Preload("Plan").
		Where("plan_id IS NOT NULL AND (agents_created_count > 0 OR assistants_created_count > 0)").
		Find(&users).Error
	return users, err
}
