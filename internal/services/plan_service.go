package services

import (
	"time"

	"scriba_backend/internal/logger"
	"scriba_backend/internal/models"
	"scriba_backend/internal/repositories"
	"scriba_backend/internal/services/dto"
	"scriba_backend/pkg/apperrors"

	"gorm.io/datatypes"
)

type PlanService interface {
	Create(req *dto.CreatePlanRequest) (*models.Plan, error)
	Update(planID string, req *dto.UpdatePlanRequest) (*models.Plan, error)
	Delete(planID string) error
	Get(planID string) (*models.Plan, error)
	List() ([]models.Plan, error)

	// Activate binds a plan to a user after the payment boundary confirms a
	// purchase. Usage counters restart with the new period.
	Activate(req *dto.ActivatePlanRequest) (*models.User, error)
}

type PlanServiceImpl struct {
	planRepo repositories.PlanRepository
	userRepo repositories.UserRepository
}

func NewPlanService(planRepo repositories.PlanRepository, userRepo repositories.UserRepository) PlanService {
	return &PlanServiceImpl{planRepo: planRepo, userRepo: userRepo}
}

func (s *PlanServiceImpl) Create(req *dto.CreatePlanRequest) (*models.Plan, error) {
	features, err := normalizeFeatures(req.Features)
	if err != nil {
		return nil, err
	}

	if _, err := s.planRepo.FindByName(req.Name); err == nil {
		return nil, apperrors.NewConflictError("A plan with this name already exists")
	}

	plan := &models.Plan{
		Name:           req.Name,
		Description:    req.Description,
		Price:          req.Price,
		DurationInDays: req.DurationInDays,
		Features:       datatypes.NewJSONType(features),
	}
	return plan, s.planRepo.Create(plan)
}

func (s *PlanServiceImpl) Update(planID string, req *dto.UpdatePlanRequest) (*models.Plan, error) {
	plan, err := s.planRepo.FindByID(planID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		plan.Name = *req.Name
	}
	if req.Description != nil {
		plan.Description = *req.Description
	}
	if req.Price != nil {
		plan.Price = *req.Price
	}
	if req.DurationInDays != nil {
		plan.DurationInDays = *req.DurationInDays
	}
	if req.Features != nil {
		features, err := normalizeFeatures(*req.Features)
		if err != nil {
			return nil, err
		}
		plan.Features = datatypes.NewJSONType(features)
	}
	return plan, s.planRepo.Update(plan)
}

func (s *PlanServiceImpl) Delete(planID string) error {
	return s.planRepo.Delete(planID)
}

func (s *PlanServiceImpl) Get(planID string) (*models.Plan, error) {
	return s.planRepo.FindByID(planID)
}

func (s *PlanServiceImpl) List() ([]models.Plan, error) {
	return s.planRepo.FindAll()
}

func (s *PlanServiceImpl) Activate(req *dto.ActivatePlanRequest) (*models.User, error) {
	plan, err := s.planRepo.FindByID(req.PlanID)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().AddDate(0, 0, plan.DurationInDays)
	if err := s.userRepo.AssignPlan(req.UserID, plan.ID, expiresAt); err != nil {
		return nil, err
	}
	logger.Info("plan activated", "user_id", req.UserID, "plan", plan.Name, "expires_at", expiresAt)
	return s.userRepo.FindByID(req.UserID)
}

// normalizeFeatures validates and defaults a feature bundle at write time, so
// reads never have to interpret missing fields.
func normalizeFeatures(f models.PlanFeatures) (models.PlanFeatures, error) {
	if f.AgentCreationResetPeriod == "" {
		f.AgentCreationResetPeriod = models.ResetPeriodNever
	}
	if f.AssistantCreationResetPeriod == "" {
		f.AssistantCreationResetPeriod = models.ResetPeriodNever
	}
	if !validResetPeriod(f.AgentCreationResetPeriod) || !validResetPeriod(f.AssistantCreationResetPeriod) {
		return f, apperrors.NewBadRequestError("Reset period must be monthly, yearly or never")
	}

	for _, limit := range []float64{
		float64(f.MaxAudioTranscriptions),
		f.MaxTranscriptionMinutes,
		float64(f.MaxAgentUses),
		float64(f.MaxUserAgents),
		float64(f.MaxAssistantUses),
		float64(f.MaxAssistants),
	} {
		if limit < -1 {
			return f, apperrors.NewBadRequestError("Limits must be -1 (unlimited) or non-negative")
		}
	}
	return f, nil
}

func validResetPeriod(p models.ResetPeriod) bool {
	return p == models.ResetPeriodMonthly || p == models.ResetPeriodYearly || p == models.ResetPeriodNever
}
