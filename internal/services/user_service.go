package services

import (
	"time"

	"scriba_backend/internal/models"
	"scriba_backend/internal/repositories"
	"scriba_backend/internal/services/dto"
)

type UserService interface {
	GetProfile(userID string) (*models.User, error)
	UpdateProfile(userID string, req *dto.UpdateProfileRequest) (*models.User, error)
	Usage(userID string) (*dto.UsageResponse, error)

	// Admin operations
	List(limit, offset int) ([]models.User, int64, error)
	Delete(userID string) error
}

type UserServiceImpl struct {
	userRepo repositories.UserRepository
}

func NewUserService(userRepo repositories.UserRepository) UserService {
	return &UserServiceImpl{userRepo: userRepo}
}

func (s *UserServiceImpl) GetProfile(userID string) (*models.User, error) {
	return s.userRepo.FindByID(userID)
}

func (s *UserServiceImpl) UpdateProfile(userID string, req *dto.UpdateProfileRequest) (*models.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.OpenAIAPIKey != nil {
		user.OpenAIAPIKey = *req.OpenAIAPIKey
	}
	return user, s.userRepo.Update(user)
}

// Usage builds the quota report the client renders on the dashboard.
func (s *UserServiceImpl) Usage(userID string) (*dto.UsageResponse, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	resp := &dto.UsageResponse{}
	if !user.PlanActive(time.Now()) {
		return resp, nil
	}

	resp.PlanName = user.Plan.Name
	expires := user.PlanExpiresAt.Format(time.RFC3339)
	resp.PlanExpiresAt = &expires

	features := user.Plan.Features.Data()
	resp.Transcriptions = usageRow(float64(user.TranscriptionsUsedCount), float64(features.MaxAudioTranscriptions))
	resp.TranscriptionMinutes = usageRow(user.TranscriptionMinutesUsed, features.MaxTranscriptionMinutes)
	resp.AgentUses = usageRow(float64(user.AgentUsesUsed), float64(features.MaxAgentUses))
	resp.AssistantUses = usageRow(float64(user.AssistantUsesUsed), float64(features.MaxAssistantUses))
	resp.AgentsCreated = usageRow(float64(user.AgentsCreatedCount), float64(features.MaxUserAgents))
	resp.AssistantsCreated = usageRow(float64(user.AssistantsCreatedCount), float64(features.MaxAssistants))
	return resp, nil
}

func usageRow(used, limit float64) dto.CapabilityUsage {
	row := dto.CapabilityUsage{Used: used, Limit: limit}
	if limit == -1 {
		row.Remaining = -1
	} else {
		row.Remaining = max(limit-used, 0)
	}
	return row
}

func (s *UserServiceImpl) List(limit, offset int) ([]models.User, int64, error) {
	users, err := s.userRepo.FindAll(limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.userRepo.CountAll()
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *UserServiceImpl) Delete(userID string) error {
	return s.userRepo.Delete(userID)
}
