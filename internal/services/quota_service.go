package services

import (
	"context"
	"time"

	"scriba_backend/internal/logger"
	"scriba_backend/internal/models"
	"scriba_backend/internal/repositories"
)

// QuotaService is the only component that moves usage counters. Charges are
// applied on confirmed success; the sweep handles the two independent reset
// axes: plan expiry (zeroes everything, detaches the plan) and creation
// counter rollover (per-capability cadence, no expiry involved).
type QuotaService interface {
	ChargeTranscription(ctx context.Context, userID string, minutes float64) error
	ChargeAgentUse(ctx context.Context, userID string, usedSystemToken bool) error
	ChargeAssistantUse(ctx context.Context, userID string, usedSystemToken bool) error
	NoteAgentCreated(ctx context.Context, userID string) error
	NoteAssistantCreated(ctx context.Context, userID string) error

	// EnsureCreationWindow rolls the creation counter over in place when its
	// period has elapsed, so admission checks see the fresh window. The
	// returned user reflects the rollover.
	EnsureCreationWindow(ctx context.Context, user *models.User, capability models.Capability) (*models.User, error)

	// Sweep runs both reset axes. Idempotent: a second run with no time
	// elapsed changes nothing.
	Sweep(ctx context.Context, now time.Time) error
}

type QuotaServiceImpl struct {
	userRepo repositories.UserRepository
}

func NewQuotaService(userRepo repositories.UserRepository) QuotaService {
	return &QuotaServiceImpl{userRepo: userRepo}
}

func (s *QuotaServiceImpl) ChargeTranscription(ctx context.Context, userID string, minutes float64) error {
	return s.userRepo.ChargeTranscription(ctx, userID, minutes)
}

// Own-tier runs do not draw on the shared quota, so nothing is charged.
func (s *QuotaServiceImpl) ChargeAgentUse(ctx context.Context, userID string, usedSystemToken bool) error {
	if !usedSystemToken {
		return nil
	}
	return s.userRepo.ChargeAgentUse(ctx, userID)
}

func (s *QuotaServiceImpl) ChargeAssistantUse(ctx context.Context, userID string, usedSystemToken bool) error {
	if !usedSystemToken {
		return nil
	}
	return s.userRepo.ChargeAssistantUse(ctx, userID)
}

func (s *QuotaServiceImpl) NoteAgentCreated(ctx context.Context, userID string) error {
	return s.userRepo.IncrementAgentsCreated(ctx, userID)
}

func (s *QuotaServiceImpl) NoteAssistantCreated(ctx context.Context, userID string) error {
	return s.userRepo.IncrementAssistantsCreated(ctx, userID)
}

func (s *QuotaServiceImpl) EnsureCreationWindow(ctx context.Context, user *models.User, capability models.Capability) (*models.User, error) {
	if user.Plan == nil {
		return user, nil
	}
	features := user.Plan.Features.Data()
	now := time.Now()

	switch capability {
	case models.CapabilityAgentCreation:
		if rolloverDue(user.LastAgentCreationReset, features.AgentCreationResetPeriod, now) {
			if err := s.userRepo.ResetAgentCreationCounter(ctx, user.ID, now); err != nil {
				return nil, err
			}
			user.AgentsCreatedCount = 0
			user.LastAgentCreationReset = &now
		}
	case models.CapabilityAssistantCreation:
		if rolloverDue(user.LastAssistantCreationReset, features.AssistantCreationResetPeriod, now) {
			if err := s.userRepo.ResetAssistantCreationCounter(ctx, user.ID, now); err != nil {
				return nil, err
			}
			user.AssistantsCreatedCount = 0
			user.LastAssistantCreationReset = &now
		}
	}
	return user, nil
}

func (s *QuotaServiceImpl) Sweep(ctx context.Context, now time.Time) error {
	expired, err := s.userRepo.ResetExpiredPlans(ctx, now)
	if err != nil {
		return err
	}
	if expired > 0 {
		logger.Info("expired plans detached", "users", expired)
	}

	users, err := s.userRepo.FindWithCreationCounters(ctx)
	if err != nil {
		return err
	}
	for i := range users {
		user := &users[i]
		if user.Plan == nil {
			continue
		}
		features := user.Plan.Features.Data()

		if rolloverDue(user.LastAgentCreationReset, features.AgentCreationResetPeriod, now) {
			if err := s.userRepo.ResetAgentCreationCounter(ctx, user.ID, now); err != nil {
				logger.CtxWithError(ctx, "agent creation rollover failed", err, "user_id", user.ID)
			}
		}
		if rolloverDue(user.LastAssistantCreationReset, features.AssistantCreationResetPeriod, now) {
			if err := s.userRepo.ResetAssistantCreationCounter(ctx, user.ID, now); err != nil {
				logger.CtxWithError(ctx, "assistant creation rollover failed", err, "user_id", user.ID)
			}
		}
	}
	return nil
}

// rolloverDue measures the cadence from the stored last-reset time. A counter
// that never reset rolls over one period after it first moved, which the
// caller approximates by treating a nil timestamp as not yet due.
func rolloverDue(lastReset *time.Time, period models.ResetPeriod, now time.Time) bool {
	if lastReset == nil {
		return false
	}
	switch period {
	case models.ResetPeriodMonthly:
		return !now.Before(lastReset.AddDate(0, 1, 0))
	case models.ResetPeriodYearly:
		return !now.Before(lastReset.AddDate(1, 0, 0))
	default:
		return false
	}
}
