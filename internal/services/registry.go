package services

import (
	"gorm.io/gorm"

	"scriba_backend/internal/config"
	"scriba_backend/internal/engine"
	"scriba_backend/internal/openai"
	"scriba_backend/internal/pdf"
	"scriba_backend/internal/repositories"
	"scriba_backend/internal/storage"
)

// ServiceContainer holds every service the handlers depend on.
type ServiceContainer struct {
	AuthService          AuthService
	UserService          UserService
	PlanService          PlanService
	QuotaService         QuotaService
	EntitlementService   EntitlementService
	CredentialService    CredentialService
	TranscriptionService TranscriptionService
	AgentService         AgentService
	AssistantService     AssistantService

	Runner *engine.Runner
}

// NewServiceContainer wires repositories, the job engine and the provider
// client factory into the service layer.
func NewServiceContainer(db *gorm.DB, cfg *config.Config, store storage.Storage, factory openai.Factory) *ServiceContainer {
	userRepo := repositories.NewUserRepository(db)
	planRepo := repositories.NewPlanRepository(db)
	agentRepo := repositories.NewAgentRepository(db)
	assistantRepo := repositories.NewAssistantRepository(db)
	transcRepo := repositories.NewTranscriptionRepository(db)
	actionRepo := repositories.NewAgentActionRepository(db)
	runRepo := repositories.NewAssistantRunRepository(db)

	runner := engine.NewRunner(cfg.Engine.Workers, cfg.Engine.QueueSize)
	poller := engine.NewPoller(cfg.Engine.PollInterval, cfg.Engine.PollTimeout)
	renderer := pdf.NewRenderer()

	entitlement := NewEntitlementService()
	credentials := NewCredentialService(cfg.OpenAI.SystemAPIKey, factory)
	quota := NewQuotaService(userRepo)

	return &ServiceContainer{
		AuthService:        NewAuthService(userRepo),
		UserService:        NewUserService(userRepo),
		PlanService:        NewPlanService(planRepo, userRepo),
		QuotaService:       quota,
		EntitlementService: entitlement,
		CredentialService:  credentials,
		TranscriptionService: NewTranscriptionService(
			userRepo, transcRepo, entitlement, credentials, quota,
			store, runner, cfg.OpenAI.TranscriptionModel,
		),
		AgentService: NewAgentService(
			userRepo, agentRepo, actionRepo, transcRepo,
			entitlement, credentials, quota, store, renderer, runner,
		),
		AssistantService: NewAssistantService(
			userRepo, assistantRepo, runRepo, transcRepo,
			entitlement, credentials, quota, store, renderer, runner, poller,
		),
		Runner: runner,
	}
}
