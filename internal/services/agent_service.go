package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"scriba_backend/internal/engine"
	"scriba_backend/internal/logger"
	"scriba_backend/internal/models"
	"scriba_backend/internal/pdf"
	"scriba_backend/internal/repositories"
	"scriba_backend/internal/services/dto"
	"scriba_backend/internal/storage"
	"scriba_backend/pkg/apperrors"
)

const promptPlaceholder = "{text}"

type AgentService interface {
	Create(ctx context.Context, userID string, req *dto.CreateAgentRequest) (*models.Agent, error)
	Update(ctx context.Context, userID, agentID string, req *dto.UpdateAgentRequest) (*models.Agent, error)
	Delete(ctx context.Context, userID, agentID string) error
	Get(userID, agentID string) (*models.Agent, error)
	ListVisible(userID string) ([]models.Agent, error)

	Execute(ctx context.Context, userID, agentID string, req *dto.ExecuteAgentRequest) (*models.AgentAction, error)
	GetAction(userID, actionID string) (*models.AgentAction, error)
	ListActions(userID string, limit, offset int) ([]models.AgentAction, int64, error)
	OpenActionOutput(ctx context.Context, userID, actionID string) (io.ReadCloser, string, error)
}

type AgentServiceImpl struct {
	userRepo    repositories.UserRepository
	agentRepo   repositories.AgentRepository
	actionRepo  repositories.AgentActionRepository
	transcRepo  repositories.TranscriptionRepository
	entitlement EntitlementService
	credentials CredentialService
	quota       QuotaService
	store       storage.Storage
	renderer    *pdf.Renderer
	runner      *engine.Runner
}

func NewAgentService(
	userRepo repositories.UserRepository,
	agentRepo repositories.AgentRepository,
	actionRepo repositories.AgentActionRepository,
	transcRepo repositories.TranscriptionRepository,
	entitlement EntitlementService,
	credentials CredentialService,
	quota QuotaService,
	store storage.Storage,
	renderer *pdf.Renderer,
	runner *engine.Runner,
) AgentService {
	return &AgentServiceImpl{
		userRepo:    userRepo,
		agentRepo:   agentRepo,
		actionRepo:  actionRepo,
		transcRepo:  transcRepo,
		entitlement: entitlement,
		credentials: credentials,
		quota:       quota,
		store:       store,
		renderer:    renderer,
		runner:      runner,
	}
}

func (s *AgentServiceImpl) Create(ctx context.Context, userID string, req *dto.CreateAgentRequest) (*models.Agent, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	agent := &models.Agent{
		Name:           req.Name,
		Description:    req.Description,
		PromptTemplate: req.PromptTemplate,
		OutputFormat:   req.OutputFormat,
		Model:          req.Model,
	}
	if agent.OutputFormat == "" {
		agent.OutputFormat = models.OutputFormatText
	}
	if agent.Model == "" {
		agent.Model = "gpt-4o-mini"
	}
	if !strings.Contains(agent.PromptTemplate, promptPlaceholder) {
		return nil, apperrors.NewBadRequestError("Prompt template must contain the {text} placeholder")
	}

	if user.Role == models.UserRoleAdmin {
		agent.IsSystemAgent = req.IsSystemAgent
		agent.RequiresUserToken = req.RequiresUserToken
		agent.PlanSpecific = req.PlanSpecific
		agent.AllowedPlanIDs = req.AllowedPlanIDs
		if !agent.IsSystemAgent {
			agent.CreatedByUserID = &user.ID
		}
		if agent.PlanSpecific && len(agent.AllowedPlanIDs) == 0 {
			return nil, apperrors.NewBadRequestError("A plan-specific agent requires a non-empty plan allow-list")
		}
		return agent, s.agentRepo.Create(agent)
	}

	user, err = s.quota.EnsureCreationWindow(ctx, user, models.CapabilityAgentCreation)
	if err != nil {
		return nil, err
	}
	if ent := s.entitlement.ResolveCreation(user, models.CapabilityAgentCreation, int64(user.AgentsCreatedCount)); !ent.Allowed {
		if ent.Reason == ReasonNotVisible {
			return nil, apperrors.ErrCreationNotAllowed
		}
		return nil, entitlementError(ent)
	}

	agent.IsSystemAgent = false
	agent.CreatedByUserID = &user.ID
	agent.RequiresUserToken = true

	if err := s.agentRepo.Create(agent); err != nil {
		return nil, err
	}
	if err := s.quota.NoteAgentCreated(ctx, user.ID); err != nil {
		logger.CtxWithError(ctx, "failed to count agent creation", err, "user_id", user.ID)
	}
	return agent, nil
}

func (s *AgentServiceImpl) Update(ctx context.Context, userID, agentID string, req *dto.UpdateAgentRequest) (*models.Agent, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	agent, err := s.agentRepo.FindByID(agentID)
	if err != nil {
		return nil, err
	}
	if !s.canManage(user, agent) {
		return nil, apperrors.ErrAgentNotFound
	}

	if req.Name != nil {
		agent.Name = *req.Name
	}
	if req.Description != nil {
		agent.Description = *req.Description
	}
	if req.PromptTemplate != nil {
		if !strings.Contains(*req.PromptTemplate, promptPlaceholder) {
			return nil, apperrors.NewBadRequestError("Prompt template must contain the {text} placeholder")
		}
		agent.PromptTemplate = *req.PromptTemplate
	}
	if req.OutputFormat != nil {
		agent.OutputFormat = *req.OutputFormat
	}
	if req.Model != nil {
		agent.Model = *req.Model
	}
	if user.Role == models.UserRoleAdmin {
		if req.RequiresUserToken != nil {
			agent.RequiresUserToken = *req.RequiresUserToken
		}
		if req.PlanSpecific != nil {
			agent.PlanSpecific = *req.PlanSpecific
		}
		if req.AllowedPlanIDs != nil {
			agent.AllowedPlanIDs = *req.AllowedPlanIDs
		}
		if agent.PlanSpecific && len(agent.AllowedPlanIDs) == 0 {
			return nil, apperrors.NewBadRequestError("A plan-specific agent requires a non-empty plan allow-list")
		}
	}
	return agent, s.agentRepo.Update(agent)
}

func (s *AgentServiceImpl) Delete(ctx context.Context, userID, agentID string) error {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	agent, err := s.agentRepo.FindByID(agentID)
	if err != nil {
		return err
	}
	if !s.canManage(user, agent) {
		return apperrors.ErrAgentNotFound
	}
	return s.agentRepo.Delete(agentID)
}

func (s *AgentServiceImpl) Get(userID, agentID string) (*models.Agent, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	agent, err := s.agentRepo.FindByID(agentID)
	if err != nil {
		return nil, err
	}
	if !s.visibleTo(user, agent) {
		return nil, apperrors.ErrAgentNotFound
	}
	return agent, nil
}

// ListVisible returns the system agents the user's plan exposes plus the
// user's own agents. Admins see everything.
func (s *AgentServiceImpl) ListVisible(userID string) ([]models.Agent, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user.Role == models.UserRoleAdmin {
		return s.agentRepo.FindAll(500, 0)
	}

	system, err := s.agentRepo.ListSystem()
	if err != nil {
		return nil, err
	}
	visible := make([]models.Agent, 0, len(system))
	for _, agent := range system {
		a := agent
		if s.visibleTo(user, &a) {
			visible = append(visible, a)
		}
	}

	own, err := s.agentRepo.ListByOwner(user.ID)
	if err != nil {
		return nil, err
	}
	return append(visible, own...), nil
}

func (s *AgentServiceImpl) Execute(ctx context.Context, userID, agentID string, req *dto.ExecuteAgentRequest) (*models.AgentAction, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	agent, err := s.agentRepo.FindByID(agentID)
	if err != nil {
		return nil, err
	}
	if !s.visibleTo(user, agent) {
		return nil, apperrors.ErrAgentNotFound
	}

	ref := AgentRef(agent)
	if ent := s.entitlement.ResolveUsage(user, models.CapabilityAgentRun, &ref); !ent.Allowed {
		return nil, entitlementError(ent)
	}
	cred, err := s.credentials.Select(user, ref)
	if err != nil {
		return nil, err
	}

	inputText, transcriptionID, err := s.resolveInput(user.ID, req)
	if err != nil {
		return nil, err
	}

	action := &models.AgentAction{
		BaseModel:       models.BaseModel{ID: uuid.NewString()},
		UserID:          user.ID,
		AgentID:         agent.ID,
		TranscriptionID: transcriptionID,
		InputText:       inputText,
		OutputFormat:    agent.OutputFormat,
		Status:          models.JobStatusPending,
		UsedSystemToken: cred.System(),
	}
	if err := s.actionRepo.Create(action); err != nil {
		return nil, err
	}

	task := &engine.Task{
		ID: action.ID,
		Run: func(ctx context.Context) error {
			return s.process(ctx, action.ID, agent, inputText, cred)
		},
		OnFailure: func(ctx context.Context, err error) {
			if markErr := s.actionRepo.MarkFailed(ctx, action.ID, err.Error()); markErr != nil {
				logger.CtxWithError(ctx, "failed to record agent action failure", markErr)
			}
		},
	}
	if err := s.runner.Dispatch(task); err != nil {
		if delErr := s.actionRepo.Delete(action.ID); delErr != nil {
			logger.CtxWithError(ctx, "failed to withdraw unqueued agent action", delErr, "job_id", action.ID)
		}
		return nil, apperrors.ErrQueueSaturated
	}
	return action, nil
}

func (s *AgentServiceImpl) process(ctx context.Context, actionID string, agent *models.Agent, inputText string, cred Credential) error {
	if err := s.actionRepo.MarkProcessing(ctx, actionID); err != nil {
		return err
	}

	client := s.credentials.ClientFor(cred)
	prompt := strings.ReplaceAll(agent.PromptTemplate, promptPlaceholder, inputText)
	output, err := client.Complete(ctx, agent.Model, prompt)
	if err != nil {
		return err
	}

	var outputPath string
	if agent.OutputFormat == models.OutputFormatPDF {
		outputPath, err = s.renderOutput(ctx, "agent_actions", actionID, agent.Name, output)
		if err != nil {
			return err
		}
	}

	if err := s.actionRepo.MarkCompleted(ctx, actionID, repositories.AgentActionResult{
		OutputText:     output,
		OutputFilePath: outputPath,
	}); err != nil {
		// The terminal write lost; a rendered artifact would be orphaned.
		if outputPath != "" {
			if delErr := s.store.Delete(context.Background(), outputPath); delErr != nil {
				logger.CtxWithError(ctx, "failed to remove orphaned output document", delErr, "path", outputPath)
			}
		}
		return err
	}

	action, err := s.actionRepo.FindByID(actionID)
	if err == nil {
		if chargeErr := s.quota.ChargeAgentUse(ctx, action.UserID, action.UsedSystemToken); chargeErr != nil {
			logger.CtxWithError(ctx, "failed to charge agent use", chargeErr, "user_id", action.UserID)
		}
	}
	logger.CtxInfo(ctx, "agent action completed", "agent_id", agent.ID)
	return nil
}

// renderOutput writes the generated text as a PDF artifact and returns its
// storage path.
func (s *AgentServiceImpl) renderOutput(ctx context.Context, family, jobID, title, text string) (string, error) {
	document, err := s.renderer.Render(title, text)
	if err != nil {
		return "", fmt.Errorf("failed to render output document: %w", err)
	}
	path := fmt.Sprintf("outputs/%s/%s.pdf", family, jobID)
	if err := s.store.Save(ctx, path, bytes.NewReader(document), "application/pdf"); err != nil {
		return "", fmt.Errorf("failed to store output document: %w", err)
	}
	return path, nil
}

func (s *AgentServiceImpl) resolveInput(userID string, req *dto.ExecuteAgentRequest) (string, *string, error) {
	if req.TranscriptionID != nil {
		t, err := s.transcRepo.FindByIDForUser(*req.TranscriptionID, userID)
		if err != nil {
			return "", nil, err
		}
		if t.Status != models.JobStatusCompleted {
			return "", nil, apperrors.ErrTranscriptionNotReady
		}
		return t.TranscriptionText, &t.ID, nil
	}
	if strings.TrimSpace(req.InputText) == "" {
		return "", nil, apperrors.NewBadRequestError("Either transcription_id or input_text is required")
	}
	return req.InputText, nil, nil
}

func (s *AgentServiceImpl) GetAction(userID, actionID string) (*models.AgentAction, error) {
	return s.actionRepo.FindByIDForUser(actionID, userID)
}

func (s *AgentServiceImpl) ListActions(userID string, limit, offset int) ([]models.AgentAction, int64, error) {
	actions, err := s.actionRepo.ListByUser(userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.actionRepo.CountByUser(userID)
	if err != nil {
		return nil, 0, err
	}
	return actions, total, nil
}

func (s *AgentServiceImpl) OpenActionOutput(ctx context.Context, userID, actionID string) (io.ReadCloser, string, error) {
	action, err := s.actionRepo.FindByIDForUser(actionID, userID)
	if err != nil {
		return nil, "", err
	}
	if action.Status != models.JobStatusCompleted || action.OutputFilePath == "" {
		return nil, "", apperrors.ErrOutputFileNotFound
	}
	reader, err := s.store.Get(ctx, action.OutputFilePath)
	if err != nil {
		return nil, "", apperrors.ErrOutputFileNotFound
	}
	return reader, fmt.Sprintf("%s.pdf", action.ID), nil
}

func (s *AgentServiceImpl) canManage(user *models.User, agent *models.Agent) bool {
	return user.Role == models.UserRoleAdmin || agent.OwnedBy(user.ID)
}

// visibleTo applies both allow-list axes: the agent's own plan restriction
// and the plan's system-agent allow-list.
func (s *AgentServiceImpl) visibleTo(user *models.User, agent *models.Agent) bool {
	if user.Role == models.UserRoleAdmin || agent.OwnedBy(user.ID) {
		return true
	}
	if !agent.SystemOwned() {
		return false
	}
	if user.Plan == nil || user.PlanID == nil {
		return false
	}
	if agent.PlanSpecific && !contains(agent.AllowedPlanIDs, *user.PlanID) {
		return false
	}
	allowList := user.Plan.Features.Data().AllowedSystemAgentIDs
	return len(allowList) == 0 || contains(allowList, agent.ID)
}
