package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"scriba_backend/internal/engine"
	"scriba_backend/internal/logger"
	"scriba_backend/internal/models"
	"scriba_backend/internal/openai"
	"scriba_backend/internal/pdf"
	"scriba_backend/internal/repositories"
	"scriba_backend/internal/services/dto"
	"scriba_backend/internal/storage"
	"scriba_backend/pkg/apperrors"

	"gorm.io/datatypes"
)

type AssistantService interface {
	Create(ctx context.Context, userID string, req *dto.CreateAssistantRequest) (*models.Assistant, error)
	Update(ctx context.Context, userID, assistantID string, req *dto.UpdateAssistantRequest) (*models.Assistant, error)
	Delete(ctx context.Context, userID, assistantID string) error
	Get(userID, assistantID string) (*models.Assistant, error)
	ListVisible(userID string) ([]models.Assistant, error)

	Execute(ctx context.Context, userID, assistantID string, req *dto.ExecuteAssistantRequest) (*models.AssistantRun, error)
	GetRun(userID, runID string) (*models.AssistantRun, error)
	ListRuns(userID string, limit, offset int) ([]models.AssistantRun, int64, error)
	OpenRunOutput(ctx context.Context, userID, runID string) (io.ReadCloser, string, error)
}

type AssistantServiceImpl struct {
	userRepo      repositories.UserRepository
	assistantRepo repositories.AssistantRepository
	runRepo       repositories.AssistantRunRepository
	transcRepo    repositories.TranscriptionRepository
	entitlement   EntitlementService
	credentials   CredentialService
	quota         QuotaService
	store         storage.Storage
	renderer      *pdf.Renderer
	runner        *engine.Runner
	poller        *engine.Poller
}

func NewAssistantService(
	userRepo repositories.UserRepository,
	assistantRepo repositories.AssistantRepository,
	runRepo repositories.AssistantRunRepository,
	transcRepo repositories.TranscriptionRepository,
	entitlement EntitlementService,
	credentials CredentialService,
	quota QuotaService,
	store storage.Storage,
	renderer *pdf.Renderer,
	runner *engine.Runner,
	poller *engine.Poller,
) AssistantService {
	return &AssistantServiceImpl{
		userRepo:      userRepo,
		assistantRepo: assistantRepo,
		runRepo:       runRepo,
		transcRepo:    transcRepo,
		entitlement:   entitlement,
		credentials:   credentials,
		quota:         quota,
		store:         store,
		renderer:      renderer,
		runner:        runner,
		poller:        poller,
	}
}

// Create registers the assistant locally and mirrors it to the provider:
// knowledge files are uploaded, a vector store is built over them, then the
// remote assistant is created pointing at the store. Every remote artifact
// created before a later step fails is reclaimed.
func (s *AssistantServiceImpl) Create(ctx context.Context, userID string, req *dto.CreateAssistantRequest) (*models.Assistant, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	assistant := &models.Assistant{
		Name:         req.Name,
		Instructions: req.Instructions,
		Model:        req.Model,
		OutputFormat: req.OutputFormat,
	}
	if assistant.Model == "" {
		assistant.Model = "gpt-4o"
	}
	if assistant.OutputFormat == "" {
		assistant.OutputFormat = models.OutputFormatText
	}
	if req.RunConfiguration != nil {
		assistant.RunConfiguration = datatypes.NewJSONType(*req.RunConfiguration)
	}

	isAdmin := user.Role == models.UserRoleAdmin
	if isAdmin {
		assistant.IsSystemAssistant = req.IsSystemAssistant
		assistant.RequiresUserToken = req.RequiresUserToken
		assistant.PlanSpecific = req.PlanSpecific
		assistant.AllowedPlanIDs = req.AllowedPlanIDs
		if !assistant.IsSystemAssistant {
			assistant.CreatedByUserID = &user.ID
		}
		if assistant.PlanSpecific && len(assistant.AllowedPlanIDs) == 0 {
			return nil, apperrors.NewBadRequestError("A plan-specific assistant requires a non-empty plan allow-list")
		}
	} else {
		user, err = s.quota.EnsureCreationWindow(ctx, user, models.CapabilityAssistantCreation)
		if err != nil {
			return nil, err
		}
		if ent := s.entitlement.ResolveCreation(user, models.CapabilityAssistantCreation, int64(user.AssistantsCreatedCount)); !ent.Allowed {
			if ent.Reason == ReasonNotVisible {
				return nil, apperrors.ErrCreationNotAllowed
			}
			return nil, entitlementError(ent)
		}
		assistant.IsSystemAssistant = false
		assistant.CreatedByUserID = &user.ID
		assistant.RequiresUserToken = true
	}

	cred, err := s.credentials.Select(user, AssistantRef(assistant))
	if err != nil {
		return nil, err
	}
	client := s.credentials.ClientFor(cred)

	if err := s.syncNew(ctx, client, assistant, req.KnowledgeFiles); err != nil {
		return nil, err
	}

	if err := s.assistantRepo.Create(assistant); err != nil {
		s.reclaimRemote(context.Background(), client, assistant)
		return nil, err
	}
	if !isAdmin {
		if err := s.quota.NoteAssistantCreated(ctx, user.ID); err != nil {
			logger.CtxWithError(ctx, "failed to count assistant creation", err, "user_id", user.ID)
		}
	}
	return assistant, nil
}

// syncNew mirrors a fresh definition to the provider, unwinding partial
// state on any failure.
func (s *AssistantServiceImpl) syncNew(ctx context.Context, client openai.Client, assistant *models.Assistant, files []dto.KnowledgeFile) error {
	var fileIDs []string
	cleanup := func() {
		bg := context.Background()
		for _, fileID := range fileIDs {
			if err := client.DeleteFile(bg, fileID); err != nil {
				logger.CtxWithError(ctx, "failed to reclaim uploaded file", err, "file_id", fileID)
			}
		}
		if assistant.OpenAIVectorStoreID != "" {
			if err := client.DeleteVectorStore(bg, assistant.OpenAIVectorStoreID); err != nil {
				logger.CtxWithError(ctx, "failed to reclaim vector store", err, "vector_store_id", assistant.OpenAIVectorStoreID)
			}
			assistant.OpenAIVectorStoreID = ""
		}
	}

	for _, file := range files {
		fileID, err := client.UploadFile(ctx, file.Name, file.Content)
		if err != nil {
			cleanup()
			return apperrors.Wrap(err, apperrors.CodeExternalServiceError, "Failed to upload knowledge file", 502)
		}
		fileIDs = append(fileIDs, fileID)
	}

	if len(fileIDs) > 0 {
		storeID, err := client.CreateVectorStore(ctx, assistant.Name, fileIDs)
		if err != nil {
			cleanup()
			return apperrors.Wrap(err, apperrors.CodeExternalServiceError, "Failed to build knowledge base", 502)
		}
		assistant.OpenAIVectorStoreID = storeID
	}

	remoteID, err := client.CreateAssistant(ctx, openai.AssistantSpec{
		Name:          assistant.Name,
		Instructions:  assistant.Instructions,
		Model:         assistant.Model,
		VectorStoreID: assistant.OpenAIVectorStoreID,
	})
	if err != nil {
		cleanup()
		return apperrors.Wrap(err, apperrors.CodeExternalServiceError, "Failed to create remote assistant", 502)
	}

	assistant.OpenAIAssistantID = remoteID
	assistant.KnowledgeBase = datatypes.NewJSONType(models.KnowledgeBase{FileIDs: fileIDs})
	return nil
}

func (s *AssistantServiceImpl) Update(ctx context.Context, userID, assistantID string, req *dto.UpdateAssistantRequest) (*models.Assistant, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	assistant, err := s.assistantRepo.FindByID(assistantID)
	if err != nil {
		return nil, err
	}
	if !s.canManage(user, assistant) {
		return nil, apperrors.ErrAssistantNotFound
	}
	if assistant.OpenAIAssistantID == "" {
		return nil, apperrors.ErrAssistantNotSynced
	}

	if req.Name != nil {
		assistant.Name = *req.Name
	}
	if req.Instructions != nil {
		assistant.Instructions = *req.Instructions
	}
	if req.Model != nil {
		assistant.Model = *req.Model
	}
	if req.OutputFormat != nil {
		assistant.OutputFormat = *req.OutputFormat
	}
	if req.RunConfiguration != nil {
		assistant.RunConfiguration = datatypes.NewJSONType(*req.RunConfiguration)
	}
	if user.Role == models.UserRoleAdmin {
		if req.RequiresUserToken != nil {
			assistant.RequiresUserToken = *req.RequiresUserToken
		}
		if req.PlanSpecific != nil {
			assistant.PlanSpecific = *req.PlanSpecific
		}
		if req.AllowedPlanIDs != nil {
			assistant.AllowedPlanIDs = *req.AllowedPlanIDs
		}
		if assistant.PlanSpecific && len(assistant.AllowedPlanIDs) == 0 {
			return nil, apperrors.NewBadRequestError("A plan-specific assistant requires a non-empty plan allow-list")
		}
	}

	cred, err := s.credentials.Select(user, AssistantRef(assistant))
	if err != nil {
		return nil, err
	}
	client := s.credentials.ClientFor(cred)

	if len(req.KnowledgeFiles) > 0 {
		if err := s.replaceKnowledgeBase(ctx, client, assistant, req.KnowledgeFiles); err != nil {
			return nil, err
		}
	}

	err = client.ModifyAssistant(ctx, assistant.OpenAIAssistantID, openai.AssistantSpec{
		Name:          assistant.Name,
		Instructions:  assistant.Instructions,
		Model:         assistant.Model,
		VectorStoreID: assistant.OpenAIVectorStoreID,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeExternalServiceError, "Failed to update remote assistant", 502)
	}
	return assistant, s.assistantRepo.Update(assistant)
}

// replaceKnowledgeBase swaps the whole remote knowledge base: new files and
// store first, then the old artifacts are reclaimed (failures logged only).
func (s *AssistantServiceImpl) replaceKnowledgeBase(ctx context.Context, client openai.Client, assistant *models.Assistant, files []dto.KnowledgeFile) error {
	oldStoreID := assistant.OpenAIVectorStoreID
	oldFileIDs := assistant.KnowledgeBase.Data().FileIDs

	var newFileIDs []string
	for _, file := range files {
		fileID, err := client.UploadFile(ctx, file.Name, file.Content)
		if err != nil {
			for _, id := range newFileIDs {
				if delErr := client.DeleteFile(context.Background(), id); delErr != nil {
					logger.CtxWithError(ctx, "failed to reclaim uploaded file", delErr, "file_id", id)
				}
			}
			return apperrors.Wrap(err, apperrors.CodeExternalServiceError, "Failed to upload knowledge file", 502)
		}
		newFileIDs = append(newFileIDs, fileID)
	}

	storeID, err := client.CreateVectorStore(ctx, assistant.Name, newFileIDs)
	if err != nil {
		for _, id := range newFileIDs {
			if delErr := client.DeleteFile(context.Background(), id); delErr != nil {
				logger.CtxWithError(ctx, "failed to reclaim uploaded file", delErr, "file_id", id)
			}
		}
		return apperrors.Wrap(err, apperrors.CodeExternalServiceError, "Failed to build knowledge base", 502)
	}

	assistant.OpenAIVectorStoreID = storeID
	assistant.KnowledgeBase = datatypes.NewJSONType(models.KnowledgeBase{FileIDs: newFileIDs})

	bg := context.Background()
	if oldStoreID != "" {
		if err := client.DeleteVectorStore(bg, oldStoreID); err != nil {
			logger.CtxWithError(ctx, "failed to delete replaced vector store", err, "vector_store_id", oldStoreID)
		}
	}
	for _, fileID := range oldFileIDs {
		if err := client.DeleteFile(bg, fileID); err != nil {
			logger.CtxWithError(ctx, "failed to delete replaced knowledge file", err, "file_id", fileID)
		}
	}
	return nil
}

// Delete removes the definition. Remote cleanup failures are logged, never
// escalated: the local row always goes.
func (s *AssistantServiceImpl) Delete(ctx context.Context, userID, assistantID string) error {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	assistant, err := s.assistantRepo.FindByID(assistantID)
	if err != nil {
		return err
	}
	if !s.canManage(user, assistant) {
		return apperrors.ErrAssistantNotFound
	}

	cred, credErr := s.credentials.Select(user, AssistantRef(assistant))
	if credErr == nil {
		s.reclaimRemote(ctx, s.credentials.ClientFor(cred), assistant)
	} else {
		logger.CtxWarn(ctx, "skipping remote assistant cleanup, no usable credential", "assistant_id", assistantID)
	}
	return s.assistantRepo.Delete(assistantID)
}

func (s *AssistantServiceImpl) reclaimRemote(ctx context.Context, client openai.Client, assistant *models.Assistant) {
	if assistant.OpenAIAssistantID != "" {
		if err := client.DeleteAssistant(ctx, assistant.OpenAIAssistantID); err != nil {
			logger.CtxWithError(ctx, "failed to delete remote assistant", err, "assistant_id", assistant.ID)
		}
	}
	if assistant.OpenAIVectorStoreID != "" {
		if err := client.DeleteVectorStore(ctx, assistant.OpenAIVectorStoreID); err != nil {
			logger.CtxWithError(ctx, "failed to delete vector store", err, "assistant_id", assistant.ID)
		}
	}
	for _, fileID := range assistant.KnowledgeBase.Data().FileIDs {
		if err := client.DeleteFile(ctx, fileID); err != nil {
			logger.CtxWithError(ctx, "failed to delete knowledge file", err, "file_id", fileID)
		}
	}
}

func (s *AssistantServiceImpl) Get(userID, assistantID string) (*models.Assistant, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	assistant, err := s.assistantRepo.FindByID(assistantID)
	if err != nil {
		return nil, err
	}
	if !s.visibleTo(user, assistant) {
		return nil, apperrors.ErrAssistantNotFound
	}
	return assistant, nil
}

func (s *AssistantServiceImpl) ListVisible(userID string) ([]models.Assistant, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user.Role == models.UserRoleAdmin {
		return s.assistantRepo.FindAll(500, 0)
	}

	system, err := s.assistantRepo.ListSystem()
	if err != nil {
		return nil, err
	}
	visible := make([]models.Assistant, 0, len(system))
	for _, assistant := range system {
		a := assistant
		if s.visibleTo(user, &a) {
			visible = append(visible, a)
		}
	}

	own, err := s.assistantRepo.ListByOwner(user.ID)
	if err != nil {
		return nil, err
	}
	return append(visible, own...), nil
}

// Execute admits a multi-step run against a completed transcription and
// dispatches the thread/message/run/poll protocol to the background.
func (s *AssistantServiceImpl) Execute(ctx context.Context, userID, assistantID string, req *dto.ExecuteAssistantRequest) (*models.AssistantRun, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	assistant, err := s.assistantRepo.FindByID(assistantID)
	if err != nil {
		return nil, err
	}
	if !s.visibleTo(user, assistant) {
		return nil, apperrors.ErrAssistantNotFound
	}
	if assistant.OpenAIAssistantID == "" {
		return nil, apperrors.ErrAssistantNotSynced
	}

	ref := AssistantRef(assistant)
	if ent := s.entitlement.ResolveUsage(user, models.CapabilityAssistantRun, &ref); !ent.Allowed {
		return nil, entitlementError(ent)
	}
	cred, err := s.credentials.Select(user, ref)
	if err != nil {
		return nil, err
	}

	transcription, err := s.transcRepo.FindByIDForUser(req.TranscriptionID, userID)
	if err != nil {
		return nil, err
	}
	if transcription.Status != models.JobStatusCompleted {
		return nil, apperrors.ErrTranscriptionNotReady
	}

	run := &models.AssistantRun{
		BaseModel:       models.BaseModel{ID: uuid.NewString()},
		UserID:          user.ID,
		AssistantID:     assistant.ID,
		TranscriptionID: transcription.ID,
		InputText:       transcription.TranscriptionText,
		OutputFormat:    assistant.OutputFormat,
		Status:          models.JobStatusPending,
		UsedSystemToken: cred.System(),
	}
	if err := s.runRepo.Create(run); err != nil {
		return nil, err
	}

	task := &engine.Task{
		ID: run.ID,
		Run: func(ctx context.Context) error {
			return s.process(ctx, run.ID, assistant, transcription.TranscriptionText, cred)
		},
		OnFailure: func(ctx context.Context, err error) {
			if markErr := s.runRepo.MarkFailed(ctx, run.ID, err.Error()); markErr != nil {
				logger.CtxWithError(ctx, "failed to record assistant run failure", markErr)
			}
		},
	}
	if err := s.runner.Dispatch(task); err != nil {
		if delErr := s.runRepo.Delete(run.ID); delErr != nil {
			logger.CtxWithError(ctx, "failed to withdraw unqueued assistant run", delErr, "job_id", run.ID)
		}
		return nil, apperrors.ErrQueueSaturated
	}
	return run, nil
}

func (s *AssistantServiceImpl) process(ctx context.Context, runID string, assistant *models.Assistant, inputText string, cred Credential) error {
	if err := s.runRepo.MarkProcessing(ctx, runID); err != nil {
		return err
	}
	client := s.credentials.ClientFor(cred)

	threadID, err := client.CreateThread(ctx)
	if err != nil {
		return err
	}
	if err := client.AddMessage(ctx, threadID, inputText); err != nil {
		return err
	}

	remoteRunID, err := client.StartRun(ctx, threadID, assistant.OpenAIAssistantID, runOptions(assistant))
	if err != nil {
		return err
	}
	if err := s.runRepo.SetProviderRefs(ctx, runID, threadID, remoteRunID); err != nil {
		logger.CtxWithError(ctx, "failed to store provider correlation ids", err)
	}

	if err := s.awaitRun(ctx, client, threadID, remoteRunID); err != nil {
		return err
	}

	output, err := client.LatestAssistantMessage(ctx, threadID, remoteRunID)
	if err != nil {
		return err
	}

	var outputPath string
	if assistant.OutputFormat == models.OutputFormatPDF {
		outputPath, err = s.renderOutput(ctx, runID, assistant.Name, output)
		if err != nil {
			return err
		}
	}

	if err := s.runRepo.MarkCompleted(ctx, runID, repositories.AssistantRunResult{
		OutputText:     output,
		OutputFilePath: outputPath,
	}); err != nil {
		if outputPath != "" {
			if delErr := s.store.Delete(context.Background(), outputPath); delErr != nil {
				logger.CtxWithError(ctx, "failed to remove orphaned output document", delErr, "path", outputPath)
			}
		}
		return err
	}

	record, err := s.runRepo.FindByID(runID)
	if err == nil {
		if chargeErr := s.quota.ChargeAssistantUse(ctx, record.UserID, record.UsedSystemToken); chargeErr != nil {
			logger.CtxWithError(ctx, "failed to charge assistant use", chargeErr, "user_id", record.UserID)
		}
	}
	logger.CtxInfo(ctx, "assistant run completed", "assistant_id", assistant.ID)
	return nil
}

// awaitRun polls the remote run until it succeeds, mapping every non-success
// terminal state (including requires_action, which has no handler here) to a
// permanent failure. A vanished thread/run aborts immediately.
func (s *AssistantServiceImpl) awaitRun(ctx context.Context, client openai.Client, threadID, remoteRunID string) error {
	return s.poller.Poll(ctx, func(ctx context.Context) (bool, error) {
		state, err := client.GetRun(ctx, threadID, remoteRunID)
		if err != nil {
			if errors.Is(err, openai.ErrRunGone) {
				return false, engine.Permanent(err)
			}
			return false, err
		}
		switch {
		case state.Succeeded():
			return true, nil
		case state.Terminal() || state.RequiresAction():
			msg := state.LastError
			if msg == "" {
				msg = "no provider error detail"
			}
			return false, engine.Permanent(fmt.Errorf("run ended with status %s: %s", state.Status, msg))
		default:
			return false, nil
		}
	})
}

func (s *AssistantServiceImpl) renderOutput(ctx context.Context, runID, title, text string) (string, error) {
	document, err := s.renderer.Render(title, text)
	if err != nil {
		return "", fmt.Errorf("failed to render output document: %w", err)
	}
	path := fmt.Sprintf("outputs/assistant_runs/%s.pdf", runID)
	if err := s.store.Save(ctx, path, bytes.NewReader(document), "application/pdf"); err != nil {
		return "", fmt.Errorf("failed to store output document: %w", err)
	}
	return path, nil
}

func runOptions(assistant *models.Assistant) openai.RunOptions {
	cfg := assistant.RunConfiguration.Data()
	opts := openai.RunOptions{MaxCompletionTokens: cfg.MaxCompletionTokens}
	if cfg.Temperature != 0 {
		t := cfg.Temperature
		opts.Temperature = &t
	}
	if cfg.TopP != 0 {
		p := cfg.TopP
		opts.TopP = &p
	}
	return opts
}

func (s *AssistantServiceImpl) GetRun(userID, runID string) (*models.AssistantRun, error) {
	return s.runRepo.FindByIDForUser(runID, userID)
}

func (s *AssistantServiceImpl) ListRuns(userID string, limit, offset int) ([]models.AssistantRun, int64, error) {
	runs, err := s.runRepo.ListByUser(userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.runRepo.CountByUser(userID)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

func (s *AssistantServiceImpl) OpenRunOutput(ctx context.Context, userID, runID string) (io.ReadCloser, string, error) {
	run, err := s.runRepo.FindByIDForUser(runID, userID)
	if err != nil {
		return nil, "", err
	}
	if run.Status != models.JobStatusCompleted || run.OutputFilePath == "" {
		return nil, "", apperrors.ErrOutputFileNotFound
	}
	reader, err := s.store.Get(ctx, run.OutputFilePath)
	if err != nil {
		return nil, "", apperrors.ErrOutputFileNotFound
	}
	return reader, fmt.Sprintf("%s.pdf", run.ID), nil
}

func (s *AssistantServiceImpl) canManage(user *models.User, assistant *models.Assistant) bool {
	return user.Role == models.UserRoleAdmin || assistant.OwnedBy(user.ID)
}

func (s *AssistantServiceImpl) visibleTo(user *models.User, assistant *models.Assistant) bool {
	if user.Role == models.UserRoleAdmin || assistant.OwnedBy(user.ID) {
		return true
	}
	if !assistant.SystemOwned() {
		return false
	}
	if user.Plan == nil || user.PlanID == nil {
		return false
	}
	if assistant.PlanSpecific && !contains(assistant.AllowedPlanIDs, *user.PlanID) {
		return false
	}
	allowList := user.Plan.Features.Data().AllowedSystemAssistantIDs
	return len(allowList) == 0 || contains(allowList, assistant.ID)
}
