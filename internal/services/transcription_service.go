package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"scriba_backend/internal/engine"
	"scriba_backend/internal/logger"
	"scriba_backend/internal/models"
	"scriba_backend/internal/repositories"
	"scriba_backend/internal/storage"
	"scriba_backend/pkg/apperrors"
)

// UploadInput carries one audio upload into admission.
type UploadInput struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	Reader      io.Reader
	Title       string
}

type TranscriptionService interface {
	Upload(ctx context.Context, userID string, input UploadInput) (*models.Transcription, error)
	Get(userID, id string) (*models.Transcription, error)
	List(userID string, limit, offset int) ([]models.Transcription, int64, error)
	Delete(ctx context.Context, userID, id string) error
}

type TranscriptionServiceImpl struct {
	userRepo    repositories.UserRepository
	transcRepo  repositories.TranscriptionRepository
	entitlement EntitlementService
	credentials CredentialService
	quota       QuotaService
	store       storage.Storage
	runner      *engine.Runner

	transcriptionModel string
}

func NewTranscriptionService(
	userRepo repositories.UserRepository,
	transcRepo repositories.TranscriptionRepository,
	entitlement EntitlementService,
	credentials CredentialService,
	quota QuotaService,
	store storage.Storage,
	runner *engine.Runner,
	transcriptionModel string,
) TranscriptionService {
	return &TranscriptionServiceImpl{
		userRepo:           userRepo,
		transcRepo:         transcRepo,
		entitlement:        entitlement,
		credentials:        credentials,
		quota:              quota,
		store:              store,
		runner:             runner,
		transcriptionModel: transcriptionModel,
	}
}

// estimateDurationSeconds approximates audio length from file size, assuming
// a 128 kbps stream. No decoder is involved; the same estimate gates
// admission and the retroactive minute check.
func estimateDurationSeconds(fileSizeKB int) int {
	return fileSizeKB * 8 / 128
}

// Upload admits one transcription job: entitlement check, audio persisted,
// ledger row created pending, job dispatched. The returned row is what the
// client polls.
func (s *TranscriptionServiceImpl) Upload(ctx context.Context, userID string, input UploadInput) (*models.Transcription, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	if ent := s.entitlement.ResolveUsage(user, models.CapabilityTranscription, nil); !ent.Allowed {
		return nil, entitlementError(ent)
	}

	fileSizeKB := int(input.SizeBytes / 1024)
	estMinutes := float64(estimateDurationSeconds(fileSizeKB)) / 60
	if ent := s.entitlement.CheckMinutes(user, estMinutes); !ent.Allowed {
		return nil, entitlementError(ent)
	}

	cred := s.credentials.SystemCredential()

	id := uuid.NewString()
	audioPath := fmt.Sprintf("audio/%s%s", id, strings.ToLower(filepath.Ext(input.FileName)))
	if err := s.store.Save(ctx, audioPath, input.Reader, input.ContentType); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "Failed to store audio file", 500)
	}

	title := input.Title
	if title == "" {
		title = input.FileName
	}
	transcription := &models.Transcription{
		BaseModel:        models.BaseModel{ID: id},
		UserID:           user.ID,
		Title:            title,
		AudioPath:        audioPath,
		OriginalFileName: input.FileName,
		FileSizeKB:       fileSizeKB,
		Status:           models.JobStatusPending,
		UsedSystemToken:  cred.System(),
	}
	if err := s.transcRepo.Create(transcription); err != nil {
		if delErr := s.store.Delete(ctx, audioPath); delErr != nil {
			logger.CtxWithError(ctx, "failed to remove orphaned audio file", delErr, "path", audioPath)
		}
		return nil, err
	}

	// A saturated queue is an admission failure: the row is withdrawn so the
	// client sees a clean rejection, not a stuck pending job.
	if err := s.dispatch(transcription, cred); err != nil {
		s.removeAudio(context.Background(), transcription)
		if delErr := s.transcRepo.Delete(id); delErr != nil {
			logger.CtxWithError(ctx, "failed to withdraw unqueued transcription", delErr, "job_id", id)
		}
		return nil, apperrors.ErrQueueSaturated
	}
	return transcription, nil
}

func (s *TranscriptionServiceImpl) dispatch(t *models.Transcription, cred Credential) error {
	return s.runner.Dispatch(&engine.Task{
		ID: t.ID,
		Run: func(ctx context.Context) error {
			return s.process(ctx, t.ID, cred)
		},
		OnFailure: func(ctx context.Context, err error) {
			if markErr := s.transcRepo.MarkFailed(ctx, t.ID, err.Error()); markErr != nil {
				logger.CtxWithError(ctx, "failed to record transcription failure", markErr)
			}
		},
	})
}

// process is the background body of one transcription job. The audio file is
// removed on every exit path.
func (s *TranscriptionServiceImpl) process(ctx context.Context, id string, cred Credential) error {
	t, err := s.transcRepo.FindByID(id)
	if err != nil {
		return err
	}
	defer s.removeAudio(context.Background(), t)

	if err := s.transcRepo.MarkProcessing(ctx, id); err != nil {
		return err
	}

	audio, err := s.store.Get(ctx, t.AudioPath)
	if err != nil {
		return fmt.Errorf("failed to open stored audio: %w", err)
	}
	defer audio.Close()

	client := s.credentials.ClientFor(cred)
	text, err := client.Transcribe(ctx, s.transcriptionModel, t.OriginalFileName, audio)
	if err != nil {
		return err
	}

	durationSeconds := estimateDurationSeconds(t.FileSizeKB)
	minutes := float64(durationSeconds) / 60

	// Retroactive minute check: the transcript is discarded, not charged,
	// when the estimated duration no longer fits the remaining budget.
	user, err := s.userRepo.FindByID(t.UserID)
	if err != nil {
		return err
	}
	if ent := s.entitlement.CheckMinutes(user, minutes); !ent.Allowed {
		return fmt.Errorf("estimated duration %.1f min exceeds the remaining transcription minutes", minutes)
	}

	if err := s.transcRepo.MarkCompleted(ctx, id, repositories.TranscriptionResult{
		Text:            text,
		DurationSeconds: durationSeconds,
	}); err != nil {
		return err
	}

	if err := s.quota.ChargeTranscription(ctx, t.UserID, minutes); err != nil {
		logger.CtxWithError(ctx, "failed to charge transcription quota", err, "user_id", t.UserID)
	}
	logger.CtxInfo(ctx, "transcription completed", "duration_seconds", durationSeconds)
	return nil
}

func (s *TranscriptionServiceImpl) removeAudio(ctx context.Context, t *models.Transcription) {
	if t.AudioPath == "" {
		return
	}
	if err := s.store.Delete(ctx, t.AudioPath); err != nil {
		logger.CtxWithError(ctx, "failed to delete audio file", err, "path", t.AudioPath)
		return
	}
	if err := s.transcRepo.ClearAudioPath(ctx, t.ID); err != nil {
		logger.CtxWithError(ctx, "failed to clear audio path", err, "job_id", t.ID)
	}
}

func (s *TranscriptionServiceImpl) Get(userID, id string) (*models.Transcription, error) {
	return s.transcRepo.FindByIDForUser(id, userID)
}

func (s *TranscriptionServiceImpl) List(userID string, limit, offset int) ([]models.Transcription, int64, error) {
	items, err := s.transcRepo.ListByUser(userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.transcRepo.CountByUser(userID)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Delete aborts any in-flight job for the transcription, removes the audio
// artifact and drops the row. Dependent assistant runs cascade; agent
// actions keep running with their reference nulled.
func (s *TranscriptionServiceImpl) Delete(ctx context.Context, userID, id string) error {
	t, err := s.transcRepo.FindByIDForUser(id, userID)
	if err != nil {
		return err
	}

	s.runner.Cancel(t.ID)
	s.removeAudio(ctx, t)
	return s.transcRepo.Delete(t.ID)
}

// entitlementError maps a rejection reason onto a structured error.
func entitlementError(ent Entitlement) error {
	switch ent.Reason {
	case ReasonNoActivePlan:
		return apperrors.ErrNoActivePlan
	case ReasonNotVisible:
		return apperrors.ErrCapabilityNotAvailable
	default:
		return apperrors.ErrQuotaExhausted
	}
}
