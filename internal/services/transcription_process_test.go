package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriba_backend/internal/models"
	"scriba_backend/internal/openai"
	"scriba_backend/internal/repositories"
	"scriba_backend/internal/storage"
)

// fakeTranscriptionRepo keeps rows in memory and enforces the same guarded
// transitions as the real repository: terminal rows refuse further writes.
type fakeTranscriptionRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Transcription
}

func newFakeTranscriptionRepo() *fakeTranscriptionRepo {
	return &fakeTranscriptionRepo{rows: map[string]*models.Transcription{}}
}

func (f *fakeTranscriptionRepo) Create(t *models.Transcription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[t.ID] = t
	return nil
}

func (f *fakeTranscriptionRepo) FindByID(id string) (*models.Transcription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTranscriptionRepo) FindByIDForUser(id, userID string) (*models.Transcription, error) {
	return f.FindByID(id)
}

func (f *fakeTranscriptionRepo) ListByUser(userID string, limit, offset int) ([]models.Transcription, error) {
	return nil, nil
}

func (f *fakeTranscriptionRepo) CountByUser(userID string) (int64, error) { return 0, nil }

func (f *fakeTranscriptionRepo) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeTranscriptionRepo) transition(id string, from []models.JobStatus, mutate func(*models.Transcription)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok {
		return repositories.ErrJobFinal
	}
	for _, s := range from {
		if t.Status == s {
			mutate(t)
			return nil
		}
	}
	return repositories.ErrJobFinal
}

func (f *fakeTranscriptionRepo) MarkProcessing(ctx context.Context, id string) error {
	return f.transition(id, []models.JobStatus{models.JobStatusPending}, func(t *models.Transcription) {
		t.Status = models.JobStatusProcessing
	})
}

func (f *fakeTranscriptionRepo) MarkCompleted(ctx context.Context, id string, result repositories.TranscriptionResult) error {
	return f.transition(id, []models.JobStatus{models.JobStatusPending, models.JobStatusProcessing}, func(t *models.Transcription) {
		t.Status = models.JobStatusCompleted
		t.TranscriptionText = result.Text
	})
}

func (f *fakeTranscriptionRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	return f.transition(id, []models.JobStatus{models.JobStatusPending, models.JobStatusProcessing}, func(t *models.Transcription) {
		t.Status = models.JobStatusFailed
		t.ErrorMessage = reason
	})
}

func (f *fakeTranscriptionRepo) ClearAudioPath(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.rows[id]; ok {
		t.AudioPath = ""
	}
	return nil
}

func (f *fakeTranscriptionRepo) status(id string) models.JobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].Status
}

// fakeTranscriber stubs the provider transcription call.
type fakeTranscriber struct {
	openai.Client
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, model, fileName string, audio io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type processFixture struct {
	svc   *TranscriptionServiceImpl
	repo  *fakeTranscriptionRepo
	users *fakeUserRepo
	store storage.Storage
}

func newProcessFixture(t *testing.T, client openai.Client, minuteLimit float64) *processFixture {
	t.Helper()

	store, err := storage.NewLocalStorage(storage.Config{BasePath: t.TempDir()})
	require.NoError(t, err)

	plan := planWith(models.PlanFeatures{
		MaxAudioTranscriptions:  10,
		MaxTranscriptionMinutes: minuteLimit,
	})
	expires := time.Now().Add(time.Hour)
	users := &fakeUserRepo{user: subscribedUser(plan, expires)}

	repo := newFakeTranscriptionRepo()
	factory := func(apiKey string) openai.Client { return client }
	credentials := NewCredentialService("sk-system", factory)

	svc := &TranscriptionServiceImpl{
		userRepo:           users,
		transcRepo:         repo,
		entitlement:        NewEntitlementService(),
		credentials:        credentials,
		quota:              NewQuotaService(users),
		store:              store,
		transcriptionModel: "whisper-1",
	}
	return &processFixture{svc: svc, repo: repo, users: users, store: store}
}

func (fx *processFixture) seedJob(t *testing.T, fileSizeKB int) *models.Transcription {
	t.Helper()
	job := &models.Transcription{
		UserID:           "user-1",
		Title:            "meeting",
		OriginalFileName: "meeting.mp3",
		AudioPath:        "audio/job-1.mp3",
		FileSizeKB:       fileSizeKB,
		Status:           models.JobStatusPending,
	}
	job.ID = "job-1"
	require.NoError(t, fx.repo.Create(job))
	require.NoError(t, fx.store.Save(context.Background(), job.AudioPath, strings.NewReader("audio"), "audio/mpeg"))
	return job
}

func (fx *processFixture) audioExists(t *testing.T) bool {
	t.Helper()
	ok, err := fx.store.Exists(context.Background(), "audio/job-1.mp3")
	require.NoError(t, err)
	return ok
}

func TestProcessCompletesChargesAndRemovesAudio(t *testing.T) {
	fx := newProcessFixture(t, &fakeTranscriber{text: "hello world"}, 60)
	fx.seedJob(t, 1024)
	require.True(t, fx.audioExists(t))

	cred := fx.svc.credentials.SystemCredential()
	require.NoError(t, fx.svc.process(context.Background(), "job-1", cred))

	assert.Equal(t, models.JobStatusCompleted, fx.repo.status("job-1"))
	row, err := fx.repo.FindByID("job-1")
	require.NoError(t, err)
	assert.Equal(t, "hello world", row.TranscriptionText)

	assert.False(t, fx.audioExists(t))
	assert.Equal(t, 1, fx.users.transcriptions)
	assert.Greater(t, fx.users.minutesCharged, 0.0)
}

func TestProcessProviderFailureRemovesAudioWithoutCharging(t *testing.T) {
	fx := newProcessFixture(t, &fakeTranscriber{err: errors.New("whisper unavailable")}, 60)
	fx.seedJob(t, 1024)

	cred := fx.svc.credentials.SystemCredential()
	err := fx.svc.process(context.Background(), "job-1", cred)
	require.Error(t, err)

	assert.False(t, fx.audioExists(t))
	assert.Equal(t, 0, fx.users.transcriptions)
	// The failure write happens in the runner's OnFailure hook, so the row is
	// still processing when process returns the error.
	assert.Equal(t, models.JobStatusProcessing, fx.repo.status("job-1"))
}

func TestProcessRetroactiveMinuteCheckFailsWithoutCharging(t *testing.T) {
	// A quarter-hour budget cannot absorb a file estimated at over an hour.
	fx := newProcessFixture(t, &fakeTranscriber{text: "very long recording"}, 0.25)
	fx.seedJob(t, 64*1024)

	cred := fx.svc.credentials.SystemCredential()
	err := fx.svc.process(context.Background(), "job-1", cred)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remaining transcription minutes")

	assert.False(t, fx.audioExists(t))
	assert.Equal(t, 0, fx.users.transcriptions)
	assert.NotEqual(t, models.JobStatusCompleted, fx.repo.status("job-1"))
}

func TestProcessRefusesTerminalRow(t *testing.T) {
	fx := newProcessFixture(t, &fakeTranscriber{text: "x"}, 60)
	fx.seedJob(t, 100)
	require.NoError(t, fx.repo.MarkFailed(context.Background(), "job-1", "cancelled earlier"))

	cred := fx.svc.credentials.SystemCredential()
	err := fx.svc.process(context.Background(), "job-1", cred)
	assert.ErrorIs(t, err, repositories.ErrJobFinal)
	assert.Equal(t, models.JobStatusFailed, fx.repo.status("job-1"))
}
