package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriba_backend/internal/models"
)

// fakeUserRepo records quota mutations so tests can assert which counters
// actually moved.
type fakeUserRepo struct {
	user              *models.User
	minutesCharged    float64
	transcriptions    int
	agentUses         int
	assistantUses     int
	agentsCreated     int
	assistantsCreated int
	agentResets       []time.Time
	assistantResets   []time.Time
	expiredPlanSweeps int
	usersWithCounters []models.User
}

func (f *fakeUserRepo) FindByID(id string) (*models.User, error)       { return f.user, nil }
func (f *fakeUserRepo) FindByEmail(email string) (*models.User, error) { return nil, nil }
func (f *fakeUserRepo) Create(user *models.User) error                 { return nil }
func (f *fakeUserRepo) Update(user *models.User) error                 { return nil }
func (f *fakeUserRepo) Delete(id string) error                         { return nil }

func (f *fakeUserRepo) FindAll(limit, offset int) ([]models.User, error) { return nil, nil }
func (f *fakeUserRepo) CountAll() (int64, error)                         { return 0, nil }
func (f *fakeUserRepo) CountByPlan(planID string) (int64, error)         { return 0, nil }

func (f *fakeUserRepo) ChargeTranscription(ctx context.Context, userID string, minutes float64) error {
	f.transcriptions++
	f.minutesCharged += minutes
	return nil
}

func (f *fakeUserRepo) ChargeAgentUse(ctx context.Context, userID string) error {
	f.agentUses++
	return nil
}

func (f *fakeUserRepo) ChargeAssistantUse(ctx context.Context, userID string) error {
	f.assistantUses++
	return nil
}

func (f *fakeUserRepo) IncrementAgentsCreated(ctx context.Context, userID string) error {
	f.agentsCreated++
	return nil
}

func (f *fakeUserRepo) IncrementAssistantsCreated(ctx context.Context, userID string) error {
	f.assistantsCreated++
	return nil
}

func (f *fakeUserRepo) ResetAgentCreationCounter(ctx context.Context, userID string, at time.Time) error {
	f.agentResets = append(f.agentResets, at)
	return nil
}

func (f *fakeUserRepo) ResetAssistantCreationCounter(ctx context.Context, userID string, at time.Time) error {
	f.assistantResets = append(f.assistantResets, at)
	return nil
}

func (f *fakeUserRepo) AssignPlan(userID, planID string, expiresAt time.Time) error { return nil }

func (f *fakeUserRepo) ResetExpiredPlans(ctx context.Context, now time.Time) (int64, error) {
	f.expiredPlanSweeps++
	return 0, nil
}

func (f *fakeUserRepo) FindWithCreationCounters(ctx context.Context) ([]models.User, error) {
	return f.usersWithCounters, nil
}

func TestChargeAgentUseSkipsOwnTier(t *testing.T) {
	repo := &fakeUserRepo{}
	quota := NewQuotaService(repo)

	require.NoError(t, quota.ChargeAgentUse(context.Background(), "user-1", false))
	assert.Equal(t, 0, repo.agentUses)

	require.NoError(t, quota.ChargeAgentUse(context.Background(), "user-1", true))
	assert.Equal(t, 1, repo.agentUses)
}

func TestChargeAssistantUseSkipsOwnTier(t *testing.T) {
	repo := &fakeUserRepo{}
	quota := NewQuotaService(repo)

	require.NoError(t, quota.ChargeAssistantUse(context.Background(), "user-1", false))
	require.NoError(t, quota.ChargeAssistantUse(context.Background(), "user-1", true))
	assert.Equal(t, 1, repo.assistantUses)
}

func TestChargeTranscriptionAlwaysCharges(t *testing.T) {
	repo := &fakeUserRepo{}
	quota := NewQuotaService(repo)

	require.NoError(t, quota.ChargeTranscription(context.Background(), "user-1", 3.5))
	assert.Equal(t, 1, repo.transcriptions)
	assert.InDelta(t, 3.5, repo.minutesCharged, 0.001)
}

func TestRolloverDue(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

	// A counter that never moved has no window to roll over.
	assert.False(t, rolloverDue(nil, models.ResetPeriodMonthly, now))

	recent := now.AddDate(0, 0, -10)
	assert.False(t, rolloverDue(&recent, models.ResetPeriodMonthly, now))

	staleMonth := now.AddDate(0, -1, 0)
	assert.True(t, rolloverDue(&staleMonth, models.ResetPeriodMonthly, now))

	staleYear := now.AddDate(-1, 0, 0)
	assert.True(t, rolloverDue(&staleYear, models.ResetPeriodYearly, now))
	assert.False(t, rolloverDue(&staleMonth, models.ResetPeriodYearly, now))

	ancient := now.AddDate(-5, 0, 0)
	assert.False(t, rolloverDue(&ancient, models.ResetPeriodNever, now))
}

func TestEnsureCreationWindowRollsOverInPlace(t *testing.T) {
	repo := &fakeUserRepo{}
	quota := NewQuotaService(repo)

	plan := planWith(models.PlanFeatures{
		AllowUserAgentCreation:   true,
		MaxUserAgents:            3,
		AgentCreationResetPeriod: models.ResetPeriodMonthly,
	})
	user := subscribedUser(plan, time.Now().Add(time.Hour))
	stale := time.Now().AddDate(0, -2, 0)
	user.LastAgentCreationReset = &stale
	user.AgentsCreatedCount = 3

	fresh, err := quota.EnsureCreationWindow(context.Background(), user, models.CapabilityAgentCreation)
	require.NoError(t, err)

	assert.Len(t, repo.agentResets, 1)
	assert.Equal(t, 0, fresh.AgentsCreatedCount)
	assert.NotNil(t, fresh.LastAgentCreationReset)
	assert.True(t, fresh.LastAgentCreationReset.After(stale))
}

func TestEnsureCreationWindowNoPlanIsNoop(t *testing.T) {
	repo := &fakeUserRepo{}
	quota := NewQuotaService(repo)

	user := &models.User{Role: models.UserRoleUser}
	fresh, err := quota.EnsureCreationWindow(context.Background(), user, models.CapabilityAgentCreation)
	require.NoError(t, err)
	assert.Same(t, user, fresh)
	assert.Empty(t, repo.agentResets)
}

func TestEnsureCreationWindowInsideWindowIsNoop(t *testing.T) {
	repo := &fakeUserRepo{}
	quota := NewQuotaService(repo)

	plan := planWith(models.PlanFeatures{
		AllowUserAssistantCreation:   true,
		AssistantCreationResetPeriod: models.ResetPeriodMonthly,
	})
	user := subscribedUser(plan, time.Now().Add(time.Hour))
	recent := time.Now().AddDate(0, 0, -5)
	user.LastAssistantCreationReset = &recent
	user.AssistantsCreatedCount = 2

	fresh, err := quota.EnsureCreationWindow(context.Background(), user, models.CapabilityAssistantCreation)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.AssistantsCreatedCount)
	assert.Empty(t, repo.assistantResets)
}

func TestSweepRunsBothAxes(t *testing.T) {
	now := time.Now()
	plan := planWith(models.PlanFeatures{
		AgentCreationResetPeriod:     models.ResetPeriodMonthly,
		AssistantCreationResetPeriod: models.ResetPeriodNever,
	})
	stale := now.AddDate(0, -2, 0)
	user := subscribedUser(plan, now.Add(time.Hour))
	user.LastAgentCreationReset = &stale
	user.LastAssistantCreationReset = &stale

	repo := &fakeUserRepo{usersWithCounters: []models.User{*user}}
	quota := NewQuotaService(repo)

	require.NoError(t, quota.Sweep(context.Background(), now))

	assert.Equal(t, 1, repo.expiredPlanSweeps)
	assert.Len(t, repo.agentResets, 1)
	// The assistant counter never resets on this plan.
	assert.Empty(t, repo.assistantResets)
}

func TestSweepIdempotentOnceRolledOver(t *testing.T) {
	now := time.Now()
	plan := planWith(models.PlanFeatures{
		AgentCreationResetPeriod: models.ResetPeriodMonthly,
	})
	fresh := now
	user := subscribedUser(plan, now.Add(time.Hour))
	user.LastAgentCreationReset = &fresh

	repo := &fakeUserRepo{usersWithCounters: []models.User{*user}}
	quota := NewQuotaService(repo)

	require.NoError(t, quota.Sweep(context.Background(), now))
	require.NoError(t, quota.Sweep(context.Background(), now))

	assert.Empty(t, repo.agentResets)
	assert.Equal(t, 2, repo.expiredPlanSweeps)
}
