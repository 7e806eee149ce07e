package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"scriba_backend/internal/models"

	"gorm.io/datatypes"
)

func planWith(features models.PlanFeatures) *models.Plan {
	plan := &models.Plan{Name: "test-plan"}
	plan.ID = "plan-1"
	plan.Features = datatypes.NewJSONType(features)
	return plan
}

func subscribedUser(plan *models.Plan, expiresAt time.Time) *models.User {
	user := &models.User{Role: models.UserRoleUser}
	user.ID = "user-1"
	user.PlanID = &plan.ID
	user.Plan = plan
	user.PlanExpiresAt = &expiresAt
	return user
}

func entitlementAt(now time.Time) *EntitlementServiceImpl {
	return &EntitlementServiceImpl{now: func() time.Time { return now }}
}

func TestResolveUsageAdminBypassesEverything(t *testing.T) {
	svc := entitlementAt(time.Now())
	admin := &models.User{Role: models.UserRoleAdmin}

	ent := svc.ResolveUsage(admin, models.CapabilityAgentRun, nil)

	assert.True(t, ent.Allowed)
	assert.EqualValues(t, -1, ent.Remaining)
}

func TestResolveUsageWithoutPlan(t *testing.T) {
	svc := entitlementAt(time.Now())
	user := &models.User{Role: models.UserRoleUser}

	ent := svc.ResolveUsage(user, models.CapabilityAgentRun, nil)

	assert.False(t, ent.Allowed)
	assert.Equal(t, ReasonNoActivePlan, ent.Reason)
}

func TestResolveUsageExpiredPlan(t *testing.T) {
	now := time.Now()
	svc := entitlementAt(now)
	plan := planWith(models.PlanFeatures{MaxAgentUses: 10})
	user := subscribedUser(plan, now.Add(-time.Hour))

	ent := svc.ResolveUsage(user, models.CapabilityAgentRun, nil)

	assert.False(t, ent.Allowed)
	assert.Equal(t, ReasonNoActivePlan, ent.Reason)
}

func TestResolveUsagePlanSpecificAllowList(t *testing.T) {
	now := time.Now()
	svc := entitlementAt(now)
	plan := planWith(models.PlanFeatures{MaxAgentUses: 10})
	user := subscribedUser(plan, now.Add(time.Hour))

	def := &DefinitionRef{ID: "agent-1", System: true, PlanSpecific: true, AllowedPlanIDs: []string{"other-plan"}}
	ent := svc.ResolveUsage(user, models.CapabilityAgentRun, def)
	assert.False(t, ent.Allowed)
	assert.Equal(t, ReasonNotVisible, ent.Reason)

	def.AllowedPlanIDs = []string{"plan-1"}
	ent = svc.ResolveUsage(user, models.CapabilityAgentRun, def)
	assert.True(t, ent.Allowed)
}

func TestResolveUsagePlanVisibilityAllowList(t *testing.T) {
	now := time.Now()
	svc := entitlementAt(now)
	plan := planWith(models.PlanFeatures{
		MaxAgentUses:          10,
		AllowedSystemAgentIDs: []string{"agent-approved"},
	})
	user := subscribedUser(plan, now.Add(time.Hour))

	blocked := &DefinitionRef{ID: "agent-other", System: true}
	ent := svc.ResolveUsage(user, models.CapabilityAgentRun, blocked)
	assert.False(t, ent.Allowed)
	assert.Equal(t, ReasonNotVisible, ent.Reason)

	approved := &DefinitionRef{ID: "agent-approved", System: true}
	ent = svc.ResolveUsage(user, models.CapabilityAgentRun, approved)
	assert.True(t, ent.Allowed)
}

func TestResolveUsageEmptyAllowListMeansAllVisible(t *testing.T) {
	now := time.Now()
	svc := entitlementAt(now)
	plan := planWith(models.PlanFeatures{MaxAssistantUses: 5})
	user := subscribedUser(plan, now.Add(time.Hour))

	ent := svc.ResolveUsage(user, models.CapabilityAssistantRun, &DefinitionRef{ID: "any", System: true})
	assert.True(t, ent.Allowed)
}

func TestResolveUsageQuotaExhausted(t *testing.T) {
	now := time.Now()
	svc := entitlementAt(now)
	plan := planWith(models.PlanFeatures{MaxAgentUses: 3})
	user := subscribedUser(plan, now.Add(time.Hour))
	user.AgentUsesUsed = 3

	ent := svc.ResolveUsage(user, models.CapabilityAgentRun, nil)

	assert.False(t, ent.Allowed)
	assert.Equal(t, ReasonQuotaExhausted, ent.Reason)
	assert.EqualValues(t, 0, ent.Remaining)
}

func TestResolveUsageUnlimited(t *testing.T) {
	now := time.Now()
	svc := entitlementAt(now)
	plan := planWith(models.PlanFeatures{MaxAgentUses: -1})
	user := subscribedUser(plan, now.Add(time.Hour))
	user.AgentUsesUsed = 100000

	ent := svc.ResolveUsage(user, models.CapabilityAgentRun, nil)

	assert.True(t, ent.Allowed)
	assert.EqualValues(t, -1, ent.Remaining)
}

func TestResolveUsageReportsRemaining(t *testing.T) {
	now := time.Now()
	svc := entitlementAt(now)
	plan := planWith(models.PlanFeatures{MaxAudioTranscriptions: 10})
	user := subscribedUser(plan, now.Add(time.Hour))
	user.TranscriptionsUsedCount = 4

	ent := svc.ResolveUsage(user, models.CapabilityTranscription, nil)

	assert.True(t, ent.Allowed)
	assert.EqualValues(t, 6, ent.Remaining)
}

func TestResolveCreationPlanForbidsIt(t *testing.T) {
	now := time.Now()
	svc := entitlementAt(now)
	plan := planWith(models.PlanFeatures{AllowUserAgentCreation: false, MaxUserAgents: 5})
	user := subscribedUser(plan, now.Add(time.Hour))

	ent := svc.ResolveCreation(user, models.CapabilityAgentCreation, 0)

	assert.False(t, ent.Allowed)
	assert.Equal(t, ReasonNotVisible, ent.Reason)
}

func TestResolveCreationCountsOwned(t *testing.T) {
	now := time.Now()
	svc := entitlementAt(now)
	plan := planWith(models.PlanFeatures{AllowUserAssistantCreation: true, MaxAssistants: 2})
	user := subscribedUser(plan, now.Add(time.Hour))

	ent := svc.ResolveCreation(user, models.CapabilityAssistantCreation, 1)
	assert.True(t, ent.Allowed)
	assert.EqualValues(t, 1, ent.Remaining)

	ent = svc.ResolveCreation(user, models.CapabilityAssistantCreation, 2)
	assert.False(t, ent.Allowed)
	assert.Equal(t, ReasonQuotaExhausted, ent.Reason)
}

func TestCheckMinutesAgainstBudget(t *testing.T) {
	now := time.Now()
	svc := entitlementAt(now)
	plan := planWith(models.PlanFeatures{MaxTranscriptionMinutes: 60})
	user := subscribedUser(plan, now.Add(time.Hour))
	user.TranscriptionMinutesUsed = 55

	ent := svc.CheckMinutes(user, 4)
	assert.True(t, ent.Allowed)
	assert.InDelta(t, 5, ent.Remaining, 0.001)

	ent = svc.CheckMinutes(user, 6)
	assert.False(t, ent.Allowed)
	assert.Equal(t, ReasonQuotaExhausted, ent.Reason)
}

func TestCheckMinutesUnlimited(t *testing.T) {
	now := time.Now()
	svc := entitlementAt(now)
	plan := planWith(models.PlanFeatures{MaxTranscriptionMinutes: -1})
	user := subscribedUser(plan, now.Add(time.Hour))
	user.TranscriptionMinutesUsed = 100000

	ent := svc.CheckMinutes(user, 999)
	assert.True(t, ent.Allowed)
	assert.EqualValues(t, -1, ent.Remaining)
}

func TestCheckMinutesOverdrawnBudgetReportsZero(t *testing.T) {
	now := time.Now()
	svc := entitlementAt(now)
	plan := planWith(models.PlanFeatures{MaxTranscriptionMinutes: 60})
	user := subscribedUser(plan, now.Add(time.Hour))
	user.TranscriptionMinutesUsed = 75

	ent := svc.CheckMinutes(user, 1)
	assert.False(t, ent.Allowed)
	assert.EqualValues(t, 0, ent.Remaining)
}
