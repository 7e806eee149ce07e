package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriba_backend/internal/models"
	"scriba_backend/pkg/apperrors"
)

func credentialService() CredentialService {
	return NewCredentialService("sk-system", nil)
}

func TestSelectUserOwnedDefinitionRequiresOwnKey(t *testing.T) {
	svc := credentialService()
	plan := planWith(models.PlanFeatures{UseSystemTokenForSystemAgents: true})
	user := subscribedUser(plan, time.Now().Add(time.Hour))

	_, err := svc.Select(user, DefinitionRef{ID: "agent-1", System: false})
	assert.ErrorIs(t, err, apperrors.ErrCredentialRequired)

	user.OpenAIAPIKey = "sk-own"
	cred, err := svc.Select(user, DefinitionRef{ID: "agent-1", System: false})
	require.NoError(t, err)
	assert.Equal(t, "sk-own", cred.APIKey)
	assert.Equal(t, models.CredentialTierOwn, cred.Tier)
}

func TestSelectRequiresUserTokenOverridesPlanRules(t *testing.T) {
	svc := credentialService()
	plan := planWith(models.PlanFeatures{UseSystemTokenForSystemAgents: true})
	user := subscribedUser(plan, time.Now().Add(time.Hour))

	def := DefinitionRef{ID: "agent-1", System: true, RequiresUserToken: true}
	_, err := svc.Select(user, def)
	assert.ErrorIs(t, err, apperrors.ErrCredentialRequired)

	user.OpenAIAPIKey = "sk-own"
	cred, err := svc.Select(user, def)
	require.NoError(t, err)
	assert.Equal(t, models.CredentialTierOwn, cred.Tier)
}

func TestSelectPrefersOwnKeyWhenPlanAllowsOptIn(t *testing.T) {
	svc := credentialService()
	plan := planWith(models.PlanFeatures{
		AllowUserProvideOwnToken:      true,
		UseSystemTokenForSystemAgents: true,
	})
	user := subscribedUser(plan, time.Now().Add(time.Hour))
	user.OpenAIAPIKey = "sk-own"

	cred, err := svc.Select(user, DefinitionRef{ID: "agent-1", System: true})
	require.NoError(t, err)
	assert.Equal(t, "sk-own", cred.APIKey)
	assert.Equal(t, models.CredentialTierOwn, cred.Tier)
	assert.False(t, cred.System())
}

func TestSelectFallsBackToSharedCredential(t *testing.T) {
	svc := credentialService()
	plan := planWith(models.PlanFeatures{
		AllowUserProvideOwnToken:      true,
		UseSystemTokenForSystemAgents: true,
	})
	user := subscribedUser(plan, time.Now().Add(time.Hour))

	cred, err := svc.Select(user, DefinitionRef{ID: "agent-1", System: true})
	require.NoError(t, err)
	assert.Equal(t, "sk-system", cred.APIKey)
	assert.Equal(t, models.CredentialTierSystem, cred.Tier)
	assert.True(t, cred.System())
}

func TestSelectRejectsWhenNoTierApplies(t *testing.T) {
	svc := credentialService()
	plan := planWith(models.PlanFeatures{})
	user := subscribedUser(plan, time.Now().Add(time.Hour))

	_, err := svc.Select(user, DefinitionRef{ID: "agent-1", System: true})
	assert.ErrorIs(t, err, apperrors.ErrSharedCredentialForbidden)
}

func TestSelectAdminGetsSystemTier(t *testing.T) {
	svc := credentialService()
	admin := &models.User{Role: models.UserRoleAdmin}

	cred, err := svc.Select(admin, DefinitionRef{ID: "agent-1", System: true})
	require.NoError(t, err)
	assert.Equal(t, models.CredentialTierSystem, cred.Tier)
}

func TestSystemCredential(t *testing.T) {
	svc := credentialService()
	cred := svc.SystemCredential()
	assert.Equal(t, "sk-system", cred.APIKey)
	assert.True(t, cred.System())
}
