package services

import (
	"scriba_backend/internal/models"
	"scriba_backend/internal/openai"
	"scriba_backend/pkg/apperrors"
)

// Credential is a resolved API key plus the tier it belongs to. The tier is
// recorded on the ledger entry at admission and decides whether the shared
// quota counter is charged at completion.
type Credential struct {
	APIKey string
	Tier   models.CredentialTier
}

func (c Credential) System() bool { return c.Tier == models.CredentialTierSystem }

// CredentialService picks which API key a job runs with, strictly before the
// ledger entry is created.
type CredentialService interface {
	Select(user *models.User, def DefinitionRef) (Credential, error)

	// SystemCredential returns the shared platform credential. Transcription
	// always runs on it; its cost is gated by the minute quota instead.
	SystemCredential() Credential

	// ClientFor builds a provider client bound to the selected credential.
	ClientFor(cred Credential) openai.Client
}

type CredentialServiceImpl struct {
	systemAPIKey string
	factory      openai.Factory
}

func NewCredentialService(systemAPIKey string, factory openai.Factory) CredentialService {
	return &CredentialServiceImpl{systemAPIKey: systemAPIKey, factory: factory}
}

// Select applies the tier rules in priority order:
//  1. definitions that mandate the caller's key, and all user-owned
//     definitions, require the user's own credential;
//  2. otherwise a configured own key is preferred when the plan allows
//     opting in, sparing the shared quota;
//  3. otherwise the shared platform credential, when the plan permits it;
//  4. otherwise the request is rejected.
func (s *CredentialServiceImpl) Select(user *models.User, def DefinitionRef) (Credential, error) {
	if def.RequiresUserToken || !def.System {
		if !user.HasOwnKey() {
			return Credential{}, apperrors.ErrCredentialRequired
		}
		return Credential{APIKey: user.OpenAIAPIKey, Tier: models.CredentialTierOwn}, nil
	}

	if user.Role == models.UserRoleAdmin {
		return Credential{APIKey: s.systemAPIKey, Tier: models.CredentialTierSystem}, nil
	}

	var features models.PlanFeatures
	if user.Plan != nil {
		features = user.Plan.Features.Data()
	}

	if features.AllowUserProvideOwnToken && user.HasOwnKey() {
		return Credential{APIKey: user.OpenAIAPIKey, Tier: models.CredentialTierOwn}, nil
	}
	if features.UseSystemTokenForSystemAgents {
		return Credential{APIKey: s.systemAPIKey, Tier: models.CredentialTierSystem}, nil
	}
	return Credential{}, apperrors.ErrSharedCredentialForbidden
}

func (s *CredentialServiceImpl) SystemCredential() Credential {
	return Credential{APIKey: s.systemAPIKey, Tier: models.CredentialTierSystem}
}

func (s *CredentialServiceImpl) ClientFor(cred Credential) openai.Client {
	return s.factory(cred.APIKey)
}
