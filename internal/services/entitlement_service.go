package services

import (
	"time"

	"scriba_backend/internal/models"
)

// DefinitionRef is the slice of a capability definition (agent or assistant)
// that entitlement and credential decisions need. Usage checks that involve
// no definition, like transcription, pass a zero value with System=true.
type DefinitionRef struct {
	ID                string
	System            bool
	RequiresUserToken bool
	PlanSpecific      bool
	AllowedPlanIDs    []string
}

func AgentRef(a *models.Agent) DefinitionRef {
	return DefinitionRef{
		ID:                a.ID,
		System:            a.IsSystemAgent,
		RequiresUserToken: a.RequiresUserToken,
		PlanSpecific:      a.PlanSpecific,
		AllowedPlanIDs:    a.AllowedPlanIDs,
	}
}

func AssistantRef(a *models.Assistant) DefinitionRef {
	return DefinitionRef{
		ID:                a.ID,
		System:            a.IsSystemAssistant,
		RequiresUserToken: a.RequiresUserToken,
		PlanSpecific:      a.PlanSpecific,
		AllowedPlanIDs:    a.AllowedPlanIDs,
	}
}

// Entitlement is the outcome of a quota check. Remaining is -1 when the plan
// places no limit on the capability.
type Entitlement struct {
	Allowed   bool
	Reason    string
	Remaining float64
}

const (
	ReasonNoActivePlan   = "no active plan"
	ReasonNotVisible     = "capability not available on this plan"
	ReasonQuotaExhausted = "plan limit reached"
)

// EntitlementService answers "may this user run this capability right now".
// It is a pure read: no counters move here.
type EntitlementService interface {
	ResolveUsage(user *models.User, capability models.Capability, def *DefinitionRef) Entitlement
	ResolveCreation(user *models.User, capability models.Capability, ownedCount int64) Entitlement
	CheckMinutes(user *models.User, estimatedMinutes float64) Entitlement
}

type EntitlementServiceImpl struct {
	now func() time.Time
}

func NewEntitlementService() EntitlementService {
	return &EntitlementServiceImpl{now: time.Now}
}

// ResolveUsage applies, in order: plan presence, the definition's plan
// allow-list, the plan's visibility allow-list, and the usage counter against
// the plan limit. Admins bypass everything.
func (s *EntitlementServiceImpl) ResolveUsage(user *models.User, capability models.Capability, def *DefinitionRef) Entitlement {
	if user.Role == models.UserRoleAdmin {
		return Entitlement{Allowed: true, Remaining: -1}
	}
	if !user.PlanActive(s.now()) {
		return Entitlement{Reason: ReasonNoActivePlan}
	}

	features := user.Plan.Features.Data()

	if def != nil {
		if def.PlanSpecific && !contains(def.AllowedPlanIDs, *user.PlanID) {
			return Entitlement{Reason: ReasonNotVisible}
		}
		if def.System && !s.visibleToPlan(features, capability, def.ID) {
			return Entitlement{Reason: ReasonNotVisible}
		}
	}

	limit := features.UsageLimit(capability)
	used := usedFor(user, capability)
	return quotaOutcome(used, limit)
}

// ResolveCreation gates creating a user-owned definition. ownedCount is the
// caller's current creation counter, already rolled over if the period
// elapsed.
func (s *EntitlementServiceImpl) ResolveCreation(user *models.User, capability models.Capability, ownedCount int64) Entitlement {
	if user.Role == models.UserRoleAdmin {
		return Entitlement{Allowed: true, Remaining: -1}
	}
	if !user.PlanActive(s.now()) {
		return Entitlement{Reason: ReasonNoActivePlan}
	}

	features := user.Plan.Features.Data()
	switch capability {
	case models.CapabilityAgentCreation:
		if !features.AllowUserAgentCreation {
			return Entitlement{Reason: ReasonNotVisible}
		}
	case models.CapabilityAssistantCreation:
		if !features.AllowUserAssistantCreation {
			return Entitlement{Reason: ReasonNotVisible}
		}
	}
	return quotaOutcome(float64(ownedCount), features.UsageLimit(capability))
}

// CheckMinutes verifies the transcription minute budget against an estimate.
// Called at admission and again, retroactively, with the real duration.
func (s *EntitlementServiceImpl) CheckMinutes(user *models.User, estimatedMinutes float64) Entitlement {
	if user.Role == models.UserRoleAdmin {
		return Entitlement{Allowed: true, Remaining: -1}
	}
	if !user.PlanActive(s.now()) {
		return Entitlement{Reason: ReasonNoActivePlan}
	}

	limit := user.Plan.Features.Data().MaxTranscriptionMinutes
	if limit == -1 {
		return Entitlement{Allowed: true, Remaining: -1}
	}
	remaining := limit - user.TranscriptionMinutesUsed
	if estimatedMinutes > remaining {
		return Entitlement{Reason: ReasonQuotaExhausted, Remaining: max(remaining, 0)}
	}
	return Entitlement{Allowed: true, Remaining: remaining}
}

func (s *EntitlementServiceImpl) visibleToPlan(features models.PlanFeatures, capability models.Capability, definitionID string) bool {
	var allowList []string
	switch capability {
	case models.CapabilityAgentRun:
		allowList = features.AllowedSystemAgentIDs
	case models.CapabilityAssistantRun:
		allowList = features.AllowedSystemAssistantIDs
	default:
		return true
	}
	if len(allowList) == 0 {
		return true
	}
	return contains(allowList, definitionID)
}

func quotaOutcome(used, limit float64) Entitlement {
	if limit == -1 {
		return Entitlement{Allowed: true, Remaining: -1}
	}
	if used >= limit {
		return Entitlement{Reason: ReasonQuotaExhausted, Remaining: 0}
	}
	return Entitlement{Allowed: true, Remaining: limit - used}
}

func usedFor(user *models.User, capability models.Capability) float64 {
	switch capability {
	case models.CapabilityTranscription:
		return float64(user.TranscriptionsUsedCount)
	case models.CapabilityAgentRun:
		return float64(user.AgentUsesUsed)
	case models.CapabilityAssistantRun:
		return float64(user.AssistantUsesUsed)
	case models.CapabilityAgentCreation:
		return float64(user.AgentsCreatedCount)
	case models.CapabilityAssistantCreation:
		return float64(user.AssistantsCreatedCount)
	}
	return 0
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
