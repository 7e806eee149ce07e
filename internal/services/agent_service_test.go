package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"scriba_backend/internal/models"
)

func systemAgent(id string) *models.Agent {
	agent := &models.Agent{Name: "summarizer", IsSystemAgent: true}
	agent.ID = id
	return agent
}

func TestAgentVisibleToOwnerAndAdmin(t *testing.T) {
	svc := &AgentServiceImpl{}

	owner := &models.User{Role: models.UserRoleUser}
	owner.ID = "user-1"
	ownerID := owner.ID
	mine := &models.Agent{Name: "mine", CreatedByUserID: &ownerID}
	mine.ID = "agent-1"

	assert.True(t, svc.visibleTo(owner, mine))

	stranger := &models.User{Role: models.UserRoleUser}
	stranger.ID = "user-2"
	assert.False(t, svc.visibleTo(stranger, mine))

	admin := &models.User{Role: models.UserRoleAdmin}
	admin.ID = "admin-1"
	assert.True(t, svc.visibleTo(admin, mine))
}

func TestSystemAgentVisibilityRequiresPlan(t *testing.T) {
	svc := &AgentServiceImpl{}
	user := &models.User{Role: models.UserRoleUser}
	user.ID = "user-1"

	assert.False(t, svc.visibleTo(user, systemAgent("agent-1")))
}

func TestSystemAgentPlanSpecificVisibility(t *testing.T) {
	svc := &AgentServiceImpl{}
	plan := planWith(models.PlanFeatures{})
	user := subscribedUser(plan, time.Now().Add(time.Hour))

	agent := systemAgent("agent-1")
	agent.PlanSpecific = true
	agent.AllowedPlanIDs = []string{"other-plan"}
	assert.False(t, svc.visibleTo(user, agent))

	agent.AllowedPlanIDs = []string{"plan-1"}
	assert.True(t, svc.visibleTo(user, agent))
}

func TestSystemAgentPlanAllowListVisibility(t *testing.T) {
	svc := &AgentServiceImpl{}
	plan := planWith(models.PlanFeatures{AllowedSystemAgentIDs: []string{"agent-approved"}})
	user := subscribedUser(plan, time.Now().Add(time.Hour))

	assert.False(t, svc.visibleTo(user, systemAgent("agent-other")))
	assert.True(t, svc.visibleTo(user, systemAgent("agent-approved")))
}

func TestSystemAgentEmptyAllowListVisibleToAll(t *testing.T) {
	svc := &AgentServiceImpl{}
	plan := planWith(models.PlanFeatures{})
	user := subscribedUser(plan, time.Now().Add(time.Hour))

	assert.True(t, svc.visibleTo(user, systemAgent("agent-any")))
}
