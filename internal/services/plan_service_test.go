package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriba_backend/internal/models"
)

func TestNormalizeFeaturesDefaultsResetPeriods(t *testing.T) {
	f, err := normalizeFeatures(models.PlanFeatures{MaxAgentUses: 10})
	require.NoError(t, err)
	assert.Equal(t, models.ResetPeriodNever, f.AgentCreationResetPeriod)
	assert.Equal(t, models.ResetPeriodNever, f.AssistantCreationResetPeriod)
}

func TestNormalizeFeaturesRejectsUnknownPeriod(t *testing.T) {
	_, err := normalizeFeatures(models.PlanFeatures{AgentCreationResetPeriod: "weekly"})
	assert.Error(t, err)
}

func TestNormalizeFeaturesLimitBounds(t *testing.T) {
	_, err := normalizeFeatures(models.PlanFeatures{MaxAgentUses: -2})
	assert.Error(t, err)

	f, err := normalizeFeatures(models.PlanFeatures{MaxAgentUses: -1, MaxTranscriptionMinutes: -1})
	require.NoError(t, err)
	assert.Equal(t, -1, f.MaxAgentUses)
}
