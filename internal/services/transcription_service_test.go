package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scriba_backend/pkg/apperrors"
)

func TestEstimateDurationSeconds(t *testing.T) {
	// 1 MB of audio at the assumed 128 kbit/s is roughly a minute.
	assert.Equal(t, 64, estimateDurationSeconds(1024))
	assert.Equal(t, 0, estimateDurationSeconds(0))
	assert.Equal(t, 640, estimateDurationSeconds(10240))
}

func TestEntitlementErrorMapping(t *testing.T) {
	assert.ErrorIs(t, entitlementError(Entitlement{Reason: ReasonNoActivePlan}), apperrors.ErrNoActivePlan)
	assert.ErrorIs(t, entitlementError(Entitlement{Reason: ReasonNotVisible}), apperrors.ErrCapabilityNotAvailable)
	assert.ErrorIs(t, entitlementError(Entitlement{Reason: ReasonQuotaExhausted}), apperrors.ErrQuotaExhausted)
}
