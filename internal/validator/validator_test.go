package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	v := New()

	err := v.Validate(sampleRequest{Email: "not-an-email", Password: "shrt"})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Errors, "email")
	assert.Contains(t, verr.Errors, "password")
	assert.Equal(t, "must be a valid email address", verr.Errors["email"])
	assert.Equal(t, "must be at least 6", verr.Errors["password"])
}

func TestValidatePasses(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(sampleRequest{Email: "a@b.co", Password: "secret1"}))
}
