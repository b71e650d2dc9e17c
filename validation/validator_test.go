package validation

import (
	"testing"

	"github.com/butykaidavid/read-rival-quest/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutRequest struct {
	PlanType string `json:"plan_type" validate:"required,oneof=monthly yearly lifetime"`
	Email    string `json:"email" validate:"required,email"`
	Note     string `json:"note,omitempty" validate:"omitempty,notblank"`
}

func TestValidator_Valid(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(checkoutRequest{PlanType: "monthly", Email: "reader@example.com"}))
}

func TestValidator_FieldDetailsUseJSONNames(t *testing.T) {
	v := New()

	err := v.Validate(checkoutRequest{PlanType: "weekly", Note: "   "})
	require.Error(t, err)

	var domainErr *apperrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, apperrors.CodeValidation, domainErr.Code)

	details, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be one of: monthly yearly lifetime", details["plan_type"])
	assert.Equal(t, "is required", details["email"])
	assert.Equal(t, "is required", details["note"])
}
