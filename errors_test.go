package auth_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	auth "github.com/IngAlexfit/caribeVibes-system-sub001"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"validation", auth.NewValidationError(map[string]string{"email": "is required"}), "VALIDATION_ERROR"},
		{"wrapped conflict", fmt.Errorf("save: %w", auth.ErrConflict), "CONFLICT"},
		{"oops conflict", oops.With("field", "email").Wrap(auth.ErrConflict), "CONFLICT"},
		{"credentials", auth.ErrInvalidCredentials, "INVALID_CREDENTIALS"},
		{"token", auth.ErrInvalidToken, "INVALID_TOKEN"},
		{"not found", auth.ErrNotFound, "NOT_FOUND"},
		{"configuration", oops.Wrapf(auth.ErrConfiguration, "missing key"), "CONFIGURATION_ERROR"},
		{"other", errors.New("boom"), "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.ErrorCode(tt.err))
		})
	}
}

func TestValidationError(t *testing.T) {
	err := auth.NewValidationError(map[string]string{
		"password": "is required",
		"email":    "must be a valid email address",
	})

	assert.ErrorIs(t, err, auth.ErrValidation)
	assert.Equal(t, "validation failed: email: must be a valid email address; password: is required", err.Error())

	wrapped := fmt.Errorf("register: %w", err)
	assert.Equal(t, err.Fields, auth.ValidationFields(wrapped))
	assert.Nil(t, auth.ValidationFields(errors.New("other")))

	empty := auth.NewValidationError(nil)
	assert.Equal(t, auth.ErrValidation.Error(), empty.Error())
	assert.NotNil(t, empty.Fields)
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", auth.NewValidationError(map[string]string{"email": "is required"}), http.StatusBadRequest, "Request validation failed"},
		{"conflict", auth.ErrConflict, http.StatusConflict, "An account with this email or username already exists"},
		{"credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, auth.InvalidCredentialsMessage},
		{"token", auth.ErrInvalidToken, http.StatusUnauthorized, "Token is invalid or expired"},
		{"not found", auth.ErrNotFound, http.StatusNotFound, "Account not found"},
		{"configuration", auth.ErrConfiguration, http.StatusInternalServerError, "An unexpected error occurred"},
		{"internal", errors.New("pq: connection refused"), http.StatusInternalServerError, "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := auth.NewErrorResponse(tt.err, "/api/auth/x", testEpoch)

			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, http.StatusText(tt.status), res.Error)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, "/api/auth/x", res.Path)
			assert.Equal(t, testEpoch, res.Timestamp)
			assert.NotContains(t, res.Message, "pq:")
		})
	}

	res := auth.NewErrorResponse(auth.NewValidationError(map[string]string{"email": "is required"}), "/", testEpoch)
	assert.Equal(t, map[string]string{"email": "is required"}, res.ValidationErrors)
}
