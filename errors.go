package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/oops"
)

// ErrValidation is returned when a request is malformed or fails field rules
var ErrValidation = errors.New("validation failed")

// ErrConflict is returned when an email or username is already registered
var ErrConflict = errors.New("account already exists")

// ErrInvalidCredentials is returned for every failed login regardless of cause
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken is returned when a token is malformed, tampered or expired
var ErrInvalidToken = errors.New("invalid or expired token")

// ErrNotFound is returned when a token subject no longer maps to an active account
var ErrNotFound = errors.New("not found")

// ErrConfiguration is returned when required setup is missing or inconsistent
var ErrConfiguration = errors.New("configuration error")

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty")

// ValidationError carries the field level messages of a rejected request.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError from field messages
func NewValidationError(fields map[string]string) *ValidationError {
	if fields == nil {
		fields = map[string]string{}
	}
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ErrValidation
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ValidationFields returns the field messages attached to err, if any
func ValidationFields(err error) map[string]string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}

// ErrorCode returns a stable code for the error category of err
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrInvalidCredentials):
		return "INVALID_CREDENTIALS"
	case errors.Is(err, ErrInvalidToken):
		return "INVALID_TOKEN"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConfiguration):
		return "CONFIGURATION_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

func conflictError(field, value string) error {
	return oops.
		Code(ErrorCode(ErrConflict)).
		With("field", field).
		Wrapf(ErrConflict, "%s %q is already registered", field, value)
}

func configurationError(format string, args ...any) error {
	return oops.
		Code(ErrorCode(ErrConfiguration)).
		Wrapf(ErrConfiguration, format, args...)
}

func invalidTokenError(cause error) error {
	if cause == nil {
		return ErrInvalidToken
	}
	return oops.
		Code(ErrorCode(ErrInvalidToken)).
		With("cause", cause.Error()).
		Wrap(ErrInvalidToken)
}
