package auth

import (
	"errors"
	"net/http"
	"time"
)

// TokenTypeBearer is the token type returned with every issued token
const TokenTypeBearer = "Bearer"

// InvalidCredentialsMessage is the only message returned for failed logins
const InvalidCredentialsMessage = "Invalid email or password"

// IssuedToken is a freshly minted token and its validity window
type IssuedToken struct {
	Token     string
	TokenType string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ExpiresIn returns the validity window in whole seconds
func (t IssuedToken) ExpiresIn() int64 {
	return int64(t.ExpiresAt.Sub(t.IssuedAt) / time.Second)
}

// AuthResult is the outcome of a successful register or login
type AuthResult struct {
	IssuedToken
	User UserView
}

// AuthResponse is the wire shape of an AuthResult
type AuthResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresIn int64     `json:"expiresIn"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *UserView `json:"user"`
}

// NewAuthResponse assembles the client response for res. The user view
// never carries a password hash.
func NewAuthResponse(res *AuthResult) *AuthResponse {
	if res == nil {
		return nil
	}
	user := res.User
	return &AuthResponse{
		Token:     res.Token,
		TokenType: res.TokenType,
		ExpiresIn: res.ExpiresIn(),
		ExpiresAt: res.ExpiresAt,
		User:      &user,
	}
}

// RefreshResponse is the wire shape of a refreshed token
type RefreshResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresIn int64     `json:"expiresIn"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message"`
}

// NewRefreshResponse assembles the client response for a refreshed token
func NewRefreshResponse(t *IssuedToken) *RefreshResponse {
	if t == nil {
		return nil
	}
	return &RefreshResponse{
		Token:     t.Token,
		TokenType: t.TokenType,
		ExpiresIn: t.ExpiresIn(),
		ExpiresAt: t.ExpiresAt,
		Message:   "Token refreshed",
	}
}

// ValidateResponse reports token validity
type ValidateResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// NewValidateResponse assembles the validity report for a token check
func NewValidateResponse(valid bool) *ValidateResponse {
	if valid {
		return &ValidateResponse{Valid: true, Message: "Token is valid"}
	}
	return &ValidateResponse{Valid: false, Message: "Token is invalid or expired"}
}

// PrincipalResponse is the wire shape of the identity carried by a token
type PrincipalResponse struct {
	Subject     string    `json:"subject"`
	UserID      int64     `json:"userId"`
	Roles       []string  `json:"roles"`
	Authorities []string  `json:"authorities"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// NewPrincipalResponse assembles the client view of p
func NewPrincipalResponse(p *Principal) *PrincipalResponse {
	if p == nil {
		return nil
	}
	return &PrincipalResponse{
		Subject:     p.Subject(),
		UserID:      p.UserID(),
		Roles:       p.RoleNames(),
		Authorities: p.Authorities(),
		ExpiresAt:   p.Expires(),
	}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Status           int               `json:"status"`
	Error            string            `json:"error"`
	Code             string            `json:"code"`
	Message          string            `json:"message"`
	Path             string            `json:"path"`
	Timestamp        time.Time         `json:"timestamp"`
	ValidationErrors map[string]string `json:"validationErrors,omitempty"`
}

// ErrorStatus maps an error category to an HTTP status code
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorResponse assembles the client view of err. Internal details of
// unexpected and configuration errors are never exposed.
func NewErrorResponse(err error, path string, now time.Time) *ErrorResponse {
	status := ErrorStatus(err)
	res := &ErrorResponse{
		Status:    status,
		Error:     http.StatusText(status),
		Code:      ErrorCode(err),
		Path:      path,
		Timestamp: now,
	}

	switch {
	case errors.Is(err, ErrValidation):
		res.Message = "Request validation failed"
		res.ValidationErrors = ValidationFields(err)
	case errors.Is(err, ErrConflict):
		res.Message = "An account with this email or username already exists"
	case errors.Is(err, ErrInvalidCredentials):
		res.Message = InvalidCredentialsMessage
	case errors.Is(err, ErrInvalidToken):
		res.Message = "Token is invalid or expired"
	case errors.Is(err, ErrNotFound):
		res.Message = "Account not found"
	default:
		res.Message = "An unexpected error occurred"
	}

	return res
}
