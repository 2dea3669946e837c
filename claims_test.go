package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	auth "github.com/IngAlexfit/caribeVibes-system-sub001"
	"github.com/IngAlexfit/caribeVibes-system-sub001/middleware/jwtware"
)

func TestJWTClaims_Subject(t *testing.T) {
	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "ana@example.com",
		},
	}

	assert.Equal(t, "ana@example.com", claims.Subject())
}

func TestJWTClaims_UserID(t *testing.T) {
	claims := &auth.JWTClaims{UID: 456}
	assert.Equal(t, int64(456), claims.UserID())
}

func TestJWTClaims_HasRole(t *testing.T) {
	claims := &auth.JWTClaims{Roles: []string{auth.RoleClient, auth.RoleOperator}}

	tests := []struct {
		role     string
		expected bool
	}{
		{auth.RoleClient, true},
		{"client", true},
		{"ROLE_OPERATOR", true},
		{auth.RoleAdmin, false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			assert.Equal(t, tt.expected, claims.HasRole(tt.role))
		})
	}
}

func TestJWTClaims_RoleNamesIsACopy(t *testing.T) {
	claims := &auth.JWTClaims{Roles: []string{auth.RoleClient}}

	roles := claims.RoleNames()
	roles[0] = auth.RoleAdmin

	assert.Equal(t, []string{auth.RoleClient}, claims.Roles)
}

func TestJWTClaims_Times(t *testing.T) {
	now := time.Now().Truncate(time.Second)

	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	assert.True(t, claims.IssuedAt().Equal(now))
	assert.True(t, claims.Expires().Equal(now.Add(time.Hour)))

	empty := &auth.JWTClaims{}
	assert.True(t, empty.IssuedAt().IsZero())
	assert.True(t, empty.Expires().IsZero())
}

func TestTokenValidAt(t *testing.T) {
	token := &auth.Token{IssuedAt: testEpoch, ExpiresAt: testEpoch.Add(time.Minute)}

	assert.True(t, token.ValidAt(testEpoch))
	assert.True(t, token.ValidAt(testEpoch.Add(59*time.Second)))
	assert.False(t, token.ValidAt(testEpoch.Add(time.Minute)))
	assert.False(t, (&auth.Token{}).ValidAt(testEpoch))

	var nilToken *auth.Token
	assert.False(t, nilToken.ValidAt(testEpoch))
}

func TestPrincipal_AuthClaimsInterface(t *testing.T) {
	p := &auth.Principal{
		Email:     "ana@example.com",
		ID:        3,
		RoleSet:   []string{auth.RoleAdmin},
		ExpiresOn: testEpoch,
	}

	var claims jwtware.AuthClaims = p
	assert.Equal(t, "ana@example.com", claims.Subject())
	assert.Equal(t, int64(3), claims.UserID())
	assert.True(t, claims.HasRole("ROLE_ADMIN"))
	assert.Equal(t, testEpoch, claims.Expires())
	assert.Equal(t, []string{"ROLE_ADMIN"}, p.Authorities())

	var _ auth.AuthClaims = &auth.JWTClaims{}
	var _ auth.AuthClaims = p
}
