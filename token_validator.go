package auth

import "github.com/IngAlexfit/caribeVibes-system-sub001/middleware/jwtware"

// PrincipalValidator validates bearer tokens for jwtware using the Auther's
// codec and clock.
type PrincipalValidator struct {
	auther *Auther
}

// Verify interface compliance
var _ jwtware.TokenValidator = PrincipalValidator{}

// Validate satisfies the jwtware.TokenValidator interface.
func (v PrincipalValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	if v.auther == nil {
		return nil, ErrInvalidToken
	}

	principal, err := v.auther.ExtractIdentity(tokenString)
	if err != nil {
		return nil, err
	}

	return principal, nil
}
