package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService signs and decodes HMAC JWTs
type TokenService struct {
	signingKey []byte
	method     *jwt.SigningMethodHMAC
	issuer     string
	logger     Logger
}

// Verify interface compliance
var _ TokenCodec = (*TokenService)(nil)

// NewTokenService creates a new TokenService instance from cfg
func NewTokenService(cfg *Config, logger Logger) (*TokenService, error) {
	if cfg == nil {
		return nil, configurationError("token service requires a config")
	}

	method, ok := jwt.GetSigningMethod(cfg.GetSigningMethod()).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, configurationError("unsupported signing method %q", cfg.GetSigningMethod())
	}

	if logger == nil {
		logger = defLogger{}
	}

	return &TokenService{
		signingKey: cfg.GetSigningKey(),
		method:     method,
		issuer:     cfg.GetIssuer(),
		logger:     logger,
	}, nil
}

// Encode creates a signed token for identity valid from issuedAt for ttl.
// A zero ttl produces a token that is already expired.
func (ts *TokenService) Encode(identity Identity, issuedAt time.Time, ttl time.Duration) (string, error) {
	if identity == nil {
		return "", NewValidationError(map[string]string{"identity": "is required"})
	}

	if ttl < 0 {
		return "", NewValidationError(map[string]string{"ttl": "must not be negative"})
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.Email(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		UID:      identity.ID(),
		Email:    identity.Email(),
		Username: identity.Username(),
		Roles:    append([]string{}, identity.Roles()...),
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil")
	}

	token := jwt.NewWithClaims(ts.method, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signed, nil
}

// Decode verifies the structure and signature of raw and returns its claims.
// Every failure wraps ErrInvalidToken. Expiry is not judged here.
func (ts *TokenService) Decode(raw string) (*Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{ts.method.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(raw, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Warn("token decode encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	})
	if err != nil {
		ts.logger.Debug("token decode failed", "error", err)
		return nil, invalidTokenError(err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, invalidTokenError(errors.New("unable to map claims"))
	}

	if ts.issuer != "" && claims.RegisteredClaims.Issuer != ts.issuer {
		return nil, invalidTokenError(fmt.Errorf("unexpected issuer %q", claims.RegisteredClaims.Issuer))
	}

	if claims.Subject() == "" || claims.ExpiresAt == nil {
		return nil, invalidTokenError(errors.New("token is missing subject or expiry"))
	}

	return tokenFromClaims(claims), nil
}
