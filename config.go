package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultIssuer is the iss claim of every token we mint
	DefaultIssuer = "caribe-vibes-api"
	// DefaultSigningMethod is the HMAC algorithm used to sign tokens
	DefaultSigningMethod = "HS512"
	// DefaultTokenExpiration is the validity window of a token
	DefaultTokenExpiration = 24 * time.Hour
	// MinSigningKeyLength is the minimum signing key size in bytes
	MinSigningKeyLength = 32
	// DefaultPhoneRegion is used to parse phone numbers without a country prefix
	DefaultPhoneRegion = "CO"
)

// ConfigOptions are the raw settings used to build a Config
type ConfigOptions struct {
	SigningKey        string
	SigningMethod     string
	TokenExpiration   time.Duration
	Issuer            string
	DefaultRole       string
	PasswordAlgorithm string
	BcryptCost        int
	PhoneRegion       string
}

// Config holds the auth settings. It is immutable once built by NewConfig
// and safe to share between goroutines.
type Config struct {
	signingKey        []byte
	signingMethod     string
	tokenExpiration   time.Duration
	issuer            string
	defaultRole       string
	passwordAlgorithm string
	bcryptCost        int
	phoneRegion       string
}

// NewConfig validates opts and returns the resulting Config. Missing or
// unusable settings return ErrConfiguration.
func NewConfig(opts ConfigOptions) (*Config, error) {
	// the key is used byte for byte; surrounding whitespace only fails the size check
	key := opts.SigningKey
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, configurationError("token signing key is required")
	}

	if len(trimmed) < MinSigningKeyLength {
		return nil, configurationError("token signing key must be at least %d bytes", MinSigningKeyLength)
	}

	if opts.TokenExpiration <= 0 {
		return nil, configurationError("token expiration must be positive, got %s", opts.TokenExpiration)
	}

	method := strings.ToUpper(strings.TrimSpace(opts.SigningMethod))
	if method == "" {
		method = DefaultSigningMethod
	}
	if _, ok := jwt.GetSigningMethod(method).(*jwt.SigningMethodHMAC); !ok {
		return nil, configurationError("unsupported signing method %q", opts.SigningMethod)
	}

	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}

	role := strings.ToUpper(strings.TrimSpace(opts.DefaultRole))
	if role == "" {
		role = RoleClient
	}

	algo := strings.ToLower(strings.TrimSpace(opts.PasswordAlgorithm))
	if algo == "" {
		algo = AlgorithmBcrypt
	}
	if algo != AlgorithmBcrypt && algo != AlgorithmArgon2id {
		return nil, configurationError("unsupported password algorithm %q", opts.PasswordAlgorithm)
	}

	cost := opts.BcryptCost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < MinBcryptCost || cost > MaxBcryptCost {
		return nil, configurationError("bcrypt cost must be between %d and %d, got %d", MinBcryptCost, MaxBcryptCost, cost)
	}

	region := strings.ToUpper(strings.TrimSpace(opts.PhoneRegion))
	if region == "" {
		region = DefaultPhoneRegion
	}

	return &Config{
		signingKey:        []byte(key),
		signingMethod:     method,
		tokenExpiration:   opts.TokenExpiration,
		issuer:            issuer,
		defaultRole:       role,
		passwordAlgorithm: algo,
		bcryptCost:        cost,
		phoneRegion:       region,
	}, nil
}

// GetSigningKey returns a copy of the signing key
func (c *Config) GetSigningKey() []byte {
	out := make([]byte, len(c.signingKey))
	copy(out, c.signingKey)
	return out
}

func (c *Config) GetSigningMethod() string {
	return c.signingMethod
}

func (c *Config) GetTokenExpiration() time.Duration {
	return c.tokenExpiration
}

func (c *Config) GetIssuer() string {
	return c.issuer
}

// GetDefaultRole returns the role granted to newly registered accounts
func (c *Config) GetDefaultRole() string {
	return c.defaultRole
}

func (c *Config) GetPasswordAlgorithm() string {
	return c.passwordAlgorithm
}

func (c *Config) GetBcryptCost() int {
	return c.bcryptCost
}

func (c *Config) GetPhoneRegion() string {
	return c.phoneRegion
}
