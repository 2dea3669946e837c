package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// AlgorithmBcrypt selects the bcrypt hasher
	AlgorithmBcrypt = "bcrypt"
	// DefaultBcryptCost is the work factor used when none is configured
	DefaultBcryptCost = 12
	MinBcryptCost     = bcrypt.MinCost
	MaxBcryptCost     = bcrypt.MaxCost
	// maxBcryptPasswordLength is the input limit of bcrypt in bytes
	maxBcryptPasswordLength = 72
)

// BcryptHasher hashes passwords with bcrypt
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a bcrypt hasher using cost, or the default cost
// when cost is outside the supported range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < MinBcryptCost || cost > MaxBcryptCost {
		cost = passwordHashCost()
	}
	return &BcryptHasher{cost: cost}
}

// Hash will generate a password hash
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	if len(password) > maxBcryptPasswordLength {
		return "", NewValidationError(map[string]string{
			"password": "must be at most 72 bytes",
		})
	}

	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	return string(out), err
}

// Verify will validate the given cleartext password matches the hashed password
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	// bcrypt ignores input past 72 bytes; such a password can never have been hashed
	if len(password) > maxBcryptPasswordLength {
		return false, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// NeedsRehash reports whether hash was produced with a different cost
func (h *BcryptHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != h.cost
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}
