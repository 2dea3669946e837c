package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrUnknownHashFormat is returned when a stored hash matches no supported algorithm
var ErrUnknownHashFormat = errors.New("unknown password hash format")

// MultiHasher hashes with its primary algorithm and verifies any hash format
// it recognizes, so accounts keep working after the algorithm is switched.
type MultiHasher struct {
	primary PasswordHasher
	bcrypt  *BcryptHasher
	argon   *Argon2idHasher
}

// NewPasswordHasher returns the hasher selected by algorithm
func NewPasswordHasher(algorithm string, bcryptCost int) (*MultiHasher, error) {
	h := &MultiHasher{
		bcrypt: NewBcryptHasher(bcryptCost),
		argon:  NewArgon2idHasher(nil),
	}

	switch algorithm {
	case "", AlgorithmBcrypt:
		h.primary = h.bcrypt
	case AlgorithmArgon2id:
		h.primary = h.argon
	default:
		return nil, configurationError("unsupported password algorithm %q", algorithm)
	}

	return h, nil
}

// NewPasswordHasherFromConfig builds the hasher described by cfg
func NewPasswordHasherFromConfig(cfg *Config) (*MultiHasher, error) {
	return NewPasswordHasher(cfg.GetPasswordAlgorithm(), cfg.GetBcryptCost())
}

func (h *MultiHasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

func (h *MultiHasher) Verify(password, hash string) (bool, error) {
	switch {
	case isBcryptHash(hash):
		return h.bcrypt.Verify(password, hash)
	case isArgon2idHash(hash):
		return h.argon.Verify(password, hash)
	default:
		return false, oops.With("prefix", hashPrefix(hash)).Wrap(ErrUnknownHashFormat)
	}
}

// NeedsRehash reports whether hash should be replaced by a primary hash
func (h *MultiHasher) NeedsRehash(hash string) bool {
	if _, ok := h.primary.(*BcryptHasher); ok && !isBcryptHash(hash) {
		return true
	}
	if _, ok := h.primary.(*Argon2idHasher); ok && !isArgon2idHash(hash) {
		return true
	}
	return h.primary.NeedsRehash(hash)
}

func hashPrefix(hash string) string {
	if len(hash) > 4 {
		return hash[:4]
	}
	return hash
}
