package auth

import (
	"strings"

	"github.com/alexedwards/argon2id"
)

// AlgorithmArgon2id selects the argon2id hasher
const AlgorithmArgon2id = "argon2id"

// Argon2idHasher hashes passwords with argon2id
type Argon2idHasher struct {
	params *argon2id.Params
}

// NewArgon2idHasher returns an argon2id hasher. A nil params uses the
// library defaults.
func NewArgon2idHasher(params *argon2id.Params) *Argon2idHasher {
	if params == nil {
		params = argon2id.DefaultParams
	}
	return &Argon2idHasher{params: params}
}

func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}
	return argon2id.CreateHash(password, h.params)
}

func (h *Argon2idHasher) Verify(password, hash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, hash)
}

// NeedsRehash reports whether hash was produced with different parameters
func (h *Argon2idHasher) NeedsRehash(hash string) bool {
	params, _, _, err := argon2id.DecodeHash(hash)
	if err != nil {
		return true
	}
	return params.Memory != h.params.Memory ||
		params.Iterations != h.params.Iterations ||
		params.Parallelism != h.params.Parallelism ||
		params.KeyLength != h.params.KeyLength
}

func isArgon2idHash(hash string) bool {
	return strings.HasPrefix(hash, "$argon2id$")
}
