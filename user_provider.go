package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// dummyPassword is hashed once and verified when an account does not exist,
// so a missing account costs the same time as a wrong password.
const dummyPassword = "caribe-vibes-dummy-password"

// UserProvider verifies credentials against a CredentialStore
type UserProvider struct {
	store  CredentialStore
	hasher PasswordHasher
	logger Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store CredentialStore, hasher PasswordHasher) *UserProvider {
	return &UserProvider{
		store:  store,
		hasher: hasher,
		logger: defLogger{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// VerifyIdentity finds the account for identifier and checks password. A
// missing account, an inactive account, a wrong password and an unreadable
// hash all return ErrInvalidCredentials. Store failures are returned as is.
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (*User, error) {
	identifier = NormalizeIdentifier(identifier)

	user, err := u.store.FindByIdentifier(ctx, identifier)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if user == nil {
		u.burnHash(password)
		u.logger.Debug("login rejected: no account for identifier")
		return nil, ErrInvalidCredentials
	}

	ok, err := u.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		u.logger.Error("login rejected: stored hash unreadable", "user_id", user.ID, "error", err)
		return nil, ErrInvalidCredentials
	}

	if !ok {
		u.logger.Warn("login rejected: password mismatch", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		u.logger.Warn("login rejected: account inactive", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// FindActiveUser returns the active account for identifier or ErrNotFound
func (u *UserProvider) FindActiveUser(ctx context.Context, identifier string) (*User, error) {
	user, err := u.store.FindByIdentifier(ctx, NormalizeIdentifier(identifier))
	if err != nil {
		return nil, err
	}

	if user == nil || !user.Active {
		return nil, ErrNotFound
	}

	return user, nil
}

func (u *UserProvider) burnHash(password string) {
	u.dummyOnce.Do(func() {
		h, err := u.hasher.Hash(dummyPassword)
		if err != nil {
			u.logger.Error("failed to prepare dummy password hash", "error", err)
			return
		}
		u.dummyHash = h
	})

	if u.dummyHash == "" {
		return
	}

	_, _ = u.hasher.Verify(password, u.dummyHash)
}

// NormalizeIdentifier trims identifier and lower-cases it. Emails and
// usernames are stored lower-cased.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
