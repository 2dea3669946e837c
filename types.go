package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger is the structured logging surface used by the package. Args are
// key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Authenticator holds the session token lifecycle operations
type Authenticator interface {
	Register(ctx context.Context, msg RegisterUserMessage) (*AuthResult, error)
	Login(ctx context.Context, identifier, password string) (*AuthResult, error)
	ValidateToken(raw string) bool
	ExtractIdentity(raw string) (*Principal, error)
	Refresh(ctx context.Context, raw string) (*IssuedToken, error)
	CurrentUser(ctx context.Context, raw string) (*UserView, error)
}

// Identity holds the attributes of an account that go into a token
type Identity interface {
	ID() int64
	Username() string
	Email() string
	Roles() []string
}

// CredentialStore is the persistence boundary for accounts and roles.
// Implementations must enforce unique email and username and report a
// uniqueness violation on Save as ErrConflict.
type CredentialStore interface {
	// FindByIdentifier looks an account up by email or username.
	// It returns ErrNotFound when no account matches.
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	// Save persists a new account and returns it with its assigned ID.
	Save(ctx context.Context, user *User) (*User, error)
	// FindRoleByName returns ErrNotFound when the role does not exist.
	FindRoleByName(ctx context.Context, name string) (*Role, error)
}

// PasswordHasher produces and verifies salted one-way password hashes
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext matches hash. An error means the hash
	// could not be read, not that the password was wrong.
	Verify(plaintext, hash string) (bool, error)
	NeedsRehash(hash string) bool
}

// TokenCodec signs identities into tokens and decodes them back
type TokenCodec interface {
	Encode(identity Identity, issuedAt time.Time, ttl time.Duration) (string, error)
	// Decode verifies structure and signature. Expiry is left to the caller.
	Decode(raw string) (*Token, error)
}

// Clock returns the current time
type Clock func() time.Time

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] AUTH " + format(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] AUTH " + format(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] AUTH " + format(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] AUTH " + format(msg, args...))
}

func format(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	return newline(b.String())
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
