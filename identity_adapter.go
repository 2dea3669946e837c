package auth

import "time"

// UserIdentity adapts a User into the Identity interface for token generation.
type UserIdentity struct {
	user *User
}

// NewIdentityFromUser returns an Identity adapter for the provided user.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return UserIdentity{user: user}
}

// ID returns the user's ID.
func (u UserIdentity) ID() int64 {
	if u.user == nil {
		return 0
	}
	return u.user.ID
}

// Username returns the user's username.
func (u UserIdentity) Username() string {
	if u.user == nil {
		return ""
	}
	return u.user.Username
}

// Email returns the user's email address.
func (u UserIdentity) Email() string {
	if u.user == nil {
		return ""
	}
	return u.user.Email
}

// Roles returns the names of the user's roles.
func (u UserIdentity) Roles() []string {
	return u.user.RoleNames()
}

// Principal is the identity carried by a valid token. It is built without a
// store lookup so roles reflect the moment the token was minted.
type Principal struct {
	TokenID   string    `json:"-"`
	Email     string    `json:"subject"`
	ID        int64     `json:"userId"`
	Name      string    `json:"username,omitempty"`
	RoleSet   []string  `json:"roles"`
	IssuedOn  time.Time `json:"issuedAt"`
	ExpiresOn time.Time `json:"expiresAt"`
}

// Verify interface compliance
var _ AuthClaims = (*Principal)(nil)

func newPrincipal(t *Token) *Principal {
	return &Principal{
		TokenID:   t.ID,
		Email:     t.Subject,
		ID:        t.UserID,
		Name:      t.Username,
		RoleSet:   append([]string{}, t.Roles...),
		IssuedOn:  t.IssuedAt,
		ExpiresOn: t.ExpiresAt,
	}
}

// Subject returns the account email the token was issued to
func (p *Principal) Subject() string {
	return p.Email
}

func (p *Principal) UserID() int64 {
	return p.ID
}

func (p *Principal) RoleNames() []string {
	return append([]string(nil), p.RoleSet...)
}

// HasRole checks role membership. ROLE_ prefixed names match too.
func (p *Principal) HasRole(role string) bool {
	return hasRole(p.RoleSet, role)
}

// Authorities returns the roles as ROLE_<NAME> strings
func (p *Principal) Authorities() []string {
	return Authorities(p.RoleSet)
}

func (p *Principal) Expires() time.Time {
	return p.ExpiresOn
}

func (p *Principal) IssuedAt() time.Time {
	return p.IssuedOn
}
