package auth

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// User is the account model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Username      string    `bun:"username,notnull,unique" json:"username"`
	Email         string    `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string    `bun:"password_hash,notnull" json:"-"`
	FirstName     string    `bun:"first_name,notnull" json:"first_name"`
	LastName      string    `bun:"last_name,notnull" json:"last_name"`
	Phone         string    `bun:"phone_number" json:"phone_number,omitempty"`
	Active        bool      `bun:"is_active,notnull" json:"is_active"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	Roles         []Role    `bun:"m2m:user_roles,join:User=Role" json:"roles,omitempty"`
}

// RoleNames returns the names of the roles granted to the user
func (u *User) RoleNames() []string {
	if u == nil {
		return nil
	}
	out := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		out = append(out, r.Name)
	}
	return out
}

// HasRole reports whether the user holds the named role
func (u *User) HasRole(name string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

// FullName joins first and last name, falling back to the username
func (u *User) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Username
	}
	return name
}

// Clone returns a deep copy of the user
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Roles != nil {
		out.Roles = make([]Role, len(u.Roles))
		copy(out.Roles, u.Roles)
	}
	return &out
}

// Role is a named permission group
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	Name          string `bun:"name,notnull,unique" json:"name"`
	Description   string `bun:"description" json:"description,omitempty"`
}

// UserRole joins users and roles
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:urol"`
	UserID        int64 `bun:"user_id,pk"`
	User          *User `bun:"rel:belongs-to,join:user_id=id"`
	RoleID        int64 `bun:"role_id,pk"`
	Role          *Role `bun:"rel:belongs-to,join:role_id=id"`
}

// UserView is the sanitized projection of a User returned to clients
type UserView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	FullName  string    `json:"fullName"`
	Phone     string    `json:"phoneNumber,omitempty"`
	Roles     []string  `json:"roles"`
	Active    bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUserView projects a user into its public shape
func NewUserView(u *User) *UserView {
	if u == nil {
		return nil
	}
	return &UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
		Phone:     u.Phone,
		Roles:     u.RoleNames(),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}
