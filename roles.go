package auth

import "strings"

const (
	// RoleClient is granted to every self registered account
	RoleClient = "CLIENT"
	// RoleAdmin manages catalog and accounts
	RoleAdmin = "ADMIN"
	// RoleOperator manages bookings for a tour operator
	RoleOperator = "OPERATOR"
)

// AuthorityPrefix is prepended to role names to build authorities
const AuthorityPrefix = "ROLE_"

// DefaultRoles are the roles seeded into a fresh store
var DefaultRoles = []Role{
	{Name: RoleClient, Description: "Registered customer"},
	{Name: RoleAdmin, Description: "Platform administrator"},
	{Name: RoleOperator, Description: "Tour operator staff"},
}

// IsKnownRole reports whether name is one of the seeded roles
func IsKnownRole(name string) bool {
	switch strings.ToUpper(name) {
	case RoleClient, RoleAdmin, RoleOperator:
		return true
	default:
		return false
	}
}

// Authorities maps role names to ROLE_<NAME> authority strings
func Authorities(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.ToUpper(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		out = append(out, AuthorityPrefix+r)
	}
	return out
}

func hasRole(roles []string, role string) bool {
	role = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(role)), AuthorityPrefix)
	for _, r := range roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
