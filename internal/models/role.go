package models

import "strings"

// Role is the authorization role carried in the access token claims.
// RoleNone means no authenticated role; an empty Role is treated the same.
type Role string

const (
	RoleNone    Role = "none"
	RoleUser    Role = "user"
	RoleClerk   Role = "clerk"
	RoleCashier Role = "cashier"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// ParseRole maps a claim value to a Role, ignoring case.
// Unknown or empty values map to RoleNone.
func ParseRole(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return RoleNone
	}
	return r
}

// IsValid reports whether the role is one of the predefined roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleNone, RoleUser, RoleClerk, RoleCashier, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// String returns the wire value, "none" for the zero value.
func (r Role) String() string {
	if r == "" {
		return string(RoleNone)
	}
	return string(r)
}
