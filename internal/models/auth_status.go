package models

// AuthStatus is the published authentication summary.
// It is a value type and is always replaced wholesale.
type AuthStatus struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	UserRole        Role   `json:"userRole"`
	UserID          string `json:"userId"`
}

// DefaultAuthStatus is the unauthenticated status.
var DefaultAuthStatus = AuthStatus{
	IsAuthenticated: false,
	UserRole:        RoleNone,
	UserID:          "",
}

// IsDefault reports whether s is equivalent to DefaultAuthStatus.
func (s AuthStatus) IsDefault() bool {
	return !s.IsAuthenticated && s.UserID == "" && (s.UserRole == RoleNone || s.UserRole == "")
}
