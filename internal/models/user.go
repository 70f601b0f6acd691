package models

import "strings"

// Name holds the parts of a user's name.
type Name struct {
	First  string `json:"first"`
	Middle string `json:"middle,omitempty"`
	Last   string `json:"last"`
}

// User is the profile of the logged in user.
// The empty User has an empty ID and stands for "no profile loaded".
type User struct {
	ID           string   `json:"_id"`
	Email        string   `json:"email"`
	Name         Name     `json:"name"`
	Picture      string   `json:"picture,omitempty"`
	Role         Role     `json:"role"`
	UserStatus   bool     `json:"userStatus"`
	DateOfBirth  string   `json:"dateOfBirth,omitempty"`
	Level        int      `json:"level,omitempty"`
	PhoneNumbers []string `json:"phones,omitempty"`
}

// IsEmpty reports whether u is the empty profile.
func (u User) IsEmpty() bool {
	return u.ID == ""
}

// FullName joins the non-empty name parts.
func (u User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.Name.First, u.Name.Middle, u.Name.Last} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
