// Package models defines the server-side data model of the document portal.
package models

import (
	"strings"
	"time"
)

// Role is a user's portal role.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// User is a portal account. PasswordHash is a bcrypt hash and never leaves the server.
type User struct {
	ID           string
	UserName     string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// UserSummary is the credential-free projection returned to callers.
type UserSummary struct {
	ID       string `json:"id"`
	UserName string `json:"username"`
	Role     Role   `json:"role"`
}

// Summary drops the credential.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, UserName: u.UserName, Role: u.Role}
}
