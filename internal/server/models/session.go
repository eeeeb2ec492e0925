package models

import "time"

// Session is the server-held record behind an opaque session token.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Identity is who the current request acts as, re-derived from the session on every call.
type Identity struct {
	UserID   string `json:"userId"`
	UserName string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the identity carries the ADMIN role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }
