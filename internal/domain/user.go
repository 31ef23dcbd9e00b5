package domain

import (
	"strings"
	"time"
)

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// ResetTokenHash and ResetTokenExpiry are set and cleared together.
	// Only the SHA-256 digest of an outstanding reset token is stored.
	ResetTokenHash   *string    `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// HasActiveResetToken reports whether a reset token is outstanding and has not
// expired at now.
func (u *User) HasActiveResetToken(now time.Time) bool {
	return u.ResetTokenHash != nil && u.ResetTokenExpiry != nil && now.Before(*u.ResetTokenExpiry)
}

// NormalizeEmail trims and lowercases an email address. Emails are stored
// and looked up in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Identity is the authenticated caller resolved from a session token.
type Identity struct {
	UserID  string
	Email   string
	Role    string
	TokenID string

	// ExpiresAt is nil for sessions issued without an expiry.
	ExpiresAt *time.Time
}

// IsAdmin reports whether the identity holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// RoleChange is an audited role assignment.
type RoleChange struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	TargetID  string    `json:"target_id"`
	OldRole   string    `json:"old_role"`
	NewRole   string    `json:"new_role"`
	CreatedAt time.Time `json:"created_at"`
}
