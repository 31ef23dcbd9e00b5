package repository

import (
	"context"
	"time"

	"github.com/evento-ems/access/internal/domain"
)

// UserRepository defines the persistence operations on users. Lookups that
// find nothing return an error matching apperrors.ErrNotFound.
type UserRepository interface {
	// Create inserts a new user. A duplicate email yields an AlreadyExists error.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their normalised email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Delete removes a user.
	Delete(ctx context.Context, id string) error

	// SetResetToken stores the digest and expiry of a new reset token,
	// replacing any previous pair.
	SetResetToken(ctx context.Context, userID, digest string, expiry time.Time) error

	// HasActiveResetToken reports whether some user holds digest with an
	// expiry after now.
	HasActiveResetToken(ctx context.Context, digest string, now time.Time) (bool, error)

	// ConsumeResetToken atomically replaces the password hash and clears the
	// reset pair of the user holding digest, provided the token has not
	// expired at now. It returns the updated user.
	ConsumeResetToken(ctx context.Context, digest, passwordHash string, now time.Time) (*domain.User, error)

	// ClearExpiredResetTokens clears every reset pair whose expiry is not after
	// now and returns how many users were affected.
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)

	// ChangeRole sets the target's role to change.NewRole and writes the audit
	// record in the same transaction. change.OldRole is filled in.
	ChangeRole(ctx context.Context, change *domain.RoleChange) (*domain.User, error)
}

// SessionDenylist records revoked session token IDs.
type SessionDenylist interface {
	// Revoke marks tokenID as revoked until expiresAt, or forever when nil.
	Revoke(ctx context.Context, tokenID string, expiresAt *time.Time) error

	// IsRevoked reports whether tokenID has been revoked.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
