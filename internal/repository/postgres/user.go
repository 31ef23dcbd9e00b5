package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/evento-ems/access/internal/domain"
	"github.com/evento-ems/access/pkg/database"
	apperrors "github.com/evento-ems/access/pkg/errors"
)

const userColumns = `id, name, email, password_hash, role, reset_token_hash, reset_token_expiry, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	pool database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(pool database.DBTX) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.Role,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail retrieves a user by their normalised email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// Delete removes a user from the database by their ID.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}

	return nil
}

// SetResetToken overwrites the user's reset pair. Any previously issued token
// stops matching as soon as this commits.
func (r *UserRepository) SetResetToken(ctx context.Context, userID, digest string, expiry time.Time) error {
	query := `
		UPDATE users
		SET reset_token_hash = $1, reset_token_expiry = $2, updated_at = NOW()
		WHERE id = $3`

	ct, err := r.pool.Exec(ctx, query, digest, expiry, userID)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", userID)
	}

	return nil
}

// HasActiveResetToken reports whether digest matches an unexpired reset pair.
// It is a read-only check; ConsumeResetToken re-applies the same predicate.
func (r *UserRepository) HasActiveResetToken(ctx context.Context, digest string, now time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE reset_token_hash = $1 AND reset_token_expiry > $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, digest, now).Scan(&exists); err != nil {
		return false, fmt.Errorf("check reset token: %w", err)
	}

	return exists, nil
}

// ConsumeResetToken matches, expires and clears the reset pair in a single
// statement, so two concurrent submissions of one token cannot both succeed
// and a concurrent SetResetToken cannot be lost.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, digest, passwordHash string, now time.Time) (*domain.User, error) {
	query := `
		UPDATE users
		SET password_hash = $1, reset_token_hash = NULL, reset_token_expiry = NULL, updated_at = $2
		WHERE reset_token_hash = $3 AND reset_token_expiry > $2
		RETURNING ` + userColumns

	return scanUser(r.pool.QueryRow(ctx, query, passwordHash, now, digest))
}

// ClearExpiredResetTokens clears every reset pair whose expiry is at or before now.
func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users
		SET reset_token_hash = NULL, reset_token_expiry = NULL
		WHERE reset_token_expiry IS NOT NULL AND reset_token_expiry <= $1`

	ct, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("clear expired reset tokens: %w", err)
	}

	return ct.RowsAffected(), nil
}

// ChangeRole locks the target row, updates its role and appends the audit
// record in one transaction.
func (r *UserRepository) ChangeRole(ctx context.Context, change *domain.RoleChange) (*domain.User, error) {
	var updated *domain.User

	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var oldRole string
		err := tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 FOR UPDATE`, change.TargetID).Scan(&oldRole)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("user", change.TargetID)
			}
			return fmt.Errorf("lock user: %w", err)
		}
		change.OldRole = oldRole

		updateQuery := `
			UPDATE users
			SET role = $1, updated_at = $2
			WHERE id = $3
			RETURNING ` + userColumns

		u, err := scanUser(tx.QueryRow(ctx, updateQuery, change.NewRole, change.CreatedAt, change.TargetID))
		if err != nil {
			return err
		}

		auditQuery := `
			INSERT INTO role_audit (id, actor_id, target_id, old_role, new_role, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`

		if _, err := tx.Exec(ctx, auditQuery,
			change.ID,
			change.ActorID,
			change.TargetID,
			change.OldRole,
			change.NewRole,
			change.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert role audit: %w", err)
		}

		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// scanUser scans a single user row in userColumns order.
func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.ResetTokenHash,
		&u.ResetTokenExpiry,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
