package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/evento-ems/access/internal/auth"
	"github.com/evento-ems/access/internal/domain"
	"github.com/evento-ems/access/internal/event"
	apperrors "github.com/evento-ems/access/pkg/errors"
)

// MinPasswordLength is the shortest password accepted on registration and reset.
const MinPasswordLength = 6

// Notifier delivers access events to out-of-band consumers such as email.
// Delivery is best-effort: callers log failures and carry on.
type Notifier interface {
	PasswordResetRequested(ctx context.Context, data event.ResetRequested) error
	PasswordChanged(ctx context.Context, user *domain.User) error
	RoleChanged(ctx context.Context, change *domain.RoleChange) error
}

// storeErr passes classified errors through and turns anything else from a
// storage dependency into a retryable Unavailable error.
func storeErr(dependency string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Unavailable(dependency, err)
}

func validatePassword(password string) error {
	if password == "" {
		return apperrors.InvalidInput("password is required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperrors.InvalidInput("password must be at least 6 characters")
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperrors.InvalidInput("password must be at most 72 bytes")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}
	at := strings.LastIndexByte(email, '@')
	if at < 1 || at == len(email)-1 {
		return apperrors.InvalidInput("email is invalid")
	}
	return nil
}

// validateUserID rejects ids that cannot name a stored user, so malformed
// path parameters never reach storage.
func validateUserID(id string) error {
	if id == "" {
		return apperrors.InvalidInput("user id is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.InvalidInput("user id is invalid")
	}
	return nil
}
