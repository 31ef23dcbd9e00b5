package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/evento-ems/access/internal/auth"
	"github.com/evento-ems/access/internal/domain"
	"github.com/evento-ems/access/internal/event"
	"github.com/evento-ems/access/internal/repository"
	apperrors "github.com/evento-ems/access/pkg/errors"
)

// DefaultResetTokenTTL is how long a reset token stays valid.
const DefaultResetTokenTTL = time.Hour

// ResetConfig configures the password reset lifecycle.
type ResetConfig struct {
	TokenTTL time.Duration
	// URLBase is the front-end page the token is appended to.
	URLBase string
}

// ResetService runs the single-use, time-limited password reset flow. Only
// the SHA-256 digest of a token is persisted.
type ResetService struct {
	users    repository.UserRepository
	hasher   *auth.Hasher
	notifier Notifier
	metrics  *Metrics
	logger   *slog.Logger
	cfg      ResetConfig
	now      func() time.Time
	random   io.Reader
}

// NewResetService creates a new reset service. notifier and metrics may be nil.
func NewResetService(
	users repository.UserRepository,
	hasher *auth.Hasher,
	notifier Notifier,
	metrics *Metrics,
	logger *slog.Logger,
	cfg ResetConfig,
) *ResetService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultResetTokenTTL
	}
	cfg.URLBase = strings.TrimRight(cfg.URLBase, "/")
	return &ResetService{
		users:    users,
		hasher:   hasher,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// BeginReset issues a reset token for email and hands the reset link to the
// notifier. An unknown email returns nil without touching storage, so the
// caller cannot tell registered addresses apart.
func (s *ResetService) BeginReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.metrics.reset("begin", "unknown_email")
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return storeErr("postgres", err)
	}

	token, digest, err := auth.NewResetToken(s.random)
	if err != nil {
		return apperrors.Internal(err)
	}
	expiresAt := s.now().UTC().Add(s.cfg.TokenTTL)

	if err := s.users.SetResetToken(ctx, user.ID, digest, expiresAt); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Deleted between lookup and update.
			s.metrics.reset("begin", "unknown_email")
			return nil
		}
		return storeErr("postgres", err)
	}

	s.metrics.reset("begin", "issued")
	s.logger.InfoContext(ctx, "password reset token issued",
		slog.String("user_id", user.ID),
		slog.Time("expires_at", expiresAt),
	)

	if s.notifier != nil {
		data := event.ResetRequested{
			UserID:    user.ID,
			Email:     user.Email,
			Name:      user.Name,
			ResetURL:  s.cfg.URLBase + "/" + token,
			ExpiresAt: expiresAt,
		}
		if err := s.notifier.PasswordResetRequested(ctx, data); err != nil {
			s.logger.ErrorContext(ctx, "failed to deliver password reset link",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// CompleteReset sets a new password for the user holding token, provided it
// has not expired, and clears the token in the same write. Unknown, used and
// expired tokens all yield InvalidOrExpiredToken.
func (s *ResetService) CompleteReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return apperrors.InvalidInput("token is required")
	}
	if newPassword == "" {
		return apperrors.InvalidInput("new password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if !auth.IsWellFormedResetToken(token) {
		s.metrics.reset("complete", "rejected")
		return apperrors.InvalidOrExpiredToken()
	}

	digest := auth.DigestResetToken(token)

	// Reject unknown tokens before paying for a bcrypt hash. The consume below
	// still checks the token, so a race with expiry or reuse is caught there.
	active, err := s.users.HasActiveResetToken(ctx, digest, s.now().UTC())
	if err != nil {
		return storeErr("postgres", err)
	}
	if !active {
		s.metrics.reset("complete", "rejected")
		return apperrors.InvalidOrExpiredToken()
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.Internal(err)
	}

	user, err := s.users.ConsumeResetToken(ctx, digest, hash, s.now().UTC())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.metrics.reset("complete", "rejected")
			return apperrors.InvalidOrExpiredToken()
		}
		return storeErr("postgres", err)
	}

	s.metrics.reset("complete", "success")
	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("user_id", user.ID),
	)

	if s.notifier != nil {
		if err := s.notifier.PasswordChanged(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish password change",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}
