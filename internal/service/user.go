package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evento-ems/access/internal/auth"
	"github.com/evento-ems/access/internal/domain"
	"github.com/evento-ems/access/internal/repository"
	apperrors "github.com/evento-ems/access/pkg/errors"
)

// AccountService implements registration, login, logout and profile lookup.
type AccountService struct {
	users    repository.UserRepository
	hasher   *auth.Hasher
	issuer   *auth.Issuer
	denylist repository.SessionDenylist
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewAccountService creates a new account service. denylist and metrics may be nil.
func NewAccountService(
	users repository.UserRepository,
	hasher *auth.Hasher,
	issuer *auth.Issuer,
	denylist repository.SessionDenylist,
	metrics *Metrics,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:    users,
		hasher:   hasher,
		issuer:   issuer,
		denylist: denylist,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// --- Input types ---

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Email    string
	Password string
}

// --- Operations ---

// Register creates a new account with the user role.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := domain.NormalizeEmail(input.Email)

	if name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, storeErr("postgres", fmt.Errorf("create user: %w", err))
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// Login checks credentials and issues a session token. Unknown emails and
// wrong passwords fail identically.
func (s *AccountService) Login(ctx context.Context, input LoginInput) (*domain.User, string, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, "", apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, "", apperrors.InvalidInput("password is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", storeErr("postgres", err)
		}
		s.hasher.DummyVerify(input.Password)
		s.metrics.login("failure")
		return nil, "", apperrors.Unauthorized("invalid email or password")
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		s.metrics.login("failure")
		s.logger.InfoContext(ctx, "login failed",
			slog.String("user_id", user.ID),
		)
		return nil, "", apperrors.Unauthorized("invalid email or password")
	}

	token, err := s.issuer.Issue(auth.Subject{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, "", apperrors.Internal(err)
	}

	s.metrics.login("success")
	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return user, token, nil
}

// Logout revokes the caller's session token server-side when a denylist is
// configured. The HTTP layer clears the cookie regardless.
func (s *AccountService) Logout(ctx context.Context, identity *domain.Identity) error {
	if identity == nil {
		return apperrors.Unauthorized("authentication required")
	}
	if s.denylist == nil || identity.TokenID == "" {
		return nil
	}

	if err := s.denylist.Revoke(ctx, identity.TokenID, identity.ExpiresAt); err != nil {
		return storeErr("redis", err)
	}

	s.logger.InfoContext(ctx, "session revoked",
		slog.String("user_id", identity.UserID),
	)
	return nil
}

// Me returns the caller's user record.
func (s *AccountService) Me(ctx context.Context, identity *domain.Identity) (*domain.User, error) {
	if identity == nil {
		return nil, apperrors.Unauthorized("authentication required")
	}

	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid session")
		}
		return nil, storeErr("postgres", err)
	}

	return user, nil
}
