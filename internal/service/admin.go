package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/evento-ems/access/internal/domain"
	"github.com/evento-ems/access/internal/repository"
	apperrors "github.com/evento-ems/access/pkg/errors"
)

// AdminService implements audited role assignment and account deletion.
type AdminService struct {
	users    repository.UserRepository
	notifier Notifier
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewAdminService creates a new admin service. notifier and metrics may be nil.
func NewAdminService(users repository.UserRepository, notifier Notifier, metrics *Metrics, logger *slog.Logger) *AdminService {
	return &AdminService{
		users:    users,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// AssignRole sets the role of userID on behalf of actor, who must be an admin.
// Admins cannot change their own role.
func (s *AdminService) AssignRole(ctx context.Context, actor *domain.Identity, userID, role string) (*domain.User, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if !domain.IsValidRole(role) {
		return nil, apperrors.InvalidInput("role must be one of: user, admin")
	}
	if actor.UserID == userID {
		return nil, apperrors.InvalidInput("admins cannot change their own role")
	}

	return s.changeRole(ctx, actor.UserID, userID, role)
}

// Bootstrap promotes the user with email to admin with no requesting
// identity. It exists for first-time setup from the command line and is
// never exposed over HTTP. Promoting an existing admin is a no-op.
func (s *AdminService) Bootstrap(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", email)
		}
		return nil, storeErr("postgres", err)
	}
	if user.IsAdmin() {
		return user, nil
	}

	return s.changeRole(ctx, domain.BootstrapActor, user.ID, domain.RoleAdmin)
}

// DeleteUser removes userID on behalf of actor, who must be an admin. Tokens
// previously issued to the user stop authenticating immediately.
func (s *AdminService) DeleteUser(ctx context.Context, actor *domain.Identity, userID string) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	if err := validateUserID(userID); err != nil {
		return err
	}
	if actor.UserID == userID {
		return apperrors.InvalidInput("admins cannot delete their own account")
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return storeErr("postgres", err)
	}

	s.logger.InfoContext(ctx, "user deleted",
		slog.String("user_id", userID),
		slog.String("actor_id", actor.UserID),
	)
	return nil
}

func (s *AdminService) changeRole(ctx context.Context, actorID, userID, role string) (*domain.User, error) {
	change := &domain.RoleChange{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		TargetID:  userID,
		NewRole:   role,
		CreatedAt: s.now().UTC(),
	}

	user, err := s.users.ChangeRole(ctx, change)
	if err != nil {
		return nil, storeErr("postgres", err)
	}

	s.metrics.roleChanged()
	s.logger.InfoContext(ctx, "role changed",
		slog.String("user_id", userID),
		slog.String("actor_id", actorID),
		slog.String("old_role", change.OldRole),
		slog.String("new_role", change.NewRole),
	)

	if s.notifier != nil {
		if err := s.notifier.RoleChanged(ctx, change); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish role change",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	return user, nil
}
