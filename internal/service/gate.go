package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/evento-ems/access/internal/auth"
	"github.com/evento-ems/access/internal/domain"
	"github.com/evento-ems/access/internal/repository"
	apperrors "github.com/evento-ems/access/pkg/errors"
)

// Gate resolves session tokens to identities and checks admin rights.
type Gate struct {
	users    repository.UserRepository
	issuer   *auth.Issuer
	denylist repository.SessionDenylist
	metrics  *Metrics
	logger   *slog.Logger
}

// NewGate creates an access gate. denylist and metrics may be nil; without a
// denylist, revoked tokens are only rejected once they expire.
func NewGate(
	users repository.UserRepository,
	issuer *auth.Issuer,
	denylist repository.SessionDenylist,
	metrics *Metrics,
	logger *slog.Logger,
) *Gate {
	return &Gate{
		users:    users,
		issuer:   issuer,
		denylist: denylist,
		metrics:  metrics,
		logger:   logger,
	}
}

// Authenticate verifies token and confirms its subject still exists. The
// returned role comes from the stored user, never from the token.
func (g *Gate) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		g.metrics.rejected("missing")
		return nil, apperrors.Unauthorized("authentication required")
	}

	claims, err := g.issuer.Verify(token)
	if err != nil {
		g.metrics.rejected("invalid_signature")
		return nil, apperrors.Unauthorized("invalid session").WithCause(err)
	}

	if g.denylist != nil && claims.ID != "" {
		revoked, err := g.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, storeErr("redis", err)
		}
		if revoked {
			g.metrics.rejected("revoked")
			return nil, apperrors.Unauthorized("invalid session")
		}
	}

	user, err := g.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			g.metrics.rejected("unknown_user")
			g.logger.InfoContext(ctx, "session presented for missing user",
				slog.String("user_id", claims.UserID),
			)
			return nil, apperrors.Unauthorized("invalid session")
		}
		return nil, storeErr("postgres", err)
	}

	return &domain.Identity{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.Expiry(),
	}, nil
}

// AuthorizeAdmin reports whether identity holds the admin role.
func AuthorizeAdmin(identity *domain.Identity) bool {
	return identity.IsAdmin()
}

// RequireAdmin rejects a missing identity as Unauthorized and a non-admin
// one as Forbidden.
func RequireAdmin(identity *domain.Identity) error {
	if identity == nil {
		return apperrors.Unauthorized("authentication required")
	}
	if !AuthorizeAdmin(identity) {
		return apperrors.Forbidden("admin role required")
	}
	return nil
}
