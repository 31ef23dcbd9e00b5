package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:revoked:"

// SessionDenylist implements repository.SessionDenylist using Redis. Each
// revoked token ID is a key that lives until the token itself would expire.
type SessionDenylist struct {
	client *redis.Client
	now    func() time.Time
}

// NewSessionDenylist creates a new Redis-backed session denylist.
func NewSessionDenylist(client *redis.Client) *SessionDenylist {
	return &SessionDenylist{
		client: client,
		now:    time.Now,
	}
}

// Revoke records tokenID as revoked. A token that has already expired is
// rejected by signature verification, so nothing is stored for it. A nil
// expiresAt stores the entry without a TTL.
func (d *SessionDenylist) Revoke(ctx context.Context, tokenID string, expiresAt *time.Time) error {
	var ttl time.Duration
	if expiresAt != nil {
		ttl = expiresAt.Sub(d.now())
		if ttl <= 0 {
			return nil
		}
	}

	if err := d.client.Set(ctx, keyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked session: %w", err)
	}

	return nil
}

// IsRevoked reports whether tokenID has been revoked.
func (d *SessionDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, keyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists revoked session: %w", err)
	}

	return n > 0, nil
}
