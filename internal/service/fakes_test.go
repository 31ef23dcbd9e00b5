package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/evento-ems/access/internal/auth"
	"github.com/evento-ems/access/internal/domain"
	"github.com/evento-ems/access/internal/event"
	apperrors "github.com/evento-ems/access/pkg/errors"
)

// --- Clock ---

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHasher(t *testing.T) *auth.Hasher {
	t.Helper()
	h, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

// --- In-memory user repository ---

// memUserRepo mirrors the PostgreSQL repository semantics, including the
// single-statement reset token consumption.
type memUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	audits []domain.RoleChange
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return apperrors.AlreadyExists("user", "email", user.Email)
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return apperrors.NotFound("user", id)
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) SetResetToken(_ context.Context, userID, digest string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return apperrors.NotFound("user", userID)
	}
	u.ResetTokenHash = &digest
	u.ResetTokenExpiry = &expiry
	return nil
}

func (r *memUserRepo) HasActiveResetToken(_ context.Context, digest string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == digest && u.ResetTokenExpiry.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memUserRepo) ConsumeResetToken(_ context.Context, digest, passwordHash string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == digest && u.ResetTokenExpiry.After(now) {
			u.PasswordHash = passwordHash
			u.ResetTokenHash = nil
			u.ResetTokenExpiry = nil
			u.UpdatedAt = now
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memUserRepo) ClearExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.ResetTokenExpiry != nil && !u.ResetTokenExpiry.After(now) {
			u.ResetTokenHash = nil
			u.ResetTokenExpiry = nil
			n++
		}
	}
	return n, nil
}

func (r *memUserRepo) ChangeRole(_ context.Context, change *domain.RoleChange) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[change.TargetID]
	if !ok {
		return nil, apperrors.NotFound("user", change.TargetID)
	}
	change.OldRole = u.Role
	u.Role = change.NewRole
	u.UpdatedAt = change.CreatedAt
	r.audits = append(r.audits, *change)
	cp := *u
	return &cp, nil
}

// put stores u directly, bypassing Create.
func (r *memUserRepo) put(u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
}

func (r *memUserRepo) get(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (r *memUserRepo) setRole(id, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id].Role = role
}

// --- In-memory denylist ---

type memDenylist struct {
	mu      sync.Mutex
	revoked map[string]*time.Time
}

func newMemDenylist() *memDenylist {
	return &memDenylist{revoked: make(map[string]*time.Time)}
}

func (d *memDenylist) Revoke(_ context.Context, tokenID string, expiresAt *time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[tokenID] = expiresAt
	return nil
}

func (d *memDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.revoked[tokenID]
	return ok, nil
}

// --- Recording notifier ---

type recordingNotifier struct {
	mu          sync.Mutex
	resets      []event.ResetRequested
	changed     []string
	roleChanges []domain.RoleChange
	err         error
}

func (n *recordingNotifier) PasswordResetRequested(_ context.Context, data event.ResetRequested) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, data)
	return n.err
}

func (n *recordingNotifier) PasswordChanged(_ context.Context, user *domain.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, user.ID)
	return n.err
}

func (n *recordingNotifier) RoleChanged(_ context.Context, change *domain.RoleChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.roleChanges = append(n.roleChanges, *change)
	return n.err
}

func (n *recordingNotifier) lastReset(t *testing.T) event.ResetRequested {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.resets, "expected a reset notification")
	return n.resets[len(n.resets)-1]
}

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserRepository) SetResetToken(ctx context.Context, userID, digest string, expiry time.Time) error {
	args := m.Called(ctx, userID, digest, expiry)
	return args.Error(0)
}

func (m *mockUserRepository) HasActiveResetToken(ctx context.Context, digest string, now time.Time) (bool, error) {
	args := m.Called(ctx, digest, now)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepository) ConsumeResetToken(ctx context.Context, digest, passwordHash string, now time.Time) (*domain.User, error) {
	args := m.Called(ctx, digest, passwordHash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUserRepository) ChangeRole(ctx context.Context, change *domain.RoleChange) (*domain.User, error) {
	args := m.Called(ctx, change)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// --- Mock Denylist ---

type mockDenylist struct {
	mock.Mock
}

func (m *mockDenylist) Revoke(ctx context.Context, tokenID string, expiresAt *time.Time) error {
	args := m.Called(ctx, tokenID, expiresAt)
	return args.Error(0)
}

func (m *mockDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}
