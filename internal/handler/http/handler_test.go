package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/evento-ems/access/internal/domain"
	"github.com/evento-ems/access/internal/service"
	"github.com/evento-ems/access/pkg/health"
	"github.com/evento-ems/access/pkg/middleware"
)

// ============================================================================
// Mock Services
// ============================================================================

type mockAccounts struct {
	mock.Mock
}

func (m *mockAccounts) Register(ctx context.Context, input service.RegisterInput) (*domain.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAccounts) Login(ctx context.Context, input service.LoginInput) (*domain.User, string, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*domain.User), args.String(1), args.Error(2)
}

func (m *mockAccounts) Logout(ctx context.Context, identity *domain.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *mockAccounts) Me(ctx context.Context, identity *domain.Identity) (*domain.User, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type mockResets struct {
	mock.Mock
}

func (m *mockResets) BeginReset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *mockResets) CompleteReset(ctx context.Context, token, newPassword string) error {
	args := m.Called(ctx, token, newPassword)
	return args.Error(0)
}

type mockAdmin struct {
	mock.Mock
}

func (m *mockAdmin) AssignRole(ctx context.Context, actor *domain.Identity, userID, role string) (*domain.User, error) {
	args := m.Called(ctx, actor, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAdmin) DeleteUser(ctx context.Context, actor *domain.Identity, userID string) error {
	args := m.Called(ctx, actor, userID)
	return args.Error(0)
}

type mockGate struct {
	mock.Mock
}

func (m *mockGate) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

// ============================================================================
// Fixture
// ============================================================================

type routerFixture struct {
	accounts *mockAccounts
	resets   *mockResets
	admin    *mockAdmin
	gate     *mockGate
	handler  http.Handler
}

func newRouterFixture(t *testing.T, mutate ...func(*RouterConfig)) *routerFixture {
	t.Helper()
	f := &routerFixture{
		accounts: new(mockAccounts),
		resets:   new(mockResets),
		admin:    new(mockAdmin),
		gate:     new(mockGate),
	}
	reg := prometheus.NewRegistry()
	cfg := RouterConfig{
		CORS:                   middleware.CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true},
		AuthRateLimitPerMinute: 1000,
		Metrics:                middleware.NewHTTPMetrics(reg, "access"),
		Gatherer:               reg,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	f.handler = NewRouter(Services{
		Accounts: f.accounts,
		Resets:   f.resets,
		Admin:    f.admin,
		Gate:     f.gate,
	}, health.NewHandler(), slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
	return f
}

type requestOption func(*http.Request)

func withCookie(token string) requestOption {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	}
}

func withBearer(token string) requestOption {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func (f *routerFixture) do(t *testing.T, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		var raw []byte
		switch b := body.(type) {
		case string:
			raw = []byte(b)
		default:
			var err error
			raw, err = json.Marshal(b)
			require.NoError(t, err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

var (
	aliceIdentity = &domain.Identity{UserID: "u-alice", Email: "alice@example.com", Role: domain.RoleUser, TokenID: "jti-alice"}
	adminIdentity = &domain.Identity{UserID: "u-admin", Email: "root@example.com", Role: domain.RoleAdmin, TokenID: "jti-admin"}
)

func sampleUser() *domain.User {
	return &domain.User{ID: "u-alice", Name: "Alice", Email: "alice@example.com", PasswordHash: "$2a$10$secret", Role: domain.RoleUser}
}
