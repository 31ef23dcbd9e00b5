package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeaders(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/health/live", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestSecurityHeaders_ProductionRedirectsPlainHTTP(t *testing.T) {
	f := newRouterFixture(t, func(cfg *RouterConfig) {
		cfg.Production = true
	})

	rec := f.do(t, http.MethodGet, "/health/live", nil)

	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "https://")
}

func TestSecurityHeaders_ProductionBehindTLSProxy(t *testing.T) {
	f := newRouterFixture(t, func(cfg *RouterConfig) {
		cfg.Production = true
	})

	rec := f.do(t, http.MethodGet, "/health/live", nil, func(r *http.Request) {
		r.Header.Set("X-Forwarded-Proto", "https")
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=31536000")
}

func TestContentTypeJSON_AllowsBodylessRequests(t *testing.T) {
	called := false
	h := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, called)
}

func TestIdentityFromContext_Empty(t *testing.T) {
	assert.Nil(t, IdentityFromContext(context.Background()))
}

func TestAuthenticate_StoresIdentity(t *testing.T) {
	gate := new(mockGate)
	gate.On("Authenticate", mock.Anything, "tok").Return(aliceIdentity, nil)

	var seen string
	h := Authenticate(gate, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context()).UserID
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "u-alice", seen)
}

func TestAuthenticate_BackendUnavailable(t *testing.T) {
	f := newRouterFixture(t)
	f.gate.On("Authenticate", mock.Anything, "tok").Return(nil, errors.New("redis: connection refused"))

	rec := f.do(t, http.MethodGet, "/api/v1/auth/me", nil, withCookie("tok"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis")
}

func TestHealthEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	live := f.do(t, http.MethodGet, "/health/live", nil)
	ready := f.do(t, http.MethodGet, "/health/ready", nil)

	require.Equal(t, http.StatusOK, live.Code)
	require.Equal(t, http.StatusOK, ready.Code)
	assert.Equal(t, "up", decodeBody(t, ready)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	f.do(t, http.MethodGet, "/health/live", nil)

	rec := f.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/health/live",service="access",status="200"} 1`)
}
