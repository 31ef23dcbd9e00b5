package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/evento-ems/access/pkg/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// --- Auth ---

type ctxKey struct{}

func TestCookieOrBearer(t *testing.T) {
	source := CookieOrBearer("token")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", source(r))

	r.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", source(r))

	r.AddCookie(&http.Cookie{Name: "token", Value: "from-cookie"})
	assert.Equal(t, "from-cookie", source(r), "cookie wins over header")

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Equal(t, "", source(r2))
}

func TestAuth_PassesEnrichedContext(t *testing.T) {
	authn := func(ctx context.Context, token string) (context.Context, error) {
		return context.WithValue(ctx, ctxKey{}, "user:"+token), nil
	}
	var seen string
	h := Auth(CookieOrBearer("token"), authn, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(ctxKey{}).(string)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "t1"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "user:t1", seen)
}

func TestAuth_Failure(t *testing.T) {
	authErr := errors.New("nope")
	authn := func(ctx context.Context, token string) (context.Context, error) { return nil, authErr }
	var gotErr error
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		gotErr = err
		w.WriteHeader(http.StatusUnauthorized)
	}
	called := false
	h := Auth(CookieOrBearer("token"), authn, onError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.ErrorIs(t, gotErr, authErr)
}

// --- NoStore ---

func TestNoStore(t *testing.T) {
	rec := httptest.NewRecorder()
	NoStore(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

// --- CORS ---

func serveCORS(cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	CORS(cfg)(okHandler).ServeHTTP(rec, req)
	return rec
}

func TestCORS_WildcardWithoutCredentials(t *testing.T) {
	rec := serveCORS(CORSConfig{AllowedOrigins: []string{"*"}}, http.MethodGet, "https://any.example")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_WildcardWithCredentialsEchoesOrigin(t *testing.T) {
	rec := serveCORS(CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}, http.MethodGet, "https://app.example")
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestCORS_ListedAndUnlistedOrigin(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://app.example"}, AllowCredentials: true}

	rec := serveCORS(cfg, http.MethodGet, "https://app.example")
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serveCORS(cfg, http.MethodGet, "https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_Preflight(t *testing.T) {
	rec := serveCORS(CORSConfig{AllowedOrigins: []string{"https://app.example"}}, http.MethodOptions, "https://app.example")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
}

// --- Logging ---

func TestRequestLogging_GeneratesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter("access", "info", &buf)

	var ctxID string
	h := RequestLogging(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = logger.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register?x=1", nil))

	require.NotEmpty(t, ctxID)
	assert.Equal(t, ctxID, rec.Header().Get(CorrelationHeader))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/api/v1/auth/register", entry["path"])
	assert.Equal(t, float64(http.StatusCreated), entry["status"])
	assert.Equal(t, ctxID, entry["correlation_id"])
	assert.NotContains(t, buf.String(), "x=1")
}

func TestRequestLogging_ReusesInboundCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogging(logger.NewWithWriter("access", "info", &buf))(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "corr-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "corr-123", rec.Header().Get(CorrelationHeader))
}

func TestRequestLogger_StoresEnrichedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logger.NewWithWriter("access", "info", &buf)

	h := RequestLogging(base)(RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "corr-xyz")
	h.ServeHTTP(httptest.NewRecorder(), req)

	first := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Contains(t, first, "inside handler")
	assert.Contains(t, first, `"correlation_id":"corr-xyz"`)
}

// --- Recovery ---

func TestRecovery_ReturnsInternalError(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(logger.NewWithWriter("access", "info", &buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil)) })

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"INTERNAL_ERROR"`)
	assert.NotContains(t, rec.Body.String(), "boom")
	assert.Contains(t, buf.String(), "panic recovered")
}

// --- Metrics ---

func TestHTTPMetrics_RecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg, "access")

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Delete("/api/v1/admin/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/v1/admin/users/42", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodDelete, "/api/v1/admin/users/{id}", "403")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
}

// --- Tracing ---

func TestTracing_NamesSpanAfterRoute(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	r := chi.NewRouter()
	r.Use(Tracing())
	r.Get("/api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/v1/auth/me", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.NotEmpty(t, rec.Header().Get("traceparent"))
}
