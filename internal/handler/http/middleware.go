package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/evento-ems/access/internal/domain"
	"github.com/evento-ems/access/internal/service"
	"github.com/evento-ems/access/pkg/httputil"
	"github.com/evento-ems/access/pkg/logger"
	"github.com/evento-ems/access/pkg/middleware"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "token"

// sessionToken reads the session cookie, falling back to a bearer header.
var sessionToken = middleware.CookieOrBearer(SessionCookieName)

type identityKey struct{}

// WithIdentity stores the authenticated caller in ctx.
func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the caller stored by Authenticate, or nil.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	identity, _ := ctx.Value(identityKey{}).(*domain.Identity)
	return identity
}

// ContentTypeJSON enforces that requests with a body have Content-Type:
// application/json. Bodyless requests such as logout pass through.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.ErrorResponse{
					Error: "Content-Type must be application/json",
					Code:  "UNSUPPORTED_MEDIA_TYPE",
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Authenticate resolves the session token through gate and stores the
// identity in the request context. Requests without a valid session get 401.
func Authenticate(gate SessionAuthenticator, fallback *slog.Logger) func(http.Handler) http.Handler {
	authenticate := func(ctx context.Context, token string) (context.Context, error) {
		identity, err := gate.Authenticate(ctx, token)
		if err != nil {
			return nil, err
		}
		ctx = WithIdentity(ctx, identity)
		ctx = logger.WithUserID(ctx, identity.UserID)
		ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", identity.UserID)))
		return ctx, nil
	}
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		httputil.WriteError(w, r, err, fallback)
	}
	return middleware.Auth(sessionToken, authenticate, onError)
}

// RequireAdmin rejects callers without the admin role with 403. It must be
// mounted after Authenticate.
func RequireAdmin(fallback *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := service.RequireAdmin(IdentityFromContext(r.Context())); err != nil {
				httputil.WriteError(w, r, err, fallback)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit allows perMinute requests per client IP on the routes it wraps.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{
				Error:     "too many requests, please try again later",
				Code:      "RATE_LIMITED",
				RequestID: logger.CorrelationIDFromContext(r.Context()),
			})
		}),
	)
}

// SecurityHeaders sets the standard hardening headers. In production plain
// HTTP requests are redirected to HTTPS.
func SecurityHeaders(production bool, l *slog.Logger) func(http.Handler) http.Handler {
	s := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		STSSeconds:            stsSeconds(production),
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Process has already written the redirect or rejection.
			if err := s.Process(w, r); err != nil {
				l.DebugContext(r.Context(), "secure headers stopped request",
					slog.String("error", err.Error()),
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func stsSeconds(production bool) int64 {
	if production {
		return 31536000
	}
	return 0
}
