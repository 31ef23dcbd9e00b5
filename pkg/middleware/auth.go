package middleware

import (
	"context"
	"net/http"
	"strings"
)

// TokenSource extracts a credential from a request. It returns "" when the
// request carries none.
type TokenSource func(r *http.Request) string

// CookieOrBearer reads the named cookie first and falls back to an
// "Authorization: Bearer" header.
func CookieOrBearer(cookieName string) TokenSource {
	return func(r *http.Request) string {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
}

// Authenticator resolves a credential into an enriched request context, or
// fails. An empty token is passed through so the authenticator decides how a
// missing credential is reported.
type Authenticator func(ctx context.Context, token string) (context.Context, error)

// ErrorWriter renders a failed authentication.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Auth runs authenticate on every request and only calls next on success.
func Auth(source TokenSource, authenticate Authenticator, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(r.Context(), source(r))
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
