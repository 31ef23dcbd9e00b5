package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/evento-ems/access/internal/domain"
	"github.com/evento-ems/access/internal/service"
	apperrors "github.com/evento-ems/access/pkg/errors"
	"github.com/evento-ems/access/pkg/httputil"
	"github.com/evento-ems/access/pkg/validator"
)

// forgotPasswordMessage is returned whether or not the email is registered.
const forgotPasswordMessage = "if an account exists for that email, a password reset link has been sent"

// CookieConfig controls the session cookie written on login.
type CookieConfig struct {
	Secure bool
	// MaxAge is the cookie lifetime. Zero makes it a browser-session cookie,
	// matching tokens issued without an expiry.
	MaxAge time.Duration
}

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	accounts AccountService
	resets   ResetService
	gate     SessionAuthenticator
	cookie   CookieConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(accounts AccountService, resets ResetService, gate SessionAuthenticator, cookie CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		resets:   resets,
		gate:     gate,
		cookie:   cookie,
		logger:   logger,
	}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for user registration.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest is the JSON request body for user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required,max=72"`
}

// ForgotPasswordRequest is the JSON request body for forgot password.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

// ResetPasswordRequest is the JSON request body for password reset.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

// --- Response types ---

// UserResponse wraps a user with an optional message.
type UserResponse struct {
	Message string       `json:"message,omitempty"`
	User    *domain.User `json:"user"`
}

// LoginResponse is returned on successful login. The token is also set as
// an HttpOnly cookie; the body copy serves bearer-header clients.
type LoginResponse struct {
	Message string       `json:"message"`
	User    *domain.User `json:"user"`
	Token   string       `json:"token"`
}

// --- Handlers ---

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, UserResponse{
		Message: "user registered successfully",
		User:    user,
	})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, token, err := h.accounts.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	http.SetCookie(w, h.sessionCookie(token))
	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		Message: "login successful",
		User:    user,
		Token:   token,
	})
}

// Logout handles POST /api/v1/auth/logout. The cookie is always cleared; a
// valid session is additionally revoked server-side.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.clearedCookie())

	if token := sessionToken(r); token != "" {
		identity, err := h.gate.Authenticate(r.Context(), token)
		if err == nil {
			err = h.accounts.Logout(r.Context(), identity)
		}
		if err != nil && apperrors.IsTransient(err) {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	}

	httputil.WriteMessage(w, http.StatusOK, "logged out")
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Me(r.Context(), IdentityFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, UserResponse{User: user})
}

// ForgotPassword handles POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.resets.BeginReset(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, forgotPasswordMessage)
}

// ResetPassword handles POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.resets.CompleteReset(r.Context(), req.Token, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "password has been reset successfully")
}

// --- Cookies ---

func (h *AuthHandler) sessionCookie(token string) *http.Cookie {
	c := &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if h.cookie.MaxAge > 0 {
		c.MaxAge = int(h.cookie.MaxAge / time.Second)
	}
	return c
}

func (h *AuthHandler) clearedCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
