package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. AppError values wrap one of these so callers can match on
// the kind with errors.Is regardless of the message.
var (
	ErrNotFound              = errors.New("resource not found")
	ErrAlreadyExists         = errors.New("resource already exists")
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrInvalidSignature      = errors.New("invalid token signature")
	ErrServiceUnavail        = errors.New("service unavailable")
	ErrInternal              = errors.New("internal error")
)

// AppError is a classified error carrying the code and HTTP status used at
// the API boundary.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithCause attaches an underlying cause while keeping the sentinel kind
// matchable. The cause is never rendered to clients.
func (e *AppError) WithCause(cause error) *AppError {
	if cause == nil {
		return e
	}
	e.Err = errors.Join(e.Err, cause)
	return e
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 validation error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// InvalidOrExpiredToken creates the 400 error returned for any reset token
// that is unknown, already consumed, or past its expiry.
func InvalidOrExpiredToken() *AppError {
	return &AppError{
		Code:    "INVALID_OR_EXPIRED_TOKEN",
		Message: "password reset token is invalid or has expired",
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidOrExpiredToken,
	}
}

// Unavailable creates a 503 error for transient dependency failures. Callers
// may retry.
func Unavailable(dependency string, err error) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: "a required dependency is temporarily unavailable",
		Status:  http.StatusServiceUnavailable,
		Err:     errors.Join(ErrServiceUnavail, fmt.Errorf("%s: %w", dependency, err)),
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidOrExpiredToken):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsTransient reports whether err came from an unavailable dependency.
func IsTransient(err error) bool {
	return errors.Is(err, ErrServiceUnavail)
}
