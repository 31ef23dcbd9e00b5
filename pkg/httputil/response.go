package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/evento-ems/access/pkg/errors"
	"github.com/evento-ems/access/pkg/logger"
	"github.com/evento-ems/access/pkg/validator"
)

// MessageResponse is the body of a success response that carries no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes {"message": msg}.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, MessageResponse{Message: msg})
}

// WriteError classifies err and writes the matching error response. Only the
// AppError message reaches the client; wrapped causes are logged for 5xx
// responses and otherwise dropped. The request-scoped logger is preferred over
// fallback when the RequestLogger middleware is mounted.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:     "request validation failed",
			Code:      "VALIDATION_ERROR",
			Fields:    valErr.Fields(),
			RequestID: requestID,
		})
		return
	}

	resp := ErrorResponse{
		Error:     "an internal error occurred",
		Code:      "INTERNAL_ERROR",
		RequestID: requestID,
	}
	status := http.StatusInternalServerError

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		resp.Error, resp.Code, status = appErr.Message, appErr.Code, appErr.Status
	case errors.Is(err, apperrors.ErrNotFound):
		resp.Error, resp.Code, status = "resource not found", "NOT_FOUND", http.StatusNotFound
	case errors.Is(err, apperrors.ErrInvalidInput):
		resp.Error, resp.Code, status = err.Error(), "INVALID_INPUT", http.StatusBadRequest
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, resp)
}
