package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/evento-ems/access/pkg/httputil"
	"github.com/evento-ems/access/pkg/validator"
)

// AdminHandler handles admin-only user management.
type AdminHandler struct {
	admin  AdminService
	logger *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(admin AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

// AssignRoleRequest is the JSON request body for a role change.
type AssignRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

// AssignRole handles PUT /api/v1/admin/users/{id}/role
func (h *AdminHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.admin.AssignRole(r.Context(), IdentityFromContext(r.Context()), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, UserResponse{
		Message: "role updated",
		User:    user,
	})
}

// DeleteUser handles DELETE /api/v1/admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteUser(r.Context(), IdentityFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "user deleted")
}
