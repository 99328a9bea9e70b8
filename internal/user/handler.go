package user

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/admin-console/internal"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
	"github.com/frahmantamala/admin-console/internal/transport"
	"github.com/frahmantamala/admin-console/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	ListUsers(ctx context.Context, actor *coreUser.User) ([]Account, error)
	CreateUser(ctx context.Context, actor *coreUser.User, dto CreateUserDTO) (int64, error)
	ChangePassword(ctx context.Context, actor *coreUser.User, targetID int64, dto ChangePasswordDTO) error
	ChangePermission(ctx context.Context, actor *coreUser.User, targetID int64, dto ChangePermissionDTO) error
	DeleteUser(ctx context.Context, actor *coreUser.User, targetID int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// ListUsers handles GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrInvalidSession, "ListUsers")
		return
	}

	accounts, err := h.Service.ListUsers(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, r, err, "ListUsers")
		return
	}
	h.WriteJSON(w, http.StatusOK, accounts)
}

// CreateUser handles POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrInvalidSession, "CreateUser")
		return
	}

	var dto CreateUserDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err, "CreateUser")
		return
	}

	id, err := h.Service.CreateUser(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, r, err, "CreateUser")
		return
	}
	h.WriteJSON(w, http.StatusCreated, CreateUserResponse{Message: "User created successfully!", UserID: id})
}

// ChangePassword handles PUT /api/users/{id}/password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, targetID, ok := h.resolve(w, r, "ChangePassword")
	if !ok {
		return
	}

	var dto ChangePasswordDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err, "ChangePassword")
		return
	}

	if err := h.Service.ChangePassword(r.Context(), actor, targetID, dto); err != nil {
		h.HandleServiceError(w, r, err, "ChangePassword")
		return
	}
	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password changed successfully."})
}

// ChangePermission handles PUT /api/users/{id}/permission
func (h *Handler) ChangePermission(w http.ResponseWriter, r *http.Request) {
	actor, targetID, ok := h.resolve(w, r, "ChangePermission")
	if !ok {
		return
	}

	var dto ChangePermissionDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err, "ChangePermission")
		return
	}

	if err := h.Service.ChangePermission(r.Context(), actor, targetID, dto); err != nil {
		h.HandleServiceError(w, r, err, "ChangePermission")
		return
	}
	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Permission updated successfully."})
}

// DeleteUser handles DELETE /api/users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, targetID, ok := h.resolve(w, r, "DeleteUser")
	if !ok {
		return
	}

	if err := h.Service.DeleteUser(r.Context(), actor, targetID); err != nil {
		h.HandleServiceError(w, r, err, "DeleteUser")
		return
	}
	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "User deleted successfully."})
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, op string) (*coreUser.User, int64, bool) {
	actor, ok := internal.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrInvalidSession, op)
		return nil, 0, false
	}

	targetID, err := ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err, op)
		return nil, 0, false
	}
	return actor, targetID, true
}

// ParseUserID parses a positive user id from a path or form value.
func ParseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, internal.NewValidationError("A valid user id is required.", internal.ErrCodeInvalidUserID)
	}
	return id, nil
}
