// Package web serves the HTML pages of the console. It uses the same services
// as the JSON API and keeps the session in an HttpOnly cookie.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/frahmantamala/admin-console/internal"
	"github.com/frahmantamala/admin-console/internal/auditlog"
	"github.com/frahmantamala/admin-console/internal/auth"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
	"github.com/frahmantamala/admin-console/internal/transport"
	"github.com/frahmantamala/admin-console/internal/user"
	"github.com/frahmantamala/admin-console/internal/web/views"
	"github.com/frahmantamala/admin-console/pkg/logger"
	"github.com/go-chi/chi"
)

type AuthService interface {
	Login(ctx context.Context, dto auth.LoginDTO) (*auth.Session, error)
	Authenticate(ctx context.Context, token string) (*coreUser.User, error)
}

// Notices shown after a redirect back to the dashboard.
var notices = map[string]string{
	"created":    "User created successfully!",
	"password":   "Password changed successfully.",
	"permission": "Permission updated successfully.",
	"deleted":    "User deleted successfully.",
}

type Handler struct {
	*transport.BaseHandler
	Auth   AuthService
	Users  user.ServiceAPI
	Logs   auditlog.ServiceAPI
	Cookie auth.CookieConfig
}

func NewHandler(authSvc AuthService, users user.ServiceAPI, logs auditlog.ServiceAPI, cookie auth.CookieConfig) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Auth:        authSvc,
		Users:       users,
		Logs:        logs,
		Cookie:      cookie,
	}
}

// Register mounts the page routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	r.Get("/login", h.LoginPage)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	r.Group(func(pr chi.Router) {
		pr.Use(h.RequireSession)
		pr.Get("/dashboard", h.Dashboard)
		pr.Post("/dashboard/users", h.CreateUser)
		pr.Get("/dashboard/users/{id}/{action}", h.Confirm)
		pr.Post("/dashboard/users/{id}/password", h.ChangePassword)
		pr.Post("/dashboard/users/{id}/permission", h.ChangePermission)
		pr.Post("/dashboard/users/{id}/delete", h.DeleteUser)
		pr.Get("/logs", h.LogsPage)
	})
}

// RequireSession resolves the cookie session. Pages never answer 401: an
// unusable session is cleared and the browser is sent to the login page.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractToken(r, h.Cookie.CookieName())
		if token == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		u, err := h.Auth.Authenticate(r.Context(), token)
		if err != nil {
			if appErr, ok := internal.IsAppError(err); ok && appErr.StatusCode == http.StatusUnauthorized {
				logger.From(r.Context()).Info("page session rejected", "code", appErr.Code)
				h.Cookie.Clear(w)
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			status, msg := h.failure(r, err, "RequireSession")
			h.render(w, r, status, views.ErrorPage(nil, msg))
			return
		}

		ctx := internal.ContextWithUser(r.Context(), u)
		ctx = logger.With(ctx, "user_id", u.ID, "permission", u.Permission)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoginPage handles GET /login. A valid session skips straight to the dashboard.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if token := h.ExtractToken(r, h.Cookie.CookieName()); token != "" {
		if _, err := h.Auth.Authenticate(r.Context(), token); err == nil {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
	}
	h.render(w, r, http.StatusOK, views.LoginPage(views.LoginData{}))
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, views.LoginPage(views.LoginData{Error: "Invalid form submission."}))
		return
	}
	dto := auth.LoginDTO{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
	}

	session, err := h.Auth.Login(r.Context(), dto)
	if err != nil {
		status, msg := h.failure(r, err, "Login")
		h.render(w, r, status, views.LoginPage(views.LoginData{Username: dto.Username, Error: msg}))
		return
	}

	h.Cookie.Set(w, session)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout handles POST /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Cookie.Clear(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Dashboard handles GET /dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	data := views.DashboardData{Notice: notices[r.URL.Query().Get("notice")]}
	h.renderDashboard(w, r, http.StatusOK, actor, data)
}

// CreateUser handles POST /dashboard/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	if err := r.ParseForm(); err != nil {
		h.renderDashboard(w, r, http.StatusBadRequest, actor, views.DashboardData{Error: "Invalid form submission."})
		return
	}
	dto := user.CreateUserDTO{
		Username:   r.PostForm.Get("username"),
		Password:   r.PostForm.Get("password"),
		Permission: r.PostForm.Get("permission"),
	}

	if _, err := h.Users.CreateUser(r.Context(), actor, dto); err != nil {
		status, msg := h.failure(r, err, "CreateUser")
		h.renderDashboard(w, r, status, actor, views.DashboardData{
			Create: views.CreateForm{Username: dto.Username, Permission: dto.Permission, Error: msg},
		})
		return
	}
	redirectWithNotice(w, r, "created")
}

// Confirm handles GET /dashboard/users/{id}/{action} and opens the confirmation modal.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	action := chi.URLParam(r, "action")

	id, err := user.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		status, msg := h.failure(r, err, "Confirm")
		h.renderDashboard(w, r, status, actor, views.DashboardData{Error: msg})
		return
	}

	allowed := false
	switch action {
	case views.ActionPassword, views.ActionDelete:
		allowed = actor.CanManage(id)
	case views.ActionPermission:
		allowed = actor.IsAdmin()
	default:
		http.NotFound(w, r)
		return
	}
	if !allowed {
		h.renderDashboard(w, r, http.StatusForbidden, actor, views.DashboardData{Error: internal.ErrInsufficientPermission.Message})
		return
	}

	h.renderConfirm(w, r, http.StatusOK, actor, id, action, "")
}

// ChangePassword handles POST /dashboard/users/{id}/password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, views.ActionPassword, "password", func(actor *coreUser.User, id int64, form url.Values) error {
		return h.Users.ChangePassword(r.Context(), actor, id, user.ChangePasswordDTO{NewPassword: form.Get("new_password")})
	})
}

// ChangePermission handles POST /dashboard/users/{id}/permission
func (h *Handler) ChangePermission(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, views.ActionPermission, "permission", func(actor *coreUser.User, id int64, form url.Values) error {
		return h.Users.ChangePermission(r.Context(), actor, id, user.ChangePermissionDTO{Permission: form.Get("permission")})
	})
}

// DeleteUser handles POST /dashboard/users/{id}/delete. Deleting yourself ends the session.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, views.ActionDelete, "deleted", func(actor *coreUser.User, id int64, form url.Values) error {
		return h.Users.DeleteUser(r.Context(), actor, id)
	})
}

// LogsPage handles GET /logs
func (h *Handler) LogsPage(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	entries, err := h.Logs.ListLogs(r.Context(), actor, auditlog.Query{})
	if err != nil {
		status, msg := h.failure(r, err, "LogsPage")
		h.render(w, r, status, views.LogsPage(views.LogsData{User: actor, Error: msg}))
		return
	}
	h.render(w, r, http.StatusOK, views.LogsPage(views.LogsData{User: actor, Entries: entries}))
}
