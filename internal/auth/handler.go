package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/admin-console/internal"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
	"github.com/frahmantamala/admin-console/internal/transport"
	"github.com/frahmantamala/admin-console/pkg/logger"
)

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO) (*Session, error)
	Authenticate(ctx context.Context, token string) (*coreUser.User, error)
	Register(ctx context.Context, actor *coreUser.User, dto RegisterDTO) (*RegisterResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Cookie  CookieConfig
}

func NewHandler(svc ServiceAPI, cookie CookieConfig) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Cookie:      cookie,
	}
}

// Login handles POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err, "Login")
		return
	}

	session, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err, "Login")
		return
	}

	h.Cookie.Set(w, session)
	h.WriteJSON(w, http.StatusOK, session)
}

// Register handles POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrInvalidSession, "Register")
		return
	}

	var dto RegisterDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err, "Register")
		return
	}

	resp, err := h.Service.Register(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, r, err, "Register")
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// Logout handles POST /api/auth/logout. The token is stateless, so logout only drops the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Cookie.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := internal.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrInvalidSession, "Me")
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// AuthMiddleware resolves the session from the Authorization header or the
// session cookie and puts the backend-verified user on the context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractToken(r, h.Cookie.CookieName())
		if token == "" {
			h.HandleServiceError(w, r, internal.ErrInvalidSession, "AuthMiddleware")
			return
		}

		u, err := h.Service.Authenticate(r.Context(), token)
		if err != nil {
			h.HandleServiceError(w, r, err, "AuthMiddleware")
			return
		}

		ctx := internal.ContextWithUser(r.Context(), u)
		ctx = logger.With(ctx, "user_id", u.ID, "permission", u.Permission)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
