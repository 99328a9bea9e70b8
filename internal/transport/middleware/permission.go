package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/frahmantamala/admin-console/internal"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
	"github.com/frahmantamala/admin-console/pkg/logger"
)

// RequirePermission lets the request through when the session user holds one
// of the given permissions. It must run after the auth middleware.
func RequirePermission(permissions ...coreUser.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := internal.UserFromContext(r.Context())
			if !ok {
				writeAppError(w, internal.ErrInvalidSession)
				return
			}

			for _, p := range permissions {
				if u.Permission == p {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.From(r.Context()).Warn("access denied: insufficient permission",
				"user_id", u.ID,
				"permission", u.Permission,
				"required", permissions)
			writeAppError(w, internal.ErrInsufficientPermission)
		})
	}
}

// RequireAdmin is RequirePermission(admin).
func RequireAdmin(next http.Handler) http.Handler {
	return RequirePermission(coreUser.PermissionAdmin)(next)
}

func writeAppError(w http.ResponseWriter, appErr *internal.AppError) {
	status, body := appErr.ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
