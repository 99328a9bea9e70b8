package rest

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/frahmantamala/admin-console/internal/auditlog"
	"github.com/frahmantamala/admin-console/internal/auth"
	"github.com/frahmantamala/admin-console/internal/transport/middleware"
	"github.com/frahmantamala/admin-console/internal/transport/swagger"
	"github.com/frahmantamala/admin-console/internal/user"
	"github.com/frahmantamala/admin-console/internal/web"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers groups everything RegisterAllRoutes mounts. Nil members are skipped.
type Handlers struct {
	Auth    *auth.Handler
	Users   *user.Handler
	Logs    *auditlog.Handler
	Pages   *web.Handler
	Health  *HealthHandler
	OpenAPI *swagger.Document
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, allowedOrigins string, logger *slog.Logger) {
	// Apply global middleware
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.CORS(splitOrigins(allowedOrigins)))

	// Serve OpenAPI spec at root (outside API prefix)
	if h.OpenAPI != nil {
		router.Method(http.MethodGet, "/openapi.yml", h.OpenAPI)
		router.Handle("/swagger/*", swagger.Handler())
	}

	if h.Health != nil {
		router.Get("/api/v1/health", h.Health.healthCheckHandler)
		router.Get("/api/v1/ping", h.Health.pingHandler)
	}

	if h.Auth != nil {
		router.Route("/api", func(r chi.Router) {
			r.Post("/auth/login", h.Auth.Login)
			r.Post("/auth/logout", h.Auth.Logout)

			// Protected routes that require a verified session
			r.Group(func(pr chi.Router) {
				pr.Use(h.Auth.AuthMiddleware)

				pr.Get("/auth/me", h.Auth.Me)
				pr.With(middleware.RequireAdmin).Post("/auth/register", h.Auth.Register)

				if h.Logs != nil {
					pr.Get("/logs", h.Logs.ListLogs)
				}

				if h.Users != nil {
					pr.Route("/users", func(ur chi.Router) {
						ur.Get("/", h.Users.ListUsers)
						ur.With(middleware.RequireAdmin).Post("/", h.Users.CreateUser)
						ur.Put("/{id}/password", h.Users.ChangePassword)
						ur.With(middleware.RequireAdmin).Put("/{id}/permission", h.Users.ChangePermission)
						ur.Delete("/{id}", h.Users.DeleteUser)
					})
				}
			})
		})
	}

	if h.Pages != nil {
		h.Pages.Register(router)
	}
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
