package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/admin-console/internal"
	"github.com/frahmantamala/admin-console/internal/auditlog"
	"github.com/frahmantamala/admin-console/internal/auth"
	"github.com/frahmantamala/admin-console/internal/backend"
	"github.com/frahmantamala/admin-console/internal/core/events"
	"github.com/frahmantamala/admin-console/internal/transport/rest"
	"github.com/frahmantamala/admin-console/internal/transport/swagger"
	"github.com/frahmantamala/admin-console/internal/user"
	"github.com/frahmantamala/admin-console/internal/web"
	"github.com/frahmantamala/admin-console/pkg/logger"
	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server serving the JSON API and the console pages`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config  *internal.Config
	Backend backend.Client
	Close   func() error
	Events  *events.EventBus
	Router  *chi.Mux
	Logger  *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "backend", deps.Config.Backend.Driver)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		if err := deps.Events.Wait(ctx); err != nil {
			deps.Logger.Error("Event handlers did not finish", "error", err)
		}
		if err := deps.Close(); err != nil {
			deps.Logger.Error("Backend close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config
	timeout := cfg.Backend.Timeout

	openapiPath := cfg.Server.OpenAPIPath
	if openapiPath == "" {
		openapiPath = "./api/openapi.yml"
	}
	doc, err := swagger.Load(context.Background(), openapiPath)
	if err != nil {
		return err
	}

	cookie := auth.CookieConfig{Name: cfg.Security.GetCookieName(), Secure: cfg.Security.CookieSecure}
	tokenGen := auth.NewJWTTokenGenerator(cfg.Security.SessionSecret, cfg.Security.SessionDuration)

	userService := user.NewService(deps.Backend, deps.Events, timeout, deps.Logger)
	authService := auth.NewService(deps.Backend, tokenGen, userService, timeout, deps.Logger)
	logService := auditlog.NewService(deps.Backend, timeout, deps.Logger)

	rest.RegisterAllRoutes(deps.Router, rest.Handlers{
		Auth:    auth.NewHandler(authService, cookie),
		Users:   user.NewHandler(userService),
		Logs:    auditlog.NewHandler(logService),
		Pages:   web.NewHandler(authService, userService, logService, cookie),
		Health:  rest.NewHealthHandler(deps.Backend, cfg.Backend.Driver),
		OpenAPI: doc,
	}, cfg.Server.AllowedOrigins, deps.Logger)
	return nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Logging.Env, config.Logging.Level)
	lg := logger.L()

	client, closeFn, err := initBackend(config.Backend, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backend: %w", err)
	}

	bus := events.NewEventBus(lg)
	events.SubscribeAuditLog(bus, lg)

	return &Dependencies{
		Config:  config,
		Backend: client,
		Close:   closeFn,
		Events:  bus,
		Router:  chi.NewRouter(),
		Logger:  lg,
	}, nil
}
