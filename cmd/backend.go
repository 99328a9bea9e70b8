package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/admin-console/internal"
	"github.com/frahmantamala/admin-console/internal/backend"
	"github.com/frahmantamala/admin-console/internal/backend/memory"
	"github.com/frahmantamala/admin-console/internal/backend/postgres"
	"github.com/frahmantamala/admin-console/internal/backend/supabase"
	"github.com/frahmantamala/admin-console/internal/user"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func noClose() error { return nil }

// initBackend builds the client for the configured driver and the function that releases it.
func initBackend(cfg internal.BackendConfig, lg *slog.Logger) (backend.Client, func() error, error) {
	switch cfg.Driver {
	case internal.BackendDriverPostgres:
		sdb, err := initDB(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		gdb, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: sdb.DB}), &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if err != nil {
			_ = sdb.Close()
			return nil, nil, fmt.Errorf("failed to open gorm session: %w", err)
		}
		return postgres.NewClient(gdb, sdb, lg), sdb.Close, nil

	case internal.BackendDriverSupabase:
		client := supabase.NewClient(supabase.Config{
			URL:            cfg.Supabase.URL,
			ServiceRoleKey: cfg.Supabase.ServiceRoleKey,
			Timeout:        cfg.Timeout,
		}, lg)
		return client, noClose, nil

	case internal.BackendDriverMemory:
		lg.Warn("using the in-memory backend; data is lost on restart")
		client := memory.New()
		if err := seedMemoryAdmin(context.Background(), client, cfg, lg); err != nil {
			return nil, nil, err
		}
		return client, noClose, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend driver %q", cfg.Driver)
	}
}

// seedMemoryAdmin creates the configured first admin so a fresh in-memory
// store can be signed in to.
func seedMemoryAdmin(ctx context.Context, client backend.Client, cfg internal.BackendConfig, lg *slog.Logger) error {
	if err := cfg.Memory.Validate(); err != nil {
		return err
	}
	svc := user.NewService(client, nil, cfg.Timeout, lg)
	id, err := svc.CreateInitialAdmin(ctx, cfg.Memory.AdminUsername, cfg.Memory.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to seed memory admin: %w", err)
	}
	lg.Info("seeded memory backend admin", "user_id", id, "username", cfg.Memory.AdminUsername)
	return nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
