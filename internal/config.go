package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendDriverPostgres = "postgres"
	BackendDriverSupabase = "supabase"
	BackendDriverMemory   = "memory"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"http_server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Security SecurityConfig `mapstructure:"security" validate:"required"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type BackendConfig struct {
	Driver   string         `mapstructure:"driver" validate:"required,oneof=postgres supabase memory"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	Database DatabaseConfig `mapstructure:"database"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Memory   MemoryConfig   `mapstructure:"memory"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type SupabaseConfig struct {
	URL            string `mapstructure:"url" validate:"required_if=Driver supabase,url"`
	ServiceRoleKey string `mapstructure:"service_role_key" validate:"required_if=Driver supabase"`
}

// MemoryConfig holds the admin created when the in-memory backend starts.
// The store lives inside the server process, so it cannot be seeded from outside.
type MemoryConfig struct {
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
}

type SecurityConfig struct {
	SessionSecret   string        `mapstructure:"session_secret" validate:"required,min=32"`
	SessionDuration time.Duration `mapstructure:"session_duration" validate:"required,min=1m"`
	CookieName      string        `mapstructure:"cookie_name"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`
}

type LoggingConfig struct {
	Env    string `mapstructure:"env"`
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

// LoadConfigFromEnv builds the configuration from plain environment variables,
// used for container deployments where no config.yml is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", ""),
			OpenAPIPath:       getEnv("OPENAPI_PATH", "./api/openapi.yml"),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		},
		Backend: BackendConfig{
			Driver:  getEnv("BACKEND_DRIVER", BackendDriverPostgres),
			Timeout: getEnvAsDuration("BACKEND_TIMEOUT", 5*time.Second),
			Database: DatabaseConfig{
				Source:          getEnv("DATABASE_URL", ""),
				MaxOpenConns:    getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 10),
				MaxIdleConns:    getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 5),
				ConnMaxLifetime: getEnvAsDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
				ConnMaxIdleTime: getEnvAsDuration("DATABASE_CONN_MAX_IDLE_TIME", 5*time.Minute),
			},
			Supabase: SupabaseConfig{
				URL:            getEnv("SUPABASE_URL", ""),
				ServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			},
			Memory: MemoryConfig{
				AdminUsername: getEnv("MEMORY_ADMIN_USERNAME", "admin"),
				AdminPassword: getEnv("MEMORY_ADMIN_PASSWORD", ""),
			},
		},
		Security: SecurityConfig{
			SessionSecret:   getEnv("SESSION_SECRET", ""),
			SessionDuration: getEnvAsDuration("SESSION_DURATION", 8*time.Hour),
			CookieName:      getEnv("SESSION_COOKIE_NAME", "admin_session"),
			CookieSecure:    getEnvAsBool("SESSION_COOKIE_SECURE", true),
		},
		Logging: LoggingConfig{
			Env:    getEnv("APP_ENV", "production"),
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Backend.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("backend config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *BackendConfig) Validate() error {
	switch c.Driver {
	case BackendDriverPostgres:
		if c.Database.Source == "" {
			return errors.New("database.source is required for the postgres driver")
		}
		return c.Database.Validate()
	case BackendDriverSupabase:
		return c.Supabase.Validate()
	case BackendDriverMemory:
		return c.Memory.Validate()
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SupabaseConfig) Validate() error {
	if c.URL == "" {
		return errors.New("supabase.url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid supabase.url %q", c.URL)
	}
	if c.ServiceRoleKey == "" {
		return errors.New("supabase.service_role_key is required")
	}
	return nil
}

func (c *MemoryConfig) Validate() error {
	if strings.TrimSpace(c.AdminUsername) == "" {
		return errors.New("memory.admin_username is required for the memory driver")
	}
	if c.AdminPassword == "" {
		return errors.New("memory.admin_password is required for the memory driver")
	}
	return nil
}

func (c *SecurityConfig) Validate() error {
	if len(c.SessionSecret) < 32 {
		return errors.New("session secret must be at least 32 characters")
	}
	if c.SessionDuration < time.Minute {
		return errors.New("session_duration must be at least 1m")
	}
	return nil
}

func (c *SecurityConfig) GetCookieName() string {
	if c.CookieName == "" {
		return "admin_session"
	}
	return c.CookieName
}
