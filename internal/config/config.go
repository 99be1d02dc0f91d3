package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Geocoder GeocoderConfig
	Redis    RedisConfig
	App      AppConfig
	Service  ServiceConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" required:"true"`
	Host            string        `envconfig:"SERVER_HOST" required:"true"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" required:"true"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" required:"true"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" required:"true"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" required:"true"`
	CORSOrigins     []string      `envconfig:"SERVER_CORS_ORIGINS"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// StoreConfig selects where link records live.
type StoreConfig struct {
	Backend    string `envconfig:"STORE_BACKEND" default:"file"`
	FilePath   string `envconfig:"STORE_FILE_PATH" default:"links_and_locations.json"`
	SQLitePath string `envconfig:"STORE_SQLITE_PATH" default:"geolinks.db"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case BackendFile:
		if c.FilePath == "" {
			return fmt.Errorf("file path cannot be empty for the file backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path cannot be empty for the sqlite backend")
		}
	case BackendPostgres:
	default:
		return fmt.Errorf("invalid store backend: %s (must be one of: file, postgres, sqlite)", c.Backend)
	}
	return nil
}

// DatabaseConfig holds PostgreSQL connection configuration. It is only
// validated when the postgres backend is selected.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" default:"2"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MinConns <= 0 {
		return fmt.Errorf("min connections must be positive")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)", c.MinConns, c.MaxConns)
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("invalid SSL mode: %s (must be one of: disable, require, verify-ca, verify-full)", c.SSLMode)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GeocoderConfig configures address resolution.
type GeocoderConfig struct {
	BaseURL   string        `envconfig:"GEOCODER_BASE_URL" default:"https://nominatim.openstreetmap.org"`
	UserAgent string        `envconfig:"GEOCODER_USER_AGENT" default:"geolinks"`
	Email     string        `envconfig:"GEOCODER_EMAIL"`
	Timeout   time.Duration `envconfig:"GEOCODER_TIMEOUT" default:"10s"`
	CacheTTL  time.Duration `envconfig:"GEOCODER_CACHE_TTL" default:"24h"`
}

// Validate validates the geocoder configuration.
func (c *GeocoderConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base URL: %q", c.BaseURL)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	return nil
}

// RedisConfig configures the optional geocode cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Enabled reports whether a Redis address is configured.
func (c *RedisConfig) Enabled() bool { return c.Addr != "" }

// Validate validates the redis configuration.
func (c *RedisConfig) Validate() error {
	if c.DB < 0 {
		return fmt.Errorf("redis DB index must not be negative")
	}
	return nil
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" required:"true"`   // development, staging, production, test
	LogLevel    string `envconfig:"LOG_LEVEL" required:"true"` // debug, info, warn, error
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// ServiceConfig names the running service in the health check.
type ServiceConfig struct {
	Name    string `envconfig:"SERVICE_NAME" default:"geolinks"`
	Version string `envconfig:"SERVICE_VERSION" default:"dev"`
}

// Validate validates the service configuration.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	return nil
}

type validator interface {
	Validate() error
}

func load(name string, section validator) error {
	if err := envconfig.Process("", section); err != nil {
		return fmt.Errorf("failed to load %s config: %w", name, err)
	}
	if err := section.Validate(); err != nil {
		return fmt.Errorf("invalid %s config: %w", name, err)
	}
	return nil
}

// Load loads configuration from environment variables only.
// .env files are loaded by app.LoadEnv before this runs.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := load("Server", &cfg.Server); err != nil {
		return nil, err
	}
	if err := loadStorage(cfg); err != nil {
		return nil, err
	}
	if err := load("Geocoder", &cfg.Geocoder); err != nil {
		return nil, err
	}
	if err := load("Redis", &cfg.Redis); err != nil {
		return nil, err
	}
	if err := load("Service", &cfg.Service); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadStorage loads only what is needed to open the configured store: the
// Store, Database and App sections. Command-line tools use it so they do not
// need the server settings.
func LoadStorage() (*Config, error) {
	cfg := &Config{}
	if err := loadStorage(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadStorage(cfg *Config) error {
	if err := load("Store", &cfg.Store); err != nil {
		return err
	}

	if err := envconfig.Process("", &cfg.Database); err != nil {
		return fmt.Errorf("failed to load Database config: %w", err)
	}
	if cfg.Store.Backend == BackendPostgres {
		if err := cfg.Database.Validate(); err != nil {
			return fmt.Errorf("invalid Database config: %w", err)
		}
	}

	return load("App", &cfg.App)
}
