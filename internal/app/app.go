package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/geolinks/internal/config"
	"github.com/sundayezeilo/geolinks/internal/geocode"
	"github.com/sundayezeilo/geolinks/internal/geolink"
	"github.com/sundayezeilo/geolinks/internal/geolink/filestore"
	"github.com/sundayezeilo/geolinks/internal/geolink/pgstore"
	"github.com/sundayezeilo/geolinks/internal/geolink/sqlitestore"
	"github.com/sundayezeilo/geolinks/internal/server"
)

// App holds the application dependencies and configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   geolink.Store
	Server  *server.Server
	Handler *geolink.Handler

	closers []func() error
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := NewLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Service.Version,
		"store", cfg.Store.Backend,
	)

	a := &App{Config: cfg, Logger: logger}

	store, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, closeStore)

	geocoder, err := a.setupGeocoder(ctx)
	if err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("failed to set up geocoder: %w", err)
	}

	svc := geolink.NewService(store, &geolink.ServiceConfig{
		Geocoder:       geocoder,
		GeocodeTimeout: cfg.Geocoder.Timeout,
		Logger:         logger,
	})
	a.Handler = geolink.NewHandler(geolink.HandlerConfig{
		Service: svc,
		Logger:  logger,
	})

	a.Server = server.New(cfg, logger, a.Handler)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"geocode_cache", cfg.Redis.Enabled(),
	)

	return a, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting", "port", a.Config.Server.Port)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown releases every resource opened by New, in reverse order.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	return errors.Join(errs...)
}

func (a *App) setupGeocoder(ctx context.Context) (geolink.Geocoder, error) {
	cfg := a.Config

	nominatim, err := geocode.NewNominatim(geocode.NominatimConfig{
		BaseURL:   cfg.Geocoder.BaseURL,
		UserAgent: cfg.Geocoder.UserAgent,
		Email:     cfg.Geocoder.Email,
		Timeout:   cfg.Geocoder.Timeout,
		Logger:    a.Logger,
	})
	if err != nil {
		return nil, err
	}

	if !cfg.Redis.Enabled() {
		return nominatim, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, client.Close)

	// An unreachable cache is not fatal: Cached bypasses it per lookup.
	if err := client.Ping(ctx).Err(); err != nil {
		a.Logger.Warn("redis ping failed, geocode cache degraded",
			"addr", cfg.Redis.Addr,
			"error", err.Error(),
		)
	} else {
		a.Logger.Info("geocode cache connected", "addr", cfg.Redis.Addr)
	}

	return geocode.NewCached(nominatim, geocode.NewRedisCache(client, cfg.Geocoder.CacheTTL), a.Logger), nil
}

// OpenStore opens the backend named by cfg.Store.Backend and makes sure its
// schema exists. The returned func releases the backend's resources.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (geolink.Store, func() error, error) {
	switch cfg.Store.Backend {
	case config.BackendFile:
		store, err := filestore.New(cfg.Store.FilePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using file store", "path", cfg.Store.FilePath)
		return store, func() error { return nil }, nil

	case config.BackendSQLite:
		db, err := sqlitestore.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store, err := sqlitestore.New(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("using sqlite store", "path", cfg.Store.SQLitePath)
		return store, db.Close, nil

	case config.BackendPostgres:
		pool, err := connectDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := pgstore.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		closePool := func() error {
			pool.Close()
			logger.Info("database connection closed")
			return nil
		}
		return pgstore.New(pool), closePool, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// LoadEnv loads a .env file only in non-production environments.
func LoadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// NewLogger creates a structured JSON logger at the given level.
func NewLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// connectDatabase establishes a connection to the PostgreSQL database.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}
