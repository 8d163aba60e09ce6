// Package bootstrap assembles the infrastructure of the CDN from configuration:
// the database, the content index cache, the storage backend and the sweep locks.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prn-tf/amethyst-cdn/internal/cache/memory"
	rediscache "github.com/prn-tf/amethyst-cdn/internal/cache/redis"
	"github.com/prn-tf/amethyst-cdn/internal/config"
	"github.com/prn-tf/amethyst-cdn/internal/lock"
	"github.com/prn-tf/amethyst-cdn/internal/repository"
	"github.com/prn-tf/amethyst-cdn/internal/repository/cached"
	"github.com/prn-tf/amethyst-cdn/internal/repository/postgres"
	"github.com/prn-tf/amethyst-cdn/internal/repository/sqlite"
	"github.com/prn-tf/amethyst-cdn/internal/storage"
	"github.com/prn-tf/amethyst-cdn/internal/storage/filesystem"
	"github.com/prn-tf/amethyst-cdn/internal/storage/s3"
)

// Database is a migratable connection to the index store.
type Database interface {
	repository.DatabaseHealth

	// Migrate applies all pending migrations.
	Migrate(ctx context.Context) error

	// Migrator returns a golang-migrate instance for manual migration commands.
	Migrator() (*migrate.Migrate, error)
}

// OpenDatabase connects to the configured driver and returns its repositories.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (Database, *repository.Repositories, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.ConfigFrom(cfg), logger)
		if err != nil {
			return nil, nil, err
		}
		return db, sqlite.NewRepositories(db), nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return db, postgres.NewRepositories(db), nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// NewBackend creates the configured storage backend.
func NewBackend(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (storage.Backend, error) {
	switch cfg.Backend {
	case "filesystem":
		return filesystem.NewBackend(cfg.DataDir, logger)

	case "s3":
		client, err := s3.NewClient(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return s3.NewBackend(client, cfg.S3.Bucket, cfg.S3.Prefix, logger), nil

	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", cfg.Backend)
	}
}

// App holds the infrastructure shared by the server and the admin CLI.
type App struct {
	DB      Database
	Repos   *repository.Repositories
	Backend storage.Backend
	Locker  lock.Locker

	// Redis is nil unless redis.enabled is set.
	Redis *goredis.Client

	logger zerolog.Logger
}

// New opens every dependency named by cfg. On failure, whatever was already
// opened is closed again.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	app := &App{logger: logger}

	db, repos, err := OpenDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	app.DB = db

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	app.Backend, err = NewBackend(ctx, cfg.Storage, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}

	var cache repository.Cache
	if cfg.Redis.Enabled {
		app.Redis, err = rediscache.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		cache = rediscache.NewCache(app.Redis, cfg.Redis.KeyPrefix, cfg.Cache.TTL)
		app.Locker = lock.NewRedisLocker(app.Redis, cfg.Redis.KeyPrefix)
	} else {
		cache = memory.NewCache(cfg.Cache.Size, cfg.Cache.TTL)
		app.Locker = lock.NewMemoryLocker()
	}

	app.Repos = &repository.Repositories{
		User:      repos.User,
		Namespace: repos.Namespace,
		Content:   cached.NewContentRepository(repos.Content, cache, cfg.Cache.TTL, logger),
	}

	logger.Info().
		Str("database", cfg.Database.Driver).
		Str("storage", cfg.Storage.Backend).
		Bool("redis", cfg.Redis.Enabled).
		Msg("infrastructure ready")

	return app, nil
}

// Close releases the redis client and the database.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}
