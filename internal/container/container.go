// Package container wires the service with samber/do. Each XxxPackage
// function registers lazy providers; nothing is built until invoked.
package container

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/store/migrations"
	"go.uber.org/zap"
)

// shutdownFunc adapts a close function to do.Shutdownable.
type shutdownFunc func() error

func (f shutdownFunc) Shutdown() error {
	return f()
}

// onShutdown registers fn to run when the injector shuts down. Later
// registrations run first.
func onShutdown(i *do.Injector, name string, fn func() error) {
	do.ProvideNamedValue(i, name, shutdownFunc(fn))
	_ = do.MustInvokeNamed[shutdownFunc](i, name)
}

// LoggerPackage provides the root *zap.Logger.
func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		cfg := zap.NewDevelopmentConfig()
		if opts.LogFormat == LogFormatJSON {
			cfg = zap.NewProductionConfig()
		}

		level, err := zap.ParseAtomicLevel(opts.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}

		cfg.Level = level

		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}

		onShutdown(i, "logger.sync", func() error {
			_ = logger.Sync()

			return nil
		})

		return logger, nil
	})
}

// RedisPackage provides a *redis.Client. Invoking it without a configured
// address is an error; callers check Options.RedisEnabled first.
func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*redis.Client, error) {
		opts := do.MustInvoke[*Options](i)
		if !opts.RedisEnabled() {
			return nil, fmt.Errorf("redis is not configured")
		}

		client := redis.NewClient(&redis.Options{
			Addr: opts.RedisAddr,
		})

		onShutdown(i, "redis.close", client.Close)

		return client, nil
	})
}

// PostgresPackage provides a *pgxpool.Pool and applies migrations when enabled.
func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*pgxpool.Pool, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if opts.Migrate {
			if err := migrate(opts.DatabaseURL, logger); err != nil {
				return nil, err
			}
		}

		pool, err := pgxpool.New(context.Background(), opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		onShutdown(i, "postgres.close", func() error {
			pool.Close()

			return nil
		})

		return pool, nil
	})
}

func migrate(databaseURL string, logger *zap.Logger) error {
	m, err := migrations.New(databaseURL, logger)
	if err != nil {
		return err
	}

	upErr := m.Up()

	if err := m.Close(); err != nil {
		logger.Warn("close migrator", zap.Error(err))
	}

	return upErr
}
