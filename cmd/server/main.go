package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/container"
	"go.uber.org/zap"
)

func registerPackages(injector *do.Injector, options *container.Options) {
	do.ProvideValue(injector, options)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.RepositoryPackage(injector)
	container.ShortenerPackage(injector)
	container.AnalyticsPackage(injector)
	container.SafetyPackage(injector)
	container.RateLimitPackage(injector)
	container.PublisherGroupPackage(injector)
	container.HTTPPackage(injector)
}

func newServer(injector *do.Injector, options *container.Options) *http.Server {
	// The API registers its routes on the router when first invoked.
	_ = do.MustInvoke[huma.API](injector)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", options.Port),
		Handler:           do.MustInvoke[*chi.Mux](injector),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		if err := options.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, "invalid options:", err)
			os.Exit(2)
		}

		injector := do.New()
		registerPackages(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)

		var server *http.Server

		hooks.OnStart(func() {
			server = newServer(injector, options)

			logger.Info("server starting",
				zap.String("addr", server.Addr),
				zap.String("storage", options.Storage),
				zap.Bool("redis", options.RedisEnabled()),
				zap.Bool("events", options.Events),
				zap.Bool("rateLimit", options.RateLimit),
				zap.String("baseUrl", options.PublicBaseURL()),
			)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			grace := options.ShutdownGrace()
			logger.Info("draining requests", zap.Duration("grace", grace))

			ctx, cancel := context.WithTimeout(context.Background(), grace)
			defer cancel()

			if server != nil {
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server shutdown error", zap.Error(err))
				}
			}

			// Closes publishers, pools and clients in reverse creation order.
			if err := injector.Shutdown(); err != nil {
				logger.Error("service shutdown error", zap.Error(err))
			}

			logger.Info("shutdown complete")
		})
	})

	cli.Run()
}
