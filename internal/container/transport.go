package container

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/analytics"
	analyticsstore "github.com/serroba/shortlink/internal/analytics/store"
	"github.com/serroba/shortlink/internal/handlers"
	"github.com/serroba/shortlink/internal/health"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/middleware"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/safety"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// ConsumerGroupName is the Redis stream consumer group of the audit consumer.
const ConsumerGroupName = "shortlink-audit"

// PublisherGroupPackage provides a *messaging.PublisherGroup publishing to
// Redis streams.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*redis.Client](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client:     client,
				Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
			},
			messaging.NewZapLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher, logger), nil
	})
}

// ConsumerGroupPackage provides a *messaging.ConsumerGroup that writes
// analytics events to the audit log.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		client := do.MustInvoke[*redis.Client](i)
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        client,
				Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
				ConsumerGroup: ConsumerGroupName,
			},
			messaging.NewZapLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create subscriber: %w", err)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(analytics.NewConsumers(subscriber, analyticsstore.NewAuditLog(logger), logger)...)

		return group, nil
	})
}

// HTTPPackage provides the router, the huma API with its middlewares and
// routes, and the URL handler.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(i, func(i *do.Injector) (*handlers.URLHandler, error) {
		opts := do.MustInvoke[*Options](i)

		return handlers.NewURLHandler(
			do.MustInvoke[*shortener.Service](i),
			do.MustInvoke[*analytics.Recorder](i),
			do.MustInvoke[*analytics.StatsService](i),
			do.MustInvoke[safety.Checker](i),
			do.MustInvoke[*analytics.Publishers](i),
			opts.PublicBaseURL(),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(i, func(i *do.Injector) (*health.Handler, error) {
		opts := do.MustInvoke[*Options](i)
		checkers := make(map[string]health.Checker)

		if opts.RedisEnabled() {
			checkers["redis"] = health.NewRedisChecker(do.MustInvoke[*redis.Client](i))
		}

		if opts.Storage == StoragePostgres {
			checkers["postgres"] = health.NewPostgresChecker(do.MustInvoke[*pgxpool.Pool](i))
		}

		return health.NewHandler(checkers), nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)

		api := humachi.New(router, huma.DefaultConfig("Shortlink", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(api))

		if opts.RateLimit {
			api.UseMiddleware(
				middleware.RateLimit(api, do.MustInvoke[*ratelimit.PolicyLimiter](i), logger),
				middleware.BruteForce(api, do.MustInvoke[*ratelimit.BruteForceGuard](i), logger),
			)
		}

		health.RegisterRoutes(api, do.MustInvoke[*health.Handler](i))
		handlers.RegisterRoutes(api, do.MustInvoke[*handlers.URLHandler](i))

		return api, nil
	})
}
