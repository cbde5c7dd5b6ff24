package container

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/safety"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"go.uber.org/zap"
)

// RepositoryPackage provides the short URL repository and the click store
// for the configured backend. With Redis enabled, code lookups of the
// memory and postgres backends are cached.
func RepositoryPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*store.MemoryStore, error) {
		return store.NewMemoryStore(), nil
	})

	do.Provide(i, func(i *do.Injector) (*store.RedisStore, error) {
		client, err := do.Invoke[*redis.Client](i)
		if err != nil {
			return nil, err
		}

		return store.NewRedisStore(client), nil
	})

	do.Provide(i, func(i *do.Injector) (shortener.Repository, error) {
		opts := do.MustInvoke[*Options](i)

		var repo shortener.Repository

		switch opts.Storage {
		case StoragePostgres:
			repo = store.NewPostgresStore(do.MustInvoke[*pgxpool.Pool](i))
		case StorageRedis:
			return do.MustInvoke[*store.RedisStore](i), nil
		default:
			repo = do.MustInvoke[*store.MemoryStore](i)
		}

		if opts.RedisEnabled() {
			repo = store.NewRedisCacheRepository(repo, do.MustInvoke[*redis.Client](i), opts.cacheTTL())
		}

		return repo, nil
	})

	do.Provide(i, func(i *do.Injector) (analytics.Store, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.Storage {
		case StoragePostgres:
			return store.NewClickPostgresStore(do.MustInvoke[*pgxpool.Pool](i)), nil
		case StorageRedis:
			return do.MustInvoke[*store.RedisStore](i), nil
		default:
			return do.MustInvoke[*store.MemoryStore](i), nil
		}
	})
}

// ShortenerPackage provides the reservation registry, the code generator
// and the shortening service.
func ShortenerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*shortener.ReservationRegistry, error) {
		opts := do.MustInvoke[*Options](i)

		codes := splitList(opts.ReservedCodes)
		if len(codes) == 0 {
			codes = shortener.DefaultReservedCodes
		}

		return shortener.NewReservationRegistry(codes), nil
	})

	do.Provide(i, func(i *do.Injector) (shortener.CodeGenerator, error) {
		return shortener.NewCodeGenerator(shortener.GeneratedCodeLength)
	})

	do.Provide(i, func(i *do.Injector) (*shortener.Service, error) {
		return shortener.NewService(
			do.MustInvoke[shortener.Repository](i),
			do.MustInvoke[*shortener.ReservationRegistry](i),
			do.MustInvoke[shortener.CodeGenerator](i),
		), nil
	})
}

// AnalyticsPackage provides the click recorder, the stats service and the
// analytics event publishers.
func AnalyticsPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*analytics.Recorder, error) {
		return analytics.NewRecorder(
			do.MustInvoke[analytics.Store](i),
			do.MustInvoke[shortener.Repository](i),
		), nil
	})

	do.Provide(i, func(i *do.Injector) (*analytics.StatsService, error) {
		return analytics.NewStatsService(
			do.MustInvoke[*shortener.Service](i),
			do.MustInvoke[analytics.Store](i),
		), nil
	})

	do.Provide(i, func(i *do.Injector) (*analytics.Publishers, error) {
		opts := do.MustInvoke[*Options](i)
		if !opts.Events {
			return analytics.NoopPublishers(), nil
		}

		group, err := do.Invoke[*messaging.PublisherGroup](i)
		if err != nil {
			return nil, err
		}

		return analytics.NewPublishers(group), nil
	})
}

// SafetyPackage provides the URL safety checker: the domain blacklist,
// cached in Redis when available, bounded by the configured timeout.
func SafetyPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (safety.Checker, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		domains := splitList(opts.BlockedDomains)
		if len(domains) == 0 {
			domains = safety.DefaultBlockedDomains
		}

		blacklist := safety.NewBlacklist(domains)
		logger.Debug("safety blacklist loaded", zap.Int("domains", blacklist.Len()))

		var checker safety.Checker = blacklist
		if opts.RedisEnabled() {
			checker = safety.NewCachedChecker(checker, do.MustInvoke[*redis.Client](i), safety.MaliciousDomainTTL)
		}

		return safety.WithTimeout(checker, opts.safetyTimeout()), nil
	})
}

// RateLimitPackage provides the rate limit store, the policy limiter and
// the brute force guard. Counters live in Redis when it is configured so
// they are shared across instances.
func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (ratelimit.Store, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.RedisEnabled() {
			return store.NewRateLimitRedisStore(do.MustInvoke[*redis.Client](i)), nil
		}

		return store.NewRateLimitMemoryStore(), nil
	})

	do.Provide(i, func(i *do.Injector) (*ratelimit.PolicyLimiter, error) {
		return ratelimit.NewPolicyLimiter(do.MustInvoke[ratelimit.Store](i), ratelimit.DefaultPolicy()), nil
	})

	do.Provide(i, func(i *do.Injector) (*ratelimit.BruteForceGuard, error) {
		return ratelimit.NewBruteForceGuard(do.MustInvoke[ratelimit.Store](i), ratelimit.DefaultBruteForceConfig()), nil
	})
}
