// Command consumer reads analytics events from Redis streams and writes them
// to the audit log. It shares the server's SERVICE_* configuration.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/container"
	"github.com/serroba/shortlink/internal/messaging"
	"go.uber.org/zap"
)

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		if !options.RedisEnabled() {
			fmt.Fprintln(os.Stderr, "the consumer needs a redis address (--redis-addr or SERVICE_REDIS_ADDR)")
			os.Exit(2)
		}

		if err := options.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, "invalid options:", err)
			os.Exit(2)
		}

		injector := do.New()
		do.ProvideValue(injector, options)
		container.LoggerPackage(injector)
		container.RedisPackage(injector)
		container.ConsumerGroupPackage(injector)

		logger := do.MustInvoke[*zap.Logger](injector)
		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			group := do.MustInvoke[*messaging.ConsumerGroup](injector)

			if err := group.Start(ctx); err != nil {
				logger.Fatal("failed to start consumer group", zap.Error(err))
			}

			logger.Info("consuming analytics events",
				zap.String("redisAddr", options.RedisAddr),
				zap.String("consumerGroup", container.ConsumerGroupName),
			)

			<-ctx.Done()
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")
			cancel()

			if err := injector.Shutdown(); err != nil {
				logger.Error("shutdown error", zap.Error(err))
			}
		})
	})

	cli.Run()
}
