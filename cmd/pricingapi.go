package cmd

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/skuwise/pricing-pipeline/internal/app"
	"github.com/skuwise/pricing-pipeline/internal/pricing"
	"github.com/skuwise/pricing-pipeline/pkg/cache"
	"github.com/skuwise/pricing-pipeline/pkg/config"
	"github.com/skuwise/pricing-pipeline/pkg/healthprobe"
	"github.com/skuwise/pricing-pipeline/pkg/httpserver"
	"github.com/spf13/cobra"
)

// l1MaxItems bounds the in-process cache. The catalog is far smaller; the
// headroom keeps admission from evicting hot SKUs.
const l1MaxItems = 100_000

//nolint:gochecknoglobals // Cobra boilerplate
var pricingAPICmd = &cobra.Command{
	Use:   "pricing-api",
	Short: "Start the price decision API",
	Long: `Starts the pricing API: low-latency price lookups served from an
in-process cache, then redis, then a static fallback table. The API never
touches the broker; decisions arrive in the cache via the rules worker.`,
	RunE: runPricingAPI,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(pricingAPICmd)
}

func runPricingAPI(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger("pricing_api")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	redisCache := pricing.NewRedisCache(&pricing.RedisConfig{
		Addr:         cfg.RedisAddr(),
		DB:           cfg.RedisDB,
		TTL:          cfg.RedisTTL,
		PingInterval: cfg.CachePingInterval,
		Logger:       logger,
	})

	l1, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: l1MaxItems * 10,
		MaxItems:    l1MaxItems,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create l1 cache: %w", err)
	}

	service := pricing.NewService(&pricing.ServiceConfig{
		L1:             l1,
		Backend:        redisCache,
		FallbackPrices: cfg.FallbackPrices,
		BackendTTL:     cfg.RedisTTL,
		Logger:         logger,
	})

	service.Warm(context.Background(), service.FallbackSKUs())

	handler := pricing.NewHandler(service, redisCache, logger)

	healthChecker := healthprobe.New("pricing_api",
		healthprobe.NamedCheck{Name: "cache", Check: redisCache.Healthy})

	server := httpserver.New(&httpserver.Config{
		Port:          cfg.PricingAPIPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Mount: func(r chi.Router) {
			r.Route("/api/v1", handler.Mount)
		},
	})

	application := app.New(&app.Options{
		Name:          "pricing-api",
		Logger:        logger,
		HealthChecker: healthChecker,
		HTTPServer:    server,
		Runners:       []app.Runner{redisCache},
		Closers: []app.Closer{
			{Name: "l1-cache", Close: func() error { l1.Close(); return nil }},
			{Name: "redis-cache", Close: redisCache.Close},
		},
	})

	return application.Run()
}
