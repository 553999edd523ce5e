package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"property-valuation/cache"
	"property-valuation/client/pricing"
	"property-valuation/config"
	"property-valuation/metrics"
	"property-valuation/services"
	"property-valuation/utils"
)

// app holds the wired pipeline shared by all commands.
type app struct {
	cfg      *config.Config
	logger   *utils.Logger
	metrics  *metrics.Metrics
	client   *pricing.Client
	valuator *services.Valuator
	service  *services.PricingService
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New("property_valuation"),
	}

	seriesCache, err := a.newSeriesCache(ctx)
	if err != nil {
		return nil, err
	}

	a.client = pricing.New(cfg.PricingBaseURL, cfg.PricingEndpoint, logger,
		pricing.WithTimeout(cfg.PricingTimeout()),
		pricing.WithMetrics(a.metrics),
	)
	repairer := services.NewRepairer(logger)
	a.valuator = services.NewValuator(a.client, repairer, seriesCache, logger,
		services.WithCacheTTL(cfg.CacheTTL()),
		services.WithValuatorMetrics(a.metrics),
	)
	a.service = services.NewPricingService(a.client, repairer, a.valuator, logger)
	return a, nil
}

func (a *app) newSeriesCache(ctx context.Context) (cache.SeriesCache, error) {
	switch strings.ToLower(a.cfg.CacheBackend) {
	case "", "memory":
		a.logger.Debug("[app] Using in-memory series cache (max %d entries)", a.cfg.CacheMaxEntries)
		return cache.NewMemoryCache(a.cfg.CacheMaxEntries, a.cfg.CacheTTL()), nil
	case "redis":
		rc := cache.NewRedisCache(
			cache.NewRedisClient(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB),
			a.cfg.CachePrefix, a.cfg.CacheTTL(),
		)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("redis cache at %s: %w", a.cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, rc.Close)
		a.logger.Info("[app] Using Redis series cache at %s", a.cfg.RedisAddr)
		return rc, nil
	default:
		return nil, fmt.Errorf("unknown CACHE_BACKEND %q (want memory or redis)", a.cfg.CacheBackend)
	}
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("[app] Close: %v", err)
		}
	}
	a.logger.Sync()
}
