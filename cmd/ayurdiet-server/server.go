package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ayurdiet/ayurdiet/internal/config"
	"github.com/ayurdiet/ayurdiet/internal/domain/catalog"
	"github.com/ayurdiet/ayurdiet/internal/domain/dietchart"
	"github.com/ayurdiet/ayurdiet/internal/platform/auth"
	"github.com/ayurdiet/ayurdiet/internal/platform/cache"
	"github.com/ayurdiet/ayurdiet/internal/platform/db"
	"github.com/ayurdiet/ayurdiet/internal/platform/middleware"
	"github.com/ayurdiet/ayurdiet/internal/platform/proposer"
	"github.com/ayurdiet/ayurdiet/internal/platform/realtime"
)

const version = "0.1.0"

// cacheLayer is the shared view cache plus the invalidation path writes
// take. With Redis, invalidations are also published for other instances.
type cacheLayer struct {
	store       cache.Store
	invalidator cache.Invalidator
	redis       *redis.Client
}

// newCacheLayer connects to Redis when configured and falls back to an
// in-process store. local receives invalidations when there is no Redis;
// with Redis it is fed by the subscriber instead.
func newCacheLayer(ctx context.Context, cfg *config.Config, local cache.Invalidator) (*cacheLayer, error) {
	if cfg.RedisURL == "" {
		mem := cache.NewMemoryStore()
		mem.StartCleanup(ctx, time.Minute)
		return &cacheLayer{
			store:       mem,
			invalidator: cache.Fanout{cache.StoreInvalidator(mem), local},
		}, nil
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	store := cache.NewRedisStore(client)
	return &cacheLayer{
		store:       store,
		invalidator: cache.Fanout{cache.StoreInvalidator(store), cache.NewRedisPublisher(client, "")},
		redis:       client,
	}, nil
}

func (l *cacheLayer) Close() {
	if l.redis != nil {
		l.redis.Close()
	}
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	logger := newLogger(cfg == nil || cfg.IsDev())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Cache and realtime invalidation
	hub := realtime.NewHub(logger)
	caches, err := newCacheLayer(ctx, cfg, hub)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer caches.Close()
	if caches.redis != nil {
		go func() {
			if err := cache.Subscribe(ctx, caches.redis, "", hub, logger); err != nil {
				logger.Error().Err(err).Msg("invalidation subscriber stopped")
			}
		}()
		logger.Info().Msg("connected to redis")
	}

	// Plan proposer
	var prop dietchart.Proposer
	if cfg.ProposerURL != "" {
		prop = proposer.NewClient(proposer.Config{
			BaseURL:    cfg.ProposerURL,
			APIKey:     cfg.ProposerAPIKey,
			Timeout:    cfg.ProposerTimeout(),
			RetryCount: 2,
			RetryWait:  time.Second,
		}, logger)
	} else {
		logger.Warn().Msg("PROPOSER_URL not set, plan proposals are disabled")
	}

	// Domain services
	catalogSvc := catalog.NewService(catalog.NewFoodRepoPG(pool), caches.store, caches.invalidator, cfg.CacheTTL(), cfg.CatalogPageSize, logger)
	chartSvc := dietchart.NewService(dietchart.NewRepoPG(pool), catalogSvc, prop, caches.store, caches.invalidator, cfg.CacheTTL(), logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders("/api/v1/foods"))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.ImportBodyLimit, "/foods/import"))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout(), "/api/v1/diet-charts/propose"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "If-None-Match", "X-Request-ID", "X-Tenant-ID"},
	}))

	// Auth middleware
	var authMW echo.MiddlewareFunc
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware()
	} else {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	}

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	checks := []db.Check{{Name: "database", Ping: pool.Ping}}
	if caches.redis != nil {
		checks = append(checks, db.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return caches.redis.Ping(ctx).Err()
		}})
	}
	e.GET("/ready", db.ReadyHandler(checks...))

	// Realtime invalidation stream
	realtime.NewHandler(hub, cfg.CORSOrigins).ScopeTenants(func(c echo.Context) string {
		return db.ResolveTenant(c, cfg.DefaultTenant)
	}).RegisterRoutes(e, authMW)

	// API
	apiV1 := e.Group("/api/v1", authMW, db.TenantMiddleware(pool, cfg.DefaultTenant))
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	catalog.NewHandler(catalogSvc, middleware.ETag(middleware.DefaultETagConfig())).RegisterRoutes(apiV1)
	dietchart.NewHandler(chartSvc, middleware.RateLimit(middleware.ProposeRateLimitConfig())).RegisterRoutes(apiV1)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newLogger writes JSON lines, or human-readable output in development.
func newLogger(dev bool) zerolog.Logger {
	if dev {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
