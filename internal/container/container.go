package container

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"site-analytics/internal/config"
	"site-analytics/internal/handler"
	"site-analytics/internal/repository"
	"site-analytics/internal/service"
	"site-analytics/internal/service/feeds"
	"site-analytics/pkg/database"
	"site-analytics/pkg/geoip"
	"site-analytics/pkg/logger"
	"site-analytics/pkg/metrics"
	"site-analytics/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           *database.SQLiteDB
	RedisClient  *redis.Client
	Geo          geoip.Resolver
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Repositories *repository.Repositories
	Services     *service.Services
	Janitor      *service.CacheJanitor
	Handlers     *Handlers
}

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Health  *handler.HealthHandler
	Collect *handler.CollectHandler
	Feeds   *handler.FeedHandler
	Admin   *handler.AdminHandler
}

// New opens the database and wires repositories, services and handlers.
// Redis and the GeoIP database are optional: failures are logged and the
// service runs without them.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, version string) (*Container, error) {
	db, err := database.NewSQLiteDB(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	log.WithField("path", db.Path()).Info("Database ready")

	c := &Container{
		Config: cfg,
		Logger: log,
		DB:     db,
	}

	if err := c.build(version); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

func (c *Container) build(version string) error {
	cfg := c.Config
	log := c.Logger

	// Initialize Redis client if Redis URL is configured
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Named("redis").Logger)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize Redis client, proceeding without collect rate limit")
		} else {
			c.RedisClient = client
			log.Info("Redis client initialized successfully")
		}
	} else {
		log.Info("Redis URL not configured, proceeding without collect rate limit")
	}

	geo, err := geoip.New(cfg.GeoIPDatabasePath, log.Named("geoip").Logger)
	if err != nil {
		log.WithError(err).Warn("Failed to open GeoIP database, country lookup disabled")
		geo = geoip.Noop{}
	}
	c.Geo = geo

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = metrics.NewMetrics(c.Registry)

	c.Repositories = &repository.Repositories{
		Cache:     repository.NewCacheRepository(c.DB),
		Visit:     repository.NewVisitRepository(c.DB),
		Event:     repository.NewEventRepository(c.DB),
		Analytics: repository.NewAnalyticsRepository(c.DB),
	}

	hasher, err := service.NewVisitorHasher(cfg.Analytics.Salt)
	if err != nil {
		return fmt.Errorf("failed to create visitor hasher: %w", err)
	}

	visitorService := service.NewVisitorService(
		hasher,
		c.Repositories.Visit,
		c.Repositories.Event,
		c.RedisClient,
		service.VisitorConfig{
			Buffer: service.EventBufferConfig{
				FlushInterval:  cfg.Analytics.FlushInterval,
				FlushThreshold: cfg.Analytics.FlushThreshold,
			},
			RateLimitRequests: cfg.Analytics.RateLimitRequests,
			RateLimitWindow:   cfg.Analytics.RateLimitWindow,
			ElementTextMax:    cfg.Analytics.ElementTextMax,
		},
		log,
		c.Metrics,
	)

	cacheService := service.NewCacheService(c.Repositories.Cache, log, c.Metrics)

	feedService, err := newFeedService(cfg, cacheService, log, c.Metrics)
	if err != nil {
		return err
	}

	c.Services = &service.Services{
		Visitor:   visitorService,
		Analytics: service.NewAnalyticsService(c.Repositories.Analytics, log),
		Cache:     cacheService,
		Feeds:     feedService,
	}

	c.Janitor, err = service.NewCacheJanitor(cacheService, cfg.CacheSweepSchedule, log)
	if err != nil {
		return fmt.Errorf("failed to create cache janitor: %w", err)
	}

	// A nil *redis.Client must not become a non-nil interface value
	var redisHealth handler.HealthChecker
	if c.RedisClient != nil {
		redisHealth = c.RedisClient
	}

	c.Handlers = &Handlers{
		Health:  handler.NewHealthHandler(c.DB, redisHealth, version, log),
		Collect: handler.NewCollectHandler(visitorService, c.Geo, log),
		Feeds:   handler.NewFeedHandler(feedService, log),
		Admin:   handler.NewAdminHandler(c.Services.Analytics, visitorService, cacheService, feedService, log),
	}

	return nil
}

// newFeedService builds the three remote sources and the mode-specific feed service
func newFeedService(cfg *config.Config, cache service.CacheService, log *logger.Logger, m *metrics.Metrics) (*feeds.Service, error) {
	mode, err := feeds.ParseMode(cfg.Feeds.Mode)
	if err != nil {
		return nil, err
	}

	sources := []feeds.Feed{
		{
			Source: feeds.NewTwitterSource(feeds.TwitterConfig{
				BearerToken: cfg.Feeds.TwitterBearerToken,
				UserID:      cfg.Feeds.TwitterUserID,
			}, log),
			TTL: cfg.Feeds.TwitterCacheTTL,
		},
		{
			Source: feeds.NewGitHubSource(feeds.GitHubConfig{
				Token: cfg.Feeds.GitHubToken,
				Owner: cfg.Feeds.GitHubOwner,
				Repo:  cfg.Feeds.GitHubRepo,
			}, log),
			TTL: cfg.Feeds.GitHubCacheTTL,
		},
		{
			Source: feeds.NewYouTubeSource(feeds.YouTubeConfig{
				APIKey:    cfg.Feeds.YouTubeAPIKey,
				ChannelID: cfg.Feeds.YouTubeChannelID,
			}, log),
			TTL: cfg.Feeds.YouTubeCacheTTL,
		},
	}

	failures := cfg.Feeds.BreakerFailures
	if failures < 0 {
		failures = 0
	}

	svc, err := feeds.NewService(feeds.Config{
		Mode: mode,
		Breaker: feeds.BreakerConfig{
			ConsecutiveFailures: uint32(failures),
			Timeout:             cfg.Feeds.BreakerTimeout,
		},
		MockRepo: cfg.Feeds.GitHubOwner + "/" + cfg.Feeds.GitHubRepo,
	}, sources, cache, log, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed service: %w", err)
	}

	return svc, nil
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetRedisClient returns the Redis client (may be nil if not configured)
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// Close releases the GeoIP reader, Redis and the database, in that order
func (c *Container) Close() error {
	var errs []error

	if c.Geo != nil {
		if err := c.Geo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("geoip close: %w", err))
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if err := c.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close container: %v", errs)
	}
	return nil
}
