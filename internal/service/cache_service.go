package service

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"site-analytics/internal/domain"
	"site-analytics/internal/repository"
	"site-analytics/pkg/logger"
	"site-analytics/pkg/metrics"
)

// cacheService implements cache-aside with stale fallback over the SQLite cache table
type cacheService struct {
	repo    repository.CacheRepository
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewCacheService creates a new cache service
func NewCacheService(repo repository.CacheRepository, logger *logger.Logger, m *metrics.Metrics) CacheService {
	return &cacheService{
		repo:    repo,
		logger:  logger.Named("cache"),
		metrics: m,
	}
}

// FetchWithCache serves a fresh cached value, otherwise calls fetch and stores
// its result. When fetch fails, an expired entry is served instead; with no
// entry at all the fetch error is returned.
func (c *cacheService) FetchWithCache(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (*domain.FetchResult, error) {
	// Try cache first
	cached, ok, err := c.repo.Get(ctx, key)
	if err != nil {
		// Log cache error but continue to the remote source
		c.logger.Warn("Cache read failed, fetching from source", zap.String("key", key), zap.Error(err))
	} else if ok {
		c.metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		c.logger.Debug("Cache hit", zap.String("key", key))
		return &domain.FetchResult{Data: json.RawMessage(cached), Freshness: domain.FreshnessCache}, nil
	}

	c.metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	c.logger.Debug("Cache miss", zap.String("key", key))

	data, fetchErr := fetch(ctx)
	if fetchErr == nil && !json.Valid(data) {
		fetchErr = fmt.Errorf("source returned invalid JSON (%d bytes)", len(data))
	}

	if fetchErr == nil {
		if err := c.repo.Set(ctx, key, string(data), ttl); err != nil {
			c.logger.Error("Failed to store fetched data", zap.String("key", key), zap.Error(err))
		}
		return &domain.FetchResult{Data: json.RawMessage(data), Freshness: domain.FreshnessLive}, nil
	}

	stale, ok, err := c.repo.GetStale(ctx, key)
	if err != nil {
		c.logger.Error("Stale cache read failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		c.metrics.CacheLookupsTotal.WithLabelValues("stale").Inc()
		c.logger.Warn("Fetch failed, serving stale cache", zap.String("key", key), zap.Error(fetchErr))
		return &domain.FetchResult{Data: json.RawMessage(stale), Freshness: domain.FreshnessCache}, nil
	}

	c.metrics.CacheLookupsTotal.WithLabelValues("unavailable").Inc()
	return nil, fmt.Errorf("failed to fetch %s with no cached fallback: %w", key, fetchErr)
}

// ClearExpired removes expired entries
func (c *cacheService) ClearExpired(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := c.repo.ClearExpired(ctx)
	if err != nil {
		c.logger.Error("Failed to clear expired cache entries", zap.Error(err))
		return 0, fmt.Errorf("failed to clear expired cache entries: %w", err)
	}

	c.metrics.CacheSweptTotal.Add(float64(n))
	c.logger.Debug("Expired cache entries cleared", zap.Int64("removed", n), zap.Duration("duration", time.Since(start)))
	return n, nil
}

// ClearAll removes every entry
func (c *cacheService) ClearAll(ctx context.Context) (int64, error) {
	n, err := c.repo.ClearAll(ctx)
	if err != nil {
		c.logger.Error("Failed to clear cache", zap.Error(err))
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}

	c.logger.Info("Cache cleared", zap.Int64("removed", n))
	return n, nil
}
