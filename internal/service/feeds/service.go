package feeds

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"site-analytics/internal/domain"
	"site-analytics/internal/service"
	"site-analytics/pkg/logger"
	"site-analytics/pkg/metrics"
)

// Mode selects how feeds are served
type Mode string

const (
	// ModeMock serves embedded fixtures
	ModeMock Mode = "mock"
	// ModeLive calls the remote API on every request
	ModeLive Mode = "live"
	// ModeCached serves through the cache adapter with stale fallback
	ModeCached Mode = "cached"
)

// ParseMode validates a FEED_MODE value
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeMock, ModeLive, ModeCached:
		return m, nil
	}
	return "", fmt.Errorf("invalid feed mode %q (want mock, live or cached)", s)
}

// Feed is one live source with its cache TTL
type Feed struct {
	Source DataSource
	TTL    time.Duration
}

// Config configures the feed service
type Config struct {
	Mode    Mode
	Breaker BreakerConfig

	// MockRepo labels fixture commits
	MockRepo string
}

type fetcher func(ctx context.Context) (*domain.FetchResult, error)

// Service implements service.FeedService. The fetch strategy of every feed is
// chosen once at construction.
type Service struct {
	mode     Mode
	fetchers map[string]fetcher
	breakers map[string]*BreakerSource
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewService creates the feed service
func NewService(cfg Config, feeds []Feed, cache service.CacheService, logger *logger.Logger, m *metrics.Metrics) (*Service, error) {
	log := logger.Named("feeds")
	s := &Service{
		mode:     cfg.Mode,
		fetchers: make(map[string]fetcher, len(feeds)),
		breakers: make(map[string]*BreakerSource),
		logger:   log,
		metrics:  m,
	}

	for _, feed := range feeds {
		name := feed.Source.Name()

		switch cfg.Mode {
		case ModeMock:
			mock, err := NewMockSource(name, cfg.MockRepo)
			if err != nil {
				return nil, err
			}
			s.fetchers[name] = rawFetcher(mock, domain.FreshnessMock)

		case ModeLive:
			s.fetchers[name] = rawFetcher(feed.Source, domain.FreshnessLive)

		case ModeCached:
			source := NewBreakerSource(feed.Source, cfg.Breaker, logger)
			s.breakers[name] = source
			key := "feed:" + name
			ttl := feed.TTL
			s.fetchers[name] = func(ctx context.Context) (*domain.FetchResult, error) {
				return cache.FetchWithCache(ctx, key, ttl, source.FetchRaw)
			}

		default:
			return nil, fmt.Errorf("invalid feed mode %q", cfg.Mode)
		}
	}

	log.WithFields(map[string]interface{}{
		"mode":  cfg.Mode,
		"feeds": s.Names(),
	}).Info("Initialized feed service")

	return s, nil
}

func rawFetcher(source DataSource, freshness domain.Freshness) fetcher {
	return func(ctx context.Context) (*domain.FetchResult, error) {
		data, err := source.FetchRaw(ctx)
		if err != nil {
			return nil, err
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("%s returned invalid JSON", source.Name())
		}
		return &domain.FetchResult{Data: json.RawMessage(data), Freshness: freshness}, nil
	}
}

// Fetch returns the named feed
func (s *Service) Fetch(ctx context.Context, name string) (*domain.FetchResult, error) {
	fetch, ok := s.fetchers[name]
	if !ok {
		return nil, service.ErrFeedNotFound
	}

	result, err := fetch(ctx)
	if err != nil {
		s.metrics.FeedFetchesTotal.WithLabelValues(name, "error").Inc()
		s.logger.WithError(err).WithField("feed", name).Error("Failed to fetch feed")
		return nil, fmt.Errorf("failed to fetch %s feed: %w", name, err)
	}

	s.metrics.FeedFetchesTotal.WithLabelValues(name, string(result.Freshness)).Inc()
	return result, nil
}

// Names lists the configured feeds in alphabetical order
func (s *Service) Names() []string {
	names := make([]string, 0, len(s.fetchers))
	for name := range s.fetchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mode returns the configured mode
func (s *Service) Mode() Mode {
	return s.mode
}

// Status reports the mode and, in cached mode, the breaker state of every feed
func (s *Service) Status() *domain.FeedStatus {
	status := &domain.FeedStatus{
		Mode:  string(s.Mode()),
		Feeds: s.Names(),
	}

	if len(s.breakers) > 0 {
		status.Breakers = make(map[string]string, len(s.breakers))
		for name, breaker := range s.breakers {
			status.Breakers[name] = breaker.State()
		}
	}

	return status
}

var _ service.FeedService = (*Service)(nil)
