package service

import (
	"context"
	"errors"
	"time"

	"site-analytics/internal/domain"
)

// VisitorService defines the ingestion side of analytics
type VisitorService interface {
	// Start begins accepting events
	Start(ctx context.Context) error

	// Stop drains the event buffer with a forced flush
	Stop(ctx context.Context) error

	// RecordVisit writes one page view directly. Failures are logged, never returned.
	RecordVisit(ctx context.Context, client domain.ClientInfo, path, referer string)

	// QueueEvent appends a click or time_on_page event to the buffer
	QueueEvent(ctx context.Context, client domain.ClientInfo, req *domain.CollectRequest) error

	// CheckRateLimit counts a collect request against the per-client window
	CheckRateLimit(ctx context.Context, ip string) (*domain.RateLimitInfo, error)

	// FlushEvents forces a flush of the event buffer
	FlushEvents(ctx context.Context) error

	// PendingEvents returns the number of buffered events
	PendingEvents() int
}

// AnalyticsService defines the read-side aggregations used by the dashboard
type AnalyticsService interface {
	GetDailyStats(ctx context.Context, days int) ([]domain.DailyStats, error)
	GetTopPages(ctx context.Context, limit, days int) ([]domain.TopPage, error)
	GetTopReferers(ctx context.Context, limit, days int) ([]domain.TopReferer, error)
	GetAverageTimeOnPage(ctx context.Context, days int) ([]domain.PageTime, error)
	GetVisitorsByCountry(ctx context.Context, days int) ([]domain.CountryStats, error)
	GetEventBreakdown(ctx context.Context, days int) ([]domain.EventTypeCount, error)
	GetSummary(ctx context.Context, days int) (*domain.Summary, error)
	GetRecentEvents(ctx context.Context, limit int) ([]domain.EventRecord, error)
}

// FetchFunc performs the remote call behind a cached resource
type FetchFunc func(ctx context.Context) ([]byte, error)

// CacheService defines the external-resource cache adapter and cache maintenance
type CacheService interface {
	// FetchWithCache serves key from the cache, fetching and storing it on a miss
	// and falling back to stale data when the fetch fails.
	FetchWithCache(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (*domain.FetchResult, error)

	// ClearExpired removes expired entries
	ClearExpired(ctx context.Context) (int64, error)

	// ClearAll removes every entry
	ClearAll(ctx context.Context) (int64, error)
}

// ErrFeedNotFound is returned by FeedService.Fetch for unknown feed names
var ErrFeedNotFound = errors.New("feed not found")

// FeedService defines access to the remote feeds shown on the site
type FeedService interface {
	// Fetch returns the named feed; ErrFeedNotFound for unknown names
	Fetch(ctx context.Context, name string) (*domain.FetchResult, error)

	// Names lists the configured feeds
	Names() []string

	// Status reports the serving mode and circuit breaker states
	Status() *domain.FeedStatus
}

// Services aggregates all service interfaces
type Services struct {
	Visitor   VisitorService
	Analytics AnalyticsService
	Cache     CacheService
	Feeds     FeedService
}
