package repository

import (
	"context"
	"time"

	"site-analytics/internal/domain"
)

// CacheRepository defines the TTL key/value cache stored in the cache table
type CacheRepository interface {
	// Set upserts key with expiry now+ttl
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value only while the entry has not expired
	Get(ctx context.Context, key string) (string, bool, error)

	// GetStale returns the value regardless of expiry
	GetStale(ctx context.Context, key string) (string, bool, error)

	// Has reports whether a non-expired entry exists
	Has(ctx context.Context, key string) (bool, error)

	// Delete removes the entry; missing keys are not an error
	Delete(ctx context.Context, key string) error

	// ClearExpired deletes entries whose expiry has passed and returns how many
	ClearExpired(ctx context.Context) (int64, error)

	// ClearAll deletes every entry and returns how many
	ClearAll(ctx context.Context) (int64, error)
}

// VisitRepository defines the write path for page views
type VisitRepository interface {
	// Create inserts one visit; a zero CreatedAt uses the database clock
	Create(ctx context.Context, visit *domain.VisitRecord) error
}

// EventRepository defines the write path for buffered interaction events
type EventRepository interface {
	// InsertBatch inserts all events in a single transaction or none of them
	InsertBatch(ctx context.Context, events []domain.EventRecord) error
}

// AnalyticsRepository defines read-only aggregations over visits and events.
// Every window starts at since (inclusive).
type AnalyticsRepository interface {
	DailyStats(ctx context.Context, since time.Time) ([]domain.DailyStats, error)
	TopPages(ctx context.Context, since time.Time, limit int) ([]domain.TopPage, error)
	TopReferers(ctx context.Context, since time.Time, limit int) ([]domain.TopReferer, error)
	AverageTimeOnPage(ctx context.Context, since time.Time, minSamples, limit int) ([]domain.PageTime, error)
	VisitorsByCountry(ctx context.Context, since time.Time) ([]domain.CountryStats, error)
	EventBreakdown(ctx context.Context, since time.Time) ([]domain.EventTypeCount, error)
	Summary(ctx context.Context, since time.Time) (*domain.Summary, error)
	RecentEvents(ctx context.Context, limit int) ([]domain.EventRecord, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Cache     CacheRepository
	Visit     VisitRepository
	Event     EventRepository
	Analytics AnalyticsRepository
}
