package handler

import (
	"context"
	"sync"
	"time"

	"site-analytics/internal/domain"
	"site-analytics/internal/service"
)

type recordedVisit struct {
	client  domain.ClientInfo
	path    string
	referer string
}

type fakeVisitorService struct {
	mu        sync.Mutex
	visits    []recordedVisit
	queued    []domain.CollectRequest
	clients   []domain.ClientInfo
	rateLimit *domain.RateLimitInfo
	rateErr   error
	queueErr  error
	flushErr  error
	pending   int
}

func newFakeVisitorService() *fakeVisitorService {
	return &fakeVisitorService{
		rateLimit: &domain.RateLimitInfo{Limit: 120, RequestCount: 1, TTL: time.Hour, IsAllowed: true},
	}
}

func (f *fakeVisitorService) Start(ctx context.Context) error { return nil }
func (f *fakeVisitorService) Stop(ctx context.Context) error  { return nil }

func (f *fakeVisitorService) RecordVisit(ctx context.Context, client domain.ClientInfo, path, referer string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visits = append(f.visits, recordedVisit{client: client, path: path, referer: referer})
}

func (f *fakeVisitorService) QueueEvent(ctx context.Context, client domain.ClientInfo, req *domain.CollectRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queueErr != nil {
		return f.queueErr
	}
	f.queued = append(f.queued, *req)
	f.clients = append(f.clients, client)
	f.pending++
	return nil
}

func (f *fakeVisitorService) CheckRateLimit(ctx context.Context, ip string) (*domain.RateLimitInfo, error) {
	return f.rateLimit, f.rateErr
}

func (f *fakeVisitorService) FlushEvents(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flushErr != nil {
		return f.flushErr
	}
	f.pending = 0
	return nil
}

func (f *fakeVisitorService) PendingEvents() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

type fakeAnalyticsService struct {
	err       error
	lastDays  int
	lastLimit int
}

func (f *fakeAnalyticsService) GetDailyStats(ctx context.Context, days int) ([]domain.DailyStats, error) {
	f.lastDays = days
	return []domain.DailyStats{{Date: "2026-10-15", Visits: 4, UniqueVisitors: 2, Events: 1}}, f.err
}

func (f *fakeAnalyticsService) GetTopPages(ctx context.Context, limit, days int) ([]domain.TopPage, error) {
	f.lastLimit, f.lastDays = limit, days
	return []domain.TopPage{{Path: "/", Visits: 3, UniqueVisitors: 2}}, f.err
}

func (f *fakeAnalyticsService) GetTopReferers(ctx context.Context, limit, days int) ([]domain.TopReferer, error) {
	f.lastLimit, f.lastDays = limit, days
	return []domain.TopReferer{{Referer: "https://google.com", Count: 2}}, f.err
}

func (f *fakeAnalyticsService) GetAverageTimeOnPage(ctx context.Context, days int) ([]domain.PageTime, error) {
	f.lastDays = days
	return []domain.PageTime{}, f.err
}

func (f *fakeAnalyticsService) GetVisitorsByCountry(ctx context.Context, days int) ([]domain.CountryStats, error) {
	f.lastDays = days
	return []domain.CountryStats{{Country: "IT", Visits: 3, UniqueVisitors: 1}}, f.err
}

func (f *fakeAnalyticsService) GetEventBreakdown(ctx context.Context, days int) ([]domain.EventTypeCount, error) {
	f.lastDays = days
	return []domain.EventTypeCount{{Type: domain.EventTypeClick, Count: 5}}, f.err
}

func (f *fakeAnalyticsService) GetSummary(ctx context.Context, days int) (*domain.Summary, error) {
	f.lastDays = days
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Summary{Days: 30, TotalVisits: 10, UniqueVisitors: 4, TotalEvents: 6}, nil
}

func (f *fakeAnalyticsService) GetRecentEvents(ctx context.Context, limit int) ([]domain.EventRecord, error) {
	f.lastLimit = limit
	return []domain.EventRecord{}, f.err
}

type fakeCacheService struct {
	removed int64
	err     error
	cleared bool
	swept   bool
}

func (f *fakeCacheService) FetchWithCache(ctx context.Context, key string, ttl time.Duration, fetch service.FetchFunc) (*domain.FetchResult, error) {
	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.FetchResult{Data: data, Freshness: domain.FreshnessLive}, nil
}

func (f *fakeCacheService) ClearExpired(ctx context.Context) (int64, error) {
	f.swept = true
	return f.removed, f.err
}

func (f *fakeCacheService) ClearAll(ctx context.Context) (int64, error) {
	f.cleared = true
	return f.removed, f.err
}

type fakeFeedService struct {
	results map[string]*domain.FetchResult
	err     error
}

func (f *fakeFeedService) Fetch(ctx context.Context, name string) (*domain.FetchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	result, ok := f.results[name]
	if !ok {
		return nil, service.ErrFeedNotFound
	}
	return result, nil
}

func (f *fakeFeedService) Names() []string {
	names := make([]string, 0, len(f.results))
	for name := range f.results {
		names = append(names, name)
	}
	return names
}

func (f *fakeFeedService) Status() *domain.FeedStatus {
	return &domain.FeedStatus{
		Mode:     "cached",
		Feeds:    f.Names(),
		Breakers: map[string]string{"github": "open"},
	}
}

type fakeChecker struct{ err error }

func (f fakeChecker) Health(ctx context.Context) error { return f.err }

type fakeGeo struct{ country string }

func (f fakeGeo) Country(ip string) string { return f.country }
func (f fakeGeo) Close() error             { return nil }
