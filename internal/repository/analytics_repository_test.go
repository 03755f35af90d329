package repository

import (
	"context"
	"testing"
	"time"

	"site-analytics/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedAnalytics writes 6 visits from 5 visitors, 2 clicks, 3 time_on_page
// events, plus one visit outside a 30 day window.
func seedAnalytics(t *testing.T) (AnalyticsRepository, time.Time) {
	t.Helper()

	db := newTestDB(t)
	visits := NewVisitRepository(db)
	events := NewEventRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)

	seed := []domain.VisitRecord{
		{Path: "/", VisitorHash: "h1", Country: "US", Referer: "https://google.com"},
		{Path: "/blog", VisitorHash: "h2", Country: "US", Referer: "https://google.com"},
		{Path: "/blog", VisitorHash: "h3", Country: "IT", Referer: "https://x.com"},
		{Path: "/about", VisitorHash: "h3", Country: "IT"},
		{Path: "/contact", VisitorHash: "h4", Country: "DE"},
		{Path: "/", VisitorHash: "h5"},
	}
	for i := range seed {
		seed[i].CreatedAt = now
		require.NoError(t, visits.Create(ctx, &seed[i]))
	}

	old := &domain.VisitRecord{Path: "/old", VisitorHash: "h9", Country: "FR", CreatedAt: now.AddDate(0, 0, -40)}
	require.NoError(t, visits.Create(ctx, old))

	require.NoError(t, events.InsertBatch(ctx, []domain.EventRecord{
		{Type: domain.EventTypeClick, Path: "/", ElementTag: "a", Href: "/blog", CreatedAt: now},
		{Type: domain.EventTypeClick, Path: "/blog", ElementTag: "button", ElementID: "share", CreatedAt: now},
		{Type: domain.EventTypeTimeOnPage, Path: "/blog", Duration: int64Ptr(10000), CreatedAt: now},
		{Type: domain.EventTypeTimeOnPage, Path: "/blog", Duration: int64Ptr(20000), CreatedAt: now},
		{Type: domain.EventTypeTimeOnPage, Path: "/blog", Duration: int64Ptr(30000), CreatedAt: now},
	}))

	return NewAnalyticsRepository(db), now.AddDate(0, 0, -30)
}

func TestAnalyticsRepository_VisitorsByCountry(t *testing.T) {
	repo, since := seedAnalytics(t)

	countries, err := repo.VisitorsByCountry(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, countries, 3)

	byCountry := make(map[string]domain.CountryStats)
	for _, c := range countries {
		byCountry[c.Country] = c
	}
	assert.Equal(t, int64(2), byCountry["US"].Visits)
	assert.Equal(t, int64(2), byCountry["US"].UniqueVisitors)
	assert.Equal(t, int64(2), byCountry["IT"].Visits)
	assert.Equal(t, int64(1), byCountry["IT"].UniqueVisitors)
	assert.Equal(t, int64(1), byCountry["DE"].Visits)
	assert.NotContains(t, byCountry, "FR")

	assert.Equal(t, "DE", countries[2].Country)
	for i := 1; i < len(countries); i++ {
		assert.GreaterOrEqual(t, countries[i-1].Visits, countries[i].Visits)
	}
}

func TestAnalyticsRepository_EventBreakdown(t *testing.T) {
	repo, since := seedAnalytics(t)

	breakdown, err := repo.EventBreakdown(context.Background(), since)
	require.NoError(t, err)

	assert.Equal(t, []domain.EventTypeCount{
		{Type: domain.EventTypePageView, Count: 6},
		{Type: domain.EventTypeClick, Count: 2},
		{Type: domain.EventTypeTimeOnPage, Count: 3},
	}, breakdown)
}

func TestAnalyticsRepository_Summary(t *testing.T) {
	repo, since := seedAnalytics(t)

	summary, err := repo.Summary(context.Background(), since)
	require.NoError(t, err)

	assert.Equal(t, int64(6), summary.TotalVisits)
	assert.Equal(t, int64(5), summary.UniqueVisitors)
	assert.Equal(t, int64(5), summary.TotalEvents)
	assert.InDelta(t, 20.0, summary.AvgTimeOnPage, 0.001)
}

func TestAnalyticsRepository_DailyStats(t *testing.T) {
	repo, since := seedAnalytics(t)

	stats, err := repo.DailyStats(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, since.AddDate(0, 0, 30).Format("2006-01-02"), stats[0].Date)
	assert.Equal(t, int64(6), stats[0].Visits)
	assert.Equal(t, int64(5), stats[0].UniqueVisitors)
	assert.Equal(t, int64(5), stats[0].Events)
}

func TestAnalyticsRepository_DailyStatsWithoutEvents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, NewVisitRepository(db).Create(ctx, &domain.VisitRecord{Path: "/", VisitorHash: "h"}))

	stats, err := NewAnalyticsRepository(db).DailyStats(ctx, time.Now().AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(0), stats[0].Events)
}

func TestAnalyticsRepository_TopPagesAndReferers(t *testing.T) {
	repo, since := seedAnalytics(t)
	ctx := context.Background()

	pages, err := repo.TopPages(ctx, since, 2)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	for _, p := range pages {
		assert.Contains(t, []string{"/", "/blog"}, p.Path)
		assert.Equal(t, int64(2), p.Visits)
		assert.Equal(t, int64(2), p.UniqueVisitors)
	}

	referers, err := repo.TopReferers(ctx, since, 10)
	require.NoError(t, err)
	assert.Equal(t, []domain.TopReferer{
		{Referer: "https://google.com", Count: 2},
		{Referer: "https://x.com", Count: 1},
	}, referers)
}

func TestAnalyticsRepository_AverageTimeOnPage(t *testing.T) {
	repo, since := seedAnalytics(t)
	ctx := context.Background()

	times, err := repo.AverageTimeOnPage(ctx, since, 3, 20)
	require.NoError(t, err)
	assert.Equal(t, []domain.PageTime{{Path: "/blog", AvgSeconds: 20.0, Samples: 3}}, times)

	times, err = repo.AverageTimeOnPage(ctx, since, 4, 20)
	require.NoError(t, err)
	assert.Empty(t, times)
	assert.NotNil(t, times)
}

func TestAnalyticsRepository_RecentEvents(t *testing.T) {
	repo, _ := seedAnalytics(t)

	events, err := repo.RecentEvents(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, domain.EventTypeTimeOnPage, events[0].Type)
	require.NotNil(t, events[0].Duration)
	assert.Equal(t, int64(30000), *events[0].Duration)
	assert.Greater(t, events[0].ID, events[1].ID)
}

func TestAnalyticsRepository_EmptyDataset(t *testing.T) {
	repo := NewAnalyticsRepository(newTestDB(t))
	ctx := context.Background()
	since := time.Now().AddDate(0, 0, -30)

	daily, err := repo.DailyStats(ctx, since)
	require.NoError(t, err)
	assert.NotNil(t, daily)
	assert.Empty(t, daily)

	pages, err := repo.TopPages(ctx, since, 20)
	require.NoError(t, err)
	assert.Empty(t, pages)

	referers, err := repo.TopReferers(ctx, since, 20)
	require.NoError(t, err)
	assert.Empty(t, referers)

	countries, err := repo.VisitorsByCountry(ctx, since)
	require.NoError(t, err)
	assert.Empty(t, countries)

	breakdown, err := repo.EventBreakdown(ctx, since)
	require.NoError(t, err)
	assert.Empty(t, breakdown)

	summary, err := repo.Summary(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, &domain.Summary{}, summary)

	recent, err := repo.RecentEvents(ctx, 50)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
