package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-analytics/internal/domain"
	"site-analytics/pkg/logger"
	"site-analytics/pkg/metrics"
	"site-analytics/pkg/redis"
)

type visitorFixture struct {
	svc    VisitorService
	visits *fakeVisitRepository
	events *fakeEventRepository
}

func newVisitorFixture(t *testing.T, redisClient *redis.Client, cfg VisitorConfig) *visitorFixture {
	t.Helper()

	hasher, err := NewVisitorHasher("test-salt")
	require.NoError(t, err)

	f := &visitorFixture{
		visits: &fakeVisitRepository{},
		events: &fakeEventRepository{},
	}
	f.svc = NewVisitorService(hasher, f.visits, f.events, redisClient, cfg, logger.NewNop(), metrics.NewTestMetrics())
	require.NoError(t, f.svc.Start(context.Background()))
	return f
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redis.NewClient("redis://"+mr.Addr(), "test", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

var testClient = domain.ClientInfo{IP: "203.0.113.9", UserAgent: "Mozilla/5.0", Country: "IT"}

func TestRecordVisit(t *testing.T) {
	f := newVisitorFixture(t, nil, VisitorConfig{})

	f.svc.RecordVisit(context.Background(), testClient, "/blog/post", "https://google.com")

	visits := f.visits.all()
	require.Len(t, visits, 1)
	assert.Equal(t, "/blog/post", visits[0].Path)
	assert.Equal(t, "https://google.com", visits[0].Referer)
	assert.Equal(t, "Mozilla/5.0", visits[0].UserAgent)
	assert.Equal(t, "IT", visits[0].Country)
	assert.Regexp(t, hexHash, visits[0].VisitorHash)
	assert.Equal(t, 0, f.svc.PendingEvents(), "page views bypass the buffer")
}

func TestRecordVisitSwallowsStorageErrors(t *testing.T) {
	f := newVisitorFixture(t, nil, VisitorConfig{})
	f.visits.err = errStorage

	assert.NotPanics(t, func() {
		f.svc.RecordVisit(context.Background(), testClient, "/", "")
	})
	assert.Empty(t, f.visits.all())
}

func TestQueueEvent(t *testing.T) {
	f := newVisitorFixture(t, nil, VisitorConfig{Buffer: EventBufferConfig{FlushInterval: time.Hour, FlushThreshold: 10}})
	ctx := context.Background()

	duration := int64(4200)
	require.NoError(t, f.svc.QueueEvent(ctx, testClient, &domain.CollectRequest{
		Type:        "click",
		Path:        "/projects",
		ElementTag:  "a",
		ElementID:   "cta",
		ElementText: strings.Repeat("x", 80),
		Href:        "https://github.com",
	}))
	require.NoError(t, f.svc.QueueEvent(ctx, testClient, &domain.CollectRequest{
		Type:     "time_on_page",
		Path:     "/projects",
		Duration: &duration,
	}))
	assert.Equal(t, 2, f.svc.PendingEvents())

	require.NoError(t, f.svc.FlushEvents(ctx))
	assert.Equal(t, 0, f.svc.PendingEvents())

	stored := f.events.stored()
	require.Len(t, stored, 2)
	assert.Equal(t, domain.EventTypeClick, stored[0].Type)
	assert.Len(t, stored[0].ElementText, DefaultElementTextMax)
	assert.Equal(t, "cta", stored[0].ElementID)
	assert.Regexp(t, hexHash, stored[0].VisitorHash)
	assert.Equal(t, domain.EventTypeTimeOnPage, stored[1].Type)
	require.NotNil(t, stored[1].Duration)
	assert.Equal(t, int64(4200), *stored[1].Duration)
}

func TestQueueEventRejectsPageView(t *testing.T) {
	f := newVisitorFixture(t, nil, VisitorConfig{})

	err := f.svc.QueueEvent(context.Background(), testClient, &domain.CollectRequest{Type: "page_view", Path: "/"})
	assert.Error(t, err)
	assert.Equal(t, 0, f.svc.PendingEvents())
}

func TestQueueEventTruncatesRunes(t *testing.T) {
	f := newVisitorFixture(t, nil, VisitorConfig{ElementTextMax: 3, Buffer: EventBufferConfig{FlushThreshold: 1}})

	require.NoError(t, f.svc.QueueEvent(context.Background(), testClient, &domain.CollectRequest{
		Type:        "click",
		Path:        "/",
		ElementText: "héllo",
	}))

	stored := f.events.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, "hél", stored[0].ElementText)
}

func TestVisitorServiceStopDrainsBuffer(t *testing.T) {
	f := newVisitorFixture(t, nil, VisitorConfig{Buffer: EventBufferConfig{FlushInterval: time.Hour, FlushThreshold: 100}})

	for i := 0; i < 5; i++ {
		require.NoError(t, f.svc.QueueEvent(context.Background(), testClient, &domain.CollectRequest{Type: "click", Path: "/"}))
	}

	require.NoError(t, f.svc.Stop(context.Background()))
	assert.Len(t, f.events.stored(), 5)
	require.NoError(t, f.svc.Stop(context.Background()))
}

func TestCheckRateLimit(t *testing.T) {
	mr, client := newTestRedis(t)
	f := newVisitorFixture(t, client, VisitorConfig{RateLimitRequests: 3, RateLimitWindow: time.Hour})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		info, err := f.svc.CheckRateLimit(ctx, "198.51.100.7")
		require.NoError(t, err)
		assert.True(t, info.IsAllowed)
		assert.Equal(t, int64(i), info.RequestCount)
		assert.Equal(t, int64(3-i), info.Remaining())
	}

	info, err := f.svc.CheckRateLimit(ctx, "198.51.100.7")
	require.NoError(t, err)
	assert.False(t, info.IsAllowed)
	assert.Equal(t, int64(0), info.Remaining())

	// other clients have their own budget
	info, err = f.svc.CheckRateLimit(ctx, "198.51.100.8")
	require.NoError(t, err)
	assert.True(t, info.IsAllowed)

	keys := mr.Keys()
	require.Len(t, keys, 2)
	for _, key := range keys {
		assert.True(t, strings.HasPrefix(key, "test:analytics:ratelimit:"), key)
		assert.NotContains(t, key, "198.51.100")
		assert.Equal(t, time.Hour, mr.TTL(key))
	}

	// window expiry resets the counter
	mr.FastForward(time.Hour + time.Second)
	info, err = f.svc.CheckRateLimit(ctx, "198.51.100.7")
	require.NoError(t, err)
	assert.True(t, info.IsAllowed)
	assert.Equal(t, int64(1), info.RequestCount)
}

func TestCheckRateLimitWithoutRedis(t *testing.T) {
	f := newVisitorFixture(t, nil, VisitorConfig{RateLimitRequests: 1})

	for i := 0; i < 5; i++ {
		info, err := f.svc.CheckRateLimit(context.Background(), "198.51.100.7")
		require.NoError(t, err)
		assert.True(t, info.IsAllowed)
	}
}

func TestCheckRateLimitFailsOpen(t *testing.T) {
	mr, client := newTestRedis(t)
	f := newVisitorFixture(t, client, VisitorConfig{RateLimitRequests: 1})
	mr.Close()

	info, err := f.svc.CheckRateLimit(context.Background(), "198.51.100.7")
	require.NoError(t, err)
	assert.True(t, info.IsAllowed)
}

func TestCheckRateLimitReportsRemainingWindow(t *testing.T) {
	mr, client := newTestRedis(t)
	f := newVisitorFixture(t, client, VisitorConfig{RateLimitRequests: 10, RateLimitWindow: time.Hour})
	ctx := context.Background()

	info, err := f.svc.CheckRateLimit(ctx, "198.51.100.7")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, info.TTL)

	mr.FastForward(15 * time.Minute)

	info, err = f.svc.CheckRateLimit(ctx, "198.51.100.7")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.RequestCount)
	assert.Equal(t, 45*time.Minute, info.TTL)
}
