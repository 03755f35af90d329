package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-analytics/internal/domain"
	apperrors "site-analytics/pkg/errors"
	"site-analytics/pkg/logger"
)

func newCollectRouter(visitors *fakeVisitorService, geo fakeGeo) http.Handler {
	h := NewCollectHandler(visitors, geo, logger.NewNop())
	r := chi.NewRouter()
	r.Route("/api", h.RegisterRoutes)
	return r
}

func postCollect(t *testing.T, router http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/analytics/collect", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var body apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCollect_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "malformed json", body: `{"type":`, wantMsg: "Invalid request"},
		{name: "missing type", body: `{"path":"/"}`, wantMsg: "Missing required fields: type, path"},
		{name: "missing path", body: `{"type":"click"}`, wantMsg: "Missing required fields: type, path"},
		{name: "unknown type", body: `{"type":"scroll","path":"/"}`, wantMsg: "Invalid event type"},
		{name: "negative duration", body: `{"type":"time_on_page","path":"/","duration":-5}`, wantMsg: "Invalid request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visitors := newFakeVisitorService()
			rec := postCollect(t, newCollectRouter(visitors, fakeGeo{}), tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantMsg, body.Error.Message)
			assert.Empty(t, visitors.visits)
			assert.Empty(t, visitors.queued)
		})
	}
}

func TestCollect_MethodNotAllowed(t *testing.T) {
	router := newCollectRouter(newFakeVisitorService(), fakeGeo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analytics/collect", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestCollect_PageViewRecordedDirectly(t *testing.T) {
	visitors := newFakeVisitorService()
	router := newCollectRouter(visitors, fakeGeo{country: "DE"})

	rec := postCollect(t, router, `{"type":"page_view","path":"/blog","referer":"https://google.com"}`, map[string]string{
		"X-Forwarded-For": "203.0.113.7, 10.0.0.1",
		"User-Agent":      "Mozilla/5.0",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	require.Len(t, visitors.visits, 1)
	assert.Equal(t, "/blog", visitors.visits[0].path)
	assert.Equal(t, "https://google.com", visitors.visits[0].referer)
	assert.Equal(t, domain.ClientInfo{IP: "203.0.113.7", UserAgent: "Mozilla/5.0", Country: "DE"}, visitors.visits[0].client)
	assert.Empty(t, visitors.queued)

	assert.Equal(t, "120", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "119", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestCollect_ClickQueued(t *testing.T) {
	visitors := newFakeVisitorService()
	router := newCollectRouter(visitors, fakeGeo{})

	rec := postCollect(t, router, `{"type":"click","path":"/","elementTag":"a","elementId":"cta","elementText":"Read more","href":"/blog"}`, nil)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"success":true,"queued":true}`, rec.Body.String())
	require.Len(t, visitors.queued, 1)
	assert.Equal(t, "cta", visitors.queued[0].ElementID)
	assert.Equal(t, "/blog", visitors.queued[0].Href)
	assert.Empty(t, visitors.visits)
}

func TestCollect_CountryHeaderWins(t *testing.T) {
	visitors := newFakeVisitorService()
	router := newCollectRouter(visitors, fakeGeo{country: "DE"})

	rec := postCollect(t, router, `{"type":"page_view","path":"/"}`, map[string]string{"CF-IPCountry": "it"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, visitors.visits, 1)
	assert.Equal(t, "IT", visitors.visits[0].client.Country)
	assert.Equal(t, "unknown", visitors.visits[0].client.UserAgent)

	rec = postCollect(t, router, `{"type":"page_view","path":"/"}`, map[string]string{"CF-IPCountry": "XX"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DE", visitors.visits[1].client.Country)
}

func TestCollect_RateLimited(t *testing.T) {
	visitors := newFakeVisitorService()
	visitors.rateLimit = &domain.RateLimitInfo{Limit: 120, RequestCount: 121, TTL: 10 * time.Minute, IsAllowed: false}

	rec := postCollect(t, newCollectRouter(visitors, fakeGeo{}), `{"type":"page_view","path":"/"}`, nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, apperrors.ErrorTypeRateLimit, decodeError(t, rec).Error.Type)
	assert.Empty(t, visitors.visits)
}

func TestCollect_RateLimiterDisabledSetsNoHeaders(t *testing.T) {
	visitors := newFakeVisitorService()
	visitors.rateLimit = &domain.RateLimitInfo{IsAllowed: true}

	rec := postCollect(t, newCollectRouter(visitors, fakeGeo{}), `{"type":"page_view","path":"/"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestCollect_QueueFailure(t *testing.T) {
	visitors := newFakeVisitorService()
	visitors.queueErr = errors.New("buffer stopped")

	rec := postCollect(t, newCollectRouter(visitors, fakeGeo{}), `{"type":"time_on_page","path":"/","duration":4200}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to record event", decodeError(t, rec).Error.Message)
}

func TestGetRealIPAddress(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{name: "x-real-ip", headers: map[string]string{"X-Real-IP": "198.51.100.1", "X-Forwarded-For": "203.0.113.7"}, remoteAddr: "10.0.0.1:1234", want: "198.51.100.1"},
		{name: "first forwarded", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remoteAddr: "10.0.0.1:1234", want: "203.0.113.7"},
		{name: "remote addr", remoteAddr: "192.0.2.10:5555", want: "192.0.2.10"},
		{name: "remote addr without port", remoteAddr: "192.0.2.10", want: "192.0.2.10"},
		{name: "nothing", remoteAddr: "", want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getRealIPAddress(req))
		})
	}
}
