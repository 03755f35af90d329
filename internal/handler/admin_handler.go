package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"site-analytics/internal/service"
	"site-analytics/pkg/errors"
	"site-analytics/pkg/logger"
)

// AdminHandler serves the analytics dashboard API and cache maintenance
type AdminHandler struct {
	analyticsService service.AnalyticsService
	visitorService   service.VisitorService
	cacheService     service.CacheService
	feedService      service.FeedService
	logger           *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	analyticsService service.AnalyticsService,
	visitorService service.VisitorService,
	cacheService service.CacheService,
	feedService service.FeedService,
	logger *logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		analyticsService: analyticsService,
		visitorService:   visitorService,
		cacheService:     cacheService,
		feedService:      feedService,
		logger:           logger.Named("admin"),
	}
}

// queryInt reads a positive integer query parameter; invalid values yield 0 so
// the service applies its default
func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func (h *AdminHandler) respond(w http.ResponseWriter, r *http.Request, data interface{}, err error, what string) {
	if err != nil {
		h.logger.WithError(err).WithField("query", what).Error("Analytics query failed")
		sendErrorResponse(w, r, errors.NewInternalError("Failed to load "+what, err), h.logger)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Success: true, Data: data}, h.logger)
}

// GetDailyStats handles GET /api/admin/analytics/daily
func (h *AdminHandler) GetDailyStats(w http.ResponseWriter, r *http.Request) {
	data, err := h.analyticsService.GetDailyStats(r.Context(), queryInt(r, "days"))
	h.respond(w, r, data, err, "daily stats")
}

// GetTopPages handles GET /api/admin/analytics/pages
func (h *AdminHandler) GetTopPages(w http.ResponseWriter, r *http.Request) {
	data, err := h.analyticsService.GetTopPages(r.Context(), queryInt(r, "limit"), queryInt(r, "days"))
	h.respond(w, r, data, err, "top pages")
}

// GetTopReferers handles GET /api/admin/analytics/referers
func (h *AdminHandler) GetTopReferers(w http.ResponseWriter, r *http.Request) {
	data, err := h.analyticsService.GetTopReferers(r.Context(), queryInt(r, "limit"), queryInt(r, "days"))
	h.respond(w, r, data, err, "top referers")
}

// GetTimeOnPage handles GET /api/admin/analytics/time-on-page
func (h *AdminHandler) GetTimeOnPage(w http.ResponseWriter, r *http.Request) {
	data, err := h.analyticsService.GetAverageTimeOnPage(r.Context(), queryInt(r, "days"))
	h.respond(w, r, data, err, "time on page")
}

// GetCountries handles GET /api/admin/analytics/countries
func (h *AdminHandler) GetCountries(w http.ResponseWriter, r *http.Request) {
	data, err := h.analyticsService.GetVisitorsByCountry(r.Context(), queryInt(r, "days"))
	h.respond(w, r, data, err, "visitors by country")
}

// GetEventBreakdown handles GET /api/admin/analytics/events
func (h *AdminHandler) GetEventBreakdown(w http.ResponseWriter, r *http.Request) {
	data, err := h.analyticsService.GetEventBreakdown(r.Context(), queryInt(r, "days"))
	h.respond(w, r, data, err, "event breakdown")
}

// GetSummary handles GET /api/admin/analytics/summary
func (h *AdminHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	data, err := h.analyticsService.GetSummary(r.Context(), queryInt(r, "days"))
	h.respond(w, r, data, err, "summary")
}

// GetRecentEvents handles GET /api/admin/analytics/recent
func (h *AdminHandler) GetRecentEvents(w http.ResponseWriter, r *http.Request) {
	data, err := h.analyticsService.GetRecentEvents(r.Context(), queryInt(r, "limit"))
	h.respond(w, r, data, err, "recent events")
}

// SweepCache handles POST /api/admin/cache/sweep
func (h *AdminHandler) SweepCache(w http.ResponseWriter, r *http.Request) {
	removed, err := h.cacheService.ClearExpired(r.Context())
	h.respond(w, r, map[string]int64{"removed": removed}, err, "cache sweep")
}

// ClearCache handles DELETE /api/admin/cache
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	removed, err := h.cacheService.ClearAll(r.Context())
	if err == nil {
		h.logger.WithField("removed", removed).Info("Cache cleared by admin")
	}
	h.respond(w, r, map[string]int64{"removed": removed}, err, "cache clear")
}

// GetBuffer handles GET /api/admin/buffer
func (h *AdminHandler) GetBuffer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DataResponse{
		Success: true,
		Data:    map[string]int{"pending": h.visitorService.PendingEvents()},
	}, h.logger)
}

// FlushBuffer handles POST /api/admin/buffer/flush
func (h *AdminHandler) FlushBuffer(w http.ResponseWriter, r *http.Request) {
	err := h.visitorService.FlushEvents(r.Context())
	if err != nil {
		sendErrorResponse(w, r, errors.NewUnavailableError("Failed to flush events", err), h.logger)
		return
	}
	h.GetBuffer(w, r)
}

// GetFeeds handles GET /api/admin/feeds
func (h *AdminHandler) GetFeeds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DataResponse{Success: true, Data: h.feedService.Status()}, h.logger)
}

// RegisterRoutes registers admin routes; auth is applied by the caller
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/daily", h.GetDailyStats)
		r.Get("/pages", h.GetTopPages)
		r.Get("/referers", h.GetTopReferers)
		r.Get("/time-on-page", h.GetTimeOnPage)
		r.Get("/countries", h.GetCountries)
		r.Get("/events", h.GetEventBreakdown)
		r.Get("/summary", h.GetSummary)
		r.Get("/recent", h.GetRecentEvents)
	})

	r.Post("/cache/sweep", h.SweepCache)
	r.Delete("/cache", h.ClearCache)

	r.Get("/buffer", h.GetBuffer)
	r.Post("/buffer/flush", h.FlushBuffer)

	r.Get("/feeds", h.GetFeeds)
}
