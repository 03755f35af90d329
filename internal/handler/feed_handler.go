package handler

import (
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"site-analytics/internal/domain"
	"site-analytics/internal/service"
	"site-analytics/pkg/errors"
	"site-analytics/pkg/logger"
)

// FeedHandler serves the cached remote feeds
type FeedHandler struct {
	feedService service.FeedService
	logger      *logger.Logger
}

// FeedResponse wraps a feed payload with its freshness tag
type FeedResponse struct {
	Success   bool             `json:"success"`
	Data      json.RawMessage  `json:"data"`
	Freshness domain.Freshness `json:"freshness"`
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feedService service.FeedService, logger *logger.Logger) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
		logger:      logger.Named("feeds"),
	}
}

// GetFeed handles GET /api/feeds/{name}
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	result, err := h.feedService.Fetch(r.Context(), name)
	if err != nil {
		if stderrors.Is(err, service.ErrFeedNotFound) {
			sendErrorResponse(w, r, errors.NewNotFoundError("Feed not found"), h.logger)
			return
		}

		h.logger.WithError(err).WithField("feed", name).Error("Failed to fetch feed")
		sendErrorResponse(w, r, errors.NewExternalError("Failed to fetch "+name+" feed", err), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, FeedResponse{
		Success:   true,
		Data:      result.Data,
		Freshness: result.Freshness,
	}, h.logger)
}

// ListFeeds handles GET /api/feeds
func (h *FeedHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DataResponse{Success: true, Data: h.feedService.Names()}, h.logger)
}

// RegisterRoutes registers feed routes with the router
func (h *FeedHandler) RegisterRoutes(r chi.Router) {
	r.Route("/feeds", func(r chi.Router) {
		r.Get("/", h.ListFeeds)
		r.Get("/{name}", h.GetFeed)
	})
}
