package handler

import (
	stderrors "errors"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"site-analytics/internal/domain"
	"site-analytics/internal/service"
	"site-analytics/pkg/errors"
	"site-analytics/pkg/geoip"
	"site-analytics/pkg/logger"
)

const (
	maxCollectBody = 16 << 10

	msgMissingFields = "Missing required fields: type, path"
	msgInvalidType   = "Invalid event type"
	msgInvalidBody   = "Invalid request"
)

// CollectHandler receives analytics beacons from the site
type CollectHandler struct {
	visitorService service.VisitorService
	geo            geoip.Resolver
	validate       *validator.Validate
	logger         *logger.Logger
}

// CollectResponse is returned for accepted events
type CollectResponse struct {
	Success bool `json:"success"`
	Queued  bool `json:"queued,omitempty"`
}

// NewCollectHandler creates a new collect handler
func NewCollectHandler(visitorService service.VisitorService, geo geoip.Resolver, logger *logger.Logger) *CollectHandler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if geo == nil {
		geo = geoip.Noop{}
	}

	return &CollectHandler{
		visitorService: visitorService,
		geo:            geo,
		validate:       validate,
		logger:         logger.Named("collect"),
	}
}

// Collect handles POST /api/analytics/collect
func (h *CollectHandler) Collect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		sendErrorResponse(w, r, errors.NewMethodNotAllowedError("Method not allowed"), h.logger)
		return
	}

	var req domain.CollectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCollectBody)).Decode(&req); err != nil {
		sendErrorResponse(w, r, errors.NewValidationError(msgInvalidBody, nil), h.logger)
		return
	}

	if appErr := h.validateRequest(&req); appErr != nil {
		sendErrorResponse(w, r, appErr, h.logger)
		return
	}

	ctx := r.Context()
	client := h.clientInfo(r)

	rateLimitInfo, err := h.visitorService.CheckRateLimit(ctx, client.IP)
	if err != nil {
		h.logger.WithError(err).Error("Failed to check rate limit")
		sendErrorResponse(w, r, errors.NewInternalError("Failed to record event", err), h.logger)
		return
	}
	if rateLimitInfo.Limit > 0 {
		setRateLimitHeaders(w, rateLimitInfo)
	}
	if !rateLimitInfo.IsAllowed {
		sendErrorResponse(w, r, errors.NewRateLimitError("Rate limit exceeded. Please try again later."), h.logger)
		return
	}

	if domain.EventType(req.Type) == domain.EventTypePageView {
		h.visitorService.RecordVisit(ctx, client, req.Path, req.Referer)
		writeJSON(w, http.StatusOK, CollectResponse{Success: true}, h.logger)
		return
	}

	if err := h.visitorService.QueueEvent(ctx, client, &req); err != nil {
		h.logger.WithError(err).Error("Failed to queue event")
		sendErrorResponse(w, r, errors.NewInternalError("Failed to record event", err), h.logger)
		return
	}

	writeJSON(w, http.StatusAccepted, CollectResponse{Success: true, Queued: true}, h.logger)
}

// validateRequest maps validator failures to the collect endpoint messages
func (h *CollectHandler) validateRequest(req *domain.CollectRequest) *errors.AppError {
	err := h.validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return errors.NewValidationError(msgInvalidBody, nil)
	}

	details := make(map[string]interface{}, len(validationErrors))
	for _, fe := range validationErrors {
		if fe.Tag() == "required" {
			return errors.NewValidationError(msgMissingFields, nil)
		}
		details[fe.Field()] = fe.Tag()
	}

	if _, ok := details["type"]; ok {
		return errors.NewValidationError(msgInvalidType, nil)
	}

	return errors.NewValidationError(msgInvalidBody, details)
}

// clientInfo extracts IP, user agent and country of the sender
func (h *CollectHandler) clientInfo(r *http.Request) domain.ClientInfo {
	ip := getRealIPAddress(r)

	userAgent := r.UserAgent()
	if userAgent == "" {
		userAgent = "unknown"
	}

	country := geoip.NormalizeCountryCode(r.Header.Get("CF-IPCountry"))
	if country == "" {
		country = h.geo.Country(ip)
	}

	return domain.ClientInfo{IP: ip, UserAgent: userAgent, Country: country}
}

// getRealIPAddress extracts the client IP, preferring proxy headers
func getRealIPAddress(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	// X-Forwarded-For can contain multiple IPs, take the first one
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if ip == "" {
		return "unknown"
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers
func setRateLimitHeaders(w http.ResponseWriter, info *domain.RateLimitInfo) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(info.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(info.Remaining(), 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(info.TTL).Unix(), 10))
}

// RegisterRoutes registers collect routes with the router
func (h *CollectHandler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.HandleFunc("/collect", h.Collect)
	})
}
