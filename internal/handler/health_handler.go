package handler

import (
	"context"
	"net/http"
	"time"

	"site-analytics/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker is implemented by the database and redis clients
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db      HealthChecker
	redis   HealthChecker
	version string
	logger  *logger.Logger
}

// NewHealthHandler creates a new health handler. redis may be nil when the
// rate limiter is disabled.
func NewHealthHandler(db, redis HealthChecker, version string, logger *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redis,
		version: version,
		logger:  logger.Named("health"),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
}

// Check handles GET /health. The database is required; redis only degrades.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Service:   "site-analytics",
		Checks:    map[string]string{},
	}
	statusCode := http.StatusOK

	if err := h.db.Health(ctx); err != nil {
		h.logger.WithError(err).Error("Database health check failed")
		response.Status = "unhealthy"
		response.Checks["database"] = "down"
		statusCode = http.StatusServiceUnavailable
	} else {
		response.Checks["database"] = "up"
	}

	if h.redis == nil {
		response.Checks["redis"] = "disabled"
	} else if err := h.redis.Health(ctx); err != nil {
		h.logger.WithError(err).Warn("Redis health check failed")
		response.Checks["redis"] = "down"
		if statusCode == http.StatusOK {
			response.Status = "degraded"
		}
	} else {
		response.Checks["redis"] = "up"
	}

	writeJSON(w, statusCode, response, h.logger)
}
