package handler

import (
	"net/http"

	"github.com/goccy/go-json"

	"site-analytics/internal/middleware"
	"site-analytics/pkg/errors"
	"site-analytics/pkg/logger"
)

// DataResponse is the success envelope of read endpoints
type DataResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("Failed to encode response")
	}
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, r *http.Request, appErr *errors.AppError, logger *logger.Logger) {
	middleware.WriteErrorResponse(w, r, appErr, logger)
}
