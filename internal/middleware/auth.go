package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"site-analytics/pkg/errors"
	"site-analytics/pkg/logger"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"

	// RequestIDHeader carries the request ID in both directions
	RequestIDHeader = "X-Request-ID"

	adminRealm = `Basic realm="Admin Area"`
)

// AdminAuth protects the admin API with HTTP Basic Auth. An empty password
// leaves the routes open and logs a warning once at startup.
func AdminAuth(user, pass string, logger *logger.Logger) func(http.Handler) http.Handler {
	if pass == "" {
		logger.Warn("ADMIN_PASS is not set, admin routes are unprotected")
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser, gotPass, ok := r.BasicAuth()
			userMatch := subtle.ConstantTimeCompare([]byte(gotUser), []byte(user)) == 1
			passMatch := subtle.ConstantTimeCompare([]byte(gotPass), []byte(pass)) == 1

			if !ok || !userMatch || !passMatch {
				logger.WithField("path", r.URL.Path).Warn("Admin authentication failed")
				w.Header().Set("WWW-Authenticate", adminRealm)
				WriteErrorResponse(w, r, errors.NewAuthenticationError("Authentication required"), logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestID creates a middleware that adds a unique request ID to each request.
// An incoming X-Request-ID that parses as a UUID is kept.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID stored by RequestID, or ""
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// WriteErrorResponse renders an AppError as the standard JSON error envelope
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, appErr *errors.AppError, logger *logger.Logger) {
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.WithError(appErr).Error("Request error")
	} else {
		logger.WithError(appErr).Debug("Request rejected")
	}

	response := &errors.ErrorResponse{}
	response.Error.Type = appErr.Type
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.RequestID = GetRequestID(r.Context())
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.WithError(err).Error("Failed to encode error response")
	}
}
