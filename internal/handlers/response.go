package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/your-org/storefront/internal/domain"
	"github.com/your-org/storefront/internal/middleware"
	"github.com/your-org/storefront/internal/usecases"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, r *http.Request, logger *zap.Logger, status int, data interface{}) {
	requestID := middleware.GetRequestID(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set(middleware.RequestIDHeader, requestID)
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, status int, message string) {
	respondJSON(w, r, logger, status, map[string]string{
		"error":      message,
		"request_id": middleware.GetRequestID(r.Context()),
	})
}

// respondFailure maps a usecase error to a status code and logs server-side failures.
func respondFailure(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, r, logger, status, http.StatusText(status))
		return
	}
	respondError(w, r, logger, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecases.ErrInvalidCollection), errors.Is(err, usecases.ErrEmptyUpload):
		return http.StatusBadRequest
	case errors.Is(err, usecases.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, usecases.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrStoreClosed), errors.Is(err, usecases.ErrNoImageBackend):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
