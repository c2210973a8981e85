package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/bughunter/models"
	"github.com/use-agent/bughunter/store"
)

// respondError maps err to an HTTP status and writes the structured error body.
func respondError(c *gin.Context, err error) {
	var scanErr *models.ScanError
	switch {
	case errors.As(err, &scanErr):
	case errors.Is(err, store.ErrNotFound):
		scanErr = models.NewScanError(models.ErrCodeNotFound, "scan not found", nil)
	default:
		scanErr = models.NewScanError(models.ErrCodeInternal, "internal error", err)
	}

	c.JSON(mapErrorToStatus(scanErr), models.ErrorResponse{
		Success: false,
		Error:   scanErr.ToDetail(),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: msg},
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScanError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited, models.ErrCodeLLMRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeBusy, models.ErrCodeLLMDisabled:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeLLMFailure, models.ErrCodeLLMAuthFailure:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}
