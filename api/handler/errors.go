package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/llmbait/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// respondError maps err to an HTTP status and writes a SearchResponse.
func respondError(c *gin.Context, id string, err error) {
	code := codeOf(err)
	detail := &models.ErrorDetail{Code: code, Message: err.Error()}
	c.JSON(mapErrorToStatus(code), models.SearchResponse{
		Success: false,
		ID:      id,
		Error:   detail,
	})
}

// codeOf returns the code of the outermost typed error in err's chain.
func codeOf(err error) string {
	var se *models.SearchError
	if errors.As(err, &se) {
		return se.Code
	}
	return models.ErrCodeInternal
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(code string) int {
	switch code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeExtraction, models.ErrCodeObservation,
		models.ErrCodeInjection, models.ErrCodeActionFailed,
		models.ErrCodeLLMFailure, models.ErrCodeLLMAuthFailure, models.ErrCodeFetchFailed:
		return http.StatusBadGateway // 502
	case models.ErrCodeBrowserCrash, models.ErrCodeLLMNotConfigured:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited, models.ErrCodeLLMRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
