package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/domain"
)

// errorStatus maps usecase errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnsupportedLanguage),
		errors.Is(err, domain.ErrEmptySourceCode),
		errors.Is(err, domain.ErrInvalidFunctionName),
		errors.Is(err, domain.ErrNoTestCases):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrProblemNotFound), errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPublishFailed), errors.Is(err, domain.ErrPoolClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status := errorStatus(err)
	switch status {
	case http.StatusInternalServerError:
		logger.Error(op+" failed", zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error"})
	case http.StatusServiceUnavailable:
		logger.Warn(op+" unavailable", zap.Error(err))
		c.JSON(status, gin.H{"error": "Service temporarily unavailable"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}
