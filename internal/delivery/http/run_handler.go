package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/usecase"
)

// RunHandler evaluates code against selected test cases synchronously.
type RunHandler struct {
	runUC  *usecase.RunBatchUsecase
	logger *zap.Logger
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(runUC *usecase.RunBatchUsecase, logger *zap.Logger) *RunHandler {
	return &RunHandler{runUC: runUC, logger: logger}
}

// Run handles POST /api/v1/run
func (h *RunHandler) Run(c *gin.Context) {
	var req domain.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	result, err := h.runUC.Execute(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.logger, "Run batch", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcomes":          result.Outcomes,
		"test_cases_passed": result.Passed(),
		"total_test_cases":  len(result.Outcomes),
	})
}
