package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/usecase"
)

// SubmissionHandler handles HTTP requests for graded submissions.
type SubmissionHandler struct {
	enqueueUC *usecase.EnqueueGradingUsecase
	verdictUC *usecase.GetVerdictUsecase
	logger    *zap.Logger
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(enqueueUC *usecase.EnqueueGradingUsecase, verdictUC *usecase.GetVerdictUsecase, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		enqueueUC: enqueueUC,
		verdictUC: verdictUC,
		logger:    logger,
	}
}

// Submit handles POST /api/v1/submissions
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req domain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	resp, err := h.enqueueUC.Execute(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.logger, "Submit", err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// GetByID handles GET /api/v1/submissions/:id
func (h *SubmissionHandler) GetByID(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	verdict, err := h.verdictUC.Execute(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger.With(zap.String("job_id", idStr)), "Get verdict", err)
		return
	}

	c.JSON(http.StatusOK, verdict)
}
