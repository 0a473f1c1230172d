package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/usecase"
)

const (
	verdictPollInterval = 500 * time.Millisecond
	runRequestTimeout   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development; restrict in production
	},
}

// streamFrame is one server-to-client message on the run stream.
type streamFrame struct {
	Type    string               `json:"type"` // outcome, result or error
	Index   int                  `json:"index,omitempty"`
	Outcome *domain.JudgeOutcome `json:"outcome,omitempty"`
	Result  *domain.BatchResult  `json:"result,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// WebSocketHandler handles WebSocket connections for streamed runs and
// real-time verdict updates.
type WebSocketHandler struct {
	runUC     *usecase.RunBatchUsecase
	verdictUC *usecase.GetVerdictUsecase
	logger    *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(runUC *usecase.RunBatchUsecase, verdictUC *usecase.GetVerdictUsecase, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		runUC:     runUC,
		verdictUC: verdictUC,
		logger:    logger,
	}
}

// StreamRun handles GET /api/v1/run/stream (WebSocket upgrade). The first
// client frame is a RunRequest; the server pushes each outcome as it settles
// and then the full batch.
func (h *WebSocketHandler) StreamRun(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var req domain.RunRequest
	_ = conn.SetReadDeadline(time.Now().Add(runRequestTimeout))
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(streamFrame{Type: "error", Error: "Invalid run request: " + err.Error()})
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// A read error means the client went away.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	var writeMu sync.Mutex
	write := func(frame streamFrame) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(frame); err != nil {
			h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
			cancel()
		}
	}

	result, err := h.runUC.Stream(ctx, &req, func(i int, o domain.JudgeOutcome) {
		write(streamFrame{Type: "outcome", Index: i, Outcome: &o})
	})
	if err != nil {
		write(streamFrame{Type: "error", Error: err.Error()})
		return
	}
	write(streamFrame{Type: "result", Result: result})
}

// StreamVerdict handles GET /api/v1/submissions/:id/stream (WebSocket upgrade)
func (h *WebSocketHandler) StreamVerdict(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("WebSocket connection opened", zap.String("job_id", idStr))

	ticker := time.NewTicker(verdictPollInterval)
	defer ticker.Stop()

	var last domain.VerdictStatus
	for range ticker.C {
		verdict, err := h.verdictUC.Execute(c.Request.Context(), id)
		if err != nil {
			_ = conn.WriteJSON(gin.H{"error": "Job not found"})
			return
		}

		// Only push status changes
		if verdict.Status != last {
			if err := conn.WriteJSON(verdict); err != nil {
				h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
				return
			}
			last = verdict.Status
		}

		// Stop streaming once the job reaches a terminal state
		if verdict.Status.IsTerminal() {
			h.logger.Debug("Job reached terminal state, closing WebSocket", zap.String("job_id", idStr))
			return
		}
	}
}
