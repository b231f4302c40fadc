package handler

import (
	"net/http"
	"sync"

	"videoarchive/internal/model"
	"videoarchive/internal/service"
	"videoarchive/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ArchiveHandler exposes service health and the archive run trigger
type ArchiveHandler struct {
	archiveService *service.ArchiveService
	quotaService   *service.QuotaService
	runMu          sync.Mutex
}

// NewArchiveHandler creates a new archive handler
func NewArchiveHandler(as *service.ArchiveService, qs *service.QuotaService) *ArchiveHandler {
	return &ArchiveHandler{
		archiveService: as,
		quotaService:   qs,
	}
}

// HealthCheck handles GET /health
func (h *ArchiveHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "videoarchive",
	})
}

// TriggerRun handles POST /api/archive/run. At most one run executes at
// a time; a concurrent trigger is rejected, not queued.
func (h *ArchiveHandler) TriggerRun(c *gin.Context) {
	if !h.runMu.TryLock() {
		logger.Logger.Warn("Archive run already in progress", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusConflict, model.ErrorResponse{
			Error:   "run_in_progress",
			Message: "An archive run is already in progress",
			Code:    http.StatusConflict,
		})
		return
	}
	defer h.runMu.Unlock()

	summary, err := h.archiveService.Run(c.Request.Context())
	if err != nil {
		logger.Logger.Error("Archive run failed to start", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "run_failed",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetQuota handles GET /api/quota
func (h *ArchiveHandler) GetQuota(c *gin.Context) {
	c.JSON(http.StatusOK, h.quotaService.GetQuotaInfo(c.ClientIP()))
}
