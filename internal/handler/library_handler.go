package handler

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"videoarchive/internal/model"
	"videoarchive/internal/service"
	"videoarchive/internal/storage"
	"videoarchive/pkg/logger"
	"videoarchive/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"
	"go.uber.org/zap"
)

// LibraryHandler serves the local archive over HTTP
type LibraryHandler struct {
	store        *storage.Manager
	quotaService *service.QuotaService
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(store *storage.Manager, qs *service.QuotaService) *LibraryHandler {
	return &LibraryHandler{
		store:        store,
		quotaService: qs,
	}
}

// ListOwners handles GET /api/owners
func (h *LibraryHandler) ListOwners(c *gin.Context) {
	owners, err := h.store.ListOwners()
	if err != nil {
		logger.Logger.Error("Failed to list archive owners", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "list_failed",
			Message: "Could not read the archive",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	infos := make([]model.OwnerInfo, 0, len(owners))
	for _, owner := range owners {
		videos, err := h.store.ListVideos(owner)
		if err != nil {
			logger.Logger.Warn("Skipping unreadable owner directory",
				zap.String("owner", owner),
				zap.Error(err))
			continue
		}
		var total int64
		for _, v := range videos {
			total += v.Size
		}
		infos = append(infos, model.OwnerInfo{
			OwnerID:    owner,
			VideoCount: len(videos),
			TotalBytes: total,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"owners": infos,
		"count":  len(infos),
	})
}

// ListVideos handles GET /api/owners/:owner/videos
func (h *LibraryHandler) ListVideos(c *gin.Context) {
	owner := c.Param("owner")
	if err := validator.ValidateOwnerID(owner); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_owner",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	if !h.store.OwnerExists(owner) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Error:   "not_found",
			Message: "Owner not found in archive",
			Code:    http.StatusNotFound,
		})
		return
	}

	videos, err := h.store.ListVideos(owner)
	if err != nil {
		logger.Logger.Error("Failed to list owner videos",
			zap.String("owner", owner),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "list_failed",
			Message: "Could not read the owner directory",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"owner":  owner,
		"videos": videos,
		"count":  len(videos),
	})
}

// StreamVideo handles GET /api/owners/:owner/videos/:filename
func (h *LibraryHandler) StreamVideo(c *gin.Context) {
	owner := c.Param("owner")
	if err := validator.ValidateOwnerID(owner); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_owner",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	// Only deterministic archive names are served; everything else,
	// including any path traversal attempt, fails the parse.
	filename := c.Param("filename")
	id, quality, ok := storage.ParseVideoFilename(filename)
	if !ok {
		logger.Logger.Warn("Rejected archive filename",
			zap.String("owner", owner),
			zap.String("filename", filename))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_filename",
			Message: "Not an archive video filename",
			Code:    http.StatusBadRequest,
		})
		return
	}

	path := h.store.VideoPath(owner, id, quality)
	info, err := os.Stat(path)
	if err != nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Error:   "not_found",
			Message: "Video not found in archive",
			Code:    http.StatusNotFound,
		})
		return
	}

	ip := c.ClientIP()
	if allowed, _ := h.quotaService.CanServe(ip, info.Size()); !allowed {
		logger.Logger.Warn("Streaming denied by quota",
			zap.String("ip", ip),
			zap.String("file", filename),
			zap.Int64("size", info.Size()))
		c.JSON(http.StatusPaymentRequired, model.ErrorResponse{
			Error:   "quota_insufficient",
			Message: "Daily streaming quota is insufficient for this file",
			Code:    http.StatusPaymentRequired,
		})
		return
	}

	c.Header("Content-Type", sniffContentType(path))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.File(path)

	h.quotaService.AddUsage(ip, info.Size())

	logger.Logger.Info("Archive file served",
		zap.String("ip", ip),
		zap.String("owner", owner),
		zap.String("file", filename),
		zap.Int64("size", info.Size()))
}

// sniffContentType identifies the served file from its head bytes,
// falling back to the container type the archive only ever stores.
func sniffContentType(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "video/mp4"
	}
	defer f.Close()

	buf := make([]byte, 261)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "video/mp4"
	}

	kind, err := filetype.Match(buf[:n])
	if err != nil || kind == filetype.Unknown {
		return "video/mp4"
	}
	return kind.MIME.Value
}
