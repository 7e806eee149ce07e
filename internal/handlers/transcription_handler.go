package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"scriba_backend/internal/config"
	"scriba_backend/internal/middleware"
	"scriba_backend/internal/services"
	"scriba_backend/pkg/apperrors"
)

type TranscriptionHandler struct {
	*BaseHandler
	transcriptionService services.TranscriptionService
}

func NewTranscriptionHandler(base *BaseHandler, transcriptionService services.TranscriptionService) *TranscriptionHandler {
	return &TranscriptionHandler{BaseHandler: base, transcriptionService: transcriptionService}
}

func (h *TranscriptionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	transcriptions := rg.Group("/transcriptions")
	transcriptions.Use(middleware.AuthMiddleware())
	{
		transcriptions.POST("", h.Upload)
		transcriptions.GET("", h.List)
		transcriptions.GET("/:id", h.Get)
		transcriptions.DELETE("/:id", h.Delete)
	}
}

// Upload admits an audio file and returns the pending job the client polls.
func (h *TranscriptionHandler) Upload(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		apperrors.HandleError(c, apperrors.NewBadRequestError("An audio file is required in the 'audio' form field"))
		return
	}

	cfg := config.GetConfig()
	if cfg.Upload.MaxSize > 0 && fileHeader.Size > cfg.Upload.MaxSize {
		apperrors.HandleError(c, apperrors.NewBadRequestError(
			fmt.Sprintf("File exceeds the maximum upload size of %d bytes", cfg.Upload.MaxSize)))
		return
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if len(cfg.Upload.AllowedTypes) > 0 && !allowedExtension(ext, cfg.Upload.AllowedTypes) {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Unsupported audio format: "+ext))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		apperrors.HandleError(c, apperrors.InternalError(err))
		return
	}
	defer file.Close()

	transcription, err := h.transcriptionService.Upload(c.Request.Context(), userID, services.UploadInput{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		SizeBytes:   fileHeader.Size,
		Reader:      file,
		Title:       c.PostForm("title"),
	})
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"transcription": transcription})
}

func (h *TranscriptionHandler) Get(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	transcription, err := h.transcriptionService.Get(userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcription": transcription})
}

func (h *TranscriptionHandler) List(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	limit, offset := ParsePagination(c)
	items, total, err := h.transcriptionService.List(userID, limit, offset)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcriptions": items, "total": total})
}

func (h *TranscriptionHandler) Delete(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	if err := h.transcriptionService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func allowedExtension(ext string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimPrefix(a, "."), strings.TrimPrefix(ext, ".")) {
			return true
		}
	}
	return false
}
