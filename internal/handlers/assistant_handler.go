package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"scriba_backend/internal/logger"
	"scriba_backend/internal/middleware"
	"scriba_backend/internal/services"
	"scriba_backend/internal/services/dto"
	"scriba_backend/pkg/apperrors"
)

type AssistantHandler struct {
	*BaseHandler
	assistantService services.AssistantService
}

func NewAssistantHandler(base *BaseHandler, assistantService services.AssistantService) *AssistantHandler {
	return &AssistantHandler{BaseHandler: base, assistantService: assistantService}
}

func (h *AssistantHandler) RegisterRoutes(rg *gin.RouterGroup) {
	assistants := rg.Group("/assistants")
	assistants.Use(middleware.AuthMiddleware())
	{
		assistants.GET("", h.List)
		assistants.POST("", h.Create)
		assistants.GET("/:id", h.Get)
		assistants.PUT("/:id", h.Update)
		assistants.DELETE("/:id", h.Delete)
		assistants.POST("/:id/execute", h.Execute)
	}

	runs := rg.Group("/assistant-runs")
	runs.Use(middleware.AuthMiddleware())
	{
		runs.GET("", h.ListRuns)
		runs.GET("/:id", h.GetRun)
		runs.GET("/:id/download", h.DownloadOutput)
	}
}

func (h *AssistantHandler) List(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	assistants, err := h.assistantService.ListVisible(userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assistants": assistants})
}

// Create accepts either a JSON body or a multipart form with a "payload"
// JSON field plus "files" entries for the knowledge base.
func (h *AssistantHandler) Create(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req dto.CreateAssistantRequest
	if !h.bindAssistantRequest(c, &req, &req.KnowledgeFiles) {
		return
	}
	if !h.validate(c, &req) {
		return
	}

	assistant, err := h.assistantService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"assistant": assistant})
}

func (h *AssistantHandler) Get(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	assistant, err := h.assistantService.Get(userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assistant": assistant})
}

func (h *AssistantHandler) Update(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateAssistantRequest
	if !h.bindAssistantRequest(c, &req, &req.KnowledgeFiles) {
		return
	}
	if !h.validate(c, &req) {
		return
	}

	assistant, err := h.assistantService.Update(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assistant": assistant})
}

func (h *AssistantHandler) Delete(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	if err := h.assistantService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AssistantHandler) Execute(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req dto.ExecuteAssistantRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	run, err := h.assistantService.Execute(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

func (h *AssistantHandler) GetRun(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	run, err := h.assistantService.GetRun(userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (h *AssistantHandler) ListRuns(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	limit, offset := ParsePagination(c)
	runs, total, err := h.assistantService.ListRuns(userID, limit, offset)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": total})
}

func (h *AssistantHandler) DownloadOutput(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	reader, fileName, err := h.assistantService.OpenRunOutput(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Header("Content-Type", "application/pdf")
	if _, err := io.Copy(c.Writer, reader); err != nil {
		logger.CtxWithError(c.Request.Context(), "failed to stream output document", err)
	}
}

// bindAssistantRequest fills obj from either a JSON body or the "payload"
// field of a multipart form, collecting any uploaded knowledge files.
func (h *AssistantHandler) bindAssistantRequest(c *gin.Context, obj interface{}, files *[]dto.KnowledgeFile) bool {
	contentType := c.GetHeader("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		if err := c.ShouldBindJSON(obj); err != nil {
			apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid request body: "+err.Error()))
			return false
		}
		return true
	}

	form, err := c.MultipartForm()
	if err != nil {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid multipart form: "+err.Error()))
		return false
	}

	payload := c.PostForm("payload")
	if payload == "" {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Missing 'payload' form field"))
		return false
	}
	if err := json.Unmarshal([]byte(payload), obj); err != nil {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid payload JSON: "+err.Error()))
		return false
	}

	for _, fileHeader := range form.File["files"] {
		content, err := readMultipartFile(fileHeader)
		if err != nil {
			apperrors.HandleError(c, apperrors.NewBadRequestError("Failed to read uploaded file "+fileHeader.Filename))
			return false
		}
		*files = append(*files, dto.KnowledgeFile{Name: fileHeader.Filename, Content: content})
	}
	return true
}

func readMultipartFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
