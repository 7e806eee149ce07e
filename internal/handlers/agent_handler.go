package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"scriba_backend/internal/logger"
	"scriba_backend/internal/middleware"
	"scriba_backend/internal/services"
	"scriba_backend/internal/services/dto"
)

type AgentHandler struct {
	*BaseHandler
	agentService services.AgentService
}

func NewAgentHandler(base *BaseHandler, agentService services.AgentService) *AgentHandler {
	return &AgentHandler{BaseHandler: base, agentService: agentService}
}

func (h *AgentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	agents := rg.Group("/agents")
	agents.Use(middleware.AuthMiddleware())
	{
		agents.GET("", h.List)
		agents.POST("", h.Create)
		agents.GET("/:id", h.Get)
		agents.PUT("/:id", h.Update)
		agents.DELETE("/:id", h.Delete)
		agents.POST("/:id/execute", h.Execute)
	}

	actions := rg.Group("/agent-actions")
	actions.Use(middleware.AuthMiddleware())
	{
		actions.GET("", h.ListActions)
		actions.GET("/:id", h.GetAction)
		actions.GET("/:id/download", h.DownloadOutput)
	}
}

func (h *AgentHandler) List(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	agents, err := h.agentService.ListVisible(userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func (h *AgentHandler) Create(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req dto.CreateAgentRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	agent, err := h.agentService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"agent": agent})
}

func (h *AgentHandler) Get(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	agent, err := h.agentService.Get(userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": agent})
}

func (h *AgentHandler) Update(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateAgentRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	agent, err := h.agentService.Update(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": agent})
}

func (h *AgentHandler) Delete(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	if err := h.agentService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Execute admits a single-shot run and returns the pending action.
func (h *AgentHandler) Execute(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req dto.ExecuteAgentRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	action, err := h.agentService.Execute(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"action": action})
}

func (h *AgentHandler) GetAction(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	action, err := h.agentService.GetAction(userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"action": action})
}

func (h *AgentHandler) ListActions(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	limit, offset := ParsePagination(c)
	actions, total, err := h.agentService.ListActions(userID, limit, offset)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions, "total": total})
}

func (h *AgentHandler) DownloadOutput(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	reader, fileName, err := h.agentService.OpenActionOutput(c.Request.Context(), userID, c.Param("id"))
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
