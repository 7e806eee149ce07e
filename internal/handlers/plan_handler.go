package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scriba_backend/internal/middleware"
	"scriba_backend/internal/models"
	"scriba_backend/internal/services"
	"scriba_backend/internal/services/dto"
)

type PlanHandler struct {
	*BaseHandler
	planService services.PlanService
}

func NewPlanHandler(base *BaseHandler, planService services.PlanService) *PlanHandler {
	return &PlanHandler{BaseHandler: base, planService: planService}
}

func (h *PlanHandler) RegisterRoutes(rg *gin.RouterGroup) {
	plans := rg.Group("/plans")
	plans.Use(middleware.AuthMiddleware())
	{
		plans.GET("", h.List)
		plans.GET("/:id", h.Get)
	}

	admin := rg.Group("/admin/plans")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireRoles(models.UserRoleAdmin))
	{
		admin.POST("", h.Create)
		admin.PUT("/:id", h.Update)
		admin.DELETE("/:id", h.Delete)
		admin.POST("/activate", h.Activate)
	}
}

func (h *PlanHandler) List(c *gin.Context) {
	plans, err := h.planService.List()
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func (h *PlanHandler) Get(c *gin.Context) {
	plan, err := h.planService.Get(c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

func (h *PlanHandler) Create(c *gin.Context) {
	var req dto.CreatePlanRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	plan, err := h.planService.Create(&req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"plan": plan})
}

func (h *PlanHandler) Update(c *gin.Context) {
	var req dto.UpdatePlanRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	plan, err := h.planService.Update(c.Param("id"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

func (h *PlanHandler) Delete(c *gin.Context) {
	if err := h.planService.Delete(c.Param("id")); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Activate is the hook the payment boundary calls once a purchase settles.
func (h *PlanHandler) Activate(c *gin.Context) {
	var req dto.ActivatePlanRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	user, err := h.planService.Activate(&req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
