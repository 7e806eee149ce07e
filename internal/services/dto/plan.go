package dto

import "scriba_backend/internal/models"

type CreatePlanRequest struct {
	Name           string              `json:"name" validate:"required,min=2,max=100"`
	Description    string              `json:"description"`
	Price          float64             `json:"price" validate:"gte=0"`
	DurationInDays int                 `json:"duration_in_days" validate:"required,gt=0"`
	Features       models.PlanFeatures `json:"features"`
}

type UpdatePlanRequest struct {
	Name           *string              `json:"name" validate:"omitempty,min=2,max=100"`
	Description    *string              `json:"description"`
	Price          *float64             `json:"price" validate:"omitempty,gte=0"`
	DurationInDays *int                 `json:"duration_in_days" validate:"omitempty,gt=0"`
	Features       *models.PlanFeatures `json:"features"`
}

// ActivatePlanRequest is posted by the payment boundary (or an admin) once a
// purchase is confirmed.
type ActivatePlanRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	PlanID string `json:"plan_id" validate:"required,uuid"`
}
