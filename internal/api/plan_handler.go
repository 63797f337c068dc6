package api

import (
	"errors"
	"net/http"
	"time"

	"fitlife/plan-service/internal/domain"
	"fitlife/plan-service/internal/repository"
	"fitlife/plan-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanHandler holds the coordinator and user-store dependencies.
type PlanHandler struct {
	planService service.PlanService
	userRepo    repository.UserRepository
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(planService service.PlanService, userRepo repository.UserRepository) *PlanHandler {
	return &PlanHandler{planService: planService, userRepo: userRepo}
}

// --- DTOs for API (Data Transfer Objects) ---

// CreateOrRefreshRequest defines the JSON body for requesting a plan.
type CreateOrRefreshRequest struct {
	Preferences map[string]string `json:"preferences,omitempty"`
	Force       bool              `json:"force"`
}

// PlanResponse is the DTO for returning plan details.
type PlanResponse struct {
	ID              string                 `json:"id"`
	PlanID          string                 `json:"planId"`
	UserID          string                 `json:"userId"`
	Type            domain.PlanType        `json:"type"`
	IsActive        bool                   `json:"isActive"`
	Source          domain.PlanSource      `json:"source"`
	LastRefreshed   time.Time              `json:"lastRefreshed"`
	NextRefreshDate time.Time              `json:"nextRefreshDate"`
	CacheExpiry     time.Time              `json:"cacheExpiry"`
	Workout         *domain.WorkoutPayload `json:"workout,omitempty"`
	Diet            *domain.DietPayload    `json:"diet,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
}

// MapPlanToResponse converts a domain.Plan to PlanResponse DTO.
func MapPlanToResponse(p *domain.Plan) PlanResponse {
	if p == nil {
		return PlanResponse{}
	}
	return PlanResponse{
		ID:              p.ID.Hex(),
		PlanID:          p.PlanID,
		UserID:          p.UserID.Hex(),
		Type:            p.Type,
		IsActive:        p.IsActive,
		Source:          p.Source,
		LastRefreshed:   p.LastRefreshed,
		NextRefreshDate: p.NextRefreshDate,
		CacheExpiry:     p.CacheExpiry,
		Workout:         p.Workout,
		Diet:            p.Diet,
		CreatedAt:       p.CreatedAt,
	}
}

// --- Helpers ---

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func parseObjectID(c *gin.Context, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid "+param)
		return primitive.NilObjectID, false
	}
	return id, true
}

func parsePlanType(c *gin.Context) (domain.PlanType, bool) {
	planType := domain.PlanType(c.Param("type"))
	switch planType {
	case domain.PlanTypeWorkout, domain.PlanTypeDiet:
		return planType, true
	}
	abortWithError(c, http.StatusBadRequest, "plan type must be 'workout' or 'diet'")
	return "", false
}

// --- Handler Methods ---

// CreateOrRefreshPlan handles POST /users/:userId/plans/:type.
// The user's stored profile is the generation input.
func (h *PlanHandler) CreateOrRefreshPlan(c *gin.Context) {
	userID, ok := parseObjectID(c, "userId")
	if !ok {
		return
	}
	planType, ok := parsePlanType(c)
	if !ok {
		return
	}

	var req CreateOrRefreshRequest
	// Body is optional; an empty body means defaults.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, "user not found")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "failed to load user")
		return
	}

	prefs := req.Preferences
	if prefs == nil {
		prefs = user.Preferences
	}

	plan, err := h.planService.CreateOrRefresh(c.Request.Context(), userID, planType, user.Profile, prefs, req.Force)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfileIncomplete):
			abortWithError(c, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, service.ErrGeneration):
			abortWithError(c, http.StatusBadGateway, "plan generation failed")
		default:
			abortWithError(c, http.StatusInternalServerError, "failed to create plan")
		}
		return
	}

	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

// GetActivePlan handles GET /users/:userId/plans/:type.
func (h *PlanHandler) GetActivePlan(c *gin.Context) {
	userID, ok := parseObjectID(c, "userId")
	if !ok {
		return
	}
	planType, ok := parsePlanType(c)
	if !ok {
		return
	}

	plan, err := h.planService.GetUserActivePlan(c.Request.Context(), userID, planType)
	if err != nil {
		if errors.Is(err, service.ErrNoActivePlan) {
			// Absence is an explicit result, not a server error.
			c.JSON(http.StatusNotFound, gin.H{"active": false})
			return
		}
		abortWithError(c, http.StatusInternalServerError, "failed to load plan")
		return
	}

	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

// DeactivatePlan handles DELETE /users/:userId/plans/:type/:planId.
func (h *PlanHandler) DeactivatePlan(c *gin.Context) {
	userID, ok := parseObjectID(c, "userId")
	if !ok {
		return
	}
	planID, ok := parseObjectID(c, "planId")
	if !ok {
		return
	}

	err := h.planService.Deactivate(c.Request.Context(), userID, planID)
	if err != nil {
		if errors.Is(err, service.ErrPlanNotFound) {
			abortWithError(c, http.StatusNotFound, "no such active plan for this user")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "failed to deactivate plan")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deactivated": true})
}
