package api

import (
	"net/http"

	"fitlife/plan-service/internal/repository"
	"fitlife/plan-service/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	planService service.PlanService,
	refreshJob *service.RefreshJob,
	userRepo repository.UserRepository,
) {
	planHandler := NewPlanHandler(planService, userRepo)
	jobHandler := NewJobHandler(refreshJob)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := router.Group("/api/v1")
	{
		users := apiV1.Group("/users/:userId")
		{
			// POST /api/v1/users/{userId}/plans/refresh
			// Registered before the :type routes so "refresh" is not
			// swallowed as a plan type.
			users.POST("/plans/refresh", jobHandler.RefreshForGoalChange)

			// POST /api/v1/users/{userId}/plans/{type}
			users.POST("/plans/:type", planHandler.CreateOrRefreshPlan)
			// GET /api/v1/users/{userId}/plans/{type}
			users.GET("/plans/:type", planHandler.GetActivePlan)
			// DELETE /api/v1/users/{userId}/plans/{type}/{planId}
			users.DELETE("/plans/:type/:planId", planHandler.DeactivatePlan)
		}

		admin := apiV1.Group("/admin/refresh-job")
		{
			admin.POST("/trigger", jobHandler.TriggerRefresh)
			admin.GET("/stats", jobHandler.GetStats)
		}
	}
}
