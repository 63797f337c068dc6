package api

import (
	"errors"
	"net/http"

	"fitlife/plan-service/internal/service"

	"github.com/gin-gonic/gin"
)

// JobHandler exposes the refresh sweep's control surface.
type JobHandler struct {
	refreshJob *service.RefreshJob
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(refreshJob *service.RefreshJob) *JobHandler {
	return &JobHandler{refreshJob: refreshJob}
}

// TriggerRefresh handles POST /admin/refresh-job/trigger. Runs a full sweep
// synchronously and returns its statistics.
func (h *JobHandler) TriggerRefresh(c *gin.Context) {
	stats, err := h.refreshJob.TriggerManualRefresh(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrJobAlreadyRunning) {
			abortWithError(c, http.StatusConflict, "refresh job already running")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "refresh job failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetStats handles GET /admin/refresh-job/stats.
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, hasRun := h.refreshJob.GetJobStats()
	c.JSON(http.StatusOK, gin.H{
		"hasRun":  hasRun,
		"running": h.refreshJob.IsJobRunning(),
		"last":    stats,
		"next":    h.refreshJob.GetNextRunInfo(),
	})
}

// RefreshForGoalChange handles POST /users/:userId/plans/refresh. Forces an
// immediate refresh of the user's active plans after a goal edit.
func (h *JobHandler) RefreshForGoalChange(c *gin.Context) {
	userID, ok := parseObjectID(c, "userId")
	if !ok {
		return
	}

	if err := h.refreshJob.RefreshPlansForGoalChange(c.Request.Context(), userID); err != nil {
		if errors.Is(err, service.ErrProfileIncomplete) {
			abortWithError(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		abortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": true})
}
