package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/footfall/internal/service"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	jobs *service.JobController
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(jobs *service.JobController) *HealthHandler {
	return &HealthHandler{jobs: jobs}
}

// Health returns the health status of the console and the state of its job
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.jobs != nil {
		resp["job_state"] = h.jobs.Snapshot().State
	}
	c.JSON(http.StatusOK, resp)
}
