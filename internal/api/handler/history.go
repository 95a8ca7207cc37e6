package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/footfall/internal/service"
)

// HistoryHandler lists and deletes past jobs.
type HistoryHandler struct {
	history *service.HistoryService
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(history *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List handles GET /api/v1/history. ?cached=true answers from the last refresh
// without calling the job service.
func (h *HistoryHandler) List(c *gin.Context) {
	if c.Query("cached") == "true" {
		jobs := h.history.Cached()
		c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
		return
	}
	jobs, err := h.history.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}

// Delete handles DELETE /api/v1/history/:id.
func (h *HistoryHandler) Delete(c *gin.Context) {
	if err := h.history.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
