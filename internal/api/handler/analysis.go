package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/footfall/internal/domain"
	"github.com/timmy/footfall/internal/service"
	"github.com/timmy/footfall/internal/timewindow"
)

// AnalysisHandler exposes custom sub-range analysis of a completed job.
type AnalysisHandler struct {
	subrange *service.SubRangeController
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(subrange *service.SubRangeController) *AnalysisHandler {
	return &AnalysisHandler{subrange: subrange}
}

type loadRequest struct {
	JobID string `json:"job_id" binding:"required"`
}

type areaRequest struct {
	Area string `json:"area"`
}

// Load handles POST /api/v1/analysis/load.
func (h *AnalysisHandler) Load(c *gin.Context) {
	var req loadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.subrange.Load(c.Request.Context(), req.JobID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.subrange.Snapshot())
}

// State handles GET /api/v1/analysis.
func (h *AnalysisHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.subrange.Snapshot())
}

// SetWindow handles PUT /api/v1/analysis/window. An invalid window is stored and
// reported with its reason; generation stays blocked until it is fixed.
func (h *AnalysisHandler) SetWindow(c *gin.Context) {
	var req timewindow.Window
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res := h.subrange.SetSubWindow(req)
	c.JSON(http.StatusOK, gin.H{"check": res, "state": h.subrange.Snapshot()})
}

// SetArea handles PUT /api/v1/analysis/area.
func (h *AnalysisHandler) SetArea(c *gin.Context) {
	var req areaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.subrange.SetArea(req.Area)
	c.JSON(http.StatusOK, h.subrange.Snapshot())
}

// Generate handles POST /api/v1/analysis/generate.
func (h *AnalysisHandler) Generate(c *gin.Context) {
	if err := h.subrange.Generate(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, h.subrange.Snapshot())
}

// Analyze handles GET /api/v1/analysis/result, refetching the analysis for the
// current sub-window and area.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	analysis, err := h.subrange.Analyze(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// Export handles GET /api/v1/analysis/export/:kind, returning the artifact. When it
// was archived the storage URL is sent in X-Archive-URL.
func (h *AnalysisHandler) Export(c *gin.Context) {
	kind := domain.ExportKind(c.Param("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown export format %q", kind)})
		return
	}
	res, err := h.subrange.Export(c.Request.Context(), kind)
	if res == nil {
		respondError(c, err)
		return
	}
	if err != nil {
		c.Header("X-Archive-Error", err.Error())
	}
	if res.URL != "" {
		c.Header("X-Archive-URL", res.URL)
	}
	filename := fmt.Sprintf("%s-%d-%d.%s", res.JobID, res.StartSeconds, res.EndSeconds, kind.Extension())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, res.ContentType, res.Data)
}
