package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/footfall/internal/api/middleware"
	"github.com/timmy/footfall/internal/logger"
	"github.com/timmy/footfall/internal/service"
	"github.com/timmy/footfall/internal/timewindow"
	"github.com/timmy/footfall/internal/wizard"
)

const frameTimeout = 2 * time.Minute

// WizardHandler exposes the job set-up wizard.
type WizardHandler struct {
	wizard *wizard.Wizard
	intake *service.Intake
	log    *logger.Logger

	mu        sync.Mutex
	framePath string
}

// NewWizardHandler creates a new wizard handler.
// Parameters:
//   - wiz: the console's wizard.
//   - intake: video probing and reference frame extraction.
//   - log: logger for background frame extraction.
//
// Returns:
//   - *WizardHandler: initialized handler.
func NewWizardHandler(wiz *wizard.Wizard, intake *service.Intake, log *logger.Logger) *WizardHandler {
	return &WizardHandler{wizard: wiz, intake: intake, log: log.WithComponent("wizard-handler")}
}

type videoRequest struct {
	Path string `json:"path" binding:"required"`
}

type windowRequest struct {
	StartDate string `json:"start_date"`
	StartTime string `json:"start_time"`
	EndDate   string `json:"end_date"`
	EndTime   string `json:"end_time"`
}

type adjustRequest struct {
	Target string `json:"target" binding:"required,oneof=start end"`
	Field  string `json:"field" binding:"required,oneof=hours minutes seconds"`
	Delta  int    `json:"delta"`
}

type pointRequest struct {
	X  *float64 `json:"x"`
	Y  *float64 `json:"y"`
	PX *float64 `json:"px"`
	PY *float64 `json:"py"`
}

type navigateRequest struct {
	Action string `json:"action" binding:"omitempty,oneof=next previous"`
	Step   *int   `json:"step"`
}

// State handles GET /api/v1/wizard.
func (h *WizardHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.wizard.Snapshot())
}

// SelectVideo handles POST /api/v1/wizard/video. It accepts either a multipart upload
// in the "video" field or JSON {"path": ...} naming a file the console can read.
// Frame extraction continues in the background.
func (h *WizardHandler) SelectVideo(c *gin.Context) {
	var path string
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("video")
		if err != nil {
			badRequest(c, err)
			return
		}
		path = h.intake.UploadPath(file.Filename)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			respondError(c, err)
			return
		}
		if err := c.SaveUploadedFile(file, path); err != nil {
			respondError(c, err)
			return
		}
	} else {
		var req videoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		path = req.Path
	}

	if _, err := h.intake.LoadVideo(c.Request.Context(), path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found: " + filepath.Base(path)})
			return
		}
		respondError(c, err)
		return
	}

	go h.extractFrame(context.Background())
	c.JSON(http.StatusOK, h.wizard.Snapshot())
}

func (h *WizardHandler) extractFrame(parent context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(parent, frameTimeout)
	defer cancel()
	path, err := h.intake.ExtractFrame(ctx)
	if err != nil {
		h.log.WithError(err).Warn("Reference frame extraction failed")
		return "", err
	}
	h.mu.Lock()
	h.framePath = path
	h.mu.Unlock()
	return path, nil
}

// ExtractFrame handles POST /api/v1/wizard/frame, re-extracting the reference frame.
func (h *WizardHandler) ExtractFrame(c *gin.Context) {
	if _, err := h.extractFrame(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.wizard.Snapshot())
}

// Frame handles GET /api/v1/wizard/frame, serving the reference frame image.
func (h *WizardHandler) Frame(c *gin.Context) {
	h.mu.Lock()
	path := h.framePath
	h.mu.Unlock()
	if path == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No reference frame yet"})
		return
	}
	c.File(path)
}

// SetWindow handles PUT /api/v1/wizard/window. Setting the start derives a default
// end from the video; an explicit end overrides it.
func (h *WizardHandler) SetWindow(c *gin.Context) {
	var req windowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.StartDate != "" || req.StartTime != "" {
		h.wizard.SetStart(req.StartDate, req.StartTime)
	}
	if req.EndDate != "" || req.EndTime != "" {
		h.wizard.SetEnd(req.EndDate, req.EndTime)
	}
	h.respondWindow(c)
}

// AdjustWindow handles POST /api/v1/wizard/window/adjust, stepping one field of the
// start or end time with wraparound.
func (h *WizardHandler) AdjustWindow(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	field := timewindow.Field(req.Field)
	if req.Target == "start" {
		h.wizard.AdjustStart(field, req.Delta)
	} else {
		h.wizard.AdjustEnd(field, req.Delta)
	}
	h.respondWindow(c)
}

func (h *WizardHandler) respondWindow(c *gin.Context) {
	snap := h.wizard.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"window": snap.Window,
		"check":  snap.WindowCheck,
		"state":  snap,
	})
}

// AddPoint handles POST /api/v1/wizard/points with either normalized {x, y} or a
// pixel click {px, py} on the reference frame.
func (h *WizardHandler) AddPoint(c *gin.Context) {
	var req pointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var added bool
	switch {
	case req.PX != nil && req.PY != nil:
		added = h.wizard.AddClick(*req.PX, *req.PY)
	case req.X != nil && req.Y != nil:
		added = h.wizard.AddPoint(*req.X, *req.Y)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide x and y, or px and py"})
		return
	}
	if !added {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Point not added: four corners already set, or the point is off the frame",
			"state": h.wizard.Snapshot(),
		})
		return
	}
	c.JSON(http.StatusOK, h.wizard.Snapshot())
}

// RemovePoint handles DELETE /api/v1/wizard/points/:index.
func (h *WizardHandler) RemovePoint(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, err)
		return
	}
	if !h.wizard.RemovePoint(index) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No point at index " + c.Param("index")})
		return
	}
	c.JSON(http.StatusOK, h.wizard.Snapshot())
}

// Navigate handles POST /api/v1/wizard/navigate with {"action": "next"|"previous"}
// or {"step": n}. A rejected move still answers 200: the wizard is left on a valid
// step and the response says why.
func (h *WizardHandler) Navigate(c *gin.Context) {
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var nav wizard.Navigation
	switch {
	case req.Step != nil:
		nav = h.wizard.GoTo(wizard.Step(*req.Step))
	case req.Action == "next":
		nav = h.wizard.Next()
	case req.Action == "previous":
		nav = h.wizard.Previous()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide an action or a step"})
		return
	}
	if nav.Rejected {
		middleware.GetLogger(c).WithFields(logger.Fields{
			logger.FieldStep: int(nav.To),
			"requested":      int(nav.Requested),
		}).Debug("Navigation snapped back: " + nav.Reason)
	}
	c.JSON(http.StatusOK, gin.H{"navigation": nav, "state": h.wizard.Snapshot()})
}

// Reset handles POST /api/v1/wizard/reset.
func (h *WizardHandler) Reset(c *gin.Context) {
	h.wizard.Reset()
	h.mu.Lock()
	h.framePath = ""
	h.mu.Unlock()
	c.JSON(http.StatusOK, h.wizard.Snapshot())
}
