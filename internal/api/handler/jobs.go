package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/footfall/internal/notify"
	"github.com/timmy/footfall/internal/service"
)

// JobHandler exposes the primary job lifecycle and its broadcasts.
type JobHandler struct {
	jobs *service.JobController
	bus  notify.Bus
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobs *service.JobController, bus notify.Bus) *JobHandler {
	return &JobHandler{jobs: jobs, bus: bus}
}

// Submit handles POST /api/v1/jobs, creating a job from the wizard's inputs.
func (h *JobHandler) Submit(c *gin.Context) {
	jobID, err := h.jobs.Submit(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "job": h.jobs.Snapshot()})
}

// Current handles GET /api/v1/jobs/current.
func (h *JobHandler) Current(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobs.Snapshot())
}

// Cancel handles POST /api/v1/jobs/current/cancel. The job is cancelled locally even
// when the service could not be reached; the response carries a warning then.
func (h *JobHandler) Cancel(c *gin.Context) {
	err := h.jobs.Cancel(c.Request.Context())
	if errors.Is(err, service.ErrNoActiveJob) {
		respondError(c, err)
		return
	}
	resp := gin.H{"job": h.jobs.Snapshot()}
	if err != nil {
		resp["warning"] = "Cancel request did not reach the processing service: " + service.UserMessage(err)
	}
	c.JSON(http.StatusOK, resp)
}

// Resume handles POST /api/v1/jobs/resume, picking up a job persisted by an earlier run.
func (h *JobHandler) Resume(c *gin.Context) {
	resumed, err := h.jobs.Resume(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resumed": resumed, "job": h.jobs.Snapshot()})
}

// Events handles GET /api/v1/events, streaming job-completed and job-cancelled
// broadcasts as server-sent events until the client disconnects.
func (h *JobHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	events := make(chan notify.Event, 16)
	err := h.bus.Subscribe(ctx, func(ev notify.Event) {
		select {
		case events <- ev:
		default:
			// slow client; it refreshes on the next event anyway
		}
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-events:
			c.SSEvent(string(ev.Type), ev)
			return true
		}
	})
}
