package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/timmy/footfall/internal/domain"
	"github.com/timmy/footfall/internal/logger"
	"github.com/timmy/footfall/internal/poller"
	"github.com/timmy/footfall/internal/timewindow"
)

// SubRangeState is the state of a derived heatmap request.
type SubRangeState string

const (
	SubRangeIdle       SubRangeState = "idle"
	SubRangeGenerating SubRangeState = "generating"
	SubRangeReady      SubRangeState = "ready"
	SubRangeFailed     SubRangeState = "failed"
)

// SubRangeAPI is the part of the job service used for derived analysis.
type SubRangeAPI interface {
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	GenerateSubRange(ctx context.Context, jobID string, startSec, endSec int64) error
	GetSubRangeProgress(ctx context.Context, jobID string) (float64, error)
	GetSubRangeImage(ctx context.Context, jobID string, startSec, endSec int64) (string, error)
	GetAnalysis(ctx context.Context, jobID string, startSec, endSec int64, area string) (*domain.Analysis, error)
	Export(ctx context.Context, jobID string, kind domain.ExportKind, startSec, endSec int64, area string) ([]byte, error)
}

// Archiver stores an exported artifact and returns a URL for it.
type Archiver interface {
	Archive(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// SubRangeSnapshot is a read-only view of the controller for display.
type SubRangeSnapshot struct {
	JobID        string            `json:"job_id,omitempty"`
	Parent       timewindow.Window `json:"parent"`
	Window       timewindow.Window `json:"window"`
	WindowCheck  timewindow.Result `json:"window_check"`
	Area         string            `json:"area,omitempty"`
	State        SubRangeState     `json:"state"`
	Progress     float64           `json:"progress"`
	ImageURL     string            `json:"image_url,omitempty"`
	Analysis     *domain.Analysis  `json:"analysis,omitempty"`
	Error        string            `json:"error,omitempty"`
	StartSeconds int64             `json:"start_seconds"`
	EndSeconds   int64             `json:"end_seconds"`
}

// ExportResult is a downloaded artifact and, when archived, where it was stored.
type ExportResult struct {
	Kind         domain.ExportKind
	JobID        string
	StartSeconds int64
	EndSeconds   int64
	Data         []byte
	ContentType  string
	Key          string
	URL          string
}

// SubRangeController regenerates a heatmap and analysis for part of a completed job.
// Its progress loop is independent of the primary job's and has no retry budget: a
// failed progress request ends the attempt, and the user can generate again.
type SubRangeController struct {
	api      SubRangeAPI
	archiver Archiver
	log      *logger.Logger
	poller   *poller.Poller
	ctx      context.Context
	cancel   context.CancelFunc

	mu       sync.Mutex
	job      *domain.Job
	parent   timewindow.Window
	window   timewindow.Window
	area     string
	state    SubRangeState
	progress float64
	imageURL string
	analysis *domain.Analysis
	errMsg   string
	epoch    uint64
	inFlight uint64
	startSec int64
	endSec   int64
	done     chan struct{}
}

// NewSubRangeController creates a controller. archiver may be nil, in which case
// exports are returned but not stored.
func NewSubRangeController(api SubRangeAPI, archiver Archiver, interval time.Duration, log *logger.Logger) *SubRangeController {
	if log == nil {
		log = logger.GetDefault()
	}
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &SubRangeController{
		api:      api,
		archiver: archiver,
		log:      log.WithComponent("subrange"),
		ctx:      ctx,
		cancel:   cancel,
		state:    SubRangeIdle,
		done:     make(chan struct{}),
	}
	c.poller = poller.New("subrange-progress", interval, c.PollProgress, c.log)
	return c
}

// Load selects a completed job and defaults the sub-window to its whole recording.
func (c *SubRangeController) Load(ctx context.Context, jobID string) error {
	job, err := c.api.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusCompleted {
		return fmt.Errorf("job %s is %s: %w", jobID, job.Status, ErrJobNotCompleted)
	}
	parent, err := timewindow.FromDatetimes(job.StartDatetime, job.EndDatetime)
	if err != nil {
		return fmt.Errorf("failed to read recording window of job %s: %w", jobID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.poller.Stop()
	c.epoch++
	c.job = job
	c.parent = parent
	c.window = parent
	c.area = ""
	c.clearResultLocked()
	c.log.WithField(logger.FieldJobID, jobID).Info("Loaded job for custom analysis")
	return nil
}

// SetSubWindow replaces the sub-window and returns its validation result. An invalid
// window is kept so it can be corrected, but Generate refuses it.
func (c *SubRangeController) SetSubWindow(w timewindow.Window) timewindow.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window = w
	return timewindow.ValidateSub(w, c.parent)
}

// SetArea sets the area filter used by analysis and exports. Empty means all areas.
func (c *SubRangeController) SetArea(area string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.area = area
}

// offsetsLocked validates the current sub-window and converts it to seconds.
func (c *SubRangeController) offsetsLocked() (jobID string, startSec, endSec int64, err error) {
	if c.job == nil {
		return "", 0, 0, ErrNoActiveJob
	}
	if res := timewindow.ValidateSub(c.window, c.parent); !res.Valid {
		return "", 0, 0, fmt.Errorf("%w: %s", ErrInvalidSubWindow, res.Reason)
	}
	startSec, endSec, ok := timewindow.Offsets(c.window, c.parent)
	if !ok {
		return "", 0, 0, ErrInvalidSubWindow
	}
	return c.job.ID, startSec, endSec, nil
}

// Generate requests a derived heatmap for the current sub-window and starts polling
// its progress.
func (c *SubRangeController) Generate(ctx context.Context) error {
	c.mu.Lock()
	jobID, startSec, endSec, err := c.offsetsLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.poller.Stop()
	c.epoch++
	c.clearResultLocked()
	c.state = SubRangeGenerating
	c.startSec, c.endSec = startSec, endSec
	epoch := c.epoch
	c.mu.Unlock()

	log := c.log.WithFields(logger.Fields{logger.FieldJobID: jobID, "start_seconds": startSec, "end_seconds": endSec})
	if err := c.api.GenerateSubRange(ctx, jobID, startSec, endSec); err != nil {
		c.mu.Lock()
		if epoch == c.epoch {
			c.failLocked(UserMessage(err))
		}
		c.mu.Unlock()
		log.WithError(err).Error("Failed to start custom heatmap")
		return err
	}

	c.mu.Lock()
	if epoch != c.epoch || c.state != SubRangeGenerating {
		c.mu.Unlock()
		log.Info("Custom heatmap superseded before polling started")
		return nil
	}
	c.poller.Start(c.ctx)
	c.mu.Unlock()
	log.Info("Custom heatmap requested")
	return nil
}

// PollProgress checks the derived heatmap's progress once. When it reaches 1 the
// loop stops and the image URL and analysis are fetched. Any failure is final.
func (c *SubRangeController) PollProgress(ctx context.Context) {
	c.mu.Lock()
	if c.state != SubRangeGenerating || c.inFlight == c.epoch {
		c.mu.Unlock()
		return
	}
	epoch := c.epoch
	c.inFlight = epoch
	jobID, startSec, endSec, area := c.job.ID, c.startSec, c.endSec, c.area
	c.mu.Unlock()

	progress, err := c.api.GetSubRangeProgress(ctx, jobID)

	c.mu.Lock()
	if c.inFlight == epoch {
		c.inFlight = 0
	}
	if epoch != c.epoch || c.state != SubRangeGenerating {
		c.mu.Unlock()
		return
	}
	if err != nil {
		if ctx.Err() == nil {
			c.log.WithError(err).WithField(logger.FieldJobID, jobID).Error("Custom heatmap progress failed")
			c.failLocked(MsgSubRangeFailed)
		}
		c.mu.Unlock()
		return
	}
	c.progress = progress
	if progress < 1 {
		c.mu.Unlock()
		return
	}
	c.poller.Stop()
	c.mu.Unlock()

	// The stop cancelled ctx; the result fetches must outlive it.
	fetchCtx := context.WithoutCancel(ctx)
	url, err := c.api.GetSubRangeImage(fetchCtx, jobID, startSec, endSec)
	var analysis *domain.Analysis
	if err == nil {
		analysis, err = c.api.GetAnalysis(fetchCtx, jobID, startSec, endSec, area)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return
	}
	if err != nil {
		c.log.WithError(err).WithField(logger.FieldJobID, jobID).Error("Failed to fetch custom heatmap results")
		c.failLocked(UserMessage(err))
		return
	}
	c.progress = 1
	c.imageURL = url
	c.analysis = analysis
	c.state = SubRangeReady
	c.closeDoneLocked()
	c.log.WithField(logger.FieldJobID, jobID).Info("Custom heatmap ready")
}

// Analyze refetches the analysis for the current sub-window and area filter.
func (c *SubRangeController) Analyze(ctx context.Context) (*domain.Analysis, error) {
	c.mu.Lock()
	jobID, startSec, endSec, err := c.offsetsLocked()
	area := c.area
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	analysis, err := c.api.GetAnalysis(ctx, jobID, startSec, endSec, area)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.analysis = analysis
	c.mu.Unlock()
	return analysis, nil
}

// Export downloads an artifact for the current sub-window and archives it when an
// archiver is configured. Export failures leave the controller's state untouched.
func (c *SubRangeController) Export(ctx context.Context, kind domain.ExportKind) (*ExportResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown export kind %q", kind)
	}
	c.mu.Lock()
	jobID, startSec, endSec, err := c.offsetsLocked()
	area := c.area
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	data, err := c.api.Export(ctx, jobID, kind, startSec, endSec, area)
	if err != nil {
		return nil, err
	}
	res := &ExportResult{
		Kind:         kind,
		JobID:        jobID,
		StartSeconds: startSec,
		EndSeconds:   endSec,
		Data:         data,
		ContentType:  kind.ContentType(),
	}

	if c.archiver != nil {
		res.Key = ExportKey(jobID, startSec, endSec, area, kind)
		url, err := c.archiver.Archive(ctx, res.Key, data, res.ContentType)
		if err != nil {
			// the download itself succeeded; report the archive failure alongside it
			return res, fmt.Errorf("failed to archive export: %w", err)
		}
		res.URL = url
	}
	c.log.WithFields(logger.Fields{
		logger.FieldJobID: jobID,
		"kind":            string(kind),
		"bytes":           len(data),
	}).Info("Exported custom analysis")
	return res, nil
}

// ExportKey is the object key an export is archived under.
func ExportKey(jobID string, startSec, endSec int64, area string, kind domain.ExportKind) string {
	if area == "" {
		area = "all"
	}
	return fmt.Sprintf("exports/%s/%d-%d-%s.%s", jobID, startSec, endSec, area, kind.Extension())
}

// Wait blocks until the current generation is ready or failed, or ctx is done.
func (c *SubRangeController) Wait(ctx context.Context) (SubRangeSnapshot, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	select {
	case <-done:
		return c.Snapshot(), nil
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}
}

// Snapshot returns the current state.
func (c *SubRangeController) Snapshot() SubRangeSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := SubRangeSnapshot{
		Parent:       c.parent,
		Window:       c.window,
		WindowCheck:  timewindow.ValidateSub(c.window, c.parent),
		Area:         c.area,
		State:        c.state,
		Progress:     c.progress,
		ImageURL:     c.imageURL,
		Analysis:     c.analysis,
		Error:        c.errMsg,
		StartSeconds: c.startSec,
		EndSeconds:   c.endSec,
	}
	if c.job != nil {
		snap.JobID = c.job.ID
	}
	return snap
}

// Close stops the progress loop.
func (c *SubRangeController) Close() {
	c.poller.Stop()
	c.poller.Wait()
	c.cancel()
}

func (c *SubRangeController) failLocked(msg string) {
	c.poller.Stop()
	c.state = SubRangeFailed
	c.errMsg = msg
	c.closeDoneLocked()
}

func (c *SubRangeController) clearResultLocked() {
	c.state = SubRangeIdle
	c.progress = 0
	c.imageURL = ""
	c.analysis = nil
	c.errMsg = ""
	c.startSec, c.endSec = 0, 0
	c.done = make(chan struct{})
}

func (c *SubRangeController) closeDoneLocked() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}
