package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/timmy/footfall/internal/domain"
	"github.com/timmy/footfall/internal/logger"
	"github.com/timmy/footfall/internal/notify"
	"github.com/timmy/footfall/internal/poller"
	"github.com/timmy/footfall/internal/timewindow"
	"github.com/timmy/footfall/internal/wizard"
)

// LifecycleState is the controller's view of the primary job.
type LifecycleState string

const (
	StateIdle       LifecycleState = "idle"
	StateSubmitting LifecycleState = "submitting"
	StatePolling    LifecycleState = "polling"
	StateCompleted  LifecycleState = "completed"
	StateError      LifecycleState = "error"
	StateCancelled  LifecycleState = "cancelled"
)

// Terminal reports whether s ends a job's lifecycle.
func (s LifecycleState) Terminal() bool {
	return s == StateCompleted || s == StateError || s == StateCancelled
}

// JobAPI is the part of the job service the lifecycle controller needs.
type JobAPI interface {
	CreateJob(ctx context.Context, req CreateJobRequest) (string, error)
	GetStatus(ctx context.Context, jobID string) (domain.StatusReport, error)
	CancelJob(ctx context.Context, jobID string) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	GetPoints(ctx context.Context, jobID string) ([]domain.Point, error)
	GetTimeRange(ctx context.Context, jobID string) (timewindow.Window, error)
}

// ResumeStore persists the identifier of the job in flight.
type ResumeStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, jobID string) error
	Clear(ctx context.Context) error
}

// JobSnapshot is a read-only view of the controller for display.
type JobSnapshot struct {
	State      LifecycleState   `json:"state"`
	JobID      string           `json:"job_id,omitempty"`
	JobName    string           `json:"job_name,omitempty"`
	Status     domain.JobStatus `json:"status,omitempty"`
	Message    string           `json:"message,omitempty"`
	Phase      Phase            `json:"phase,omitempty"`
	Percent    int              `json:"percent"`
	HasPercent bool             `json:"has_percent"`
	Failures   int              `json:"failures"`
	Error      string           `json:"error,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// JobControllerConfig holds poll settings.
type JobControllerConfig struct {
	Interval    time.Duration
	MaxFailures int
}

// JobController submits one job at a time, persists its identifier so it can be
// resumed, and polls it to a terminal state.
type JobController struct {
	api    JobAPI
	store  ResumeStore
	bus    notify.Bus
	wizard *wizard.Wizard
	log    *logger.Logger

	maxFailures int
	poller      *poller.Poller
	ctx         context.Context
	cancel      context.CancelFunc

	mu       sync.Mutex
	state    LifecycleState
	epoch    uint64
	inFlight uint64
	jobID    string
	jobName  string
	status   domain.JobStatus
	message  string
	phase    Phase
	percent  int
	hasPct   bool
	failures int
	errMsg   string
	updated  time.Time
	done     chan struct{}
	observer func(JobSnapshot)
}

// NewJobController creates an idle controller.
// Parameters:
//   - api: job service operations.
//   - store: durable resumability key.
//   - bus: completion and cancellation broadcasts.
//   - wiz: the wizard whose inputs are submitted and rehydrated.
//   - cfg: poll interval and consecutive failure budget.
//   - log: logger; nil uses the default.
//
// Returns:
//   - *JobController: controller in the idle state.
func NewJobController(api JobAPI, store ResumeStore, bus notify.Bus, wiz *wizard.Wizard, cfg JobControllerConfig, log *logger.Logger) *JobController {
	if log == nil {
		log = logger.GetDefault()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &JobController{
		api:         api,
		store:       store,
		bus:         bus,
		wizard:      wiz,
		log:         log.WithComponent("job-controller"),
		maxFailures: cfg.MaxFailures,
		ctx:         ctx,
		cancel:      cancel,
		state:       StateIdle,
		done:        make(chan struct{}),
	}
	c.poller = poller.New("job-status", cfg.Interval, c.Poll, c.log)
	return c
}

// OnChange registers fn to be called after every state or progress change.
func (c *JobController) OnChange(fn func(JobSnapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = fn
}

// terminalEffects are the side effects of a terminal transition, run without the lock.
type terminalEffects struct {
	clear   bool
	event   notify.EventType
	jobID   string
	jobName string
}

// Submit creates a job from the wizard's inputs and starts polling it. On failure the
// controller moves to error with the service's message and the wizard stays on its
// confirm step so the user can retry.
func (c *JobController) Submit(ctx context.Context) (string, error) {
	sub, ok := c.wizard.Submission()
	if !ok {
		return "", ErrIncompleteInputs
	}
	if !sub.Video.Available() {
		return "", ErrVideoMissing
	}

	c.mu.Lock()
	if c.state == StateSubmitting || c.state == StatePolling {
		c.mu.Unlock()
		return "", ErrJobInFlight
	}
	c.resetLocked(StateSubmitting)
	c.jobName = sub.Video.Name
	epoch := c.epoch
	c.mu.Unlock()
	c.notifyChange()

	c.log.WithField("video", sub.Video.Name).Info("Submitting job")
	jobID, err := c.api.CreateJob(ctx, CreateJobRequest{
		VideoPath: sub.Video.Path,
		VideoName: sub.Video.Name,
		Points:    sub.Points,
		Window:    sub.Window,
	})

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		if err == nil {
			c.log.WithField(logger.FieldJobID, jobID).Warn("Job created after the controller moved on")
		}
		return jobID, err
	}
	if err != nil {
		c.state = StateError
		c.errMsg = UserMessage(err)
		c.touchLocked()
		c.closeDoneLocked()
		c.mu.Unlock()
		c.log.WithError(err).Error("Failed to submit job")
		c.notifyChange()
		return "", err
	}
	c.state = StatePolling
	c.jobID = jobID
	c.status = domain.JobStatusPending
	c.touchLocked()
	c.mu.Unlock()

	persistCtx := context.WithoutCancel(ctx)
	if err := c.store.Save(persistCtx, jobID); err != nil {
		c.log.WithError(err).Warn("Failed to persist active job")
	}

	// a cancel may have finished the job while it was being saved
	c.mu.Lock()
	if epoch != c.epoch || c.state != StatePolling {
		c.mu.Unlock()
		c.clearIfStored(persistCtx, jobID)
		c.log.WithField(logger.FieldJobID, jobID).Info("Job finished before polling started")
		return jobID, nil
	}
	c.poller.Start(c.ctx)
	c.mu.Unlock()

	c.log.WithField(logger.FieldJobID, jobID).Info("Job submitted, polling")
	c.notifyChange()
	return jobID, nil
}

// clearIfStored removes the persisted key when it still names jobID, leaving a key
// written for a newer job alone.
func (c *JobController) clearIfStored(ctx context.Context, jobID string) {
	stored, err := c.store.Load(ctx)
	if err != nil || stored != jobID {
		return
	}
	if err := c.store.Clear(ctx); err != nil {
		c.log.WithError(err).WithField(logger.FieldJobID, jobID).Warn("Failed to clear persisted job")
	}
}

// Poll fetches the job's status once. It is driven by the poller on a fixed interval
// and is a no-op unless the controller is polling. Overlapping calls for the same job
// are skipped, and a response that arrives after the job changed is dropped.
func (c *JobController) Poll(ctx context.Context) {
	c.mu.Lock()
	if c.state != StatePolling || c.inFlight == c.epoch {
		c.mu.Unlock()
		return
	}
	epoch := c.epoch
	c.inFlight = epoch
	jobID := c.jobID
	c.mu.Unlock()

	report, err := c.api.GetStatus(ctx, jobID)

	c.mu.Lock()
	if c.inFlight == epoch {
		c.inFlight = 0
	}
	if epoch != c.epoch || c.state != StatePolling {
		c.mu.Unlock()
		return
	}

	var fx *terminalEffects
	if err != nil {
		if ctx.Err() != nil {
			c.mu.Unlock()
			return
		}
		c.failures++
		c.log.WithError(err).WithFields(logger.Fields{
			logger.FieldJobID:   jobID,
			logger.FieldAttempt: c.failures,
		}).Warn("Status poll failed")
		if c.failures >= c.maxFailures {
			c.log.WithField(logger.FieldJobID, jobID).Error("Giving up on job after repeated poll failures")
			fx = c.finishLocked(StateError, MsgConnectivity, "")
		}
	} else {
		c.failures = 0
		fx = c.applyLocked(report)
	}
	c.mu.Unlock()

	c.runEffects(ctx, fx)
	c.notifyChange()
}

// applyLocked records a status report and returns terminal effects if it ends the job.
func (c *JobController) applyLocked(report domain.StatusReport) *terminalEffects {
	c.status = report.Status
	c.message = report.Message
	if p, ok := InferPhase(report.Message); ok && p != c.phase {
		c.phase = p
		c.log.WithFields(logger.Fields{logger.FieldJobID: c.jobID, logger.FieldPhase: string(p)}).Info("Job phase changed")
	}
	if pct, ok := ExtractPercent(report.Message); ok {
		c.percent = pct
		c.hasPct = true
	}
	c.touchLocked()

	switch report.Status {
	case domain.JobStatusCompleted:
		c.percent, c.hasPct = 100, true
		return c.finishLocked(StateCompleted, "", notify.JobCompleted)
	case domain.JobStatusError:
		msg := report.Message
		if msg == "" {
			msg = "Processing failed"
		}
		return c.finishLocked(StateError, msg, "")
	case domain.JobStatusCancelled:
		return c.finishLocked(StateCancelled, "", notify.JobCancelled)
	}
	return nil
}

// finishLocked stops polling and moves to a terminal state.
func (c *JobController) finishLocked(state LifecycleState, errMsg string, event notify.EventType) *terminalEffects {
	c.poller.Stop()
	c.state = state
	c.errMsg = errMsg
	c.epoch++
	c.touchLocked()
	c.closeDoneLocked()

	entry := c.log.WithFields(logger.Fields{logger.FieldJobID: c.jobID, logger.FieldStatus: string(state)})
	if state == StateError {
		entry.Error("Job failed: " + errMsg)
	} else {
		entry.Info("Job finished")
	}
	return &terminalEffects{clear: true, event: event, jobID: c.jobID, jobName: c.jobName}
}

// runEffects clears the persisted key and broadcasts. The poll context may already be
// cancelled by the stop, so both run detached from it.
func (c *JobController) runEffects(ctx context.Context, fx *terminalEffects) {
	if fx == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if fx.clear {
		if err := c.store.Clear(ctx); err != nil {
			c.log.WithError(err).Warn("Failed to clear persisted job")
		}
	}
	if fx.event != "" && c.bus != nil {
		ev := notify.Event{Type: fx.event, JobID: fx.jobID, JobName: fx.jobName}
		if err := c.bus.Publish(ctx, ev); err != nil {
			c.log.WithError(err).Warn("Failed to broadcast job event")
		}
	}
}

// Cancel stops polling, asks the service to stop the job and moves to cancelled
// without waiting for the service to confirm. When the wizard's video can no longer
// be read the wizard is reset to its first step. A failed cancel request is returned
// but does not undo the transition.
func (c *JobController) Cancel(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StatePolling {
		c.mu.Unlock()
		return ErrNoActiveJob
	}
	jobID := c.jobID
	fx := c.finishLocked(StateCancelled, "", notify.JobCancelled)
	c.mu.Unlock()

	err := c.api.CancelJob(ctx, jobID)
	if err != nil {
		c.log.WithError(err).WithField(logger.FieldJobID, jobID).Warn("Cancel request failed")
	}
	c.runEffects(ctx, fx)

	if !c.wizard.Video().Available() {
		c.log.Info("Video no longer available, resetting wizard")
		c.wizard.Reset()
	}
	c.notifyChange()
	return err
}

// Resume picks up a job persisted by an earlier run. It returns true when polling was
// resumed. A persisted job that already finished, or that the service no longer
// knows, has its key cleared. Transport errors keep the key for a later attempt.
func (c *JobController) Resume(ctx context.Context) (bool, error) {
	c.mu.Lock()
	busy := c.state == StateSubmitting || c.state == StatePolling
	c.mu.Unlock()
	if busy {
		return false, nil
	}

	jobID, err := c.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if jobID == "" {
		return false, nil
	}
	log := c.log.WithField(logger.FieldJobID, jobID)

	report, err := c.api.GetStatus(ctx, jobID)
	if err != nil {
		if IsNotFound(err) {
			log.Info("Persisted job no longer exists, discarding")
			return false, c.store.Clear(ctx)
		}
		return false, err
	}
	if !report.Status.IsActive() {
		log.WithField(logger.FieldStatus, string(report.Status)).Info("Persisted job already finished, discarding")
		return false, c.store.Clear(ctx)
	}

	name := jobID
	var job *domain.Job
	if job, err = c.api.GetJob(ctx, jobID); err != nil {
		log.WithError(err).Warn("Failed to look up job details")
	} else if job.InputVideoName != "" {
		name = job.InputVideoName
	}

	points, err := c.api.GetPoints(ctx, jobID)
	if err != nil {
		return false, err
	}
	tw, err := c.api.GetTimeRange(ctx, jobID)
	if err != nil {
		if job == nil {
			return false, err
		}
		fallback, ferr := timewindow.FromDatetimes(job.StartDatetime, job.EndDatetime)
		if ferr != nil {
			return false, errors.Join(err, ferr)
		}
		tw = fallback
	}

	c.mu.Lock()
	if c.state == StateSubmitting || c.state == StatePolling {
		c.mu.Unlock()
		return false, nil
	}
	c.wizard.Rehydrate(name, tw, points)
	c.resetLocked(StatePolling)
	c.jobID = jobID
	c.jobName = name
	c.applyLocked(report)
	// under the lock, so a racing Cancel finds the loop and stops it
	c.poller.Start(c.ctx)
	c.mu.Unlock()

	log.Info("Resumed polling persisted job")
	c.notifyChange()
	return true, nil
}

// Wait blocks until the current job reaches a terminal state or ctx is done.
func (c *JobController) Wait(ctx context.Context) (JobSnapshot, error) {
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

// Close stops polling. The persisted key is kept so the job can be resumed.
func (c *JobController) Close() {
	c.poller.Stop()
	c.poller.Wait()
	c.cancel()
}

// Snapshot returns the current state.
func (c *JobController) Snapshot() JobSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *JobController) snapshotLocked() JobSnapshot {
	return JobSnapshot{
		State:      c.state,
		JobID:      c.jobID,
		JobName:    c.jobName,
		Status:     c.status,
		Message:    c.message,
		Phase:      c.phase,
		Percent:    c.percent,
		HasPercent: c.hasPct,
		Failures:   c.failures,
		Error:      c.errMsg,
		UpdatedAt:  c.updated,
	}
}

// resetLocked starts tracking a new job.
func (c *JobController) resetLocked(state LifecycleState) {
	c.poller.Stop()
	c.epoch++
	c.state = state
	c.jobID = ""
	c.jobName = ""
	c.status = ""
	c.message = ""
	c.phase = PhaseNone
	c.percent = 0
	c.hasPct = false
	c.failures = 0
	c.errMsg = ""
	c.done = make(chan struct{})
	c.touchLocked()
}

func (c *JobController) closeDoneLocked() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *JobController) touchLocked() {
	c.updated = time.Now().UTC()
}

func (c *JobController) notifyChange() {
	c.mu.Lock()
	fn := c.observer
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}
