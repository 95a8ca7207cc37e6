// Package wizard implements the four-step job setup flow: video, date/time window,
// floor corners, confirmation. A step is reachable only when every earlier step is
// valid, and the wizard snaps back to the first invalid step instead of ever showing
// an unreachable one.
package wizard

import (
	"fmt"
	"sync"

	"github.com/timmy/footfall/internal/domain"
	"github.com/timmy/footfall/internal/logger"
	"github.com/timmy/footfall/internal/media"
	"github.com/timmy/footfall/internal/quad"
	"github.com/timmy/footfall/internal/timewindow"
)

// Step is a wizard page.
type Step int

const (
	StepVideo Step = iota
	StepDateTime
	StepPoints
	StepConfirm
)

// LastStep is the confirmation page.
const LastStep = StepConfirm

var stepNames = []string{"video", "datetime", "points", "confirm"}

func (s Step) String() string {
	if s < StepVideo || s > LastStep {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Navigation is the outcome of a navigation attempt. A rejected attempt still leaves
// the wizard on a valid step, reported in To.
type Navigation struct {
	From      Step   `json:"from"`
	Requested Step   `json:"requested"`
	To        Step   `json:"to"`
	Rejected  bool   `json:"rejected"`
	Reason    string `json:"reason,omitempty"`
}

// Submission is everything the job controller needs to create a job.
type Submission struct {
	Video  media.Video
	Points []domain.Point
	Window timewindow.Window
}

// State is a read-only snapshot for display.
type State struct {
	Step         Step              `json:"step"`
	StepName     string            `json:"step_name"`
	MaxReachable Step              `json:"max_reachable"`
	Video        *media.Video      `json:"video,omitempty"`
	Reference    int64             `json:"reference_seconds"`
	Window       timewindow.Window `json:"window"`
	WindowCheck  timewindow.Result `json:"window_check"`
	Points       []domain.Point    `json:"points"`
	NextLabel    string            `json:"next_label,omitempty"`
	Frame        *quad.Frame       `json:"frame,omitempty"`
}

// Wizard owns the in-progress job inputs. It is safe for concurrent use.
type Wizard struct {
	mu             sync.Mutex
	step           Step
	video          *media.Video
	window         timewindow.Window
	points         *quad.Collector
	frame          *quad.Frame
	frameExtracted bool
	log            *logger.Logger
}

// New returns a wizard on the video step.
func New(log *logger.Logger) *Wizard {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Wizard{
		points: quad.NewCollector(),
		log:    log.WithComponent("wizard"),
	}
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Next moves one step forward.
func (w *Wizard) Next() Navigation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.goToLocked(w.step + 1)
}

// Previous moves one step back. Moving back is always allowed.
func (w *Wizard) Previous() Navigation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.goToLocked(w.step - 1)
}

// GoTo jumps directly to target, snapping to the first invalid step when an earlier
// step does not validate.
func (w *Wizard) GoTo(target Step) Navigation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.goToLocked(target)
}

func (w *Wizard) goToLocked(target Step) Navigation {
	nav := Navigation{From: w.step, Requested: target}
	if target < StepVideo {
		target = StepVideo
	}
	if target > LastStep {
		target = LastStep
	}

	limit := w.maxReachableLocked()
	if target > limit {
		nav.Rejected = true
		nav.Reason = w.blockingReasonLocked(limit)
		target = limit
		w.log.WithFields(logger.Fields{
			logger.FieldStep: int(nav.Requested),
			"snapped_to":     int(limit),
			"reason":         nav.Reason,
		}).Warn("Wizard navigation rejected")
	}
	w.step = target
	nav.To = target
	return nav
}

// maxReachableLocked returns k+1 where 0..k is the longest prefix of valid steps.
func (w *Wizard) maxReachableLocked() Step {
	s := StepVideo
	for s < LastStep && w.validLocked(s) {
		s++
	}
	return s
}

func (w *Wizard) validLocked(s Step) bool {
	switch s {
	case StepVideo:
		return w.video != nil && (w.video.Remote || w.video.Path != "")
	case StepDateTime:
		return timewindow.ValidatePrimary(w.window, w.referenceLocked()).Valid
	case StepPoints:
		return w.points.IsComplete()
	default:
		return true
	}
}

func (w *Wizard) blockingReasonLocked(s Step) string {
	switch s {
	case StepVideo:
		return "select a video first"
	case StepDateTime:
		r := timewindow.ValidatePrimary(w.window, w.referenceLocked())
		return fmt.Sprintf("time window is invalid: %s", r.Reason)
	case StepPoints:
		return fmt.Sprintf("select all %d corners (%d selected)", quad.Size, w.points.Len())
	}
	return ""
}

// settleLocked snaps the current step back after an edit invalidated an earlier step.
func (w *Wizard) settleLocked() {
	if limit := w.maxReachableLocked(); w.step > limit {
		w.log.WithFields(logger.Fields{
			logger.FieldStep: int(w.step),
			"snapped_to":     int(limit),
		}).Info("Wizard step invalidated by edit")
		w.step = limit
	}
}

// Valid reports whether step s passes its own validator.
func (w *Wizard) Valid(s Step) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.validLocked(s)
}

func (w *Wizard) referenceLocked() int64 {
	if w.video == nil {
		return 0
	}
	return timewindow.ReferenceDuration(w.video.DurationSeconds)
}

// SetVideo selects a new video. Points and the reference frame belong to the old
// video and are cleared; a start time already entered gets a fresh default end.
func (w *Wizard) SetVideo(v *media.Video) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.video = v
	w.points.Reset()
	w.frame = nil
	w.frameExtracted = false
	if w.window.StartDate != "" && w.window.StartTime != "" {
		w.deriveEndLocked()
	}
	w.settleLocked()
}

// FrameExtracted records the reference frame. The first extraction for a video resets
// the wizard to the video step, in case the user navigated ahead while it was running.
func (w *Wizard) FrameExtracted(f quad.Frame) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frame = &f
	if !w.frameExtracted {
		w.frameExtracted = true
		w.step = StepVideo
	}
}

// SetStart sets the window start and derives the default end from the video's
// reference duration.
func (w *Wizard) SetStart(date, clock string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.window.StartDate = date
	w.window.StartTime = clock
	w.deriveEndLocked()
	w.settleLocked()
}

func (w *Wizard) deriveEndLocked() {
	if ref := w.referenceLocked(); ref > 0 {
		w.window.EndDate, w.window.EndTime = timewindow.DeriveEndTime(w.window.StartDate, w.window.StartTime, ref)
	}
}

// SetEnd overrides the window end.
func (w *Wizard) SetEnd(date, clock string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.window.EndDate = date
	w.window.EndTime = clock
	w.settleLocked()
}

// SetWindow replaces the whole window.
func (w *Wizard) SetWindow(tw timewindow.Window) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.window = tw
	w.settleLocked()
}

// AdjustStart nudges one field of the start time.
func (w *Wizard) AdjustStart(field timewindow.Field, delta int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.window.StartTime = timewindow.Adjust(w.window.StartTime, field, delta)
	w.settleLocked()
}

// AdjustEnd nudges one field of the end time.
func (w *Wizard) AdjustEnd(field timewindow.Field, delta int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.window.EndTime = timewindow.Adjust(w.window.EndTime, field, delta)
	w.settleLocked()
}

// WindowCheck validates the current window against the video's reference duration.
func (w *Wizard) WindowCheck() timewindow.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return timewindow.ValidatePrimary(w.window, w.referenceLocked())
}

// AddPoint adds a normalized corner.
func (w *Wizard) AddPoint(x, y float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.points.AddPoint(x, y)
}

// AddClick adds a corner from a pixel click on the reference frame.
func (w *Wizard) AddClick(px, py float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.frame == nil {
		return false
	}
	return w.points.AddClick(*w.frame, px, py)
}

// RemovePoint removes a corner by index.
func (w *Wizard) RemovePoint(index int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	ok := w.points.RemovePoint(index)
	if ok {
		w.settleLocked()
	}
	return ok
}

// Video returns the selected video, or nil.
func (w *Wizard) Video() *media.Video {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.video == nil {
		return nil
	}
	v := *w.video
	return &v
}

// Submission returns the job inputs when every step validates.
func (w *Wizard) Submission() (Submission, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.maxReachableLocked() < LastStep || !w.validLocked(StepPoints) {
		return Submission{}, false
	}
	return Submission{Video: *w.video, Points: w.points.Points(), Window: w.window}, true
}

// Rehydrate restores a job that is already running on the service. The video has no
// local file, so its duration is taken from the window itself.
func (w *Wizard) Rehydrate(name string, tw timewindow.Window, points []domain.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	secs, _ := tw.Seconds()
	w.video = &media.Video{Name: name, DurationSeconds: float64(secs), Remote: true}
	w.window = tw
	w.points.Replace(points)
	w.frameExtracted = true
	w.step = LastStep
	w.settleLocked()
}

// Reset clears every input and returns to the video step.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = StepVideo
	w.video = nil
	w.window = timewindow.Window{}
	w.points.Reset()
	w.frame = nil
	w.frameExtracted = false
}

// Snapshot returns the current state for display.
func (w *Wizard) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := State{
		Step:         w.step,
		StepName:     w.step.String(),
		MaxReachable: w.maxReachableLocked(),
		Reference:    w.referenceLocked(),
		Window:       w.window,
		WindowCheck:  timewindow.ValidatePrimary(w.window, w.referenceLocked()),
		Points:       w.points.Points(),
	}
	if w.video != nil {
		v := *w.video
		st.Video = &v
	}
	if w.frame != nil {
		f := *w.frame
		st.Frame = &f
	}
	if label, ok := w.points.CurrentLabel(); ok {
		st.NextLabel = label.String()
	}
	return st
}
