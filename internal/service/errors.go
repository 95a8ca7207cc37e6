package service

import "errors"

var (
	// ErrNoActiveJob is returned when an operation needs a tracked job and there is none.
	ErrNoActiveJob = errors.New("no active job")
	// ErrJobInFlight is returned by Submit while another job is still being tracked.
	ErrJobInFlight = errors.New("a job is already in flight")
	// ErrVideoMissing is returned when the video file is no longer readable.
	ErrVideoMissing = errors.New("video file is not available")
	// ErrIncompleteInputs is returned when the wizard has not validated every step.
	ErrIncompleteInputs = errors.New("job inputs are incomplete")
	// ErrJobNotCompleted is returned when sub-range analysis is asked of an unfinished job.
	ErrJobNotCompleted = errors.New("job has not completed")
	// ErrInvalidSubWindow is returned when the selected sub-window fails validation.
	ErrInvalidSubWindow = errors.New("invalid sub-window")
)

// User-facing messages for failures that carry no server wording.
const (
	MsgConnectivity   = "Lost connection to the processing service. Check your network and try again."
	MsgSubRangeFailed = "Custom heatmap generation failed. Try again."
)
