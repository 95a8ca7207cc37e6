// Package notify broadcasts job completion and cancellation to every interested view,
// inside this process and across processes.
package notify

import (
	"context"
	"time"
)

// EventType names a broadcast job event.
type EventType string

const (
	JobCompleted EventType = "job-completed"
	JobCancelled EventType = "job-cancelled"
)

// Event is a fire-and-forget notification. Receivers must treat it as a hint to
// refresh; delivery order relative to their own polling is not guaranteed.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	JobID     string    `json:"job_id"`
	JobName   string    `json:"job_name"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler receives events. It must not block for long.
type Handler func(Event)

// Bus publishes events and delivers them to subscribers until ctx is cancelled.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}
