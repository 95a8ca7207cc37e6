package domain

// JobStatus is the lifecycle status reported by the job service.
// The client treats it as authoritative.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether the status is completed, error or cancelled.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError || s == JobStatusCancelled
}

// IsActive reports whether the job is still queued or running.
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusProcessing
}

// Point is a normalized click coordinate on the reference frame, both axes in [0,1].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Job is one backend heatmap task as described by the job service.
// ID is the join key for status, history, points, time range, analysis and exports.
type Job struct {
	ID             string    `json:"job_id"`
	Status         JobStatus `json:"status"`
	StatusMessage  string    `json:"status_message,omitempty"`
	InputVideoName string    `json:"input_video_name,omitempty"`
	CreatedAt      string    `json:"created_at,omitempty"`
	StartDatetime  string    `json:"start_datetime,omitempty"`
	EndDatetime    string    `json:"end_datetime,omitempty"`
}

// StatusReport is the payload of a status poll.
type StatusReport struct {
	Status  JobStatus `json:"status"`
	Message string    `json:"message"`
}
