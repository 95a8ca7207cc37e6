package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Context-level fields, propagated through the call chain.
const (
	// FieldRequestID is the console HTTP request ID
	FieldRequestID = "request_id"

	// FieldJobID is the heatmap job ID assigned by the job service
	FieldJobID = "job_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldStep is the wizard step index
	FieldStep = "step"

	// FieldPhase is the inferred processing phase
	FieldPhase = "phase"
)

// Entry-level metric fields, used for aggregation and alerting.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the operation or job status
	FieldStatus = "status"

	// FieldAttempt is the consecutive attempt number of a retried operation
	FieldAttempt = "attempt"

	// FieldSize is a response or artifact size in bytes
	FieldSize = "size"
)
