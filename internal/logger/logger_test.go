package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestContextFieldsReachOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "footfall-test"})

	ctx := l.WithContext(context.Background())
	ctx = SetJobID(ctx, "job-42")
	ctx = SetComponent(ctx, "lifecycle")

	With(Fields{FieldAttempt: 3}).Warn(ctx, "poll failed for %s", "job-42")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	checks := map[string]interface{}{
		"service":      "footfall-test",
		FieldJobID:     "job-42",
		FieldComponent: "lifecycle",
		"message":      "poll failed for job-42",
		"level":        "warning",
		FieldAttempt:   float64(3),
	}
	for k, want := range checks {
		if line[k] != want {
			t.Errorf("field %s = %v, want %v", k, line[k], want)
		}
	}
	if GetJobID(ctx) != "job-42" {
		t.Errorf("GetJobID() = %q", GetJobID(ctx))
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != GetDefault() {
		t.Error("expected default logger for bare context")
	}
	SetDefaultLogger(nil)
	if GetDefault() == nil {
		t.Error("SetDefaultLogger(nil) must not clear the default")
	}
}
