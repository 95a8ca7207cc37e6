package timewindow

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// timePattern is the strict HH:MM:SS gate. Single-digit hours are accepted.
var timePattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]:[0-5][0-9]$`)

// Reason explains why a window failed validation. The zero value means valid.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonIncomplete      Reason = "incomplete"
	ReasonMalformed       Reason = "malformed"
	ReasonInverted        Reason = "inverted"
	ReasonExceedsDuration Reason = "exceeds duration"
	ReasonBeforeStart     Reason = "before start"
	ReasonAfterEnd        Reason = "after end"
)

// Result is the outcome of a window validation.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason,omitempty"`
}

func invalid(r Reason) Result { return Result{Reason: r} }

var valid = Result{Valid: true}

// Window is a date/time range as entered by the user.
type Window struct {
	StartDate string `json:"start_date"`
	StartTime string `json:"start_time"`
	EndDate   string `json:"end_date"`
	EndTime   string `json:"end_time"`
}

// Complete reports whether all four fields are set.
func (w Window) Complete() bool {
	return strings.TrimSpace(w.StartDate) != "" && strings.TrimSpace(w.StartTime) != "" &&
		strings.TrimSpace(w.EndDate) != "" && strings.TrimSpace(w.EndTime) != ""
}

// Bounds returns the start and end instants of a complete, well-formed window.
func (w Window) Bounds() (start, end time.Time, ok bool) {
	if !w.Complete() || !ValidTime(w.StartTime) || !ValidTime(w.EndTime) {
		return time.Time{}, time.Time{}, false
	}
	start, ok = instant(w.StartDate, w.StartTime)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end, ok = instant(w.EndDate, w.EndTime)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// Seconds returns the whole-second length of the window, truncated toward zero.
func (w Window) Seconds() (int64, bool) {
	start, end, ok := w.Bounds()
	if !ok {
		return 0, false
	}
	return int64(end.Sub(start) / time.Second), true
}

func (w Window) String() string {
	return fmt.Sprintf("%s %s - %s %s", w.StartDate, w.StartTime, w.EndDate, w.EndTime)
}

// ValidTime reports whether s matches the strict HH:MM:SS pattern.
func ValidTime(s string) bool {
	return timePattern.MatchString(s)
}

// ReferenceDuration rounds a measured video duration down to whole seconds.
func ReferenceDuration(seconds float64) int64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return 0
	}
	return int64(math.Floor(seconds))
}

// ValidatePrimary checks a job window against the reference duration:
// 0 < end-start <= referenceSeconds.
func ValidatePrimary(w Window, referenceSeconds int64) Result {
	if !w.Complete() {
		return invalid(ReasonIncomplete)
	}
	secs, ok := w.Seconds()
	if !ok {
		return invalid(ReasonMalformed)
	}
	if secs <= 0 {
		return invalid(ReasonInverted)
	}
	if secs > referenceSeconds {
		return invalid(ReasonExceedsDuration)
	}
	return valid
}

// ValidateSub checks a window that must sit inside parent:
// parentStart <= start < end <= parentEnd.
func ValidateSub(w, parent Window) Result {
	if !w.Complete() {
		return invalid(ReasonIncomplete)
	}
	start, end, ok := w.Bounds()
	if !ok {
		return invalid(ReasonMalformed)
	}
	pStart, pEnd, ok := parent.Bounds()
	if !ok {
		return invalid(ReasonIncomplete)
	}
	if !end.After(start) {
		return invalid(ReasonInverted)
	}
	if start.Before(pStart) {
		return invalid(ReasonBeforeStart)
	}
	if end.After(pEnd) {
		return invalid(ReasonAfterEnd)
	}
	return valid
}

// Offsets converts a sub-window into whole seconds from the parent's start.
func Offsets(w, parent Window) (startSec, endSec int64, ok bool) {
	start, end, ok := w.Bounds()
	if !ok {
		return 0, 0, false
	}
	pStart, _, ok := parent.Bounds()
	if !ok {
		return 0, 0, false
	}
	return int64(start.Sub(pStart) / time.Second), int64(end.Sub(pStart) / time.Second), true
}

var datetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseDatetime parses the datetime strings the job service reports for a recording.
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}

// FromDatetimes builds a window from two service datetime strings.
func FromDatetimes(start, end string) (Window, error) {
	s, err := ParseDatetime(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseDatetime(end)
	if err != nil {
		return Window{}, err
	}
	var w Window
	w.StartDate, w.StartTime = SplitInstant(s)
	w.EndDate, w.EndTime = SplitInstant(e)
	return w, nil
}
