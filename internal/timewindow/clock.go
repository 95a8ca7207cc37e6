package timewindow

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the calendar date format used by every window field.
	DateLayout = "2006-01-02"

	// TimeLayout is the canonical HH:MM:SS format produced by FormatTime.
	TimeLayout = "15:04:05"

	secondsPerDay = 24 * 60 * 60
)

// Field selects which part of a clock value Adjust changes.
type Field string

const (
	FieldHours   Field = "hours"
	FieldMinutes Field = "minutes"
	FieldSeconds Field = "seconds"
)

// Clock is a time-of-day split into its components.
type Clock struct {
	Hours   int
	Minutes int
	Seconds int
}

// ParseTime splits an HH:MM:SS value on ":".
// Missing or unparseable segments become 0; no range checks are applied.
func ParseTime(s string) Clock {
	parts := strings.Split(strings.TrimSpace(s), ":")
	seg := func(i int) int {
		if i >= len(parts) {
			return 0
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return 0
		}
		return n
	}
	return Clock{Hours: seg(0), Minutes: seg(1), Seconds: seg(2)}
}

// FormatTime zero-pads each field to two digits.
func FormatTime(h, m, s int) string {
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// String formats c as HH:MM:SS.
func (c Clock) String() string {
	return FormatTime(c.Hours, c.Minutes, c.Seconds)
}

// TotalSeconds returns the number of seconds since midnight, without wrapping.
func (c Clock) TotalSeconds() int {
	return c.Hours*3600 + c.Minutes*60 + c.Seconds
}

// clockFromSeconds wraps total into a single day.
func clockFromSeconds(total int) Clock {
	total %= secondsPerDay
	if total < 0 {
		total += secondsPerDay
	}
	return Clock{
		Hours:   total / 3600,
		Minutes: (total % 3600) / 60,
		Seconds: total % 60,
	}
}

// Adjust moves one field of value by delta, carrying into the larger fields and
// wrapping hours mod 24. Negative deltas borrow; deltas beyond ±59 carry more than once.
func Adjust(value string, field Field, delta int) string {
	unit := 1
	switch field {
	case FieldHours:
		unit = 3600
	case FieldMinutes:
		unit = 60
	}
	c := ParseTime(value)
	return clockFromSeconds(c.TotalSeconds() + delta*unit).String()
}

// DeriveEndTime adds durationSeconds to the instant startDate+startTime and returns the
// resulting calendar date and time of day. A non-positive duration returns the start
// unchanged, as does an unparseable start date.
func DeriveEndTime(startDate, startTime string, durationSeconds int64) (endDate, endTime string) {
	start, ok := instant(startDate, startTime)
	if !ok || durationSeconds <= 0 {
		return startDate, startTime
	}
	end := start.Add(time.Duration(durationSeconds) * time.Second)
	return end.Format(DateLayout), end.Format(TimeLayout)
}

// instant combines a date and a lenient clock value into a UTC wall-clock time.
func instant(date, clock string) (time.Time, bool) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, false
	}
	c := ParseTime(clock)
	return d.Add(time.Duration(c.TotalSeconds()) * time.Second), true
}

// SplitInstant formats t as a date and HH:MM:SS pair.
func SplitInstant(t time.Time) (date, clock string) {
	return t.Format(DateLayout), t.Format(TimeLayout)
}
