package timewindow

import "testing"

func TestValidatePrimary(t *testing.T) {
	base := Window{StartDate: "2024-06-01", StartTime: "10:00:00", EndDate: "2024-06-01"}
	with := func(end string) Window {
		w := base
		w.EndTime = end
		return w
	}

	tests := []struct {
		name   string
		w      Window
		ref    int64
		want   bool
		reason Reason
	}{
		{"exactly reference", with("10:00:10"), 10, true, ReasonNone},
		{"one second over", with("10:00:11"), 10, false, ReasonExceedsDuration},
		{"zero length", with("10:00:00"), 10, false, ReasonInverted},
		{"backwards", with("09:59:59"), 10, false, ReasonInverted},
		{"missing end", base, 10, false, ReasonIncomplete},
		{"malformed time", with("10:0:10"), 10, false, ReasonMalformed},
		{"hour 24 rejected", Window{StartDate: "2024-06-01", StartTime: "24:00:00", EndDate: "2024-06-02", EndTime: "00:00:05"}, 10, false, ReasonMalformed},
		{"bad date", Window{StartDate: "2024-13-01", StartTime: "10:00:00", EndDate: "2024-06-01", EndTime: "10:00:05"}, 10, false, ReasonMalformed},
		{"across midnight", Window{StartDate: "2024-06-01", StartTime: "23:59:55", EndDate: "2024-06-02", EndTime: "00:00:05"}, 10, true, ReasonNone},
		{"single digit hour", Window{StartDate: "2024-06-01", StartTime: "9:00:00", EndDate: "2024-06-01", EndTime: "9:00:05"}, 10, true, ReasonNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatePrimary(tt.w, tt.ref)
			if got.Valid != tt.want || got.Reason != tt.reason {
				t.Errorf("ValidatePrimary() = %+v, want valid=%v reason=%q", got, tt.want, tt.reason)
			}
		})
	}
}

func TestValidateSub(t *testing.T) {
	parent := Window{StartDate: "2024-06-01", StartTime: "10:00:00", EndDate: "2024-06-01", EndTime: "11:00:00"}
	tests := []struct {
		name   string
		w      Window
		want   bool
		reason Reason
	}{
		{"inside", Window{"2024-06-01", "10:10:00", "2024-06-01", "10:20:00"}, true, ReasonNone},
		{"equal to parent", parent, true, ReasonNone},
		{"after end", Window{"2024-06-01", "10:50:00", "2024-06-01", "11:00:01"}, false, ReasonAfterEnd},
		{"before start", Window{"2024-06-01", "09:59:59", "2024-06-01", "10:20:00"}, false, ReasonBeforeStart},
		{"start equals end", Window{"2024-06-01", "10:10:00", "2024-06-01", "10:10:00"}, false, ReasonInverted},
		{"incomplete", Window{StartDate: "2024-06-01", StartTime: "10:10:00"}, false, ReasonIncomplete},
		{"malformed", Window{"2024-06-01", "10:10", "2024-06-01", "10:20:00"}, false, ReasonMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateSub(tt.w, parent)
			if got.Valid != tt.want || got.Reason != tt.reason {
				t.Errorf("ValidateSub() = %+v, want valid=%v reason=%q", got, tt.want, tt.reason)
			}
		})
	}
}

func TestReferenceDuration(t *testing.T) {
	tests := map[float64]int64{125.7: 125, 10.0: 10, 9.999: 9, 0: 0, -3: 0}
	for in, want := range tests {
		if got := ReferenceDuration(in); got != want {
			t.Errorf("ReferenceDuration(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestOffsets(t *testing.T) {
	parent := Window{"2024-06-01", "23:30:00", "2024-06-02", "00:30:00"}
	w := Window{"2024-06-01", "23:45:00", "2024-06-02", "00:15:00"}
	s, e, ok := Offsets(w, parent)
	if !ok || s != 900 || e != 2700 {
		t.Errorf("Offsets() = %d, %d, %v; want 900, 2700, true", s, e, ok)
	}
}

func TestFromDatetimes(t *testing.T) {
	w, err := FromDatetimes("2024-06-01 10:00:00", "2024-06-01T10:02:05")
	if err != nil {
		t.Fatalf("FromDatetimes: %v", err)
	}
	want := Window{"2024-06-01", "10:00:00", "2024-06-01", "10:02:05"}
	if w != want {
		t.Errorf("FromDatetimes() = %+v, want %+v", w, want)
	}
	if _, err := FromDatetimes("yesterday", "today"); err == nil {
		t.Error("expected error for unparseable datetimes")
	}
}

// The video is 125.7s long; the default end derived from the start is valid and one
// more second is not.
func TestDefaultEndFromVideoDuration(t *testing.T) {
	ref := ReferenceDuration(125.7)
	endDate, endTime := DeriveEndTime("2024-06-01", "10:00:00", ref)
	if endDate != "2024-06-01" || endTime != "10:02:05" {
		t.Fatalf("derived end = %s %s", endDate, endTime)
	}
	w := Window{"2024-06-01", "10:00:00", endDate, endTime}
	if r := ValidatePrimary(w, ref); !r.Valid {
		t.Errorf("default window should be valid, got %+v", r)
	}
	w.EndTime = Adjust(w.EndTime, FieldSeconds, 1)
	if w.EndTime != "10:02:06" {
		t.Fatalf("adjusted end = %s", w.EndTime)
	}
	if r := ValidatePrimary(w, ref); r.Valid {
		t.Error("window of 126s should be invalid for a 125s reference")
	}
}
