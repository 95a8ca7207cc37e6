package timewindow

import "testing"

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want Clock
	}{
		{"10:02:05", Clock{10, 2, 5}},
		{"9:00:00", Clock{9, 0, 0}},
		{"12:30", Clock{12, 30, 0}},
		{"07", Clock{7, 0, 0}},
		{"", Clock{}},
		{"ab:15:xx", Clock{0, 15, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseTime(tt.in); got != tt.want {
				t.Errorf("ParseTime(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	if got := FormatTime(1, 2, 3); got != "01:02:03" {
		t.Errorf("FormatTime(1,2,3) = %q", got)
	}
	if got := FormatTime(23, 59, 59); got != "23:59:59" {
		t.Errorf("FormatTime(23,59,59) = %q", got)
	}
}

func TestAdjust(t *testing.T) {
	tests := []struct {
		name  string
		value string
		field Field
		delta int
		want  string
	}{
		{"second wraps day", "23:59:59", FieldSeconds, 1, "00:00:00"},
		{"second borrow", "10:00:00", FieldSeconds, -1, "09:59:59"},
		{"midnight borrow", "00:00:00", FieldSeconds, -1, "23:59:59"},
		{"minute carry", "10:59:30", FieldMinutes, 1, "11:00:30"},
		{"minute borrow", "10:00:30", FieldMinutes, -1, "09:59:30"},
		{"hour wrap", "23:15:00", FieldHours, 2, "01:15:00"},
		{"hour negative wrap", "01:15:00", FieldHours, -3, "22:15:00"},
		{"multi-unit overflow", "10:00:00", FieldSeconds, 125, "10:02:05"},
		{"multi-unit borrow", "10:00:00", FieldMinutes, -150, "07:30:00"},
		{"large delta", "00:00:00", FieldSeconds, 3 * secondsPerDay, "00:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Adjust(tt.value, tt.field, tt.delta); got != tt.want {
				t.Errorf("Adjust(%q, %s, %d) = %q, want %q", tt.value, tt.field, tt.delta, got, tt.want)
			}
		})
	}
}

func TestAdjustStaysInRange(t *testing.T) {
	values := []string{"00:00:00", "12:34:56", "23:59:59", "07:00:59"}
	fields := []Field{FieldHours, FieldMinutes, FieldSeconds}
	for _, v := range values {
		for _, f := range fields {
			for delta := -200; delta <= 200; delta += 7 {
				got := ParseTime(Adjust(v, f, delta))
				if got.Hours < 0 || got.Hours > 23 || got.Minutes < 0 || got.Minutes > 59 || got.Seconds < 0 || got.Seconds > 59 {
					t.Fatalf("Adjust(%q, %s, %d) out of range: %+v", v, f, delta, got)
				}
			}
		}
	}
}

func TestDeriveEndTime(t *testing.T) {
	tests := []struct {
		name      string
		date      string
		clock     string
		duration  int64
		wantDate  string
		wantClock string
	}{
		{"crosses midnight", "2024-01-01", "23:00:00", 7200, "2024-01-02", "01:00:00"},
		{"same day", "2024-06-01", "10:00:00", 125, "2024-06-01", "10:02:05"},
		{"year rollover", "2024-12-31", "23:59:59", 1, "2025-01-01", "00:00:00"},
		{"zero duration no-op", "2024-06-01", "10:00:00", 0, "2024-06-01", "10:00:00"},
		{"negative duration no-op", "2024-06-01", "10:00:00", -5, "2024-06-01", "10:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, c := DeriveEndTime(tt.date, tt.clock, tt.duration)
			if d != tt.wantDate || c != tt.wantClock {
				t.Errorf("DeriveEndTime = %s %s, want %s %s", d, c, tt.wantDate, tt.wantClock)
			}
		})
	}
}
