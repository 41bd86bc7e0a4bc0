package clock

import (
	"testing"
	"time"
)

func TestEndOfDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		loc  *time.Location
		at   time.Time
		want time.Time
	}{
		{
			name: "utc afternoon",
			loc:  time.UTC,
			at:   time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
			want: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "utc just before midnight",
			loc:  time.UTC,
			at:   time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC),
			want: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			// 2026-03-11 01:00 UTC is still 2026-03-10 in New York.
			name: "utc instant resolved in another location",
			loc:  ny,
			at:   time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 11, 0, 0, 0, 0, ny),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EndOfDay(tt.at, tt.loc)
			if !got.Equal(tt.want) {
				t.Errorf("EndOfDay(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestSameDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}

	a := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC)

	if SameDay(a, b, time.UTC) {
		t.Error("different UTC days reported as same")
	}
	// Both fall on 2026-03-10 in New York.
	if !SameDay(a, b, ny) {
		t.Error("same New York day reported as different")
	}
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f := NewFixed(start, nil)

	if !f.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", f.Now(), start)
	}

	f.Advance(13 * time.Hour)
	if f.SameDay(start, f.Now()) {
		t.Error("advancing past midnight should change the day")
	}
}
