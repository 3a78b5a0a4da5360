package schedule

import (
	"errors"
	"testing"
	"time"
)

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return loc
}

func TestParseVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		raw    string
		kind   Kind
		hour   int
		minute int
	}{
		{name: "hourly en", raw: "hourly", kind: Hourly},
		{name: "hourly ja", raw: "毎時", kind: Hourly},
		{name: "hourly mixed case", raw: "Hourly", kind: Hourly},
		{name: "daily en", raw: "daily 07:00", kind: Daily, hour: 7},
		{name: "daily ja", raw: "毎日 07:00", kind: Daily, hour: 7},
		{name: "daily ja no space", raw: "毎日7:30", kind: Daily, hour: 7, minute: 30},
		{name: "weekday en", raw: "weekdays 09:15", kind: Weekdays, hour: 9, minute: 15},
		{name: "weekday en singular", raw: "weekday 09:15", kind: Weekdays, hour: 9, minute: 15},
		{name: "weekday ja", raw: "平日 23:45", kind: Weekdays, hour: 23, minute: 45},
		{name: "extra whitespace", raw: "  daily   06:05 ", kind: Daily, hour: 6, minute: 5},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Hour != tt.hour || got.Minute != tt.minute {
				t.Fatalf("time = %02d:%02d, want %02d:%02d", got.Hour, got.Minute, tt.hour, tt.minute)
			}
		})
	}
}

func TestParseRejectsUnknownShapes(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "every 5m", "daily", "daily 24:00", "daily 7:5", "* * * * *", "毎週 07:00"} {
		_, err := Parse(raw)
		if err == nil {
			t.Fatalf("Parse(%q): expected error", raw)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("Parse(%q): expected *ParseError, got %T", raw, err)
		}
	}
}

func TestNextIsStrictlyAfterNow(t *testing.T) {
	t.Parallel()
	loc := tokyo(t)
	rules := []string{"hourly", "daily 07:00", "平日 07:00"}
	nows := []time.Time{
		time.Date(2026, 3, 2, 6, 59, 59, 0, loc),
		time.Date(2026, 3, 2, 7, 0, 0, 0, loc), // exactly on the boundary
		time.Date(2026, 3, 7, 12, 0, 0, 0, loc),
		time.Date(2026, 12, 31, 23, 59, 0, 0, loc),
	}
	for _, raw := range rules {
		r, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", raw, err)
		}
		for _, now := range nows {
			next := r.Next(now, loc)
			if !next.After(now) {
				t.Fatalf("%q: Next(%v) = %v, not strictly after", raw, now, next)
			}
		}
	}
}

func TestDailyPastTimeRollsToTomorrow(t *testing.T) {
	t.Parallel()
	loc := tokyo(t)
	for _, raw := range []string{"毎日 07:00", "daily 07:00"} {
		r, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", raw, err)
		}
		now := time.Date(2026, 8, 30, 7, 5, 0, 0, loc)
		want := time.Date(2026, 8, 31, 7, 0, 0, 0, loc)
		if got := r.Next(now, loc); !got.Equal(want) {
			t.Fatalf("%q: Next = %v, want %v", raw, got, want)
		}
	}
}

func TestHourlyFiresAtTopOfNextHour(t *testing.T) {
	t.Parallel()
	loc := tokyo(t)
	r, err := Parse("毎時")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	now := time.Date(2026, 8, 30, 10, 17, 42, 0, loc)
	want := time.Date(2026, 8, 30, 11, 0, 0, 0, loc)
	if got := r.Next(now, loc); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestWeekdaysNeverFireOnWeekends(t *testing.T) {
	t.Parallel()
	loc := tokyo(t)
	r, err := Parse("平日 07:00")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// Walk a month of successive occurrences from a Friday evening.
	now := time.Date(2026, 8, 28, 20, 0, 0, 0, loc)
	for i := 0; i < 25; i++ {
		next := r.Next(now, loc)
		if wd := next.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("occurrence %d landed on %v (%v)", i, wd, next)
		}
		if next.Hour() != 7 || next.Minute() != 0 {
			t.Fatalf("occurrence %d at %02d:%02d, want 07:00", i, next.Hour(), next.Minute())
		}
		now = next
	}
}

func TestFridayEveningWeekdayRuleSkipsToMonday(t *testing.T) {
	t.Parallel()
	loc := tokyo(t)
	r, err := Parse("平日 07:00")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// 2026-08-28 is a Friday.
	now := time.Date(2026, 8, 28, 8, 0, 0, 0, loc)
	want := time.Date(2026, 8, 31, 7, 0, 0, 0, loc) // Monday
	if got := r.Next(now, loc); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextRespectsLocation(t *testing.T) {
	t.Parallel()
	tok := tokyo(t)
	r, err := Parse("daily 07:00")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// 22:05 UTC == 07:05 next day in Tokyo, so the Tokyo occurrence is
	// tomorrow 07:00 Tokyo time, not today's UTC date.
	now := time.Date(2026, 8, 29, 22, 5, 0, 0, time.UTC)
	got := r.Next(now, tok)
	want := time.Date(2026, 8, 31, 7, 0, 0, 0, tok)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}
