package scheduling

import (
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	t.Run("accepts aligned values", func(t *testing.T) {
		t.Parallel()

		cases := map[string]TimeOfDay{
			"00:00": 0,
			"09:00": 9 * 60,
			"09:30": 9*60 + 30,
			"23:30": 23*60 + 30,
		}
		for input, want := range cases {
			got, err := ParseTimeOfDay(input)
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q) failed: %v", input, err)
			}
			if got != want {
				t.Fatalf("ParseTimeOfDay(%q) = %d, want %d", input, got, want)
			}
			if got.String() != input {
				t.Fatalf("round trip of %q produced %q", input, got.String())
			}
		}
	})

	t.Run("rejects off-grid and malformed values", func(t *testing.T) {
		t.Parallel()

		for _, input := range []string{"09:15", "9am", "24:00", "", "09:01"} {
			if _, err := ParseTimeOfDay(input); err == nil {
				t.Fatalf("expected ParseTimeOfDay(%q) to fail", input)
			}
		}
	})
}

func TestDate(t *testing.T) {
	t.Parallel()

	t.Run("parses and renders", func(t *testing.T) {
		t.Parallel()

		date, err := ParseDate("2025-03-10")
		if err != nil {
			t.Fatalf("ParseDate failed: %v", err)
		}
		if date.String() != "2025-03-10" {
			t.Fatalf("unexpected rendering %q", date.String())
		}
	})

	t.Run("rejects malformed dates", func(t *testing.T) {
		t.Parallel()

		for _, input := range []string{"2025-13-01", "10/03/2025", ""} {
			if _, err := ParseDate(input); err == nil {
				t.Fatalf("expected ParseDate(%q) to fail", input)
			}
		}
	})

	t.Run("combines with slot times", func(t *testing.T) {
		t.Parallel()

		date := Date{Year: 2025, Month: time.March, Day: 10}
		instant := date.At(9*60+30, time.UTC)
		if instant.Hour() != 9 || instant.Minute() != 30 {
			t.Fatalf("unexpected instant %v", instant)
		}
	})

	t.Run("orders and shifts days", func(t *testing.T) {
		t.Parallel()

		date := Date{Year: 2025, Month: time.March, Day: 31}
		next := date.AddDays(1)
		if next.String() != "2025-04-01" {
			t.Fatalf("AddDays crossed month incorrectly: %s", next)
		}
		if !date.Before(next) || !next.After(date) {
			t.Fatal("expected date ordering to hold")
		}
	})
}

func TestDayGrid(t *testing.T) {
	t.Parallel()

	grid := DayGrid(DefaultWorkingHours)
	if len(grid) != 18 {
		t.Fatalf("expected 18 slots for the default day, got %d", len(grid))
	}
	if grid[0].String() != "09:00" || grid[len(grid)-1].String() != "17:30" {
		t.Fatalf("unexpected grid bounds %s..%s", grid[0], grid[len(grid)-1])
	}
	for i := 1; i < len(grid); i++ {
		if grid[i]-grid[i-1] != TimeOfDay(SlotGranularity/time.Minute) {
			t.Fatalf("grid step broken between %s and %s", grid[i-1], grid[i])
		}
	}

	if DayGrid(WorkingHours{First: 10 * 60, Last: 9 * 60}) != nil {
		t.Fatal("expected empty grid for inverted working hours")
	}
}

func TestWithinLeadTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.March, 9, 9, 0, 0, 0, time.UTC)
	appointment := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

	if WithinLeadTime(now, appointment, CancellationLeadTime) {
		t.Fatal("exactly 24h ahead must still be cancellable")
	}
	if !WithinLeadTime(now.Add(time.Minute), appointment, CancellationLeadTime) {
		t.Fatal("23h59m ahead must be inside the closed window")
	}
}

func TestCompareDesc(t *testing.T) {
	t.Parallel()

	older := Date{Year: 2025, Month: time.March, Day: 9}
	newer := Date{Year: 2025, Month: time.March, Day: 10}

	if CompareDesc(newer, 9*60, older, 9*60) >= 0 {
		t.Fatal("newer date must sort first")
	}
	if CompareDesc(newer, 10*60, newer, 9*60) >= 0 {
		t.Fatal("later time on the same date must sort first")
	}
	if CompareDesc(newer, 9*60, newer, 9*60) != 0 {
		t.Fatal("identical keys must compare equal")
	}
}
