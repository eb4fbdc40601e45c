package scheduling

import (
	"fmt"
	"time"
)

// SlotGranularity is the fixed width of a bookable slot. Time-of-day values
// are only valid on these boundaries.
const SlotGranularity = 30 * time.Minute

// DefaultHorizonDays is the rolling window for which slots are generated
// ahead of time.
const DefaultHorizonDays = 30

// CancellationLeadTime is the minimum interval before an appointment during
// which cancellation or rescheduling is still permitted.
const CancellationLeadTime = 24 * time.Hour

// TimeOfDay identifies a slot within a day as minutes since midnight,
// aligned to SlotGranularity. It compares numerically, never as a string.
type TimeOfDay int

// ParseTimeOfDay converts an "HH:MM" value into a TimeOfDay, rejecting
// values off the slot grid.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("scheduling: invalid time of day %q: %w", value, err)
	}
	minutes := parsed.Hour()*60 + parsed.Minute()
	step := int(SlotGranularity / time.Minute)
	if minutes%step != 0 {
		return 0, fmt.Errorf("scheduling: time of day %q is not aligned to %d-minute slots", value, step)
	}
	return TimeOfDay(minutes), nil
}

// String renders the slot time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Valid reports whether the value lies on the slot grid within one day.
func (t TimeOfDay) Valid() bool {
	step := int(SlotGranularity / time.Minute)
	return t >= 0 && int(t) < 24*60 && int(t)%step == 0
}

// Date identifies a calendar day, location-independent.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate converts a "YYYY-MM-DD" value into a Date.
func ParseDate(value string) (Date, error) {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return Date{}, fmt.Errorf("scheduling: invalid date %q: %w", value, err)
	}
	return Date{Year: parsed.Year(), Month: parsed.Month(), Day: parsed.Day()}, nil
}

// DateOf truncates an instant to its calendar day in the instant's location.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// String renders the date as "YYYY-MM-DD".
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// At combines the date with a slot time in the given location.
func (d Date) At(t TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, int(t)/60, int(t)%60, 0, 0, loc)
}

// AddDays returns the date shifted by the given number of days.
func (d Date) AddDays(days int) Date {
	return DateOf(d.At(0, time.UTC).AddDate(0, 0, days))
}

// Before reports whether d precedes other.
func (d Date) Before(other Date) bool {
	return d.compare(other) < 0
}

// After reports whether d follows other.
func (d Date) After(other Date) bool {
	return d.compare(other) > 0
}

func (d Date) compare(other Date) int {
	if d.Year != other.Year {
		return d.Year - other.Year
	}
	if d.Month != other.Month {
		return int(d.Month) - int(other.Month)
	}
	return d.Day - other.Day
}

// Slot is the smallest bookable unit of a doctor's calendar.
type Slot struct {
	DoctorID string
	Date     Date
	Time     TimeOfDay
	Booked   bool
}

// WorkingHours bounds the slots generated per day.
type WorkingHours struct {
	First TimeOfDay
	Last  TimeOfDay
}

// DefaultWorkingHours covers a standard clinic day, 09:00 through 17:30
// inclusive.
var DefaultWorkingHours = WorkingHours{First: 9 * 60, Last: 17*60 + 30}

// DayGrid enumerates every slot time for one day within the working hours.
func DayGrid(hours WorkingHours) []TimeOfDay {
	if hours.Last < hours.First {
		return nil
	}
	step := TimeOfDay(SlotGranularity / time.Minute)
	times := make([]TimeOfDay, 0, (hours.Last-hours.First)/step+1)
	for t := hours.First; t <= hours.Last; t += step {
		times = append(times, t)
	}
	return times
}

// WithinLeadTime reports whether now is already inside the lead-time window
// preceding the appointment instant; changes are refused once inside.
func WithinLeadTime(now, appointment time.Time, lead time.Duration) bool {
	return appointment.Sub(now) < lead
}

// CompareDesc orders appointments by date descending, then time descending,
// so the soonest-relevant entries come first in listings. It returns a
// negative value when a sorts before b.
func CompareDesc(aDate Date, aTime TimeOfDay, bDate Date, bTime TimeOfDay) int {
	if c := bDate.compare(aDate); c != 0 {
		return c
	}
	return int(bTime) - int(aTime)
}
