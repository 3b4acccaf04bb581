package leave

import (
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// DATE - Day-granularity time point
// =============================================================================

// Date is a calendar day in UTC. All leave arithmetic is
// day-granular; hours never appear in this system.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an arbitrary time to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

func Today() Date { return DateOf(time.Now()) }

// ParseDate parses an ISO date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }
func (d Date) AddYears(n int) Date  { return Date{t: d.t.AddDate(n, 0, 0)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) String() string { return d.t.Format("2006-01-02") }

func StartOfYear(year int) Date { return NewDate(year, time.January, 1) }
func EndOfYear(year int) Date   { return NewDate(year, time.December, 31) }

// =============================================================================
// HOLIDAY SET - External input to the calendar service
// =============================================================================

// HolidayCalendar answers whether a date is a public holiday.
type HolidayCalendar interface {
	IsHoliday(d Date) bool
}

// HolidaySet is a literal set of holiday dates.
type HolidaySet map[Date]struct{}

func NewHolidaySet(dates ...Date) HolidaySet {
	s := make(HolidaySet, len(dates))
	for _, d := range dates {
		s[d] = struct{}{}
	}
	return s
}

func (s HolidaySet) Add(d Date)           { s[d] = struct{}{} }
func (s HolidaySet) IsHoliday(d Date) bool { _, ok := s[d]; return ok }

// Dates returns the set's members in ascending order.
func (s HolidaySet) Dates() []Date {
	out := make([]Date, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// NoHolidays is an empty calendar for types counted without holiday
// exclusion and for tests.
var NoHolidays HolidayCalendar = HolidaySet(nil)

// =============================================================================
// CALENDAR SERVICE - Pure day counting
// =============================================================================

// WorkingDays counts the days in the inclusive range [start, end] that
// are not Saturdays or Sundays. When excludeHolidays is set, dates in
// the holiday calendar are excluded as well. Pure and deterministic.
//
// Returns ErrInvalidRange when start is after end.
func WorkingDays(start, end Date, excludeHolidays bool, holidays HolidayCalendar) (int, error) {
	if start.After(end) {
		return 0, fmt.Errorf("%w: %s after %s", ErrInvalidRange, start, end)
	}
	if holidays == nil {
		holidays = NoHolidays
	}

	count := 0
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if d.IsWeekend() {
			continue
		}
		if excludeHolidays && holidays.IsHoliday(d) {
			continue
		}
		count++
	}
	return count, nil
}

// CalendarDays counts every day in the inclusive range. Used for leave
// types granted in calendar days (maternity, paternity).
func CalendarDays(start, end Date) (int, error) {
	if start.After(end) {
		return 0, fmt.Errorf("%w: %s after %s", ErrInvalidRange, start, end)
	}
	return int(end.t.Sub(start.t).Hours()/24) + 1, nil
}
