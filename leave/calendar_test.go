package leave_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaacquah2/leave-portal-sub009/leave"
)

// =============================================================================
// DATE TESTS
// =============================================================================

func TestParseDate_RoundTrip(t *testing.T) {
	d, err := leave.ParseDate("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", d.String())
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := leave.ParseDate("15/03/2024")
	assert.Error(t, err)
}

func TestDate_AddMonths_EndOfQuarter(t *testing.T) {
	// Carry expiry is anchored to this arithmetic: Jan 1 + 3 months - 1 day.
	d := leave.NewDate(2025, time.January, 1).AddMonths(3).AddDays(-1)
	assert.Equal(t, "2025-03-31", d.String())
}

func TestDateOf_TruncatesToUTCDay(t *testing.T) {
	loc := time.FixedZone("APIA", 13*3600)
	// 2024-06-02 01:00 in UTC+13 is still 2024-06-01 in UTC.
	d := leave.DateOf(time.Date(2024, time.June, 2, 1, 0, 0, 0, loc))
	assert.Equal(t, "2024-06-01", d.String())
}

// =============================================================================
// WORKING DAY TESTS
// =============================================================================

func TestWorkingDays_HolidayExcluded(t *testing.T) {
	// GIVEN: The week of Jan 1-7 2024 (Mon-Sun), Jan 1 a public holiday
	// WHEN: Counting working days with holiday exclusion
	// THEN: 4 days (5 weekdays minus the holiday)

	holidays := leave.NewHolidaySet(leave.NewDate(2024, time.January, 1))

	got, err := leave.WorkingDays(
		leave.NewDate(2024, time.January, 1),
		leave.NewDate(2024, time.January, 7),
		true, holidays)
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}

func TestWorkingDays_HolidayExclusionOff(t *testing.T) {
	// Same week, exclusion disabled: the holiday counts as a working day.
	holidays := leave.NewHolidaySet(leave.NewDate(2024, time.January, 1))

	got, err := leave.WorkingDays(
		leave.NewDate(2024, time.January, 1),
		leave.NewDate(2024, time.January, 7),
		false, holidays)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestWorkingDays_WeekendOnlyRange(t *testing.T) {
	// Sat Jan 6 - Sun Jan 7 2024 contains no working day.
	got, err := leave.WorkingDays(
		leave.NewDate(2024, time.January, 6),
		leave.NewDate(2024, time.January, 7),
		true, leave.NoHolidays)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestWorkingDays_SingleDay(t *testing.T) {
	// A single weekday counts as one.
	wed := leave.NewDate(2024, time.January, 3)
	got, err := leave.WorkingDays(wed, wed, true, leave.NoHolidays)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	// A single Saturday counts as zero.
	sat := leave.NewDate(2024, time.January, 6)
	got, err = leave.WorkingDays(sat, sat, true, leave.NoHolidays)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestWorkingDays_StartAfterEnd(t *testing.T) {
	_, err := leave.WorkingDays(
		leave.NewDate(2024, time.January, 7),
		leave.NewDate(2024, time.January, 1),
		true, leave.NoHolidays)
	assert.ErrorIs(t, err, leave.ErrInvalidRange)
}

func TestWorkingDays_HolidayOnWeekend_NotDoubleCounted(t *testing.T) {
	// A holiday falling on Saturday must not subtract a weekday.
	holidays := leave.NewHolidaySet(leave.NewDate(2024, time.January, 6))

	got, err := leave.WorkingDays(
		leave.NewDate(2024, time.January, 1),
		leave.NewDate(2024, time.January, 7),
		true, holidays)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

// =============================================================================
// CALENDAR DAY TESTS
// =============================================================================

func TestCalendarDays_Inclusive(t *testing.T) {
	got, err := leave.CalendarDays(
		leave.NewDate(2024, time.January, 1),
		leave.NewDate(2024, time.January, 7))
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestCalendarDays_StartAfterEnd(t *testing.T) {
	_, err := leave.CalendarDays(
		leave.NewDate(2024, time.January, 2),
		leave.NewDate(2024, time.January, 1))
	assert.ErrorIs(t, err, leave.ErrInvalidRange)
}

func TestHolidaySet_Dates_Sorted(t *testing.T) {
	s := leave.NewHolidaySet(
		leave.NewDate(2024, time.December, 25),
		leave.NewDate(2024, time.January, 1),
		leave.NewDate(2024, time.July, 1),
	)
	dates := s.Dates()
	require.Len(t, dates, 3)
	assert.Equal(t, "2024-01-01", dates[0].String())
	assert.Equal(t, "2024-07-01", dates[1].String())
	assert.Equal(t, "2024-12-25", dates[2].String())
}
