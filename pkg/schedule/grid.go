// Package schedule implements the recurrence grid and the tagged Schedule
// variant that sit on top of pkg/bitmap: the "what calendar instants match"
// and "once vs recurring, bounded or not" layers of the reminder engine.
package schedule

import (
	"errors"
	"time"

	"ricordami/pkg/bitmap"
)

const (
	widthMinutes      = 60
	widthHours        = 24
	widthWeeksOfMonth = 5
	widthDaysOfMonth  = 31
	widthDaysOfWeek   = 7
	widthMonthsOfYear = 12

	maxYearIterations = 50
)

// ErrInvalidGrid reports a grid built with an invariant violation: an empty
// calendar bitmap or a non-positive year cadence.
var ErrInvalidGrid = errors.New("schedule: invalid grid")

// Grid is the six-bitmap calendar constraint inside a recurrent schedule:
// minutes, hours, weeks-of-month, days-of-month, days-of-week, and
// months-of-year, plus a year cadence and anchor year, interpreted in a
// fixed IANA timezone. A Grid is immutable once built.
type Grid struct {
	minutes      *bitmap.Bitmap
	hours        *bitmap.Bitmap
	weeksOfMonth *bitmap.Bitmap
	daysOfMonth  *bitmap.Bitmap
	daysOfWeek   *bitmap.Bitmap
	monthsOfYear *bitmap.Bitmap
	yearCadence  int
	yearStart    int
	loc          *time.Location
}

// NewGrid builds a grid from the six calendar bitmaps plus cadence, anchor
// year and timezone. It rejects cadence <= 0 and any bitmap with no bits
// set (every calendar bitmap must rule in at least one value).
func NewGrid(minutes, hours, weeksOfMonth, daysOfMonth, daysOfWeek, monthsOfYear *bitmap.Bitmap, yearCadence, yearStart int, loc *time.Location) (*Grid, error) {
	if yearCadence <= 0 {
		return nil, ErrInvalidGrid
	}
	for _, b := range []*bitmap.Bitmap{minutes, hours, weeksOfMonth, daysOfMonth, daysOfWeek, monthsOfYear} {
		if _, ok := b.FirstSet(); !ok {
			return nil, ErrInvalidGrid
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Grid{
		minutes:      minutes,
		hours:        hours,
		weeksOfMonth: weeksOfMonth,
		daysOfMonth:  daysOfMonth,
		daysOfWeek:   daysOfWeek,
		monthsOfYear: monthsOfYear,
		yearCadence:  yearCadence,
		yearStart:    yearStart,
		loc:          loc,
	}, nil
}

// NewMinutesBitmap, NewHoursBitmap, etc. build the six calendar bitmaps at
// their fixed widths, for use by callers assembling a Grid (the parser).
func NewMinutesBitmap(bits []int) *bitmap.Bitmap      { return bitmap.NewFromBits(widthMinutes, bits) }
func NewHoursBitmap(bits []int) *bitmap.Bitmap        { return bitmap.NewFromBits(widthHours, bits) }
func NewWeeksOfMonthBitmap(bits []int) *bitmap.Bitmap { return bitmap.NewFromBits(widthWeeksOfMonth, bits) }
func NewDaysOfMonthBitmap(bits []int) *bitmap.Bitmap  { return bitmap.NewFromBits(widthDaysOfMonth, bits) }
func NewDaysOfWeekBitmap(bits []int) *bitmap.Bitmap   { return bitmap.NewFromBits(widthDaysOfWeek, bits) }
func NewMonthsOfYearBitmap(bits []int) *bitmap.Bitmap { return bitmap.NewFromBits(widthMonthsOfYear, bits) }

// AllSetMinutes, etc. build the six calendar bitmaps fully set, the default
// state before a parser clause narrows any of them.
func AllSetMinutes() *bitmap.Bitmap      { return bitmap.AllSet(widthMinutes) }
func AllSetHours() *bitmap.Bitmap        { return bitmap.AllSet(widthHours) }
func AllSetWeeksOfMonth() *bitmap.Bitmap { return bitmap.AllSet(widthWeeksOfMonth) }
func AllSetDaysOfMonth() *bitmap.Bitmap  { return bitmap.AllSet(widthDaysOfMonth) }
func AllSetDaysOfWeek() *bitmap.Bitmap   { return bitmap.AllSet(widthDaysOfWeek) }
func AllSetMonthsOfYear() *bitmap.Bitmap { return bitmap.AllSet(widthMonthsOfYear) }

// Timezone returns the grid's governing IANA timezone.
func (g *Grid) Timezone() *time.Location { return g.loc }

// YearCadenceAndStart returns the grid's year cadence and anchor year, for
// durable serialization.
func (g *Grid) YearCadenceAndStart() (cadence, start int) { return g.yearCadence, g.yearStart }

// Bitmaps returns the six underlying calendar bitmaps in the canonical
// order used by the durable record layout: minutes, hours, weeks-of-month,
// days-of-month, days-of-week, months-of-year.
func (g *Grid) Bitmaps() (minutes, hours, weeksOfMonth, daysOfMonth, daysOfWeek, monthsOfYear *bitmap.Bitmap) {
	return g.minutes, g.hours, g.weeksOfMonth, g.daysOfMonth, g.daysOfWeek, g.monthsOfYear
}

// NextScheduledAfter returns the smallest instant strictly after now that
// satisfies every calendar field of the grid (expressed in the grid's
// timezone) plus the year cadence constraint. It returns false if no such
// instant exists within 50 year-iterations — the practical bound that
// rules out impossible grids such as "February 30th".
func (g *Grid) NextScheduledAfter(now time.Time) (time.Time, bool) {
	cursor := now.In(g.loc).Add(time.Minute)
	cursor = truncateToMinute(cursor)

	for i := 0; i < maxYearIterations; i++ {
		year := cursor.Year()
		var candidate time.Time
		if year >= g.yearStart && (year-g.yearStart)%g.yearCadence == 0 {
			candidate = cursor
		} else {
			candidate = startOfYear(nextAlignedYear(year, g.yearStart, g.yearCadence), g.loc)
		}

		if result, ok := g.findMonth(candidate); ok {
			return result, true
		}

		cursor = startOfYear(candidate.Year()+g.yearCadence, g.loc)
	}

	return time.Time{}, false
}

func nextAlignedYear(year, yearStart, cadence int) int {
	for y := year; ; y++ {
		if y >= yearStart && (y-yearStart)%cadence == 0 {
			return y
		}
	}
}

func (g *Grid) findMonth(cursor time.Time) (time.Time, bool) {
	currentMonth0 := int(cursor.Month()) - 1
	if g.monthsOfYear.Get(currentMonth0) {
		if d, ok := g.findDay(cursor); ok {
			return d, true
		}
	}
	for _, month0 := range g.monthsOfYear.Iter(currentMonth0) {
		candidate := setMonth0(cursor, month0, g.loc)
		if d, ok := g.findDay(candidate); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

func (g *Grid) findDay(cursor time.Time) (time.Time, bool) {
	currentDay0 := cursor.Day() - 1
	if g.daysOfMonth.Get(currentDay0) && g.daysOfWeek.Get(isoWeekday(cursor)) && g.weeksOfMonth.Get(currentDay0/7) {
		if d, ok := g.findHour(cursor); ok {
			return d, true
		}
	}
	for _, day0 := range g.daysOfMonth.Iter(currentDay0) {
		candidate, ok := setDay0(cursor, day0, g.loc)
		if !ok {
			continue
		}
		if !g.daysOfWeek.Get(isoWeekday(candidate)) || !g.weeksOfMonth.Get(day0/7) {
			continue
		}
		if d, ok := g.findHour(candidate); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

func (g *Grid) findHour(cursor time.Time) (time.Time, bool) {
	currentHour := cursor.Hour()
	if g.hours.Get(currentHour) {
		if d, ok := g.findMinute(cursor); ok {
			return d, true
		}
	}
	for _, hour := range g.hours.Iter(currentHour) {
		candidate, ok := setHour(cursor, hour, g.loc)
		if !ok {
			continue
		}
		if d, ok := g.findMinute(candidate); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

func (g *Grid) findMinute(cursor time.Time) (time.Time, bool) {
	currentMinute := cursor.Minute()
	if g.minutes.Get(currentMinute) && !isAmbiguousLocal(cursor) {
		return cursor, true
	}
	for _, minute := range g.minutes.Iter(currentMinute) {
		candidate, ok := setMinute(cursor, minute, g.loc)
		if !ok || isAmbiguousLocal(candidate) {
			continue
		}
		return candidate, true
	}
	return time.Time{}, false
}

// isoWeekday maps Go's Sunday=0..Saturday=6 convention to Monday=0..Sunday=6,
// matching the calendar week used by the days-of-week bitmap.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func truncateToMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

func startOfYear(year int, loc *time.Location) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
}

func setMonth0(t time.Time, month0 int, loc *time.Location) time.Time {
	return time.Date(t.Year(), time.Month(month0+1), 1, 0, 0, 0, 0, loc)
}

func setDay0(t time.Time, day0 int, loc *time.Location) (time.Time, bool) {
	day := day0 + 1
	candidate := time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, loc)
	if candidate.Year() != t.Year() || candidate.Month() != t.Month() || candidate.Day() != day {
		return time.Time{}, false
	}
	return candidate, true
}

func setHour(t time.Time, hour int, loc *time.Location) (time.Time, bool) {
	candidate := time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, loc)
	if candidate.Day() != t.Day() || candidate.Hour() != hour {
		return time.Time{}, false
	}
	return candidate, true
}

func setMinute(t time.Time, minute int, loc *time.Location) (time.Time, bool) {
	candidate := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, loc)
	if candidate.Hour() != t.Hour() || candidate.Minute() != minute {
		return time.Time{}, false
	}
	return candidate, true
}

// isAmbiguousLocal reports whether t falls inside a repeated local hour
// produced by a fall-back daylight-saving transition (the same wall clock
// time reachable both before and after the transition). Such instants are
// treated as "not enough information" and skipped rather than picked.
func isAmbiguousLocal(t time.Time) bool {
	earlier := t.Add(-time.Hour)
	return earlier.Hour() == t.Hour() && earlier.Day() == t.Day() && earlier.Month() == t.Month()
}
